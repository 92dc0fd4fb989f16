package models

type UserRole string

const (
	UserRoleAdmin       UserRole = "A"
	UserRoleCoordinator UserRole = "O"
	UserRoleCrew        UserRole = "C"
)

// WorkStatus is OR-combined when worker rows from several reports merge:
// any Worked wins over Absent.
type WorkStatus string

const (
	WorkStatusWorked WorkStatus = "Worked"
	WorkStatusAbsent WorkStatus = "Absent"
	WorkStatusDayOff WorkStatus = "DayOff"
)

// CardTransactionSource separates authoritative manual entries from the
// advisory report-derived log rows the recompute engine rewrites.
type CardTransactionSource string

const (
	CardTransactionSourceManual CardTransactionSource = "Manual"
	CardTransactionSourceReport CardTransactionSource = "Report"
)

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "PENDING"
	NotificationStatusProcessing NotificationStatus = "PROCESSING"
	NotificationStatusSent       NotificationStatus = "SENT"
	NotificationStatusFailed     NotificationStatus = "FAILED"
	NotificationStatusDead       NotificationStatus = "DEAD"
)
