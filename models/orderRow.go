package models

import "time"

// OrderActivityRow is one line of the per-order activity table.
type OrderActivityRow struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ReportId   int       `gorm:"index;not null" json:"report_id"`
	OrderRefId int       `gorm:"index;default:0" json:"order_ref_id"`
	Activity   string    `gorm:"type:text" json:"activity"`
	Team       string    `gorm:"size:100" json:"team"`
	Notes      string    `gorm:"type:text" json:"notes"`
	Color      string    `gorm:"size:16" json:"color"`
	Position   int       `gorm:"default:0" json:"position"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// OriginReportId tags a row in the multi-author parent view with the
	// source report it was read from. Routing only; never persisted.
	OriginReportId int `gorm:"-" json:"origin_report_id,omitempty"`
}

// IsEmpty reports whether the row carries no user content yet, i.e. it is a
// trailing placeholder the table keeps editable.
func (r OrderActivityRow) IsEmpty() bool {
	return r.OrderRefId == 0 && r.Activity == "" && r.Team == "" && r.Notes == ""
}
