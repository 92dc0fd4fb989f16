package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// DailyReport is identified by (date, creator, module). It is created on the
// first save for that key, never implicitly deleted, and owns its row
// collections (cascade delete by parent id).
type DailyReport struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ReportDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_report_day,priority:1" json:"report_date"`
	CreatorId  int       `gorm:"not null;uniqueIndex:idx_report_day,priority:2" json:"creator_id"`
	ModuleId   int       `gorm:"not null;uniqueIndex:idx_report_day,priority:3" json:"module_id"`
	Notes      string    `gorm:"type:text" json:"notes"`

	OrderRows []OrderActivityRow `gorm:"foreignKey:ReportId" json:"order_rows"`
	StaffRows []StaffActivityRow `gorm:"foreignKey:ReportId" json:"staff_rows"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// EnsureDailyReport returns the report for (date, creator, module), creating
// it when absent. A unique-constraint race against a concurrent creator is
// recovered locally by re-reading the winner; it is never surfaced.
//
// Failing to establish a report id after both create and retry-read is the
// one fatal case: nothing downstream has a valid target.
func EnsureDailyReport(ctx context.Context, date time.Time, creatorId int, moduleId int) (*DailyReport, error) {
	db := config.GetDB()

	var existing DailyReport
	err := db.WithContext(ctx).
		Where("report_date = ? AND creator_id = ? AND module_id = ?", date, creatorId, moduleId).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	report := DailyReport{
		ReportDate: date,
		CreatorId:  creatorId,
		ModuleId:   moduleId,
	}
	err = db.WithContext(ctx).Create(&report).Error
	if err == nil {
		return &report, nil
	}
	if !isDuplicateKeyErr(err) {
		return nil, err
	}

	// Lost the race: the record exists now, re-read and continue as update.
	err = db.WithContext(ctx).
		Where("report_date = ? AND creator_id = ? AND module_id = ?", date, creatorId, moduleId).
		First(&existing).Error
	if err != nil {
		return nil, errors.New("could not establish daily report id")
	}
	return &existing, nil
}

// GetDailyReport loads a report with its row collections, ordered by position.
func GetDailyReport(ctx context.Context, id int) (*DailyReport, error) {
	db := config.GetDB()
	var report DailyReport
	err := db.WithContext(ctx).
		Preload("OrderRows", func(tx *gorm.DB) *gorm.DB { return tx.Order("position, id") }).
		Preload("StaffRows", func(tx *gorm.DB) *gorm.DB { return tx.Order("position, id") }).
		Where("id = ?", id).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

// FindDailyReport looks a report up by its natural key.
func FindDailyReport(ctx context.Context, date time.Time, creatorId int, moduleId int) (*DailyReport, error) {
	db := config.GetDB()
	var report DailyReport
	err := db.WithContext(ctx).
		Where("report_date = ? AND creator_id = ? AND module_id = ?", date, creatorId, moduleId).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &report, nil
}

// ListDailyReportsByDate fetches every report for the date across all modules
// and authors, rows included. This feeds both the read-only aggregate and the
// editable parent view.
func ListDailyReportsByDate(ctx context.Context, date time.Time) ([]*DailyReport, error) {
	db := config.GetDB()
	var reports []*DailyReport
	err := db.WithContext(ctx).
		Preload("OrderRows", func(tx *gorm.DB) *gorm.DB { return tx.Order("position, id") }).
		Preload("StaffRows", func(tx *gorm.DB) *gorm.DB { return tx.Order("position, id") }).
		Where("report_date = ?", date).
		Order("module_id, creator_id").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// ListDailyReportIdsByDate returns just the ids of every report known for the
// date. The save-back routing must visit all of them, even origins whose
// partition became empty.
func ListDailyReportIdsByDate(ctx context.Context, date time.Time) ([]int, error) {
	db := config.GetDB()
	var ids []int
	err := db.WithContext(ctx).Model(&DailyReport{}).
		Where("report_date = ?", date).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SearchDailyReports lists reports where the creator or the module matches,
// newest first.
func SearchDailyReports(ctx context.Context, creatorId int, moduleId int, limit int) ([]*DailyReport, error) {
	db := config.GetDB()
	if limit <= 0 {
		limit = 50
	}
	var reports []*DailyReport
	err := db.WithContext(ctx).
		Where("creator_id = ? OR module_id = ?", creatorId, moduleId).
		Order("report_date DESC, id DESC").
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// ReplaceReportRows is the delete-then-reinsert primitive of the save-back
// routing: within tx, the report's child rows are dropped by parent id and
// the given rows inserted. Positions are renumbered; transient origin tags
// are cleared so they are never persisted.
func ReplaceReportRows(tx *gorm.DB, ctx context.Context, reportId int, orderRows []OrderActivityRow, staffRows []StaffActivityRow) error {
	if err := tx.WithContext(ctx).Where("report_id = ?", reportId).Delete(&OrderActivityRow{}).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Where("report_id = ?", reportId).Delete(&StaffActivityRow{}).Error; err != nil {
		return err
	}

	for i := range orderRows {
		orderRows[i].ID = 0
		orderRows[i].ReportId = reportId
		orderRows[i].OriginReportId = 0
		orderRows[i].Position = i
	}
	for i := range staffRows {
		staffRows[i].ID = 0
		staffRows[i].ReportId = reportId
		staffRows[i].OriginReportId = 0
		staffRows[i].Position = i
	}

	if len(orderRows) > 0 {
		if err := tx.WithContext(ctx).Create(&orderRows).Error; err != nil {
			return err
		}
	}
	if len(staffRows) > 0 {
		if err := tx.WithContext(ctx).Create(&staffRows).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListCashBoxCardIds returns the distinct card ids referenced by the cash-box
// rows of the given reports. Used to know which balances a save touched.
func ListCashBoxCardIds(tx *gorm.DB, ctx context.Context, reportIds []int) ([]int, error) {
	if len(reportIds) == 0 {
		return nil, nil
	}
	var ids []int
	err := tx.WithContext(ctx).Model(&StaffActivityRow{}).
		Where("is_cash_box = ? AND card_id > 0 AND report_id IN ?", true, reportIds).
		Distinct().
		Pluck("card_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListCashBoxCardIdsByReport groups the distinct cash-box card ids of the
// given reports by report id, so each report's advisory-log contribution can
// be refreshed separately.
func ListCashBoxCardIdsByReport(tx *gorm.DB, ctx context.Context, reportIds []int) (map[int][]int, error) {
	if len(reportIds) == 0 {
		return nil, nil
	}
	var refs []struct {
		ReportId int
		CardId   int
	}
	err := tx.WithContext(ctx).Model(&StaffActivityRow{}).
		Where("is_cash_box = ? AND card_id > 0 AND report_id IN ?", true, reportIds).
		Distinct().
		Select("report_id", "card_id").
		Find(&refs).Error
	if err != nil {
		return nil, err
	}
	out := map[int][]int{}
	for _, ref := range refs {
		out[ref.ReportId] = append(out[ref.ReportId], ref.CardId)
	}
	return out, nil
}

// ListCashBoxCardIdsForReport is the single-report convenience form, run on
// the shared connection.
func ListCashBoxCardIdsForReport(ctx context.Context, reportId int) ([]int, error) {
	return ListCashBoxCardIds(config.GetDB(), ctx, []int{reportId})
}

// DeleteDailyReport removes the report and all of its children. Explicit only;
// reports are never implicitly deleted.
func DeleteDailyReport(ctx context.Context, id int) (*DailyReport, error) {
	report, err := GetDailyReport(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", id).Delete(&OrderActivityRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("report_id = ?", id).Delete(&StaffActivityRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&DailyReport{}, id).Error
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// UpdateDailyReportNotes sets the free-text notes of the report.
func UpdateDailyReportNotes(tx *gorm.DB, ctx context.Context, reportId int, notes string) error {
	return tx.WithContext(ctx).Model(&DailyReport{}).
		Where("id = ?", reportId).
		Update("notes", notes).Error
}
