package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// StaffActivityRow is one line of the staff/cash table. Three kinds share the
// table, told apart by flags:
//   - ordinary worker row (both flags false)
//   - the single company-expense row (IsCompanyExpense)
//   - cash-box rows tied to a bank card (IsCashBox + CardId)
type StaffActivityRow struct {
	ID               int             `gorm:"primary_key" json:"id"`
	ReportId         int             `gorm:"index;not null" json:"report_id"`
	WorkerId         int             `gorm:"index;default:0" json:"worker_id"`
	WorkerName       string          `gorm:"size:100" json:"worker_name"`
	IsCompanyExpense bool            `gorm:"default:false" json:"is_company_expense"`
	IsCashBox        bool            `gorm:"index;default:false" json:"is_cash_box"`
	CardId           int             `gorm:"index;default:0" json:"card_id"`
	Hours            decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"hours"`
	Received         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"received"`
	Spent            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"spent"`
	Notes            string          `gorm:"type:text" json:"notes"`
	WorkStatus       WorkStatus      `gorm:"type:enum('Worked','Absent','DayOff');default:'Absent'" json:"work_status"`
	Position         int             `gorm:"default:0" json:"position"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// OriginReportId tags a row in the multi-author parent view with the
	// source report it was read from. Routing only; never persisted.
	OriginReportId int `gorm:"-" json:"origin_report_id,omitempty"`
}

// Net is received minus spent.
func (r StaffActivityRow) Net() decimal.Decimal {
	return r.Received.Sub(r.Spent)
}

// IsEmpty reports whether an ordinary worker row carries no user content.
// Cash-box and company-expense rows are never padding, so never "empty".
func (r StaffActivityRow) IsEmpty() bool {
	if r.IsCashBox || r.IsCompanyExpense {
		return false
	}
	return r.WorkerId == 0 && r.WorkerName == "" &&
		r.Hours.IsZero() && r.Received.IsZero() && r.Spent.IsZero() && r.Notes == ""
}

// MergeKey identifies a worker across reports: user id when present, display
// name otherwise.
func (r StaffActivityRow) MergeKey() string {
	if r.WorkerId > 0 {
		return "u:" + strconv.Itoa(r.WorkerId)
	}
	return "n:" + r.WorkerName
}
