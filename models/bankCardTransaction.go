package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
	"github.com/shopspring/decimal"
)

// BankCardTransaction is an append-only log entry against a card.
//
// Manual entries are the only authoritative inputs to the balance. Report
// entries are advisory: synthesized per report for history display and fully
// replaced (delete + reinsert) by every recompute of the originating report.
type BankCardTransaction struct {
	ID                  int                   `gorm:"primary_key" json:"id"`
	CardId              int                   `gorm:"index;not null" json:"card_id"`
	Source              CardTransactionSource `gorm:"type:enum('Manual','Report');default:'Manual';not null" json:"source"`
	Deposit             decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"deposit"`
	Withdrawal          decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"withdrawal"`
	Description         string                `gorm:"size:255" json:"description"`
	ReportId            int                   `gorm:"index;default:0" json:"report_id"`
	TransactionDateTime time.Time             `gorm:"index;not null" json:"transaction_date_time"`
	CreatedAt           time.Time             `gorm:"autoCreateTime" json:"created_at"`
}

// Net is deposit minus withdrawal.
func (t BankCardTransaction) Net() decimal.Decimal {
	return t.Deposit.Sub(t.Withdrawal)
}

type NewBankCardTransaction struct {
	CardId              int             `json:"card_id" binding:"required"`
	Deposit             decimal.Decimal `json:"deposit"`
	Withdrawal          decimal.Decimal `json:"withdrawal"`
	Description         string          `json:"description"`
	TransactionDateTime time.Time       `json:"transaction_date_time"`
}

func (input *NewBankCardTransaction) validate(ctx context.Context) error {
	if err := utils.ValidateResourceId[BankCard](ctx, input.CardId); err != nil {
		return errors.New("card not found")
	}
	if input.Deposit.IsNegative() || input.Withdrawal.IsNegative() {
		return errors.New("deposit and withdrawal must not be negative")
	}
	if input.Deposit.IsZero() && input.Withdrawal.IsZero() {
		return errors.New("either deposit or withdrawal is required")
	}
	return nil
}

// CreateManualCardTransaction appends a manual (authoritative) entry. The
// caller is responsible for triggering a recompute of the card afterwards.
func CreateManualCardTransaction(ctx context.Context, input *NewBankCardTransaction) (*BankCardTransaction, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	when := input.TransactionDateTime
	if when.IsZero() {
		when = time.Now().UTC()
	}

	txn := BankCardTransaction{
		CardId:              input.CardId,
		Source:              CardTransactionSourceManual,
		Deposit:             input.Deposit,
		Withdrawal:          input.Withdrawal,
		Description:         input.Description,
		TransactionDateTime: when,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListManualCardTransactions returns the authoritative entries only,
// explicitly excluding report-derived advisory rows.
func ListManualCardTransactions(ctx context.Context, cardId int) ([]BankCardTransaction, error) {
	db := config.GetDB()
	var results []BankCardTransaction
	err := db.WithContext(ctx).
		Where("card_id = ? AND source = ?", cardId, CardTransactionSourceManual).
		Order("transaction_date_time, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListCardTransactions returns the full history (manual + advisory) for display.
func ListCardTransactions(ctx context.Context, cardId int) ([]BankCardTransaction, error) {
	db := config.GetDB()
	var results []BankCardTransaction
	err := db.WithContext(ctx).
		Where("card_id = ?", cardId).
		Order("transaction_date_time, id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
