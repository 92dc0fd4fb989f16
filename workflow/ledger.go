package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/models"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
	"github.com/shopspring/decimal"
)

// CardBalance derives a card's balance from first principles:
// the immutable baseline, the net of manual transactions, and the net of
// every cash-box row for the card across every report in the store.
//
// Recomputing from scratch instead of applying deltas makes the balance
// immune to double-counting from partial failures, repeated saves, or
// out-of-order edits: the result depends only on current row contents.
func CardBalance(initial decimal.Decimal, manual []models.BankCardTransaction, cashRows []models.StaffActivityRow) decimal.Decimal {
	balance := initial
	for _, t := range manual {
		balance = balance.Add(t.Net())
	}
	for _, r := range cashRows {
		balance = balance.Add(r.Net())
	}
	return balance
}

// RecomputeCardBalance rebuilds the card's current balance and persists it,
// then best-effort replaces the advisory report-derived log entries tagged
// with the triggering report. Advisory-log failure never aborts the balance
// write; correctness never depends on the log.
//
// Idempotent: with no intervening data change, any number of calls lands on
// the same balance.
func RecomputeCardBalance(ctx context.Context, cardId int, triggerReportId int) (decimal.Decimal, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	card, err := models.GetBankCard(ctx, cardId)
	if err != nil {
		return decimal.Zero, err
	}

	manual, err := models.ListManualCardTransactions(ctx, cardId)
	if err != nil {
		return decimal.Zero, err
	}

	// All cash-box rows for the card, regardless of which report triggered.
	var cashRows []models.StaffActivityRow
	if err := db.WithContext(ctx).
		Where("is_cash_box = ? AND card_id = ?", true, cardId).
		Find(&cashRows).Error; err != nil {
		return decimal.Zero, err
	}

	newBalance := CardBalance(card.InitialBalance, manual, cashRows)

	if err := db.WithContext(ctx).Model(&models.BankCard{}).
		Where("id = ?", cardId).
		Update("current_balance", newBalance).Error; err != nil {
		return decimal.Zero, err
	}

	if triggerReportId > 0 {
		if logErr := replaceAdvisoryLog(ctx, cardId, triggerReportId); logErr != nil {
			config.LogError(logger, "workflow", "RecomputeCardBalance", "replaceAdvisoryLog",
				map[string]int{"cardId": cardId, "reportId": triggerReportId}, logErr)
		}
	}

	return newBalance, nil
}

// replaceAdvisoryLog rewrites the report-derived history entries for
// (card, report): delete the old ones, insert one aggregate deposit and one
// aggregate withdrawal summarizing the report's contribution.
func replaceAdvisoryLog(ctx context.Context, cardId int, reportId int) error {
	db := config.GetDB()

	report, err := models.GetDailyReport(ctx, reportId)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			// Report was deleted; just drop its advisory entries.
			return db.WithContext(ctx).
				Where("card_id = ? AND report_id = ? AND source = ?", cardId, reportId, models.CardTransactionSourceReport).
				Delete(&models.BankCardTransaction{}).Error
		}
		return err
	}

	received := decimal.Zero
	spent := decimal.Zero
	for _, r := range report.StaffRows {
		if r.IsCashBox && r.CardId == cardId {
			received = received.Add(r.Received)
			spent = spent.Add(r.Spent)
		}
	}

	if err := db.WithContext(ctx).
		Where("card_id = ? AND report_id = ? AND source = ?", cardId, reportId, models.CardTransactionSourceReport).
		Delete(&models.BankCardTransaction{}).Error; err != nil {
		return err
	}

	when := report.ReportDate
	if when.IsZero() {
		when = time.Now().UTC()
	}
	label := fmt.Sprintf("daily report %s", utils.DateKey(report.ReportDate))

	var entries []models.BankCardTransaction
	if received.IsPositive() {
		entries = append(entries, models.BankCardTransaction{
			CardId:              cardId,
			Source:              models.CardTransactionSourceReport,
			Deposit:             received,
			Description:         "received, " + label,
			ReportId:            reportId,
			TransactionDateTime: when,
		})
	}
	if spent.IsPositive() {
		entries = append(entries, models.BankCardTransaction{
			CardId:              cardId,
			Source:              models.CardTransactionSourceReport,
			Withdrawal:          spent,
			Description:         "spent, " + label,
			ReportId:            reportId,
			TransactionDateTime: when,
		})
	}
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&entries).Error
}
