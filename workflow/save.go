package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/models"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Guard is the process-wide save guard. The server and the tests go through
// the same instance so admit/skip behavior is identical everywhere.
var Guard = NewSaveGuard()

// SaveReportInput is one save request, manual or autosave, own view or the
// multi-author parent view.
type SaveReportInput struct {
	Date      time.Time
	CreatorId int
	ModuleId  int
	Notes     string
	OrderRows []models.OrderActivityRow
	StaffRows []models.StaffActivityRow

	// Manual saves get the "please wait" rejection on overlap; autosaves
	// are dropped silently.
	Manual bool
	// ParentView routes rows back to their origin reports instead of
	// writing everything into the actor's own report.
	ParentView bool
}

// SaveResult reports what a save actually did.
type SaveResult struct {
	Report       *models.DailyReport `json:"report"`
	Skipped      bool                `json:"skipped"`
	TouchedCards []int               `json:"touched_cards"`
}

// SaveDailyReport runs the full save workflow: admit via the guard, normalize
// rows, dedup on content hash, establish the report id, replace rows (per
// origin in the parent view, visiting emptied origins too), recompute every
// touched card, queue follower notifications, then clear the draft mirror.
//
// A failure before the report id is established aborts with nothing written.
// A store failure leaves the redis draft in place so nothing typed is lost.
// Advisory-log and notification failures are logged, never returned.
func SaveDailyReport(ctx context.Context, input SaveReportInput) (*SaveResult, error) {
	logger := config.GetLogger()

	date, err := utils.ConvertToDate(input.Date, "")
	if err != nil {
		return nil, err
	}
	dateKey := utils.DateKey(date)
	key := SaveKey(dateKey, input.CreatorId, input.ModuleId)

	if err := validateRows(input.OrderRows, input.StaffRows); err != nil {
		return nil, err
	}

	admitted, err := Guard.TryBegin(key, input.Manual)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return &SaveResult{Skipped: true}, nil
	}
	defer Guard.End(key)

	hash := NormalizedRowHash(dateKey, input.ModuleId, input.Notes, input.OrderRows, input.StaffRows)
	if unchanged(key, dateKey, input.CreatorId, input.ModuleId, hash) {
		report, findErr := models.FindDailyReport(ctx, date, input.CreatorId, input.ModuleId)
		if findErr != nil && findErr != utils.ErrorRecordNotFound {
			return nil, findErr
		}
		return &SaveResult{Report: report, Skipped: true}, nil
	}

	// Cross-instance lock is best-effort: Redis being down never blocks a
	// save, a concurrent holder on another instance does.
	if release, lockErr := obtainCrossInstanceLock(ctx, key); lockErr != nil {
		if input.Manual {
			return nil, utils.ErrorSaveInFlight
		}
		return &SaveResult{Skipped: true}, nil
	} else if release != nil {
		defer release()
	}

	report, err := models.EnsureDailyReport(ctx, date, input.CreatorId, input.ModuleId)
	if err != nil {
		return nil, err
	}

	var targets map[int]reportRows
	if input.ParentView {
		knownIds, idsErr := models.ListDailyReportIdsByDate(ctx, date)
		if idsErr != nil {
			return nil, idsErr
		}
		targets = buildParentViewTargets(input.OrderRows, input.StaffRows, knownIds, report.ID)
	} else {
		targets = map[int]reportRows{report.ID: normalizeRows(input.OrderRows, input.StaffRows)}
	}

	var cardOrigins map[int]map[int]bool
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		targetIds := make([]int, 0, len(targets))
		for id := range targets {
			targetIds = append(targetIds, id)
		}
		// Cards referenced before the replace still need a recompute even
		// when their rows are gone afterwards; remember which origin held
		// them so that origin's advisory log gets refreshed too.
		before, cardErr := models.ListCashBoxCardIdsByReport(tx, ctx, targetIds)
		if cardErr != nil {
			return cardErr
		}
		cardOrigins = collectCardOrigins(before, targets)

		for id, rows := range targets {
			if err := models.ReplaceReportRows(tx, ctx, id, rows.orders, rows.staff); err != nil {
				return err
			}
		}

		if err := models.UpdateDailyReportNotes(tx, ctx, report.ID, input.Notes); err != nil {
			return err
		}

		return queueFollowerNotifications(ctx, tx, report, dateKey)
	})
	if err != nil {
		return nil, err
	}

	result := &SaveResult{Report: report}
	for cardId, origins := range cardOrigins {
		result.TouchedCards = append(result.TouchedCards, cardId)
		// One recompute per (card, origin): the balance write is idempotent,
		// and each origin whose rows were rewritten gets its advisory log
		// entries replaced with its current contribution.
		for originId := range origins {
			if _, rcErr := RecomputeCardBalance(ctx, cardId, originId); rcErr != nil {
				config.LogError(logger, "workflow", "SaveDailyReport", "recompute",
					map[string]int{"cardId": cardId, "reportId": originId}, rcErr)
			}
		}
	}

	if err := utils.ClearDraft(input.CreatorId, dateKey, input.ModuleId); err != nil {
		config.LogError(logger, "workflow", "SaveDailyReport", "clearDraft", key, err)
	}
	if err := utils.StoreSavedHash(dateKey, input.CreatorId, input.ModuleId, hash); err != nil {
		config.LogError(logger, "workflow", "SaveDailyReport", "storeSavedHash", key, err)
	}
	Guard.RecordSaved(key, hash)

	return result, nil
}

// reportRows is the final row set one report receives from a save.
type reportRows struct {
	orders []models.OrderActivityRow
	staff  []models.StaffActivityRow
}

func normalizeRows(orderRows []models.OrderActivityRow, staffRows []models.StaffActivityRow) reportRows {
	orderSet := models.OrderRowSet{Rows: orderRows}
	orderSet.Normalize()
	staffSet := models.StaffRowSet{Rows: staffRows}
	staffSet.Normalize()
	return reportRows{orders: orderSet.Filled(), staff: staffSet.Filled()}
}

// buildParentViewTargets partitions the multi-author view by origin and
// normalizes each origin's rows in isolation, so one author's rows (the
// company-expense row included) never collapse into another author's report.
// Every origin known for the day is a write target; an origin whose rows were
// all removed in this edit is written empty rather than left stale.
func buildParentViewTargets(orderRows []models.OrderActivityRow, staffRows []models.StaffActivityRow, knownIds []int, ownReportId int) map[int]reportRows {
	orderParts := PartitionOrderRowsByOrigin(orderRows, ownReportId)
	staffParts := PartitionStaffRowsByOrigin(staffRows, ownReportId)

	targets := map[int]reportRows{}
	for _, id := range append(knownIds, ownReportId) {
		orders, staff := orderParts[id], staffParts[id]
		if len(orders) == 0 && len(staff) == 0 && id != ownReportId {
			targets[id] = reportRows{}
			continue
		}
		targets[id] = normalizeRows(orders, staff)
	}
	return targets
}

// collectCardOrigins folds the per-report card references of the rows being
// deleted (before) and the rows being written (targets) into
// card id -> set of origin report ids.
func collectCardOrigins(before map[int][]int, targets map[int]reportRows) map[int]map[int]bool {
	out := map[int]map[int]bool{}
	add := func(cardId, originId int) {
		if out[cardId] == nil {
			out[cardId] = map[int]bool{}
		}
		out[cardId][originId] = true
	}
	for originId, cardIds := range before {
		for _, cardId := range cardIds {
			add(cardId, originId)
		}
	}
	for originId, rows := range targets {
		for _, r := range rows.staff {
			if r.IsCashBox && r.CardId > 0 {
				add(r.CardId, originId)
			}
		}
	}
	return out
}

// unchanged consults the in-process hash first, then the redis copy other
// instances may have written. Either match means the store already holds
// exactly this content and the save is a no-op.
func unchanged(key, dateKey string, creatorId, moduleId int, hash string) bool {
	if Guard.ShouldSkip(key, hash) {
		return true
	}
	stored, found, err := utils.RetrieveSavedHash(dateKey, creatorId, moduleId)
	return err == nil && found && stored == hash
}

func obtainCrossInstanceLock(ctx context.Context, key string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lock, err := locker.Obtain(ctx, "saveLock:"+key, 15*time.Second, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, err
		}
		// Redis trouble, not contention. Proceed without the lock.
		config.LogError(config.GetLogger(), "workflow", "SaveDailyReport", "redislock", key, err)
		return nil, nil
	}
	return func() { _ = lock.Release(context.Background()) }, nil
}

var maxHoursPerDay = decimal.NewFromInt(24)

// validateRows rejects negative amounts and absurd hours before anything is
// admitted to the guard.
func validateRows(orderRows []models.OrderActivityRow, staffRows []models.StaffActivityRow) error {
	for _, r := range orderRows {
		if r.OrderRefId < 0 {
			return errors.New("order reference must not be negative")
		}
	}
	for i, r := range staffRows {
		if r.Received.IsNegative() || r.Spent.IsNegative() {
			return fmt.Errorf("row %d: amounts must not be negative", i+1)
		}
		if r.Hours.IsNegative() || r.Hours.GreaterThan(maxHoursPerDay) {
			return fmt.Errorf("row %d: hours out of range", i+1)
		}
		if r.IsCashBox && r.CardId <= 0 {
			return fmt.Errorf("row %d: cash-box row needs a card", i+1)
		}
	}
	return nil
}

func queueFollowerNotifications(ctx context.Context, tx *gorm.DB, report *models.DailyReport, dateKey string) error {
	followers, err := models.ListModuleFollowers(ctx, report.ModuleId)
	if err != nil {
		return err
	}
	actorId, _ := utils.GetUserIdFromContext(ctx)
	actorName, _ := utils.GetUsernameFromContext(ctx)
	title := "Daily report updated"
	body := fmt.Sprintf("Report for %s was saved", dateKey)
	if actorName != "" {
		body = fmt.Sprintf("%s saved the report for %s", actorName, dateKey)
	}
	link := fmt.Sprintf("/reports/%d", report.ID)
	for _, f := range followers {
		if f.ID == actorId {
			continue
		}
		phone := utils.FormatPhoneNumberE164(f.Phone, "MM")
		if err := models.PublishToNotification(ctx, tx, f.ID, phone, title, body, link); err != nil {
			return err
		}
	}
	return nil
}
