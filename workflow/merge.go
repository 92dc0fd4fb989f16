package workflow

import (
	"sort"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/fieldops_backend/models"
)

// MergedStaffRow is one line of the read-only day aggregate: a staff row whose
// amounts are summed across the contributing reports, tagged with who
// contributed.
type MergedStaffRow struct {
	models.StaffActivityRow
	Contributors []string `json:"contributors"`
}

// DayAggregate is the read-only merged view over every report of one day.
// It is derived, never stored, and has no save path.
type DayAggregate struct {
	DateKey   string             `json:"date_key"`
	ReportIds []int              `json:"report_ids"`
	Notes     string             `json:"notes"`
	OrderRows []models.OrderActivityRow `json:"order_rows"`
	StaffRows []MergedStaffRow   `json:"staff_rows"`
}

// MergeDayReports folds all reports of one day into a single aggregate:
//   - order rows are concatenated (report order, then position)
//   - cash-box rows merge by card id, worker rows by worker identity,
//     company-expense rows collapse into exactly one
//   - merged amounts are sums; work status is OR-combined (any Worked wins)
//   - notes keep the first non-empty value, later distinct values appended
func MergeDayReports(reports []*models.DailyReport, creatorName func(int) string) *DayAggregate {
	agg := &DayAggregate{}
	if len(reports) == 0 {
		return agg
	}
	agg.DateKey = reports[0].ReportDate.Format("2006-01-02")

	type bucket struct {
		row          MergedStaffRow
		order        int
		contributors map[string]bool
	}
	buckets := map[string]*bucket{}
	nextOrder := 0

	contributorLabel := func(r *models.DailyReport) string {
		if creatorName != nil {
			if name := creatorName(r.CreatorId); name != "" {
				return name
			}
		}
		return "report " + agg.DateKey
	}

	for _, report := range reports {
		agg.ReportIds = append(agg.ReportIds, report.ID)
		agg.Notes = mergeNotes(agg.Notes, report.Notes)
		label := contributorLabel(report)

		for _, r := range report.OrderRows {
			if r.IsEmpty() {
				continue
			}
			r.OriginReportId = report.ID
			agg.OrderRows = append(agg.OrderRows, r)
		}

		for _, r := range report.StaffRows {
			if r.IsEmpty() {
				continue
			}
			key := staffBucketKey(r)
			b, ok := buckets[key]
			if !ok {
				b = &bucket{order: nextOrder, contributors: map[string]bool{}}
				nextOrder++
				b.row.StaffActivityRow = r
				b.row.Notes = strings.TrimSpace(r.Notes)
				b.row.OriginReportId = 0
				b.contributors[label] = true
				buckets[key] = b
				continue
			}
			b.row.Hours = b.row.Hours.Add(r.Hours)
			b.row.Received = b.row.Received.Add(r.Received)
			b.row.Spent = b.row.Spent.Add(r.Spent)
			b.row.Notes = mergeNotes(b.row.Notes, r.Notes)
			b.row.WorkStatus = combineWorkStatus(b.row.WorkStatus, r.WorkStatus)
			b.contributors[label] = true
		}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].order < ordered[j].order })
	for i, b := range ordered {
		b.row.Position = i
		for label := range b.contributors {
			b.row.Contributors = append(b.row.Contributors, label)
		}
		sort.Strings(b.row.Contributors)
		agg.StaffRows = append(agg.StaffRows, b.row)
	}
	return agg
}

// staffBucketKey: cash-box rows merge per card, the company-expense rows of
// all reports collapse into one, worker rows merge per worker.
func staffBucketKey(r models.StaffActivityRow) string {
	switch {
	case r.IsCashBox:
		return "cash:" + strconv.Itoa(r.CardId)
	case r.IsCompanyExpense:
		return "expense"
	default:
		return "worker:" + r.MergeKey()
	}
}

// mergeNotes keeps the first non-empty note and appends later distinct notes.
func mergeNotes(base, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return base
	}
	if base == "" {
		return extra
	}
	for _, part := range strings.Split(base, "; ") {
		if part == extra {
			return base
		}
	}
	return base + "; " + extra
}

// combineWorkStatus OR-combines: a worker who worked anywhere that day worked.
func combineWorkStatus(a, b models.WorkStatus) models.WorkStatus {
	if a == models.WorkStatusWorked || b == models.WorkStatusWorked {
		return models.WorkStatusWorked
	}
	if a == models.WorkStatusDayOff || b == models.WorkStatusDayOff {
		return models.WorkStatusDayOff
	}
	return models.WorkStatusAbsent
}

// PartitionOrderRowsByOrigin groups parent-view rows by the report they came
// from. Rows without an origin (newly typed in the parent view) belong to the
// actor's own report.
func PartitionOrderRowsByOrigin(rows []models.OrderActivityRow, ownReportId int) map[int][]models.OrderActivityRow {
	out := map[int][]models.OrderActivityRow{}
	for _, r := range rows {
		origin := r.OriginReportId
		if origin == 0 {
			origin = ownReportId
		}
		out[origin] = append(out[origin], r)
	}
	return out
}

func PartitionStaffRowsByOrigin(rows []models.StaffActivityRow, ownReportId int) map[int][]models.StaffActivityRow {
	out := map[int][]models.StaffActivityRow{}
	for _, r := range rows {
		origin := r.OriginReportId
		if origin == 0 {
			origin = ownReportId
		}
		out[origin] = append(out[origin], r)
	}
	return out
}
