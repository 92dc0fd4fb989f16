package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/fieldops_backend/models"
)

func report(id, creatorId int, staff ...models.StaffActivityRow) *models.DailyReport {
	return &models.DailyReport{ID: id, CreatorId: creatorId, StaffRows: staff}
}

func TestMergeDayReportsCashBoxSums(t *testing.T) {
	reports := []*models.DailyReport{
		report(1, 10, models.StaffActivityRow{IsCashBox: true, CardId: 7, Received: d(100)}),
		report(2, 20, models.StaffActivityRow{IsCashBox: true, CardId: 7, Received: d(50)}),
	}
	agg := MergeDayReports(reports, func(id int) string {
		if id == 10 {
			return "Aung"
		}
		return "Min"
	})

	var cash []MergedStaffRow
	for _, r := range agg.StaffRows {
		if r.IsCashBox {
			cash = append(cash, r)
		}
	}
	if len(cash) != 1 {
		t.Fatalf("rows for the same card must merge into one, got %d", len(cash))
	}
	if !cash[0].Received.Equal(d(150)) {
		t.Fatalf("100 + 50: want 150, got %s", cash[0].Received)
	}
	if len(cash[0].Contributors) != 2 || cash[0].Contributors[0] != "Aung" || cash[0].Contributors[1] != "Min" {
		t.Fatalf("want contributors [Aung Min], got %v", cash[0].Contributors)
	}
}

func TestMergeDayReportsWorkerStatusOr(t *testing.T) {
	reports := []*models.DailyReport{
		report(1, 10, models.StaffActivityRow{WorkerId: 5, Hours: d(4), WorkStatus: models.WorkStatusAbsent}),
		report(2, 20, models.StaffActivityRow{WorkerId: 5, Hours: d(3), WorkStatus: models.WorkStatusWorked}),
	}
	agg := MergeDayReports(reports, nil)

	var worker *MergedStaffRow
	for i := range agg.StaffRows {
		if agg.StaffRows[i].WorkerId == 5 {
			worker = &agg.StaffRows[i]
		}
	}
	if worker == nil {
		t.Fatal("worker row missing from aggregate")
	}
	if worker.WorkStatus != models.WorkStatusWorked {
		t.Fatalf("any Worked must win the OR-combine, got %s", worker.WorkStatus)
	}
	if !worker.Hours.Equal(d(7)) {
		t.Fatalf("hours must sum: want 7, got %s", worker.Hours)
	}
}

func TestMergeDayReportsSingleExpenseRow(t *testing.T) {
	reports := []*models.DailyReport{
		report(1, 10, models.StaffActivityRow{IsCompanyExpense: true, Spent: d(30), Notes: "fuel"}),
		report(2, 20, models.StaffActivityRow{IsCompanyExpense: true, Spent: d(20), Notes: "lunch"}),
		report(3, 30, models.StaffActivityRow{IsCompanyExpense: true, Notes: "fuel"}),
	}
	agg := MergeDayReports(reports, nil)

	var expenses []MergedStaffRow
	for _, r := range agg.StaffRows {
		if r.IsCompanyExpense {
			expenses = append(expenses, r)
		}
	}
	if len(expenses) != 1 {
		t.Fatalf("aggregate must carry exactly one company-expense row, got %d", len(expenses))
	}
	if !expenses[0].Spent.Equal(d(50)) {
		t.Fatalf("30 + 20: want 50, got %s", expenses[0].Spent)
	}
	// First non-empty note wins; later distinct notes append; duplicates don't.
	if expenses[0].Notes != "fuel; lunch" {
		t.Fatalf("want notes %q, got %q", "fuel; lunch", expenses[0].Notes)
	}
}

func TestMergeDayReportsWhitespaceNoteNeverSeeds(t *testing.T) {
	reports := []*models.DailyReport{
		report(1, 10, models.StaffActivityRow{IsCompanyExpense: true, Spent: d(30), Notes: "   "}),
		report(2, 20, models.StaffActivityRow{IsCompanyExpense: true, Spent: d(20), Notes: "fuel"}),
	}
	agg := MergeDayReports(reports, nil)

	for _, r := range agg.StaffRows {
		if r.IsCompanyExpense && r.Notes != "fuel" {
			t.Fatalf("whitespace-only first note must not defeat first-non-empty-wins: %q", r.Notes)
		}
	}
}

func TestMergeDayReportsDayNotes(t *testing.T) {
	reports := []*models.DailyReport{
		{ID: 1, Notes: ""},
		{ID: 2, Notes: "rain until noon"},
		{ID: 3, Notes: "rain until noon"},
		{ID: 4, Notes: "generator refueled"},
	}
	agg := MergeDayReports(reports, nil)
	if agg.Notes != "rain until noon; generator refueled" {
		t.Fatalf("unexpected merged notes: %q", agg.Notes)
	}
}

func TestMergeDayReportsSkipsPlaceholders(t *testing.T) {
	reports := []*models.DailyReport{
		report(1, 10,
			models.StaffActivityRow{WorkerName: "Su", WorkStatus: models.WorkStatusWorked},
			models.StaffActivityRow{WorkStatus: models.WorkStatusAbsent}, // trailing placeholder
		),
	}
	agg := MergeDayReports(reports, nil)
	for _, r := range agg.StaffRows {
		if !r.IsCashBox && !r.IsCompanyExpense && r.StaffActivityRow.IsEmpty() {
			t.Fatalf("placeholder row leaked into the aggregate: %+v", r)
		}
	}
}

func TestPartitionRowsByOrigin(t *testing.T) {
	rows := []models.StaffActivityRow{
		{WorkerName: "A", OriginReportId: 1},
		{WorkerName: "B", OriginReportId: 2},
		{WorkerName: "C"}, // typed fresh in the parent view
	}
	parts := PartitionStaffRowsByOrigin(rows, 9)

	if len(parts[1]) != 1 || parts[1][0].WorkerName != "A" {
		t.Fatalf("origin 1: %+v", parts[1])
	}
	if len(parts[9]) != 1 || parts[9][0].WorkerName != "C" {
		t.Fatalf("origin-less rows must route to the actor's report: %+v", parts[9])
	}

	// An origin whose rows were all moved away simply has no partition entry;
	// the save loop still visits it via the known-ids list and writes it empty.
	knownIds := []int{1, 2, 3}
	visited := map[int]int{}
	for _, id := range knownIds {
		visited[id] = len(parts[id])
	}
	if visited[3] != 0 {
		t.Fatalf("emptied origin must be visited with zero rows, got %d", visited[3])
	}
	if _, ok := visited[3]; !ok {
		t.Fatal("emptied origin was not visited")
	}
}
