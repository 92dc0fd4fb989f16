package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/fieldops_backend/models"
)

func TestParentViewTargetsKeepPerOriginExpenseRows(t *testing.T) {
	staff := []models.StaffActivityRow{
		{IsCompanyExpense: true, Spent: d(30), Notes: "fuel", OriginReportId: 1},
		{IsCompanyExpense: true, Spent: d(20), Notes: "lunch", OriginReportId: 2},
		{WorkerName: "Su", WorkStatus: models.WorkStatusWorked, OriginReportId: 2},
	}
	targets := buildParentViewTargets(nil, staff, []int{1, 2}, 9)

	expenseOf := func(id int) *models.StaffActivityRow {
		var found *models.StaffActivityRow
		for i, r := range targets[id].staff {
			if r.IsCompanyExpense {
				if found != nil {
					t.Fatalf("origin %d carries more than one company-expense row", id)
				}
				found = &targets[id].staff[i]
			}
		}
		return found
	}

	one := expenseOf(1)
	if one == nil || !one.Spent.Equal(d(30)) || one.Notes != "fuel" {
		t.Fatalf("origin 1 lost its company-expense row: %+v", targets[1].staff)
	}
	two := expenseOf(2)
	if two == nil || !two.Spent.Equal(d(20)) || two.Notes != "lunch" {
		t.Fatalf("origin 2 lost its company-expense row: %+v", targets[2].staff)
	}

	// Rows never leak across origins: origin 1 sees none of origin 2's rows.
	for _, r := range targets[1].staff {
		if r.WorkerName == "Su" {
			t.Fatalf("origin 2's worker row leaked into origin 1: %+v", targets[1].staff)
		}
	}
}

func TestParentViewTargetsEmptiedOriginWrittenEmpty(t *testing.T) {
	staff := []models.StaffActivityRow{
		{IsCompanyExpense: true, Spent: d(30), OriginReportId: 1},
	}
	targets := buildParentViewTargets(nil, staff, []int{1, 2}, 9)

	emptied, ok := targets[2]
	if !ok {
		t.Fatal("emptied origin must still be a write target")
	}
	if len(emptied.orders) != 0 || len(emptied.staff) != 0 {
		t.Fatalf("emptied origin must be written with zero rows, got %+v", emptied)
	}
}

func TestParentViewTargetsRouteUntaggedToOwnReport(t *testing.T) {
	orders := []models.OrderActivityRow{
		{Activity: "survey", OriginReportId: 1},
		{Activity: "install"}, // typed fresh in the parent view
	}
	targets := buildParentViewTargets(orders, nil, []int{1}, 9)

	var ownActivities []string
	for _, r := range targets[9].orders {
		ownActivities = append(ownActivities, r.Activity)
	}
	if len(ownActivities) != 1 || ownActivities[0] != "install" {
		t.Fatalf("origin-less rows must land in the actor's report: %v", ownActivities)
	}
	if len(targets[1].orders) != 1 || targets[1].orders[0].Activity != "survey" {
		t.Fatalf("origin 1's rows must stay with origin 1: %+v", targets[1].orders)
	}
	// The actor's own report gets the padded shape, expense row included.
	hasExpense := false
	for _, r := range targets[9].staff {
		if r.IsCompanyExpense {
			hasExpense = true
		}
	}
	if !hasExpense {
		t.Fatal("actor's own report must carry its company-expense row")
	}
}

func TestCollectCardOriginsTracksBothSides(t *testing.T) {
	// Card 7 is being removed from origin 2 and written into origin 1; both
	// origins must get their advisory log refreshed.
	before := map[int][]int{2: {7}}
	targets := map[int]reportRows{
		1: {staff: []models.StaffActivityRow{{IsCashBox: true, CardId: 7, Received: d(100)}}},
		2: {},
	}
	got := collectCardOrigins(before, targets)

	origins := got[7]
	if len(origins) != 2 || !origins[1] || !origins[2] {
		t.Fatalf("card 7 must be recomputed for origins 1 and 2, got %v", origins)
	}
	if len(got) != 1 {
		t.Fatalf("no other cards were touched, got %v", got)
	}
}
