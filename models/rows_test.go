package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func countEmptyOrders(rows []OrderActivityRow) int {
	n := 0
	for _, r := range rows {
		if r.IsEmpty() {
			n++
		}
	}
	return n
}

func TestOrderRowSetNormalizePadding(t *testing.T) {
	var s OrderRowSet

	// Empty set gets exactly one placeholder, never zero rows.
	s.Normalize()
	if len(s.Rows) != 1 || countEmptyOrders(s.Rows) != 1 {
		t.Fatalf("empty set: want 1 placeholder, got %d rows (%d empty)", len(s.Rows), countEmptyOrders(s.Rows))
	}

	// Filling the placeholder grows the set back to content + one placeholder.
	s.Rows[0].Activity = "site survey"
	s.Normalize()
	if len(s.Rows) != 2 || countEmptyOrders(s.Rows) != 1 {
		t.Fatalf("after fill: want 2 rows with 1 placeholder, got %d rows (%d empty)", len(s.Rows), countEmptyOrders(s.Rows))
	}

	// Deleting the only filled row drops back to a single placeholder.
	s.Delete(0)
	if len(s.Rows) != 1 || countEmptyOrders(s.Rows) != 1 {
		t.Fatalf("after delete: want 1 placeholder, got %d rows (%d empty)", len(s.Rows), countEmptyOrders(s.Rows))
	}

	// Several stray empties collapse to exactly one.
	s.Rows = []OrderActivityRow{{}, {Activity: "install"}, {}, {}}
	s.Normalize()
	if len(s.Rows) != 2 || countEmptyOrders(s.Rows) != 1 {
		t.Fatalf("collapse: want 2 rows with 1 placeholder, got %d rows (%d empty)", len(s.Rows), countEmptyOrders(s.Rows))
	}
	if s.Rows[0].Activity != "install" || s.Rows[0].Position != 0 || s.Rows[1].Position != 1 {
		t.Fatalf("collapse: content row lost or positions wrong: %+v", s.Rows)
	}
}

func TestStaffRowSetNormalize(t *testing.T) {
	s := StaffRowSet{Rows: []StaffActivityRow{
		{WorkerName: "Aung", WorkStatus: WorkStatusWorked},
		{IsCashBox: true, CardId: 3, Received: decimal.NewFromInt(100)},
	}}
	s.Normalize()

	workerPlaceholders, expenses, cashBoxes := 0, 0, 0
	for _, r := range s.Rows {
		switch {
		case r.IsCompanyExpense:
			expenses++
		case r.IsCashBox:
			cashBoxes++
		case r.IsEmpty():
			workerPlaceholders++
		}
	}
	if workerPlaceholders != 1 {
		t.Fatalf("want exactly 1 worker placeholder, got %d", workerPlaceholders)
	}
	if expenses != 1 {
		t.Fatalf("want the company-expense row synthesized exactly once, got %d", expenses)
	}
	if cashBoxes != 1 {
		t.Fatalf("cash-box row lost: got %d", cashBoxes)
	}

	// A second normalize is a no-op apart from positions.
	before := len(s.Rows)
	s.Normalize()
	if len(s.Rows) != before {
		t.Fatalf("normalize not idempotent: %d -> %d rows", before, len(s.Rows))
	}

	// Duplicate company-expense rows collapse to one.
	s.Rows = append(s.Rows, StaffActivityRow{IsCompanyExpense: true})
	s.Normalize()
	expenses = 0
	for _, r := range s.Rows {
		if r.IsCompanyExpense {
			expenses++
		}
	}
	if expenses != 1 {
		t.Fatalf("duplicate expense rows must collapse to 1, got %d", expenses)
	}
}

func TestStaffRowSetCashBoxFloor(t *testing.T) {
	s := StaffRowSet{Rows: []StaffActivityRow{
		{IsCashBox: true, CardId: 1},
		{IsCashBox: true, CardId: 2},
	}}
	s.Normalize()

	cashAt := func() int {
		for i, r := range s.Rows {
			if r.IsCashBox {
				return i
			}
		}
		return -1
	}

	if err := s.DeleteCashBox(cashAt()); err != nil {
		t.Fatalf("deleting one of two cash-box rows must succeed: %v", err)
	}
	if err := s.DeleteCashBox(cashAt()); err != ErrCashBoxFloor {
		t.Fatalf("deleting the last cash-box row: want ErrCashBoxFloor, got %v", err)
	}
	if s.cashBoxCount() != 1 {
		t.Fatalf("floor violated: %d cash-box rows left", s.cashBoxCount())
	}
}

func TestStaffRowIsEmptyKinds(t *testing.T) {
	if (StaffActivityRow{IsCashBox: true}).IsEmpty() {
		t.Fatal("cash-box rows are never empty")
	}
	if (StaffActivityRow{IsCompanyExpense: true}).IsEmpty() {
		t.Fatal("the company-expense row is never empty")
	}
	if !(StaffActivityRow{WorkStatus: WorkStatusAbsent}).IsEmpty() {
		t.Fatal("a worker row with no content is empty")
	}
}
