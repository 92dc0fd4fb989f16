package models

import "errors"

// Row-collection invariants for the editable tables.
//
// Each auto-padded category (orders; ordinary worker rows) keeps exactly one
// trailing empty row so the table stays editable without an explicit
// "add row" action, and never drops to zero rows. Normalize is called after
// every mutation instead of scattering checks around the call sites.

var ErrCashBoxFloor = errors.New("at least one cash-box row must remain")

type OrderRowSet struct {
	Rows []OrderActivityRow
}

// Normalize enforces the trailing-empty-row invariant:
//   - filling what was the last empty row grows the set by one placeholder
//   - more than one trailing empty row collapses to exactly one
//   - an empty set gets a single placeholder
func (s *OrderRowSet) Normalize() {
	trimmed := s.Rows[:0]
	for _, r := range s.Rows {
		if !r.IsEmpty() {
			trimmed = append(trimmed, r)
		}
	}
	s.Rows = append(trimmed, OrderActivityRow{})
	for i := range s.Rows {
		s.Rows[i].Position = i
	}
}

// Delete removes the row at index i. Deleting the last remaining row leaves
// one empty placeholder, so the category always has an addressable row.
func (s *OrderRowSet) Delete(i int) {
	if i < 0 || i >= len(s.Rows) {
		return
	}
	s.Rows = append(s.Rows[:i], s.Rows[i+1:]...)
	s.Normalize()
}

// Filled returns the rows that carry content, i.e. what actually persists.
func (s *OrderRowSet) Filled() []OrderActivityRow {
	var out []OrderActivityRow
	for _, r := range s.Rows {
		if !r.IsEmpty() {
			out = append(out, r)
		}
	}
	return out
}

type StaffRowSet struct {
	Rows []StaffActivityRow
}

// Normalize keeps the ordinary worker category padded with exactly one
// trailing empty row. Cash-box rows and the company-expense row are exempt
// from padding; the company-expense row is synthesized when absent so every
// report carries exactly one.
func (s *StaffRowSet) Normalize() {
	var workers, special []StaffActivityRow
	hasExpense := false
	for _, r := range s.Rows {
		switch {
		case r.IsCompanyExpense:
			if !hasExpense {
				special = append(special, r)
				hasExpense = true
			}
		case r.IsCashBox:
			special = append(special, r)
		case !r.IsEmpty():
			workers = append(workers, r)
		}
	}
	if !hasExpense {
		special = append(special, StaffActivityRow{IsCompanyExpense: true, WorkStatus: WorkStatusDayOff})
	}

	s.Rows = append(workers, StaffActivityRow{WorkStatus: WorkStatusAbsent})
	s.Rows = append(s.Rows, special...)
	for i := range s.Rows {
		s.Rows[i].Position = i
	}
}

// DeleteCashBox removes the cash-box row at index i, rejecting a deletion
// that would drop the last cash-box row while any existed.
func (s *StaffRowSet) DeleteCashBox(i int) error {
	if i < 0 || i >= len(s.Rows) || !s.Rows[i].IsCashBox {
		return errors.New("not a cash-box row")
	}
	if s.cashBoxCount() <= 1 {
		return ErrCashBoxFloor
	}
	s.Rows = append(s.Rows[:i], s.Rows[i+1:]...)
	s.Normalize()
	return nil
}

// Delete removes an ordinary worker row; the padding invariant restores a
// placeholder when the category would become empty.
func (s *StaffRowSet) Delete(i int) {
	if i < 0 || i >= len(s.Rows) || s.Rows[i].IsCashBox || s.Rows[i].IsCompanyExpense {
		return
	}
	s.Rows = append(s.Rows[:i], s.Rows[i+1:]...)
	s.Normalize()
}

func (s *StaffRowSet) cashBoxCount() int {
	n := 0
	for _, r := range s.Rows {
		if r.IsCashBox {
			n++
		}
	}
	return n
}

// Filled returns the persistable rows: content-bearing worker rows plus all
// cash-box rows and the company-expense row.
func (s *StaffRowSet) Filled() []StaffActivityRow {
	var out []StaffActivityRow
	for _, r := range s.Rows {
		if r.IsCashBox || r.IsCompanyExpense || !r.IsEmpty() {
			out = append(out, r)
		}
	}
	return out
}
