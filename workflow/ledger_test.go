package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/fieldops_backend/models"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the balance
// semantics against the pure computation; DB-bound recompute paths need a
// MySQL environment and are covered by integration runs.

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCardBalanceArithmetic(t *testing.T) {
	initial := d(1000)
	manual := []models.BankCardTransaction{
		{Deposit: d(500)},
		{Withdrawal: d(300)},
	}
	cash := []models.StaffActivityRow{
		{IsCashBox: true, CardId: 1, Spent: d(300)},
	}

	got := CardBalance(initial, manual, cash)
	if !got.Equal(d(900)) {
		t.Fatalf("1000 + (500-300) - 300: want 900, got %s", got)
	}
}

func TestCardBalanceIdempotent(t *testing.T) {
	initial := d(250)
	manual := []models.BankCardTransaction{{Deposit: d(100)}, {Withdrawal: d(40)}}
	cash := []models.StaffActivityRow{
		{IsCashBox: true, Received: d(75), Spent: d(25)},
		{IsCashBox: true, Received: d(10)},
	}

	first := CardBalance(initial, manual, cash)
	for i := 0; i < 10; i++ {
		if got := CardBalance(initial, manual, cash); !got.Equal(first) {
			t.Fatalf("recompute %d drifted: %s != %s", i, got, first)
		}
	}
	if !first.Equal(d(370)) {
		t.Fatalf("250 + 60 + 60: want 370, got %s", first)
	}
}

func TestCardBalanceEmptyInputs(t *testing.T) {
	if got := CardBalance(d(123), nil, nil); !got.Equal(d(123)) {
		t.Fatalf("no transactions: balance must stay at initial, got %s", got)
	}
}
