package workflow

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExportDayAggregateExcel renders the read-only day aggregate as an .xlsx
// workbook: one sheet of order activity, one of the merged staff/cash table.
func ExportDayAggregateExcel(agg *DayAggregate) (*excelize.File, error) {
	f := excelize.NewFile()

	orders := "Orders"
	if err := f.SetSheetName("Sheet1", orders); err != nil {
		return nil, err
	}
	f.SetCellValue(orders, "A1", "Order")
	f.SetCellValue(orders, "B1", "Activity")
	f.SetCellValue(orders, "C1", "Team")
	f.SetCellValue(orders, "D1", "Notes")
	for i, r := range agg.OrderRows {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(orders, "A"+row, r.OrderRefId)
		f.SetCellValue(orders, "B"+row, r.Activity)
		f.SetCellValue(orders, "C"+row, r.Team)
		f.SetCellValue(orders, "D"+row, r.Notes)
	}

	staff := "Staff"
	if _, err := f.NewSheet(staff); err != nil {
		return nil, err
	}
	f.SetCellValue(staff, "A1", "Worker")
	f.SetCellValue(staff, "B1", "Status")
	f.SetCellValue(staff, "C1", "Hours")
	f.SetCellValue(staff, "D1", "Received")
	f.SetCellValue(staff, "E1", "Spent")
	f.SetCellValue(staff, "F1", "Notes")
	f.SetCellValue(staff, "G1", "Contributors")
	for i, r := range agg.StaffRows {
		row := fmt.Sprint(i + 2)
		name := r.WorkerName
		switch {
		case r.IsCashBox:
			name = fmt.Sprintf("Cash box (card %d)", r.CardId)
		case r.IsCompanyExpense:
			name = "Company expense"
		case name == "" && r.WorkerId > 0:
			name = fmt.Sprintf("Worker %d", r.WorkerId)
		}
		f.SetCellValue(staff, "A"+row, name)
		f.SetCellValue(staff, "B"+row, string(r.WorkStatus))
		f.SetCellValue(staff, "C"+row, r.Hours.InexactFloat64())
		f.SetCellValue(staff, "D"+row, r.Received.InexactFloat64())
		f.SetCellValue(staff, "E"+row, r.Spent.InexactFloat64())
		f.SetCellValue(staff, "F"+row, r.Notes)
		f.SetCellValue(staff, "G"+row, strings.Join(r.Contributors, ", "))
	}

	f.SetCellValue(staff, "I1", "Day")
	f.SetCellValue(staff, "I2", agg.DateKey)
	return f, nil
}
