package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	studentsSheet = "Students"
)

// ExportXLSX renders a module report as an Excel workbook with a
// summary sheet and a per-student sheet. The caller owns closing the
// returned file.
func ExportXLSX(rep *ModuleReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(studentsSheet); err != nil {
		return nil, err
	}

	summary := [][]interface{}{
		{"Module code", rep.Module.Code},
		{"Module name", rep.Module.Name},
		{"Distinct students signed", rep.Statistics.TotalStudents},
		{"Sessions with attendance", rep.Statistics.TotalSessions},
		{"Total attendance records", rep.Statistics.TotalAttendances},
		{},
		{"Date", "Students present"},
	}
	for _, d := range rep.AttendanceByDate {
		summary = append(summary, []interface{}{d.Date, d.StudentCount})
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	header := []interface{}{"Reg number", "Name", "Email", "Attended", "Total sessions", "Rate"}
	if err := f.SetSheetRow(studentsSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, s := range rep.Students {
		rate := ""
		if s.TotalSessions > 0 {
			rate = fmt.Sprintf("%.0f%%", 100*float64(s.AttendanceCount)/float64(s.TotalSessions))
		}
		regNumber := ""
		if s.RegNumber != nil {
			regNumber = *s.RegNumber
		}
		row := []interface{}{regNumber, s.FullName, s.Email, s.AttendanceCount, s.TotalSessions, rate}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(studentsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	return f, nil
}
