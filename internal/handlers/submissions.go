package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/services"
)

var submissionHeader = []string{
	"Date", "Template", "Workplace", "Time Slot", "Status",
	"Completed", "Total", "Percent", "Completed At", "Submitted At",
}

func submissionFilter(r *http.Request) services.SubmissionFilter {
	q := r.URL.Query()
	return services.SubmissionFilter{From: q.Get("from"), To: q.Get("to"), Status: q.Get("status")}
}

func fmtStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(services.Location()).Format("2006-01-02 15:04")
}

func submissionRecord(row services.InstanceRow) []string {
	return []string{
		row.Date,
		row.TemplateName,
		row.Workplace,
		row.TimeSlot,
		row.Status,
		strconv.Itoa(row.CompletedCount),
		strconv.Itoa(row.ItemCount),
		strconv.Itoa(row.Percentage),
		fmtStamp(row.CompletedAt),
		fmtStamp(row.SubmittedAt),
	}
}

// GET /admin/submissions
func Submissions(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := services.ListSubmissions(r.Context(), gdb, principal(r), submissionFilter(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"submissions": list})
	}
}

// GET /admin/submissions.csv
func SubmissionsCSV(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := services.ListSubmissions(r.Context(), gdb, principal(r), submissionFilter(r))
		if err != nil {
			writeError(w, err)
			return
		}

		filename := fmt.Sprintf("submissions-%s.csv", services.Today())
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)

		cw := csv.NewWriter(w)
		defer cw.Flush()
		_ = cw.Write(submissionHeader)
		for _, row := range list {
			_ = cw.Write(submissionRecord(row))
		}
	}
}

// GET /admin/submissions.xlsx
func SubmissionsXLSX(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := services.ListSubmissions(r.Context(), gdb, principal(r), submissionFilter(r))
		if err != nil {
			writeError(w, err)
			return
		}

		f := excelize.NewFile()
		defer f.Close()
		const sheet = "Submissions"
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			xlsxFailed(w, err)
			return
		}
		if err := writeSheetRow(f, sheet, 1, submissionHeader); err != nil {
			xlsxFailed(w, err)
			return
		}
		for i, row := range list {
			if err := writeSheetRow(f, sheet, i+2, submissionRecord(row)); err != nil {
				xlsxFailed(w, err)
				return
			}
		}

		filename := fmt.Sprintf("submissions-%s.xlsx", services.Today())
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(w); err != nil {
			config.LogError("handlers", "SubmissionsXLSX", "write workbook", nil, err)
		}
	}
}

func writeSheetRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheet, cell, &row)
}

func xlsxFailed(w http.ResponseWriter, err error) {
	config.LogError("handlers", "SubmissionsXLSX", "build workbook", nil, err)
	writeCode(w, http.StatusInternalServerError, services.CodePersistence)
}
