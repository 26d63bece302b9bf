package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const (
	sheetOverview    = "Overview"
	sheetRisks       = "Risks"
	sheetObligations = "Obligations"
	sheetOmissions   = "Omissions"
	sheetQuestions   = "Questions"
)

// WriteXLSX renders the report as a workbook with one sheet per section.
func WriteXLSX(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", sheetOverview); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sheets := []struct {
		name    string
		columns []string
		rows    [][]any
	}{
		{sheetOverview, []string{"Field", "Value"}, overviewRows(report)},
		{sheetRisks, []string{"Title", "Severity", "Description", "Clause", "Mitigation"}, riskRows(report.Risks)},
		{sheetObligations, []string{"Party", "Description", "Deadline", "Recurrence"}, obligationRows(report.Obligations)},
		{sheetOmissions, []string{"Topic", "Importance", "Description"}, omissionRows(report.Omissions)},
		{sheetQuestions, []string{"Question", "Context"}, questionRows(report.Questions)},
	}
	for _, sheet := range sheets {
		if sheet.name != sheetOverview {
			if _, err := f.NewSheet(sheet.name); err != nil {
				return fmt.Errorf("create sheet %s: %w", sheet.name, err)
			}
		}
		if err := writeTable(f, sheet.name, header, sheet.columns, sheet.rows); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, headerStyle int, columns []string, rows [][]any) error {
	head := make([]any, len(columns))
	for i, c := range columns {
		head[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return fmt.Errorf("column name: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 32); err != nil {
		return fmt.Errorf("set %s column width: %w", sheet, err)
	}
	return nil
}

func overviewRows(r Report) [][]any {
	rows := [][]any{
		{"Contract ID", r.ContractID},
		{"Language", r.Language},
		{"Translated at", r.TranslatedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if m := r.Metadata; m != nil {
		parties := make([]string, 0, len(m.Parties))
		for _, p := range m.Parties {
			parties = append(parties, fmt.Sprintf("%s (%s)", p.Name, p.Role))
		}
		rows = append(rows,
			[]any{"Title", m.Title},
			[]any{"Contract type", m.ContractType},
			[]any{"Parties", strings.Join(parties, "; ")},
			[]any{"Effective date", m.EffectiveDate},
			[]any{"Expiration date", m.ExpirationDate},
			[]any{"Renewal terms", m.RenewalTerms},
			[]any{"Governing law", m.GoverningLaw},
			[]any{"Total value", strings.TrimSpace(m.TotalValue + " " + m.Currency)},
		)
	}
	if s := r.Summary; s != nil {
		if s.QuickTake != nil {
			rows = append(rows, []any{"Quick take", *s.QuickTake})
		}
		rows = append(rows, []any{"Overview", s.Overview})
		for _, point := range s.KeyPoints {
			rows = append(rows, []any{"Key point", point})
		}
		if s.UserPerspective != "" {
			rows = append(rows, []any{"Your perspective", s.UserPerspective})
		}
	}
	for _, section := range r.Missing {
		rows = append(rows, []any{"Unavailable section", string(section)})
	}
	return rows
}

func riskRows(items []domain.Risk) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{it.Title, string(it.Severity), it.Description, it.Clause, it.Mitigation})
	}
	return rows
}

func obligationRows(items []domain.Obligation) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{it.Party, it.Description, it.Deadline, it.Recurrence})
	}
	return rows
}

func omissionRows(items []domain.Omission) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{it.Topic, string(it.Importance), it.Description})
	}
	return rows
}

func questionRows(items []domain.Question) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{it.Question, it.Context})
	}
	return rows
}
