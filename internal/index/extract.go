package index

import (
	"regexp"
	"strings"
)

// StructuredRow is an employee-like record found in free text.
type StructuredRow struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department string `json:"department"`
	RawText    string `json:"raw_text"`
}

// Fields end at a comma or newline. Department is listed before Dept so the
// long form is consumed whole.
var employeeLine = regexp.MustCompile(
	`(?i)Name\s*[:\-]?\s*([^\n,]+).*?Role\s*[:\-]?\s*([^\n,]+).*?(?:Department|Dept)\s*[:\-]?\s*([^\n,]+)`)

// ExtractStructuredRows scans text line by line for
// "Name: X, Role: Y, Dept: Z" style records. Lines that do not match are
// skipped. This is a heuristic and will miss or misread unusual layouts.
func ExtractStructuredRows(text string) []StructuredRow {
	var rows []StructuredRow
	for _, line := range strings.Split(text, "\n") {
		m := employeeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		row := StructuredRow{
			Name:       strings.TrimSpace(m[1]),
			Role:       strings.TrimSpace(m[2]),
			Department: strings.TrimSpace(m[3]),
			RawText:    strings.TrimSpace(line),
		}
		if row.Name == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
