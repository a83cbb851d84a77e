package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GenericParser reads the plain statement layout
// Date,Description,Amount,Type,Category,Accounting_Class,Reference.
// Columns are located by header name, so order does not matter and only
// Date, Description and Amount are required.
type GenericParser struct{}

var dateLayouts = []string{"2006-01-02", "01/02/2006"}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads a generic statement CSV.
func (p *GenericParser) Parse(r io.Reader) ([]Line, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading statement CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	cols, err := columns(rows[0], "date", "description", "amount")
	if err != nil {
		return nil, nil, err
	}

	var (
		lines []Line
		errs  []RowError
	)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		date, err := parseDate(cols.get(row, "date"))
		if err != nil {
			errs = append(errs, RowError{Row: i + 2, Err: err})
			continue
		}
		amount, err := parseAmount(cols.get(row, "amount"))
		if err != nil {
			errs = append(errs, RowError{Row: i + 2, Err: err})
			continue
		}
		desc := cols.get(row, "description")
		if desc == "" {
			errs = append(errs, RowError{Row: i + 2, Err: errors.New("missing description")})
			continue
		}
		lines = append(lines, Line{
			Date:            date,
			Description:     desc,
			Amount:          amount,
			Kind:            strings.ToUpper(cols.get(row, "type")),
			SourceCategory:  cols.get(row, "category"),
			AccountingClass: cols.get(row, "accounting_class"),
			Reference:       cols.get(row, "reference"),
		})
	}
	return lines, errs, nil
}

// header maps normalised column names to their index.
type header map[string]int

func columns(row []string, required ...string) (header, error) {
	h := header{}
	for i, name := range row {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		h[key] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return h, nil
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q: want YYYY-MM-DD", s)
}

// parseAmount accepts plain decimals plus thousands separators, a leading
// currency sign and accounting parentheses for negatives.
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer(",", "", "$", "", " ", "").Replace(s)
	neg := strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")")
	if neg {
		clean = "-" + strings.Trim(clean, "()")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}
