package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDetails = 0
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
	chaseColCheck   = 6
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV. The Details column (DEBIT/CREDIT) becomes the
// line kind and the Type column its source category.
func (p *ChaseParser) Parse(r io.Reader) ([]Line, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil, nil
	}

	var (
		lines []Line
		errs  []RowError
	)
	for i, rec := range records[1:] {
		l, err := parseChaseRow(rec)
		if err != nil {
			errs = append(errs, RowError{Row: i + 2, Err: err})
			continue
		}
		lines = append(lines, l)
	}
	return lines, errs, nil
}

func parseChaseRow(rec []string) (Line, error) {
	date, err := time.Parse(chaseDateFormat, rec[chaseColDate])
	if err != nil {
		return Line{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := decimal.NewFromString(rec[chaseColAmount])
	if err != nil {
		return Line{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	desc := rec[chaseColDesc]
	ref := strings.TrimSpace(rec[chaseColCheck])
	if ref == "" {
		ref = makeChaseRef(date, desc)
	}

	return Line{
		Date:           date,
		Description:    desc,
		Amount:         amount,
		Kind:           strings.ToUpper(rec[chaseColDetails]),
		SourceCategory: rec[chaseColType],
		Reference:      ref,
	}, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
