package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRecordID returns a fresh transaction record ID.
func NewRecordID() string {
	return uuid.NewString()
}

// NewObligationID returns a fresh obligation ID.
func NewObligationID() string {
	return uuid.NewString()
}

// NewBatchID returns an import batch ID like "imp-20250115-1a2b3c4d".
func NewBatchID(at time.Time) string {
	return prefixed("imp", at)
}

// NewRunID returns a classification run ID like "run-20250115-1a2b3c4d".
func NewRunID(at time.Time) string {
	return prefixed("run", at)
}

func prefixed(prefix string, at time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), strings.ReplaceAll(u.String(), "-", "")[:8])
}

// FormatMonth returns a month key like "2025-01".
func FormatMonth(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// MonthOf returns the month key for t.
func MonthOf(t time.Time) string {
	return FormatMonth(t.Year(), t.Month())
}

// ParseMonth parses "2025-01" into year and month.
func ParseMonth(key string) (year int, month time.Month, err error) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid month key format: %q", key)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year in month key %q: %w", key, err)
	}

	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month in month key %q: %w", key, err)
	}
	if m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("month %d out of range in %q", m, key)
	}

	return year, time.Month(m), nil
}

// FormatEntryID returns a journal entry ID like "2025-01-001".
func FormatEntryID(year int, month time.Month, seq int) string {
	return fmt.Sprintf("%s-%03d", FormatMonth(year, month), seq)
}

// FormatLegID returns a leg ID like "2025-01-001a" (leg 0='a', 1='b', etc.).
func FormatLegID(entryID string, leg int) string {
	return entryID + string(rune('a'+leg))
}

// EntryGroup strips the leg suffix from a leg ID.
func EntryGroup(legID string) string {
	return strings.TrimRight(legID, "abcdefghijklmnopqrstuvwxyz")
}

// ParseEntryID parses "2025-01-001" (or a leg ID) into year, month, seq.
func ParseEntryID(entryID string) (year int, month time.Month, seq int, err error) {
	base := EntryGroup(entryID)
	i := strings.LastIndex(base, "-")
	if i < 0 {
		return 0, 0, 0, fmt.Errorf("invalid entry ID format: %q", entryID)
	}
	year, month, err = ParseMonth(base[:i])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid entry ID %q: %w", entryID, err)
	}
	seq, err = strconv.Atoi(base[i+1:])
	if err != nil || seq < 1 {
		return 0, 0, 0, fmt.Errorf("invalid sequence in entry ID %q", entryID)
	}
	return year, month, seq, nil
}
