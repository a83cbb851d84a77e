// Package runlog keeps an append-only CSV history of classification runs.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/classify"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp   time.Time
	RunID       string
	Force       bool
	Processed   int
	Successful  int
	Failed      int
	NeedsReview int
	SuccessRate decimal.Decimal
	Elapsed     time.Duration
	CommitHash  string
}

// Header is the CSV header for run-log.csv.
const Header = "timestamp,run_id,force,processed,successful,failed,needs_review,success_rate,elapsed_ms,commit_hash"

const (
	numFields      = 10
	logDir         = "logs"
	logFile        = "logs/run-log.csv"
	colTimestamp   = 0
	colRunID       = 1
	colForce       = 2
	colProcessed   = 3
	colSuccessful  = 4
	colFailed      = 5
	colNeedsReview = 6
	colSuccessRate = 7
	colElapsed     = 8
	colCommitHash  = 9
)

// FromStats builds an Entry from a finished run.
func FromStats(s classify.RunStats) Entry {
	return Entry{
		Timestamp:   s.StartedAt,
		RunID:       s.RunID,
		Force:       s.Force,
		Processed:   s.TotalProcessed,
		Successful:  s.Successful,
		Failed:      s.Failed,
		NeedsReview: s.NeedsReview,
		SuccessRate: s.SuccessRate,
		Elapsed:     s.Elapsed,
	}
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colForce] = strconv.FormatBool(e.Force)
	row[colProcessed] = strconv.Itoa(e.Processed)
	row[colSuccessful] = strconv.Itoa(e.Successful)
	row[colFailed] = strconv.Itoa(e.Failed)
	row[colNeedsReview] = strconv.Itoa(e.NeedsReview)
	row[colSuccessRate] = e.SuccessRate.StringFixed(1)
	row[colElapsed] = strconv.FormatInt(e.Elapsed.Milliseconds(), 10)
	row[colCommitHash] = e.CommitHash
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	force, err := strconv.ParseBool(record[colForce])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing force %q: %w", record[colForce], err)
	}

	var counts [4]int
	for i, col := range []int{colProcessed, colSuccessful, colFailed, colNeedsReview} {
		if counts[i], err = strconv.Atoi(record[col]); err != nil {
			return Entry{}, fmt.Errorf("parsing column %d %q: %w", col, record[col], err)
		}
	}

	rate, err := decimal.NewFromString(record[colSuccessRate])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing success_rate %q: %w", record[colSuccessRate], err)
	}
	ms, err := strconv.ParseInt(record[colElapsed], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing elapsed_ms %q: %w", record[colElapsed], err)
	}

	return Entry{
		Timestamp:   ts,
		RunID:       record[colRunID],
		Force:       force,
		Processed:   counts[0],
		Successful:  counts[1],
		Failed:      counts[2],
		NeedsReview: counts[3],
		SuccessRate: rate,
		Elapsed:     time.Duration(ms) * time.Millisecond,
		CommitHash:  record[colCommitHash],
	}, nil
}

// Append writes entries to <root>/logs/run-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries from <root>/logs/run-log.csv, or nothing if the
// file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(root, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
