package model

import "github.com/shopspring/decimal"

// ClassificationResult is the outcome of classifying one record. It is never
// persisted on its own; callers apply it to the record it was computed for.
type ClassificationResult struct {
	RecordID    string
	Class       *Classification // nil when no rule could classify the record
	NeedsReview bool
	ReviewNote  string
	Confidence  decimal.Decimal
	Method      string
	Notes       []string
}

// Classified reports whether the result assigns a category.
func (r ClassificationResult) Classified() bool {
	return r.Class != nil
}

// Apply returns a copy of rec with the result applied as a single update.
// Source attributes, including the amount, are never touched.
func (r ClassificationResult) Apply(rec TransactionRecord) TransactionRecord {
	out := rec
	if r.Class != nil {
		c := *r.Class
		out.Class = &c
	}
	out.NeedsReview = r.NeedsReview
	out.ReviewNote = r.ReviewNote
	return out
}
