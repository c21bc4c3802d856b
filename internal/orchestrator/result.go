package orchestrator

import (
	"fmt"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/daterange"
)

// Kind classifies what happened to one (entry, sub-range) pair.
type Kind string

const (
	KindSubmitted     Kind = "submitted"
	KindWouldSubmit   Kind = "would_submit"
	KindNoValidScenes Kind = "no_valid_scenes"
	KindFailed        Kind = "failed"
)

// Outcome records the result of one (entry, sub-range) pair.
type Outcome struct {
	// Entry is the 1-based position of the entry in the run.
	Entry   int
	AOIName string
	GageID  string
	Range   daterange.Range
	Kind    Kind

	OrderID       string
	SceneIDs      []string
	ProductBundle string
	// Found and Eligible count the searched and quality-passing scenes.
	Found    int
	Eligible int

	// Reason carries the provider failure for KindFailed.
	Reason string
	// PaginationLimitHit marks a selection made from a full, possibly
	// incomplete, page of search results.
	PaginationLimitHit bool
}

// Label identifies the outcome for humans, preferring the gage id.
func (o Outcome) Label() string {
	if o.GageID != "" {
		return fmt.Sprintf("%s (%s) %s", o.GageID, o.AOIName, o.Range)
	}
	return fmt.Sprintf("%s %s", o.AOIName, o.Range)
}

// Result aggregates the outcomes of a run in processing order.
type Result struct {
	BatchID  string
	Outcomes []Outcome
}

func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// ByKind returns the outcomes of kind k.
func (r *Result) ByKind(k Kind) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Kind == k {
			out = append(out, o)
		}
	}
	return out
}

func (r *Result) Submitted() []Outcome     { return r.ByKind(KindSubmitted) }
func (r *Result) WouldSubmit() []Outcome   { return r.ByKind(KindWouldSubmit) }
func (r *Result) NoValidScenes() []Outcome { return r.ByKind(KindNoValidScenes) }
func (r *Result) Failed() []Outcome        { return r.ByKind(KindFailed) }

// PaginationWarnings returns outcomes whose search hit the page-size ceiling.
func (r *Result) PaginationWarnings() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.PaginationLimitHit {
			out = append(out, o)
		}
	}
	return out
}

// Counts tallies outcomes per kind.
func (r *Result) Counts() map[Kind]int {
	counts := map[Kind]int{
		KindSubmitted:     0,
		KindWouldSubmit:   0,
		KindNoValidScenes: 0,
		KindFailed:        0,
	}
	for _, o := range r.Outcomes {
		counts[o.Kind]++
	}
	return counts
}

// HasFailures reports whether any pair failed.
func (r *Result) HasFailures() bool {
	return len(r.Failed()) > 0
}
