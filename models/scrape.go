package models

// StopReason tells why traversal of the search results ended.
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopCapped    StopReason = "capped"
	StopFailed    StopReason = "failed"
)

// TraversalResult is what walking the result pages of one query produced.
type TraversalResult struct {
	URLs  []string
	Pages int
	Stop  StopReason
}

// FailureStage says which step of a detail page went wrong.
type FailureStage string

const (
	StageFetch FailureStage = "fetch"
	StageParse FailureStage = "parse"
)

// PageFailure records one skipped detail page.
type PageFailure struct {
	URL   string
	Stage FailureStage
	Err   error
}

// ScrapeResult is the outcome of one per-query run. Records is empty with
// Skipped == 0 when nothing was found, and empty with Skipped > 0 when every
// detail page failed.
type ScrapeResult struct {
	RunID        string
	Query        string
	SearchURL    string
	Records      []*ListingRecord
	Skipped      int
	MissingIDs   int
	Failures     []PageFailure
	Traversal    TraversalResult
	TraversalErr error
}

// DropRate is the share of detail URLs dropped for lacking a parseable
// identifier.
func (r *ScrapeResult) DropRate() float64 {
	if len(r.Traversal.URLs) == 0 {
		return 0
	}
	return float64(r.MissingIDs) / float64(len(r.Traversal.URLs))
}
