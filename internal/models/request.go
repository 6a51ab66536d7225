// Package models holds the data model shared by every stage of the access
// control pipeline: the captured request/response atom, its per-pair
// variant, candidate and verified vulnerabilities, and the execution-time
// ledger.
package models

import "time"

// PublicUser is the reserved identity denoting an unauthenticated crawl.
const PublicUser = "public"

// RequestRecord is the atom captured by the crawler+proxy boundary and
// carried through every filter stage. Fields mirror the spec's data model
// exactly; response bytes are stored as captured, never transcoded.
type RequestRecord struct {
	ID              string
	FirstUser       string
	Crawler         string
	Method          string
	URL             string
	Headers         *Headers
	Body            []byte
	Status          int
	ResponseHeaders *Headers
	ResponseBody    []byte
}

// Clone returns a deep-enough copy so filter stages can mutate their own
// working set without aliasing the previous stage's rows.
func (r RequestRecord) Clone() RequestRecord {
	c := r
	c.Headers = r.Headers.Clone()
	c.ResponseHeaders = r.ResponseHeaders.Clone()
	c.Body = append([]byte(nil), r.Body...)
	c.ResponseBody = append([]byte(nil), r.ResponseBody...)
	return c
}

// PairRecord is a RequestRecord scoped to an ordered (first_user, second_user)
// pair, as produced by the other-user content filter (C4 stage 5) and
// consumed by the replay engine (C5).
type PairRecord struct {
	RequestRecord
	SecondUser string
}

// VulnerabilityCandidate is a replay that passed the full validator chain.
type VulnerabilityCandidate struct {
	FirstUser      string
	SecondUser     string
	URL            string
	Method         string
	RequestHeaders *Headers
	RequestBody    []byte
}

// Finding is a VulnerabilityCandidate that survived the findings verifier
// (C6) — i.e. it was not suppressed as a view also reachable by the second
// user in their own crawl.
type Finding = VulnerabilityCandidate

// ReplayResult is the full exchange recorded by the replay engine for a
// single (first_user, second_user) request, kept so the findings verifier
// can re-examine the replayed response without re-issuing the request.
type ReplayResult struct {
	FirstUser       string
	SecondUser      string
	URL             string
	Method          string
	RequestHeaders  *Headers
	RequestBody     []byte
	StatusCode      int
	ResponseHeaders *Headers
	ResponseBody    []byte

	// DebugM3Score and DebugM4Score are non-nil only when matching_debug is
	// enabled: both content-similarity profiles scored against the original,
	// recorded side by side even though only one (per MatchingMode) decides
	// the validator's pass/fail outcome.
	DebugM3Score *int
	DebugM4Score *int
}

// ExecutionPhase records wall-clock duration for one run-mode phase
// (crawl/filter/replay/verify), matching the spec's execution_time table.
type ExecutionPhase struct {
	Phase    string
	Started  time.Time
	Duration time.Duration
}

// PairKey identifies an ordered user pair (U1, U2).
type PairKey struct {
	First  string
	Second string
}
