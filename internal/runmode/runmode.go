// Package runmode parses the run-mode token (spec §6: a string over
// {c, f, r, v} selecting crawl/filter/replay/verify stages, plus flags for
// full_mode, deduplication_mode, matching_mode, matching_debug,
// db_log_level, duplicate_check and iteration_depth) and hosts the
// console/exit-code reporting the distilled spec keeps out of scope but
// original_source/a2ct.py carries at the top level.
package runmode

import (
	"fmt"
	"io"
	"strings"

	"github.com/BetterCallFirewall/a2ct-go/internal/canon"
	"github.com/BetterCallFirewall/a2ct-go/internal/models"
	"github.com/BetterCallFirewall/a2ct-go/internal/replay"
	"github.com/BetterCallFirewall/a2ct-go/internal/store"
)

// Stages bit-set decoded from the run-mode token.
type Stages struct {
	Crawl  bool
	Filter bool
	Replay bool
	Verify bool
}

// ParseStages decodes a run-mode token such as "cfrv" or "fr" into Stages.
// Unknown runes are ignored rather than rejected, since the original
// treats the token as a permissive character set.
func ParseStages(token string) Stages {
	var s Stages
	for _, r := range token {
		switch r {
		case 'c':
			s.Crawl = true
		case 'f':
			s.Filter = true
		case 'r':
			s.Replay = true
		case 'v':
			s.Verify = true
		}
	}
	return s
}

// Flags holds the run-mode's non-stage options.
type Flags struct {
	FullMode          bool
	DeduplicationMode canon.Mode
	MatchingMode      replay.MatchingMode
	MatchingDebug     bool
	DBLogLevel        store.RetentionPolicy
	DuplicateCheck    bool // spec-supplement: when false, skip the exact-byte dedup prelude
	IterationDepth    int  // spec-supplement: hint passed to the (out-of-scope) crawler
}

// PrintFindings writes the final findings table to w, one line per
// (first_user, second_user, method, url), matching the console report
// a2ct.py prints on completion.
func PrintFindings(w io.Writer, findings []models.Finding) {
	for _, f := range findings {
		fmt.Fprintf(w, "%s -> %s\t%s\t%s\n", f.FirstUser, f.SecondUser, f.Method, f.URL)
	}
}

// ExitCode maps a run's terminal error to the process exit code: zero on
// completion regardless of finding count, non-zero on any error reaching
// this far (config and store errors are the only kinds that propagate this
// high — parse, network and decode errors are recovered inside their stage).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// String renders Stages back to its token form, in canonical c/f/r/v order.
func (s Stages) String() string {
	var b strings.Builder
	if s.Crawl {
		b.WriteByte('c')
	}
	if s.Filter {
		b.WriteByte('f')
	}
	if s.Replay {
		b.WriteByte('r')
	}
	if s.Verify {
		b.WriteByte('v')
	}
	return b.String()
}
