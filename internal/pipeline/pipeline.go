// Package pipeline implements the ordered filter pipeline (C4), grounded on
// modules/filters.py's DeduplicationFilter, PublicContentFilter,
// StaticContentFilter, StandardPagesFilter and OtherUserContentFilter
// classes in the A2CT reference implementation. Each stage reads the prior
// stage's table from the store and writes a new one; stages are stable
// w.r.t. input order and idempotent.
package pipeline

import (
	"regexp"
	"strings"

	"github.com/BetterCallFirewall/a2ct-go/internal/canon"
	"github.com/BetterCallFirewall/a2ct-go/internal/models"
	"github.com/BetterCallFirewall/a2ct-go/internal/store"
)

// Stage table names, matching the original's naming of each intermediate
// table.
const (
	StageCrawl     = "crawling_results"
	StageDedup     = "crawling_results_after_deduplication_filter"
	StagePublic    = "crawling_results_after_public_content_filter"
	StageStatic    = "crawling_results_after_static_content_filter"
	StageStandard  = "crawling_results_after_standard_pages_filter"
	StageOtherUser = "crawling_results_after_other_user_content_filter"
)

// DefaultStaticExtensions is the default static-content extension set.
var DefaultStaticExtensions = []string{"css", "js"}

// DefaultStandardPages is the default standard-pages name set.
var DefaultStandardPages = []string{"index", "contact", "about", "login", "logout", "help"}

// Config carries the per-run deduplication configuration shared by every
// stage.
type Config struct {
	Mode                    canon.Mode
	IgnoreTokens            *regexp.Regexp
	StaticContentExtensions []string
	StandardPages           []string
	// DuplicateCheck gates the exact-byte prelude in DeduplicationFilter.
	// False skips it entirely (a crawl already known byte-unique), matching
	// a2ct.py's duplicate_check argument.
	DuplicateCheck bool
}

// DeduplicationFilter is stage 1: for each user, remove requests equivalent
// under cfg.Mode; the exact-byte prelude runs first unless cfg.DuplicateCheck
// is false. When cfg.Mode is M3 this stage always compares names only (the
// DeduplicationFilter "exact-duplicate subpass" behavior from the spec),
// regardless of what M3 means to the later stages.
func DeduplicationFilter(s *store.Store, cfg Config) {
	rows := s.Stage(StageCrawl)

	keptByUser := make(map[string][]models.RequestRecord)
	fpByUser := make(map[string][]canon.Fingerprint)
	result := make([]models.RequestRecord, 0, len(rows))

	const namesOnly = true // M3's DeduplicationFilter subpass always compares names only

	for _, r := range rows {
		fp := canon.Canonicalize(r.Method, r.URL, r.Headers, r.Body, cfg.IgnoreTokens)
		kept := keptByUser[r.FirstUser]
		fps := fpByUser[r.FirstUser]

		dup := false
		for i, k := range kept {
			if (cfg.DuplicateCheck && canon.ExactByteEqual(r, k)) || canon.Equivalent(fp, fps[i], cfg.Mode, namesOnly) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		keptByUser[r.FirstUser] = append(kept, r)
		fpByUser[r.FirstUser] = append(fps, fp)
		result = append(result, r)
	}

	s.PutStage(StageDedup, result)
}

// PublicContentFilter is stage 2: delete from every non-public user any
// request equivalent (per cfg.Mode) to a request captured under "public",
// and delete the public rows themselves. When cfg.Mode is M3 this stage
// compares names and values (M4 behavior), per the spec.
func PublicContentFilter(s *store.Store, cfg Config) {
	rows := s.Stage(StageDedup)

	var public, rest []models.RequestRecord
	for _, r := range rows {
		if r.FirstUser == models.PublicUser {
			public = append(public, r)
		} else {
			rest = append(rest, r)
		}
	}

	kept := removeEquivalentToReference(rest, public, cfg.Mode, cfg.IgnoreTokens, false)
	s.PutStage(StagePublic, kept)
}

// StaticContentFilter is stage 3: drop any request whose URL path ends in
// one of the configured extensions (default css, js), tolerating a trailing
// query string.
func StaticContentFilter(s *store.Store, extensions []string) {
	if len(extensions) == 0 {
		extensions = DefaultStaticExtensions
	}
	rows := s.Stage(StagePublic)

	kept := make([]models.RequestRecord, 0, len(rows))
	for _, r := range rows {
		if !hasStaticExtension(r.URL, extensions) {
			kept = append(kept, r)
		}
	}
	s.PutStage(StageStatic, kept)
}

func hasStaticExtension(rawURL string, extensions []string) bool {
	path, _ := canon.SplitURL(rawURL)
	for _, ext := range extensions {
		if strings.HasSuffix(path, "."+ext) {
			return true
		}
	}
	return false
}

// StandardPagesFilter is stage 4: drop any request whose URL path ends in
// "/name" for one of the configured page names (default index, contact,
// about, login, logout, help), tolerating a trailing query string.
func StandardPagesFilter(s *store.Store, pages []string) {
	if len(pages) == 0 {
		pages = DefaultStandardPages
	}
	rows := s.Stage(StageStatic)

	kept := make([]models.RequestRecord, 0, len(rows))
	for _, r := range rows {
		if !isStandardPage(r.URL, pages) {
			kept = append(kept, r)
		}
	}
	s.PutStage(StageStandard, kept)
}

func isStandardPage(rawURL string, pages []string) bool {
	path, _ := canon.SplitURL(rawURL)
	for _, page := range pages {
		if strings.HasSuffix(path, "/"+page) {
			return true
		}
	}
	return false
}

// removeEquivalentToReference keeps every row of target that is not
// equivalent (exact-byte or canon.Equivalent) to any row of reference.
func removeEquivalentToReference(target, reference []models.RequestRecord, mode canon.Mode, ignoreTokens *regexp.Regexp, namesOnly bool) []models.RequestRecord {
	refFPs := make([]canon.Fingerprint, len(reference))
	for i, r := range reference {
		refFPs[i] = canon.Canonicalize(r.Method, r.URL, r.Headers, r.Body, ignoreTokens)
	}

	kept := make([]models.RequestRecord, 0, len(target))
	for _, t := range target {
		tFP := canon.Canonicalize(t.Method, t.URL, t.Headers, t.Body, ignoreTokens)
		dup := false
		for i, r := range reference {
			if canon.ExactByteEqual(t, r) || canon.Equivalent(tFP, refFPs[i], mode, namesOnly) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, t)
		}
	}
	return kept
}
