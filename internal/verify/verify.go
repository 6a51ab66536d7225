// Package verify implements the findings verifier (C6): for each GET
// candidate vulnerability it suppresses the finding when the replayed
// response is merely a view the second user could already reach in their
// own crawl. Grounded on modules/findings_verifier.py's
// FindingsVerifier.check_findings in the A2CT reference implementation.
package verify

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/BetterCallFirewall/a2ct-go/internal/models"
	"github.com/BetterCallFirewall/a2ct-go/internal/replay"
	"github.com/BetterCallFirewall/a2ct-go/internal/similarity"
	"github.com/BetterCallFirewall/a2ct-go/internal/store"
	"github.com/BetterCallFirewall/a2ct-go/internal/strip"
)

// Config carries the stripping/matching configuration shared with the
// replay engine's ContentSimilarityValidator.
type Config struct {
	MatchingMode  replay.MatchingMode
	Threshold     int
	StrippingTags []string
}

// Verifier re-scores each GET candidate against the second user's own raw
// crawl, caching stripped token lists by content hash ("contents hash" in
// the original) so a response body already seen is stripped only once.
type Verifier struct {
	store *store.Store
	cfg   Config
	cache map[string][]string
}

// New builds a Verifier over s using cfg.
func New(s *store.Store, cfg Config) *Verifier {
	return &Verifier{store: s, cfg: cfg, cache: make(map[string][]string)}
}

// Check verifies every candidate recorded for pair against ownCrawl — the
// second user's own raw crawl, fetched by the caller from the unfiltered
// crawl stage. Non-GET candidates pass through unchanged; they cannot be
// safely re-queried without side effects. Surviving candidates are the
// final findings for pair.
func (v *Verifier) Check(pair models.PairKey, ownCrawl []models.RequestRecord) []models.Finding {
	var findings []models.Finding

	ownTokensByUser := make([][]string, 0, len(ownCrawl))
	for _, row := range ownCrawl {
		if row.FirstUser != pair.Second {
			continue
		}
		ownTokensByUser = append(ownTokensByUser, v.strip(row.ResponseBody))
	}

	for _, candidate := range v.store.Candidates() {
		if candidate.FirstUser != pair.First || candidate.SecondUser != pair.Second {
			continue
		}
		if candidate.Method != http.MethodGet {
			findings = append(findings, candidate)
			continue
		}

		replayResult, ok := v.store.ReplayResultFor(pair, candidate.Method, candidate.URL)
		if !ok {
			findings = append(findings, candidate)
			continue
		}
		replayTokens := v.strip(replayResult.ResponseBody)

		suppressed := false
		for _, ownTokens := range ownTokensByUser {
			if similarity.Similar(replayTokens, ownTokens, v.cfg.Threshold, true) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			findings = append(findings, candidate)
		}
	}
	return findings
}

func (v *Verifier) strip(body []byte) []string {
	key := contentsHash(v.cfg.MatchingMode, body)
	if tokens, ok := v.cache[key]; ok {
		return tokens
	}
	var tokens []string
	if v.cfg.MatchingMode == replay.MatchingM4 {
		tokens = strip.StripM4(body, v.cfg.StrippingTags)
	} else {
		tokens = strip.StripM3(body, v.cfg.StrippingTags)
	}
	v.cache[key] = tokens
	return tokens
}

func contentsHash(mode replay.MatchingMode, body []byte) string {
	h := sha256.Sum256(append([]byte(mode+":"), body...))
	return hex.EncodeToString(h[:])
}
