package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/a2ct-go/internal/models"
	"github.com/BetterCallFirewall/a2ct-go/internal/replay"
	"github.com/BetterCallFirewall/a2ct-go/internal/store"
)

func TestCheck_SuppressesCandidateAlsoReachableInOwnCrawl(t *testing.T) {
	s := store.New(store.RetentionDev)
	pair := models.PairKey{First: "alice", Second: "bob"}

	s.AddCandidate(models.VulnerabilityCandidate{FirstUser: "alice", SecondUser: "bob", URL: "/private", Method: "GET"})
	s.AddReplayResult(models.ReplayResult{
		FirstUser: "alice", SecondUser: "bob", Method: "GET", URL: "/private",
		ResponseBody: []byte(`<html><body><p>Hello</p></body></html>`),
	})

	ownCrawl := []models.RequestRecord{
		{FirstUser: "bob", ResponseBody: []byte(`<html><body><p>Hello</p><p>extra</p></body></html>`)},
	}

	v := New(s, Config{MatchingMode: replay.MatchingM3, Threshold: 80})
	findings := v.Check(pair, ownCrawl)
	assert.Empty(t, findings)
}

func TestCheck_KeepsCandidateNotReachableInOwnCrawl(t *testing.T) {
	s := store.New(store.RetentionDev)
	pair := models.PairKey{First: "alice", Second: "bob"}

	s.AddCandidate(models.VulnerabilityCandidate{FirstUser: "alice", SecondUser: "bob", URL: "/private", Method: "GET"})
	s.AddReplayResult(models.ReplayResult{
		FirstUser: "alice", SecondUser: "bob", Method: "GET", URL: "/private",
		ResponseBody: []byte(`<html><body><p>Top secret data</p></body></html>`),
	})

	ownCrawl := []models.RequestRecord{
		{FirstUser: "bob", ResponseBody: []byte(`<html><body><p>Unrelated content</p></body></html>`)},
	}

	v := New(s, Config{MatchingMode: replay.MatchingM3, Threshold: 80})
	findings := v.Check(pair, ownCrawl)
	require.Len(t, findings, 1)
	assert.Equal(t, "/private", findings[0].URL)
}

func TestCheck_NonGETCandidatesPassThroughUnchanged(t *testing.T) {
	s := store.New(store.RetentionDev)
	pair := models.PairKey{First: "alice", Second: "bob"}
	s.AddCandidate(models.VulnerabilityCandidate{FirstUser: "alice", SecondUser: "bob", URL: "/update", Method: "POST"})

	v := New(s, Config{MatchingMode: replay.MatchingM3, Threshold: 80})
	findings := v.Check(pair, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, "POST", findings[0].Method)
}

func TestCheck_IgnoresCandidatesForOtherPairs(t *testing.T) {
	s := store.New(store.RetentionDev)
	s.AddCandidate(models.VulnerabilityCandidate{FirstUser: "carol", SecondUser: "dave", URL: "/x", Method: "GET"})

	v := New(s, Config{MatchingMode: replay.MatchingM3, Threshold: 80})
	findings := v.Check(models.PairKey{First: "alice", Second: "bob"}, nil)
	assert.Empty(t, findings)
}
