package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/a2ct-go/internal/models"
)

func TestAppendAndStage(t *testing.T) {
	s := New(RetentionDev)
	s.AppendRequest("crawling_results", models.RequestRecord{ID: "1", FirstUser: "alice"})
	s.AppendRequest("crawling_results", models.RequestRecord{ID: "2", FirstUser: "bob"})

	rows := s.Stage("crawling_results")
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].FirstUser)
}

func TestStage_MissingReturnsNilNotPanic(t *testing.T) {
	s := New(RetentionDev)
	assert.Nil(t, s.Stage("nonexistent"))
	assert.False(t, s.HasStage("nonexistent"))
}

func TestCopyStage_FiltersByPredicate(t *testing.T) {
	s := New(RetentionDev)
	s.AppendRequest("raw", models.RequestRecord{ID: "1", FirstUser: "alice"})
	s.AppendRequest("raw", models.RequestRecord{ID: "2", FirstUser: "public"})

	s.CopyStage("raw", "filtered", func(r models.RequestRecord) bool {
		return r.FirstUser != "public"
	})

	rows := s.Stage("filtered")
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].FirstUser)
	// raw is untouched
	assert.Len(t, s.Stage("raw"), 2)
}

func TestDeleteWhere_RemovesInPlace(t *testing.T) {
	s := New(RetentionDev)
	s.AppendRequest("stage", models.RequestRecord{ID: "1", Method: "GET"})
	s.AppendRequest("stage", models.RequestRecord{ID: "2", Method: "POST"})

	s.DeleteWhere("stage", func(r models.RequestRecord) bool {
		return r.Method == "POST"
	})

	rows := s.Stage("stage")
	require.Len(t, rows, 1)
	assert.Equal(t, "GET", rows[0].Method)
}

func TestDropStage(t *testing.T) {
	s := New(RetentionDev)
	s.AppendRequest("stage", models.RequestRecord{ID: "1"})
	s.DropStage("stage")
	assert.False(t, s.HasStage("stage"))
}

func TestReleaseStage_OnlyDropsUnderProdRetention(t *testing.T) {
	dev := New(RetentionDev)
	dev.AppendRequest("stage", models.RequestRecord{ID: "1"})
	dev.ReleaseStage("stage")
	assert.True(t, dev.HasStage("stage"))

	prod := New(RetentionProd)
	prod.AppendRequest("stage", models.RequestRecord{ID: "1"})
	prod.ReleaseStage("stage")
	assert.False(t, prod.HasStage("stage"))
}

func TestPairStageRoundTrip(t *testing.T) {
	s := New(RetentionDev)
	pair := models.PairKey{First: "alice", Second: "bob"}
	s.AppendPairRequest("other_user", pair, models.PairRecord{SecondUser: "bob"})

	rows := s.PairStage("other_user", pair)
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0].SecondUser)

	other := models.PairKey{First: "bob", Second: "alice"}
	assert.Empty(t, s.PairStage("other_user", other))
}

func TestSetPairStage_ReplacesWholesale(t *testing.T) {
	s := New(RetentionDev)
	pair := models.PairKey{First: "alice", Second: "bob"}
	s.AppendPairRequest("other_user", pair, models.PairRecord{SecondUser: "bob"})
	s.SetPairStage("other_user", pair, []models.PairRecord{{SecondUser: "carol"}})

	rows := s.PairStage("other_user", pair)
	require.Len(t, rows, 1)
	assert.Equal(t, "carol", rows[0].SecondUser)
}

func TestCandidatesFindingsPhasesRoundTrip(t *testing.T) {
	s := New(RetentionDev)
	s.AddCandidate(models.VulnerabilityCandidate{FirstUser: "alice", SecondUser: "bob", URL: "/x", Method: "GET"})
	s.AddFinding(models.Finding{FirstUser: "alice", SecondUser: "bob", URL: "/x", Method: "GET"})
	s.RecordPhase(models.ExecutionPhase{Phase: "crawl"})

	assert.Len(t, s.Candidates(), 1)
	assert.Len(t, s.Findings(), 1)
	assert.Len(t, s.Phases(), 1)
}

func TestReplayResultFor_MatchesByPairMethodURL(t *testing.T) {
	s := New(RetentionDev)
	s.AddReplayResult(models.ReplayResult{FirstUser: "alice", SecondUser: "bob", Method: "GET", URL: "/secret", StatusCode: 200})

	got, ok := s.ReplayResultFor(models.PairKey{First: "alice", Second: "bob"}, "GET", "/secret")
	require.True(t, ok)
	assert.Equal(t, 200, got.StatusCode)

	_, ok = s.ReplayResultFor(models.PairKey{First: "alice", Second: "carol"}, "GET", "/secret")
	assert.False(t, ok)
}
