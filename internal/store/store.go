// Package store implements the typed, append-only tabular store (C7)
// threaded through every pipeline stage. The in-memory, mutex-guarded
// backing is modeled directly on the teacher's
// internal/storage/memory_storage.go MemoryStorage type; the spec itself
// frames persistence abstractly ("a relational embedded store is one valid
// backing") and gives C7 only 5% weight, so no SQL backend is implemented
// here (see DESIGN.md).
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/a2ct-go/internal/models"
)

// RetentionPolicy controls how eagerly intermediate stage tables are
// dropped once their downstream consumer has finished with them.
type RetentionPolicy string

const (
	// RetentionDev keeps every stage for the lifetime of the run.
	RetentionDev RetentionPolicy = "dev"
	// RetentionDevReduced is accepted as a policy name; ReleaseStage treats
	// it like RetentionDev and keeps every stage. No trace selection for the
	// replay scorer is done.
	RetentionDevReduced RetentionPolicy = "dev-reduced"
	// RetentionProd drops intermediate stages as soon as their downstream
	// consumer has finished reading them.
	RetentionProd RetentionPolicy = "prod"
)

// Store is the single shared mutable object in a run: per-stage request
// tables, per-pair per-stage tables, and the candidate/finding/phase
// sequences produced downstream of the filter pipeline.
type Store struct {
	mu sync.RWMutex

	retention RetentionPolicy

	stages     map[string][]models.RequestRecord
	pairStages map[string]map[models.PairKey][]models.PairRecord

	candidates    []models.VulnerabilityCandidate
	replayResults []models.ReplayResult
	findings      []models.Finding
	phases        []models.ExecutionPhase
}

// New returns an empty store governed by the given retention policy.
func New(retention RetentionPolicy) *Store {
	return &Store{
		retention:  retention,
		stages:     make(map[string][]models.RequestRecord),
		pairStages: make(map[string]map[models.PairKey][]models.PairRecord),
	}
}

// Retention returns the store's configured retention policy.
func (s *Store) Retention() RetentionPolicy {
	return s.retention
}

// AppendRequest appends a row to stage, creating it if necessary. A row
// without an ID (the crawl boundary leaves this to the store) is assigned a
// fresh random one so later stages have a stable handle independent of slice
// position.
func (s *Store) AppendRequest(stage string, r models.RequestRecord) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[stage] = append(s.stages[stage], r)
}

// Stage returns a copy of stage's rows. A missing stage returns nil.
func (s *Store) Stage(stage string) []models.RequestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.RequestRecord(nil), s.stages[stage]...)
}

// HasStage reports whether stage currently exists (even if empty).
func (s *Store) HasStage(stage string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stages[stage]
	return ok
}

// PutStage replaces stage wholesale with rows, creating it if necessary.
// Used by filter passes whose keep decision depends on cross-row state
// (e.g. per-user duplicate tracking) that CopyStage's single-row predicate
// can't express.
func (s *Store) PutStage(stage string, rows []models.RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[stage] = append([]models.RequestRecord(nil), rows...)
}

// CopyStage bulk-copies every row of from for which keep returns true into a
// new stage to, overwriting to if it already exists. The filter passes in
// internal/pipeline write their output tables with PutStage instead.
func (s *Store) CopyStage(from, to string, keep func(models.RequestRecord) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.stages[from]
	dst := make([]models.RequestRecord, 0, len(src))
	for _, r := range src {
		if keep == nil || keep(r) {
			dst = append(dst, r)
		}
	}
	s.stages[to] = dst
}

// DeleteWhere removes, in place, every row of stage for which remove returns
// true.
func (s *Store) DeleteWhere(stage string, remove func(models.RequestRecord) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.stages[stage]
	kept := src[:0]
	for _, r := range src {
		if !remove(r) {
			kept = append(kept, r)
		}
	}
	s.stages[stage] = kept
}

// DropStage removes a stage entirely.
func (s *Store) DropStage(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stages, stage)
}

// ReleaseStage drops stage only under the "prod" retention policy, where
// intermediate stages are discarded as soon as their downstream consumer
// has finished with them. Under "dev" and "dev-reduced" the stage is kept.
func (s *Store) ReleaseStage(stage string) {
	if s.retention == RetentionProd {
		s.DropStage(stage)
	}
}

// AppendPairRequest appends a row to the (stage, pair) table.
func (s *Store) AppendPairRequest(stage string, pair models.PairKey, r models.PairRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPair, ok := s.pairStages[stage]
	if !ok {
		byPair = make(map[models.PairKey][]models.PairRecord)
		s.pairStages[stage] = byPair
	}
	byPair[pair] = append(byPair[pair], r)
}

// SetPairStage replaces the (stage, pair) table wholesale, the per-pair
// analogue of PutStage — used by OtherUserContentFilter, which builds its
// output for one pair at a time.
func (s *Store) SetPairStage(stage string, pair models.PairKey, rows []models.PairRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPair, ok := s.pairStages[stage]
	if !ok {
		byPair = make(map[models.PairKey][]models.PairRecord)
		s.pairStages[stage] = byPair
	}
	byPair[pair] = append([]models.PairRecord(nil), rows...)
}

// PairStage returns a copy of the (stage, pair) table.
func (s *Store) PairStage(stage string, pair models.PairKey) []models.PairRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PairRecord(nil), s.pairStages[stage][pair]...)
}

// DropPairStage removes every pair's table under stage.
func (s *Store) DropPairStage(stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pairStages, stage)
}

// AddCandidate appends a vulnerability candidate produced by the replay
// engine (C5).
func (s *Store) AddCandidate(c models.VulnerabilityCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, c)
}

// Candidates returns a copy of every recorded candidate.
func (s *Store) Candidates() []models.VulnerabilityCandidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.VulnerabilityCandidate(nil), s.candidates...)
}

// AddReplayResult appends a full replay exchange.
func (s *Store) AddReplayResult(r models.ReplayResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replayResults = append(s.replayResults, r)
}

// ReplayResults returns a copy of every recorded replay exchange.
func (s *Store) ReplayResults() []models.ReplayResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ReplayResult(nil), s.replayResults...)
}

// ReplayResultFor looks up the stored replay exchange for a given pair,
// method and URL, as the findings verifier does before re-scoring it.
func (s *Store) ReplayResultFor(pair models.PairKey, method, url string) (models.ReplayResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.replayResults {
		if r.FirstUser == pair.First && r.SecondUser == pair.Second && r.Method == method && r.URL == url {
			return r, true
		}
	}
	return models.ReplayResult{}, false
}

// AddFinding appends a verified finding (C6 output).
func (s *Store) AddFinding(f models.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, f)
}

// Findings returns a copy of every verified finding.
func (s *Store) Findings() []models.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Finding(nil), s.findings...)
}

// RecordPhase appends one row to the execution_time table.
func (s *Store) RecordPhase(p models.ExecutionPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = append(s.phases, p)
}

// Phases returns a copy of the execution_time table.
func (s *Store) Phases() []models.ExecutionPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ExecutionPhase(nil), s.phases...)
}
