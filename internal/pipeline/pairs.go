package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/BetterCallFirewall/a2ct-go/internal/models"
	"github.com/BetterCallFirewall/a2ct-go/internal/store"
)

// OtherUserContentFilter is stage 5, run once per ordered pair (U1, U2):
// keep only U1's requests, then remove those equivalent (per cfg.Mode) to
// any request captured under U2. When cfg.Mode is M3 this stage compares
// names and values (M4 behavior), same as PublicContentFilter.
func OtherUserContentFilter(s *store.Store, cfg Config, pair models.PairKey) {
	rows := s.Stage(StageStandard)

	var u1Rows, u2Rows []models.RequestRecord
	for _, r := range rows {
		switch r.FirstUser {
		case pair.First:
			u1Rows = append(u1Rows, r)
		case pair.Second:
			u2Rows = append(u2Rows, r)
		}
	}

	kept := removeEquivalentToReference(u1Rows, u2Rows, cfg.Mode, cfg.IgnoreTokens, false)

	pairRows := make([]models.PairRecord, len(kept))
	for i, r := range kept {
		pairRows[i] = models.PairRecord{RequestRecord: r, SecondUser: pair.Second}
	}
	s.SetPairStage(StageOtherUser, pair, pairRows)
}

// RunPairs runs OtherUserContentFilter concurrently across pairs, bounded by
// a worker pool — the spec's concurrency model partitions stage 5 (and C5/C6)
// by ordered user pair, since pairs only share read-only upstream stages.
// Mirrors the teacher's errgroup-based fan-out idiom.
func RunPairs(ctx context.Context, s *store.Store, cfg Config, pairs []models.PairKey, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			OtherUserContentFilter(s, cfg, pair)
			return nil
		})
	}
	return g.Wait()
}
