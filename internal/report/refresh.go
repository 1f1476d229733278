package report

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"jama-reports/internal/config"
	"jama-reports/internal/snapshot"
)

// RefreshResult reports the outcome of refreshing one plan.
type RefreshResult struct {
	Plan     string         `json:"plan"`
	Records  int            `json:"records"`
	Cycles   int            `json:"cycles"`
	Snapshot *snapshot.Meta `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Refresh refetches one plan, or every configured plan when plan is empty.
// A failing plan keeps its previous data and is reported in its result; the
// other plans are still refreshed.
func (s *Service) Refresh(ctx context.Context, plan string) ([]RefreshResult, error) {
	refs := s.cfg.TestPlans
	if plan != "" {
		ref, err := s.resolve(plan)
		if err != nil {
			return nil, err
		}
		refs = []config.TestPlanRef{ref}
	}

	results := make([]RefreshResult, 0, len(refs))
	var failed int
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.refreshOne(ctx, ref)
		if res.Error != "" {
			failed++
		}
		results = append(results, res)
	}
	if len(refs) > 0 && failed == len(refs) {
		return results, errors.New("every test plan failed to refresh")
	}
	return results, nil
}

func (s *Service) refreshOne(ctx context.Context, ref config.TestPlanRef) RefreshResult {
	res := RefreshResult{Plan: ref.DisplayName}
	logger := log.With().Str("plan", ref.DisplayName).Logger()

	cycles, err := s.cache.TestCycles(ctx, ref.Project, ref.Name, true)
	if err != nil {
		logger.Error().Err(err).Msg("Refreshing test cycles failed")
		res.Error = err.Error()
		return res
	}
	res.Cycles = len(cycles)

	table, err := s.cache.TestRuns(ctx, ref.Project, ref.Name, "", true)
	if err != nil {
		logger.Error().Err(err).Msg("Refreshing test runs failed")
		res.Error = err.Error()
		return res
	}
	res.Records = table.Len()

	if s.store != nil {
		meta, err := s.store.Write(ctx, ref.Project, ref.Name, table.Records(), s.now())
		if err != nil {
			logger.Error().Err(err).Msg("Writing snapshot failed")
			res.Error = err.Error()
			return res
		}
		res.Snapshot = &meta
	}
	logger.Info().Int("records", res.Records).Int("cycles", res.Cycles).Msg("Test plan refreshed")
	return res
}

// Snapshots lists the stored datasets. It returns snapshot.ErrNoSnapshot
// when no store is configured.
func (s *Service) Snapshots(ctx context.Context) ([]snapshot.Meta, error) {
	if s.store == nil {
		return nil, snapshot.ErrNoSnapshot
	}
	return s.store.List(ctx)
}
