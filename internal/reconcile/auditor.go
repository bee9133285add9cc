// Package reconcile audits stored campaigns against the escrow ledger.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crowdfund/internal/domain"
)

// Problem names one kind of inconsistency.
type Problem string

const (
	ProblemEscrowMismatch Problem = "escrow_mismatch"
	ProblemFundedShort    Problem = "funded_below_target"
	ProblemActiveReached  Problem = "active_at_target"
)

// Finding is one inconsistency found on a campaign.
type Finding struct {
	Campaign domain.Address
	ID       string
	Problem  Problem
	Expected uint64
	Actual   uint64
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s: expected %d, got %d", f.ID, f.Problem, f.Expected, f.Actual)
}

// Report summarizes one audit pass.
type Report struct {
	Checked  int
	Findings []Finding
	Duration time.Duration
}

// OK reports whether the pass found nothing.
func (r Report) OK() bool { return len(r.Findings) == 0 }

// Auditor checks every campaign with bounded parallelism.
type Auditor struct {
	store       domain.Store
	parallelism int
	logger      zerolog.Logger
}

func NewAuditor(store domain.Store, parallelism int, logger zerolog.Logger) *Auditor {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Auditor{store: store, parallelism: parallelism, logger: logger}
}

// Run audits all campaigns. Each campaign is read together with its escrow
// balance in one unit of work so in-flight transitions cannot produce false
// findings. Campaigns deleted mid-pass are skipped.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	campaigns, err := a.store.ListCampaigns(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list campaigns: %w", err)
	}

	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for _, listed := range campaigns {
		addr := listed.Address
		g.Go(func() error {
			findings, checked, err := a.check(gctx, addr)
			if err != nil {
				return fmt.Errorf("audit %s: %w", listed.ID, err)
			}
			mu.Lock()
			if checked {
				report.Checked++
			}
			report.Findings = append(report.Findings, findings...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	sort.Slice(report.Findings, func(i, j int) bool {
		if report.Findings[i].ID != report.Findings[j].ID {
			return report.Findings[i].ID < report.Findings[j].ID
		}
		return report.Findings[i].Problem < report.Findings[j].Problem
	})
	report.Duration = time.Since(start)
	a.logger.Debug().Int("checked", report.Checked).Int("findings", len(report.Findings)).
		Dur("duration", report.Duration).Msg("reconcile pass complete")
	return report, nil
}

func (a *Auditor) check(ctx context.Context, addr domain.Address) ([]Finding, bool, error) {
	var (
		c       domain.Campaign
		balance uint64
	)
	err := a.store.Atomically(ctx, func(tx domain.Tx) error {
		var err error
		if c, err = tx.Campaign(ctx, addr); err != nil {
			return err
		}
		balance, err = tx.Balance(ctx, c.EscrowAccount())
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return Inspect(c, balance), true, nil
}

// Inspect returns the findings for one campaign and its escrow balance.
func Inspect(c domain.Campaign, escrowBalance uint64) []Finding {
	var out []Finding
	add := func(p Problem, expected, actual uint64) {
		out = append(out, Finding{Campaign: c.Address, ID: c.ID, Problem: p, Expected: expected, Actual: actual})
	}
	if escrowBalance != c.RaisedAmount {
		add(ProblemEscrowMismatch, c.RaisedAmount, escrowBalance)
	}
	switch c.Status {
	case domain.CampaignFunded:
		if c.RaisedAmount < c.TargetAmount {
			add(ProblemFundedShort, c.TargetAmount, c.RaisedAmount)
		}
	case domain.CampaignActive:
		if c.RaisedAmount >= c.TargetAmount {
			add(ProblemActiveReached, c.TargetAmount, c.RaisedAmount)
		}
	}
	return out
}
