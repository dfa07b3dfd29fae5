// Package access decides whether a participant may open the document locker.
// A participant is granted access by the first matching tier, in order: an
// active individual grant, an active grant on their batch, or the legacy
// documents flag. Administrative operations maintain the grants.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gazruxenginering/doclocker/internal/metrics"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// Sentinel errors.
var (
	ErrSubjectNotFound = errors.New("access: participant not found")
	ErrBatchNotFound   = errors.New("access: batch not found")
	ErrDenied          = errors.New("access: document access denied")
)

// Tier names the rule that decided an evaluation.
type Tier string

// Tiers in evaluation order. TierNone means no rule matched.
const (
	TierIndividual Tier = "individual"
	TierGroup      Tier = "group"
	TierLegacy     Tier = "legacy"
	TierNone       Tier = "none"
)

// Decision is the result of one evaluation.
type Decision struct {
	Granted bool
	Tier    Tier
	Reason  string // "Individual", "Batch: <name>", "Legacy", or ""
}

var denied = Decision{Tier: TierNone}

// Directory is the read side the evaluator needs. Satisfied by *store.Store.
type Directory interface {
	Participant(ctx context.Context, id int64) (*store.Participant, error)
	BatchByName(ctx context.Context, name string) (*store.Batch, error)
	GrantFor(ctx context.Context, scope store.Scope, targetID int64) (*store.Grant, error)
}

// subject carries the per-evaluation state shared by the tier checks.
type subject struct {
	participant *store.Participant
	now         time.Time
}

// check is one tier. It returns matched=false to fall through to the next.
type check func(ctx context.Context, s *subject) (d Decision, matched bool, err error)

// Evaluator answers HasAccess.
type Evaluator struct {
	dir     Directory
	checks  []check
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// NewEvaluator creates an Evaluator reading from dir.
func NewEvaluator(dir Directory, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Evaluator{dir: dir, logger: logger, nowFunc: time.Now}
	e.checks = []check{e.individual, e.group, legacy}

	return e
}

// HasAccess evaluates subjectID against the tiers in order. The clock is
// sampled once, so every tier sees the same instant.
func (e *Evaluator) HasAccess(ctx context.Context, subjectID int64) (Decision, error) {
	p, err := e.dir.Participant(ctx, subjectID)
	if errors.Is(err, store.ErrNotFound) {
		return denied, fmt.Errorf("%w: %d", ErrSubjectNotFound, subjectID)
	}

	if err != nil {
		return denied, fmt.Errorf("access: loading participant %d: %w", subjectID, err)
	}

	s := &subject{participant: p, now: e.nowFunc()}

	for _, c := range e.checks {
		d, matched, err := c(ctx, s)
		if err != nil {
			return denied, err
		}

		if matched {
			e.record(subjectID, d)
			return d, nil
		}
	}

	e.record(subjectID, denied)

	return denied, nil
}

// Require returns ErrDenied unless subjectID currently has access.
func (e *Evaluator) Require(ctx context.Context, subjectID int64) error {
	d, err := e.HasAccess(ctx, subjectID)
	if err != nil {
		return err
	}

	if !d.Granted {
		return fmt.Errorf("%w: participant %d", ErrDenied, subjectID)
	}

	return nil
}

func (e *Evaluator) record(subjectID int64, d Decision) {
	metrics.RecordAccessCheck(string(d.Tier))

	e.logger.Debug("access evaluated",
		slog.Int64("participant_id", subjectID),
		slog.Bool("granted", d.Granted),
		slog.String("tier", string(d.Tier)),
	)
}

func (e *Evaluator) individual(ctx context.Context, s *subject) (Decision, bool, error) {
	g, err := e.grant(ctx, store.ScopeIndividual, s.participant.ID)
	if err != nil || !isActive(g, s.now) {
		return Decision{}, false, err
	}

	return Decision{Granted: true, Tier: TierIndividual, Reason: "Individual"}, true, nil
}

func (e *Evaluator) group(ctx context.Context, s *subject) (Decision, bool, error) {
	name := s.participant.BatchName
	if name == "" {
		return Decision{}, false, nil
	}

	b, err := e.dir.BatchByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return Decision{}, false, nil
	}

	if err != nil {
		return Decision{}, false, fmt.Errorf("access: loading batch %q: %w", name, err)
	}

	g, err := e.grant(ctx, store.ScopeGroup, b.ID)
	if err != nil || !isActive(g, s.now) {
		return Decision{}, false, err
	}

	return Decision{Granted: true, Tier: TierGroup, Reason: "Batch: " + b.Name}, true, nil
}

func legacy(_ context.Context, s *subject) (Decision, bool, error) {
	if !s.participant.LegacyAccess {
		return Decision{}, false, nil
	}

	return Decision{Granted: true, Tier: TierLegacy, Reason: "Legacy"}, true, nil
}

// grant returns the grant for (scope, targetID), or nil when none exists.
func (e *Evaluator) grant(ctx context.Context, scope store.Scope, targetID int64) (*store.Grant, error) {
	g, err := e.dir.GrantFor(ctx, scope, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("access: loading %s grant for %d: %w", scope, targetID, err)
	}

	return g, nil
}

// isActive reports whether g is enabled and not yet expired. A grant
// expiring exactly at now is still active.
func isActive(g *store.Grant, now time.Time) bool {
	if g == nil || !g.Enabled {
		return false
	}

	return g.ExpiresAt == nil || !now.After(*g.ExpiresAt)
}
