package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/gazruxenginering/doclocker/internal/store"
)

// Request field limits.
const (
	maxNoteLength      = 500
	maxCreatedByLength = 128
)

// AdminStore is the read/write side the administrative operations need.
// Satisfied by *store.Store.
type AdminStore interface {
	Participant(ctx context.Context, id int64) (*store.Participant, error)
	Batch(ctx context.Context, id int64) (*store.Batch, error)
	CountMembers(ctx context.Context, batchName string) (int, error)
	UpsertGrant(ctx context.Context, g *store.Grant) (*store.Grant, error)
	ListGrants(ctx context.Context, scope store.Scope) ([]store.Grant, error)
	ToggleBatchDefault(ctx context.Context, id int64) (newDefault bool, affected int, err error)
	SetLegacyAccess(ctx context.Context, id int64, enabled bool) error
}

// GrantRequest creates, updates, or (with Enabled=false) revokes a grant.
type GrantRequest struct {
	TargetID  int64      // participant id or batch id
	Enabled   bool
	ExpiresAt *time.Time // nil = never expires
	Note      string
	CreatedBy string // recorded only when the grant is first created
}

// Validate checks the request fields.
func (r *GrantRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TargetID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.ExpiresAt, validation.By(expiryInRange)),
		validation.Field(&r.Note, validation.Length(0, maxNoteLength)),
		validation.Field(&r.CreatedBy, validation.Length(0, maxCreatedByLength)),
	)
}

// Expiry bounds accepted by Validate. The upper bound is checked against
// the year in the expiry's own location, so "9999-12-31" entered in any
// zone passes.
var minExpiry = time.Unix(0, 0)

const maxExpiryYear = 9999

func expiryInRange(value any) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}

	t, ok := v.(time.Time)
	if !ok {
		return nil
	}

	if t.Before(minExpiry) {
		return errors.New("must not be before 1970-01-01")
	}

	if t.Year() > maxExpiryYear {
		return errors.New("must not be after 9999-12-31")
	}

	return nil
}

// GrantResult is the stored grant plus, for batch grants, the number of
// participants currently in the batch.
type GrantResult struct {
	Grant    *store.Grant
	Affected int
}

// Admin performs administrative access changes.
type Admin struct {
	store  AdminStore
	logger *slog.Logger
}

// NewAdmin creates an Admin over st.
func NewAdmin(st AdminStore, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}

	return &Admin{store: st, logger: logger}
}

// GrantIndividual upserts the individual grant for participant req.TargetID.
func (a *Admin) GrantIndividual(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("access: invalid grant request: %w", err)
	}

	if _, err := a.store.Participant(ctx, req.TargetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrSubjectNotFound, req.TargetID)
		}

		return nil, fmt.Errorf("access: loading participant %d: %w", req.TargetID, err)
	}

	g, err := a.upsert(ctx, store.ScopeIndividual, &req)
	if err != nil {
		return nil, err
	}

	return &GrantResult{Grant: g, Affected: 1}, nil
}

// GrantBatch upserts the group grant for batch req.TargetID and reports how
// many participants the batch currently holds.
func (a *Admin) GrantBatch(ctx context.Context, req GrantRequest) (*GrantResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("access: invalid grant request: %w", err)
	}

	b, err := a.store.Batch(ctx, req.TargetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBatchNotFound, req.TargetID)
	}

	if err != nil {
		return nil, fmt.Errorf("access: loading batch %d: %w", req.TargetID, err)
	}

	g, err := a.upsert(ctx, store.ScopeGroup, &req)
	if err != nil {
		return nil, err
	}

	members, err := a.store.CountMembers(ctx, b.Name)
	if err != nil {
		return nil, fmt.Errorf("access: counting members of %q: %w", b.Name, err)
	}

	return &GrantResult{Grant: g, Affected: members}, nil
}

func (a *Admin) upsert(ctx context.Context, scope store.Scope, req *GrantRequest) (*store.Grant, error) {
	g, err := a.store.UpsertGrant(ctx, &store.Grant{
		Scope:     scope,
		TargetID:  req.TargetID,
		Enabled:   req.Enabled,
		ExpiresAt: req.ExpiresAt,
		Note:      req.Note,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("access: saving grant: %w", err)
	}

	a.logger.Info("access grant saved",
		slog.String("scope", string(scope)),
		slog.Int64("target_id", req.TargetID),
		slog.Bool("enabled", req.Enabled),
		slog.String("grant_id", g.ID),
	)

	return g, nil
}

// ToggleBatchDefault flips the batch's default access and cascades it onto
// the batch's current members.
func (a *Admin) ToggleBatchDefault(ctx context.Context, batchID int64) (newDefault bool, affected int, err error) {
	newDefault, affected, err = a.store.ToggleBatchDefault(ctx, batchID)
	if errors.Is(err, store.ErrNotFound) {
		return false, 0, fmt.Errorf("%w: %d", ErrBatchNotFound, batchID)
	}

	if err != nil {
		return false, 0, fmt.Errorf("access: toggling batch %d: %w", batchID, err)
	}

	a.logger.Info("batch default toggled",
		slog.Int64("batch_id", batchID),
		slog.Bool("default_access", newDefault),
		slog.Int("members", affected),
	)

	return newDefault, affected, nil
}

// SetLegacyAccess turns the participant's legacy documents flag on or off.
func (a *Admin) SetLegacyAccess(ctx context.Context, subjectID int64, enabled bool) error {
	err := a.store.SetLegacyAccess(ctx, subjectID, enabled)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrSubjectNotFound, subjectID)
	}

	if err != nil {
		return fmt.Errorf("access: setting legacy access for %d: %w", subjectID, err)
	}

	a.logger.Info("legacy access set",
		slog.Int64("participant_id", subjectID),
		slog.Bool("enabled", enabled),
	)

	return nil
}

// ListGrants returns grants of scope, or all grants when scope is empty.
func (a *Admin) ListGrants(ctx context.Context, scope store.Scope) ([]store.Grant, error) {
	grants, err := a.store.ListGrants(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("access: %w", err)
	}

	return grants, nil
}
