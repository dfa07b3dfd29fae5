package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Participant is the portal's registered user, as far as document access
// is concerned.
type Participant struct {
	ID              int64
	Name            string
	BatchName       string
	LegacyAccess    bool       // documents_access_legacy
	LegacyGrantedAt *time.Time // set when LegacyAccess was last turned on
	QuickAccess     bool       // cascaded from the batch default
}

// Batch is a cohort of participants.
type Batch struct {
	ID            int64
	Name          string
	DefaultAccess bool
}

const (
	sqlGetParticipant = `SELECT id, name, batch_name, documents_access_legacy,
		legacy_granted_at, quick_access FROM participants WHERE id = ?`

	sqlInsertParticipant = `INSERT INTO participants
		(name, batch_name, documents_access_legacy, quick_access) VALUES (?, ?, ?, ?)`

	sqlSetParticipantBatch = `UPDATE participants SET batch_name = ? WHERE id = ?`

	sqlSetLegacyAccess = `UPDATE participants
		SET documents_access_legacy = ?, legacy_granted_at = ? WHERE id = ?`

	sqlGetBatch       = `SELECT id, name, default_access FROM batches WHERE id = ?`
	sqlGetBatchByName = `SELECT id, name, default_access FROM batches WHERE name = ?`
	sqlInsertBatch    = `INSERT INTO batches (name, default_access) VALUES (?, ?)`
	sqlFlipBatch      = `UPDATE batches SET default_access = NOT default_access WHERE id = ?
		RETURNING name, default_access`
	sqlCascadeBatch = `UPDATE participants SET quick_access = ? WHERE batch_name = ?`
	sqlCountMembers = `SELECT COUNT(*) FROM participants WHERE batch_name = ?`
)

// Participant returns the participant with the given id, or ErrNotFound.
func (s *Store) Participant(ctx context.Context, id int64) (*Participant, error) {
	var (
		p         Participant
		batchName sql.NullString
		legacy    int
		grantedAt sql.NullInt64
		quick     int
	)

	err := s.db.QueryRowContext(ctx, sqlGetParticipant, id).
		Scan(&p.ID, &p.Name, &batchName, &legacy, &grantedAt, &quick)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting participant %d: %w", id, err)
	}

	p.BatchName = batchName.String
	p.LegacyAccess = legacy != 0
	p.LegacyGrantedAt = timePtr(grantedAt)
	p.QuickAccess = quick != 0

	return &p, nil
}

// CreateParticipant inserts a participant and returns its id.
func (s *Store) CreateParticipant(ctx context.Context, p *Participant) (int64, error) {
	res, err := s.db.ExecContext(ctx, sqlInsertParticipant,
		p.Name, nullString(p.BatchName), boolInt(p.LegacyAccess), boolInt(p.QuickAccess))
	if err != nil {
		return 0, fmt.Errorf("store: creating participant %q: %w", p.Name, err)
	}

	return res.LastInsertId()
}

// SetParticipantBatch moves a participant into a batch.
func (s *Store) SetParticipantBatch(ctx context.Context, id int64, batchName string) error {
	return s.updateParticipant(ctx, sqlSetParticipantBatch, id, nullString(batchName), id)
}

// SetLegacyAccess sets the legacy documents flag. Turning it on stamps the
// grant time; turning it off clears it.
func (s *Store) SetLegacyAccess(ctx context.Context, id int64, enabled bool) error {
	var at *time.Time

	if enabled {
		now := s.nowFunc().UTC()
		at = &now
	}

	return s.updateParticipant(ctx, sqlSetLegacyAccess, id, boolInt(enabled), nullTime(at), id)
}

func (s *Store) updateParticipant(ctx context.Context, query string, id int64, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: updating participant %d: %w", id, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// Batch returns the batch with the given id, or ErrNotFound.
func (s *Store) Batch(ctx context.Context, id int64) (*Batch, error) {
	return s.queryBatch(ctx, sqlGetBatch, id)
}

// BatchByName returns the batch with the given name, or ErrNotFound.
func (s *Store) BatchByName(ctx context.Context, name string) (*Batch, error) {
	return s.queryBatch(ctx, sqlGetBatchByName, name)
}

func (s *Store) queryBatch(ctx context.Context, query string, arg any) (*Batch, error) {
	var (
		b   Batch
		def int
	)

	err := s.db.QueryRowContext(ctx, query, arg).Scan(&b.ID, &b.Name, &def)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting batch %v: %w", arg, err)
	}

	b.DefaultAccess = def != 0

	return &b, nil
}

// CreateBatch inserts a batch and returns its id.
func (s *Store) CreateBatch(ctx context.Context, name string, defaultAccess bool) (int64, error) {
	res, err := s.db.ExecContext(ctx, sqlInsertBatch, name, boolInt(defaultAccess))
	if err != nil {
		return 0, fmt.Errorf("store: creating batch %q: %w", name, err)
	}

	return res.LastInsertId()
}

// CountMembers returns the number of participants currently in the batch.
func (s *Store) CountMembers(ctx context.Context, batchName string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, sqlCountMembers, batchName).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting members of %q: %w", batchName, err)
	}

	return n, nil
}

// ToggleBatchDefault flips the batch's default access and copies the new
// value onto every current member's quick-access flag, in one transaction.
// Members who join later are not touched.
func (s *Store) ToggleBatchDefault(ctx context.Context, id int64) (newDefault bool, affected int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("store: beginning batch toggle: %w", err)
	}
	defer tx.Rollback()

	var (
		name string
		def  int
	)

	err = tx.QueryRowContext(ctx, sqlFlipBatch, id).Scan(&name, &def)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, ErrNotFound
	}

	if err != nil {
		return false, 0, fmt.Errorf("store: toggling batch %d: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, sqlCascadeBatch, def, name)
	if err != nil {
		return false, 0, fmt.Errorf("store: cascading batch %d default: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("store: counting cascaded members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("store: committing batch toggle: %w", err)
	}

	return def != 0, int(n), nil
}
