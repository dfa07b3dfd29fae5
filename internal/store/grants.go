package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scope says whether a grant targets one participant or a whole batch.
type Scope string

// Grant scopes as stored in the access_grants.scope column.
const (
	ScopeIndividual Scope = "individual"
	ScopeGroup      Scope = "group"
)

// Grant is a persisted document-access permission. TargetID is a participant
// id for ScopeIndividual and a batch id for ScopeGroup.
type Grant struct {
	ID         string
	Scope      Scope
	TargetID   int64
	Enabled    bool
	ExpiresAt  *time.Time // nil = never expires
	Note       string
	CreatedBy  string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

const grantColumns = `id, scope, target_id, enabled, expires_at, note, created_by, created_at, modified_at`

const (
	// Keyed by (scope, target_id). An existing row keeps its id, creator,
	// and creation time; everything else is overwritten.
	sqlUpsertGrant = `INSERT INTO access_grants (` + grantColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, target_id) DO UPDATE SET
		 enabled = excluded.enabled,
		 expires_at = excluded.expires_at,
		 note = excluded.note,
		 modified_at = excluded.modified_at
		RETURNING ` + grantColumns

	sqlGetGrant = `SELECT ` + grantColumns + ` FROM access_grants
		WHERE scope = ? AND target_id = ?`

	sqlListGrants = `SELECT ` + grantColumns + ` FROM access_grants
		WHERE (? = '' OR scope = ?) ORDER BY scope, target_id`
)

// UpsertGrant creates or overwrites the grant for (g.Scope, g.TargetID) in
// a single statement and returns the stored row.
func (s *Store) UpsertGrant(ctx context.Context, g *Grant) (*Grant, error) {
	now := s.nowFunc().UTC()

	stored, err := scanGrant(s.db.QueryRowContext(ctx, sqlUpsertGrant,
		uuid.New().String(), string(g.Scope), g.TargetID, boolInt(g.Enabled),
		nullTime(g.ExpiresAt), g.Note, g.CreatedBy, now.UnixNano(), now.UnixNano(),
	))
	if err != nil {
		return nil, fmt.Errorf("store: upserting %s grant for %d: %w", g.Scope, g.TargetID, err)
	}

	return stored, nil
}

// GrantFor returns the grant for (scope, targetID), or ErrNotFound.
func (s *Store) GrantFor(ctx context.Context, scope Scope, targetID int64) (*Grant, error) {
	g, err := scanGrant(s.db.QueryRowContext(ctx, sqlGetGrant, string(scope), targetID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting %s grant for %d: %w", scope, targetID, err)
	}

	return g, nil
}

// ListGrants returns all grants of the given scope, or every grant when
// scope is empty.
func (s *Store) ListGrants(ctx context.Context, scope Scope) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx, sqlListGrants, string(scope), string(scope))
	if err != nil {
		return nil, fmt.Errorf("store: listing grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant

	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning grant: %w", err)
		}

		grants = append(grants, *g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating grants: %w", err)
	}

	return grants, nil
}

func scanGrant(row rowScanner) (*Grant, error) {
	var (
		g          Grant
		scope      string
		enabled    int
		expiresAt  sql.NullInt64
		createdAt  int64
		modifiedAt int64
	)

	err := row.Scan(&g.ID, &scope, &g.TargetID, &enabled, &expiresAt,
		&g.Note, &g.CreatedBy, &createdAt, &modifiedAt)
	if err != nil {
		return nil, err
	}

	g.Scope = Scope(scope)
	g.Enabled = enabled != 0
	g.ExpiresAt = timePtr(expiresAt)
	g.CreatedAt = time.Unix(0, createdAt).UTC()
	g.ModifiedAt = time.Unix(0, modifiedAt).UTC()

	return &g, nil
}
