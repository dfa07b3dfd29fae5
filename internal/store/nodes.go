package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Kind distinguishes mirrored files from directories.
type Kind string

// Node kinds as stored in the kind column.
const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Node is one mirrored Drive entry.
type Node struct {
	ID           string
	Name         string
	Kind         Kind
	Size         int64  // 0 when Drive reports no size (folders, native docs)
	ModifiedTime string // opaque, as reported by Drive
	ParentID     string // empty for entries without a parent
	RootKey      string // key of the configured root the entry was found under
	MediaType    string
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Kind == KindDirectory
}

// deleteChunkSize bounds the number of ids bound into one DELETE statement.
const deleteChunkSize = 500

const nodeColumns = `id, name, kind, size, modified_time, parent_id, root_folder_key, media_type`

// SQL statements for node operations.
const (
	sqlUpsertNode = `INSERT INTO nodes
		(id, name, name_folded, kind, size, modified_time, parent_id, root_folder_key, media_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		 name = excluded.name,
		 name_folded = excluded.name_folded,
		 kind = excluded.kind,
		 size = excluded.size,
		 modified_time = excluded.modified_time,
		 parent_id = excluded.parent_id,
		 root_folder_key = excluded.root_folder_key,
		 media_type = excluded.media_type`

	sqlAllNodes = `SELECT ` + nodeColumns + ` FROM nodes`

	sqlGetNode = `SELECT ` + nodeColumns + ` FROM nodes WHERE id = ?`

	sqlChildrenOf = `SELECT ` + nodeColumns + ` FROM nodes WHERE parent_id = ?
		ORDER BY kind = 'directory' DESC, name`

	sqlFoldersIn = `SELECT ` + nodeColumns + ` FROM nodes
		WHERE parent_id = ? AND kind = 'directory' ORDER BY name`

	sqlFilesIn = `SELECT ` + nodeColumns + ` FROM nodes
		WHERE parent_id = ? AND kind = 'file' ORDER BY name`

	sqlHasChildren = `SELECT EXISTS (SELECT 1 FROM nodes WHERE parent_id = ?)`

	sqlCountUnder = `SELECT COUNT(*) FROM nodes WHERE parent_id = ? OR root_folder_key = ?`

	sqlFindByName = `SELECT ` + nodeColumns + ` FROM nodes
		WHERE name_folded LIKE ? ESCAPE '\'
		ORDER BY root_folder_key, name`

	sqlStats = `SELECT
		COALESCE(SUM(kind = 'directory'), 0),
		COALESCE(SUM(kind = 'file'), 0)
		FROM nodes`
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// foldName returns the search key for a node name: NFC-normalized and
// Unicode case-folded, so "ÉCOLE" matches "école".
func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

	return r.Replace(s)
}

// UpsertNode inserts or fully overwrites a node by id.
func (s *Store) UpsertNode(ctx context.Context, n *Node) error {
	return upsertNode(ctx, s.db, n)
}

func upsertNode(ctx context.Context, ex execer, n *Node) error {
	_, err := ex.ExecContext(ctx, sqlUpsertNode,
		n.ID, n.Name, foldName(n.Name), string(n.Kind), n.Size,
		nullString(n.ModifiedTime),
		nullString(n.ParentID),
		nullString(n.RootKey),
		nullString(n.MediaType),
	)
	if err != nil {
		return fmt.Errorf("store: upserting node %s: %w", n.ID, err)
	}

	return nil
}

// DeleteNodes removes the nodes with the given ids. An empty set is a no-op.
func (s *Store) DeleteNodes(ctx context.Context, ids []string) error {
	return deleteNodes(ctx, s.db, ids)
}

func deleteNodes(ctx context.Context, ex execer, ids []string) error {
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(ids))
		chunk := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))

		for i, id := range chunk {
			args[i] = id
		}

		query := `DELETE FROM nodes WHERE id IN (` + placeholders + `)` //nolint:gosec // placeholders only
		if _, err := ex.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("store: deleting %d nodes: %w", len(chunk), err)
		}
	}

	return nil
}

// ApplyMirror writes all upserts, then all deletions, in one transaction.
// Nothing is committed if any statement fails.
func (s *Store) ApplyMirror(ctx context.Context, upserts []Node, deletes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning mirror transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range upserts {
		if err := upsertNode(ctx, tx, &upserts[i]); err != nil {
			return err
		}
	}

	if err := deleteNodes(ctx, tx, deletes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: committing mirror transaction: %w", err)
	}

	return nil
}

// AllNodes returns every stored node keyed by id.
func (s *Store) AllNodes(ctx context.Context) (map[string]Node, error) {
	nodes, err := s.queryNodes(ctx, sqlAllNodes)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = nodes[i]
	}

	return byID, nil
}

// Node returns the node with the given id, or ErrNotFound.
func (s *Store) Node(ctx context.Context, id string) (*Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx, sqlGetNode, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting node %s: %w", id, err)
	}

	return n, nil
}

// ChildrenOf returns the direct children of parentID, directories first,
// then by name.
func (s *Store) ChildrenOf(ctx context.Context, parentID string) ([]Node, error) {
	return s.queryNodes(ctx, sqlChildrenOf, parentID)
}

// FoldersIn returns the directories directly under parentID, by name.
func (s *Store) FoldersIn(ctx context.Context, parentID string) ([]Node, error) {
	return s.queryNodes(ctx, sqlFoldersIn, parentID)
}

// FilesIn returns the files directly under parentID, by name.
func (s *Store) FilesIn(ctx context.Context, parentID string) ([]Node, error) {
	return s.queryNodes(ctx, sqlFilesIn, parentID)
}

// HasChildren reports whether any node names parentID as its parent.
func (s *Store) HasChildren(ctx context.Context, parentID string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, sqlHasChildren, parentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("store: checking children of %s: %w", parentID, err)
	}

	return exists, nil
}

// CountUnder counts nodes whose parent is rootID or whose root tag is
// rootKey. The two sets may diverge after renames; both are counted.
func (s *Store) CountUnder(ctx context.Context, rootKey, rootID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, sqlCountUnder, rootID, rootKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting nodes under %s: %w", rootKey, err)
	}

	return n, nil
}

// FindByName returns nodes whose name contains query, case-insensitively,
// ordered by root key then name. A limit <= 0 returns every match.
func (s *Store) FindByName(ctx context.Context, query string, limit int) ([]Node, error) {
	pattern := "%" + escapeLike(foldName(query)) + "%"

	if limit > 0 {
		return s.queryNodes(ctx, sqlFindByName+` LIMIT ?`, pattern, limit)
	}

	return s.queryNodes(ctx, sqlFindByName, pattern)
}

// Stats returns the number of mirrored folders and files.
func (s *Store) Stats(ctx context.Context) (folders, files int, err error) {
	if err := s.db.QueryRowContext(ctx, sqlStats).Scan(&folders, &files); err != nil {
		return 0, 0, fmt.Errorf("store: counting nodes: %w", err)
	}

	return folders, files, nil
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...any) ([]Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node

	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning node: %w", err)
		}

		nodes = append(nodes, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating nodes: %w", err)
	}

	return nodes, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var (
		n         Node
		kind      string
		modified  sql.NullString
		parentID  sql.NullString
		rootKey   sql.NullString
		mediaType sql.NullString
	)

	if err := row.Scan(&n.ID, &n.Name, &kind, &n.Size, &modified, &parentID, &rootKey, &mediaType); err != nil {
		return nil, err
	}

	n.Kind = Kind(kind)
	n.ModifiedTime = modified.String
	n.ParentID = parentID.String
	n.RootKey = rootKey.String
	n.MediaType = mediaType.String

	return &n, nil
}
