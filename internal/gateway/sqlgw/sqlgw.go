// Package sqlgw implements gateway.Gateway on a SQLite database.
//
// Pages and blocks are stored one row each, located by their parent and
// their position among siblings; the rest of the entity is a JSON document.
// Every mutation runs in a transaction so a failed call changes nothing.
package sqlgw

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Registers the "sqlite" driver.

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	parent_id TEXT REFERENCES pages(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_parent ON pages(workspace_id, parent_id, position);

CREATE TABLE IF NOT EXISTS blocks (
	id TEXT PRIMARY KEY,
	page_id TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
	parent_id TEXT,
	position INTEGER NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blocks_page ON blocks(page_id, parent_id, position);
`

// Gateway is a page store backed by a SQLite database. It is safe for
// concurrent use.
type Gateway struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ gateway.Gateway = (*Gateway)(nil)

// Open opens or creates the database at path with WAL journaling and foreign
// keys enforced.
func Open(ctx context.Context, path string) (*Gateway, error) {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Gateway{
		db:   db,
		path: path,
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}, nil
}

// Close closes the database.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Path returns the database file.
func (g *Gateway) Path() string {
	return g.path
}

// tx runs fn in a transaction, committed when fn succeeds.
func (g *Gateway) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, ignoreDone(tx.Rollback()))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Workspaces.

// GetWorkspaces implements gateway.Gateway.
func (g *Gateway) GetWorkspaces(ctx context.Context) ([]*model.Workspace, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT id, name, owner_id, created_at FROM workspaces ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()
	out := []*model.Workspace{}
	for rows.Next() {
		w := &model.Workspace{}
		var created string
		if err := rows.Scan(&w.ID, &w.Name, &w.OwnerID, &created); err != nil {
			return nil, fmt.Errorf("failed to read workspace: %w", err)
		}
		if w.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("workspace %s: invalid creation time: %w", w.ID, err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateWorkspace implements gateway.Gateway.
func (g *Gateway) CreateWorkspace(ctx context.Context, name, ownerID string) (*model.Workspace, error) {
	w := &model.Workspace{ID: uuid.NewString(), Name: name, OwnerID: ownerID, CreatedAt: g.now()}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", gateway.ErrInvalid, err)
	}
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, seq, name, owner_id, created_at)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM workspaces), ?, ?, ?)`,
		w.ID, w.Name, w.OwnerID, w.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return w, nil
}

// UpdateWorkspace implements gateway.Gateway.
func (g *Gateway) UpdateWorkspace(ctx context.Context, id, name string) error {
	return g.tx(ctx, func(tx *sql.Tx) error {
		if err := workspaceExists(ctx, tx, id); err != nil {
			return err
		}
		if name == "" {
			return fmt.Errorf("%w: empty name", gateway.ErrInvalid)
		}
		_, err := tx.ExecContext(ctx, `UPDATE workspaces SET name = ? WHERE id = ?`, name, id)
		return err
	})
}

// DeleteWorkspace implements gateway.Gateway.
func (g *Gateway) DeleteWorkspace(ctx context.Context, id string) error {
	res, err := g.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("workspace %s: %w", id, gateway.ErrNotFound)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func workspaceExists(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM workspaces WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("workspace %s: %w", id, gateway.ErrNotFound)
	}
	return err
}

// nullable stores the empty ID as NULL so that roots have no parent row.
func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode: %w", err)
	}
	return string(b), nil
}
