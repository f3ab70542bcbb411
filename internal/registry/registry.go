package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Registry is the durable store of port allocations, shared by every
// branchbox invocation on the machine. It lives outside any worktree so
// records survive worktree deletion until explicitly removed.
type Registry struct {
	db *sql.DB
}

// New creates or opens the registry database at ~/.branchbox/registry.db
func New() (*Registry, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	dir := filepath.Join(home, ".branchbox")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .branchbox directory: %w", err)
	}

	return Open(filepath.Join(dir, "registry.db"))
}

// Open opens a registry database at an explicit path.
// An unreadable database is not fatal: the damaged file is moved aside with a
// warning and the registry starts fresh.
func Open(dbPath string) (*Registry, error) {
	r, err := open(dbPath)
	if err == nil {
		return r, nil
	}

	backup := dbPath + ".corrupt"
	if renameErr := os.Rename(dbPath, backup); renameErr != nil {
		return nil, err
	}
	fmt.Printf("Warning: registry unreadable (%v), starting fresh (old file kept at %s)\n", err, backup)

	return open(dbPath)
}

func open(dbPath string) (*Registry, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	r := &Registry{db: db}
	if err := r.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return r, nil
}

// Close closes the database connection
func (r *Registry) Close() error {
	return r.db.Close()
}

// initSchema creates the allocations table if it doesn't exist.
// The UNIQUE constraints carry the invariants: one allocation per worktree,
// and no two worktrees of one repository sharing an offset.
func (r *Registry) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS allocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_alias TEXT NOT NULL,
		worktree TEXT NOT NULL,
		port_offset INTEGER NOT NULL,
		ports TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(repo_alias, worktree),
		UNIQUE(repo_alias, port_offset)
	);

	CREATE INDEX IF NOT EXISTS idx_repo ON allocations(repo_alias);
	`

	_, err := r.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// UsedOffsets returns the set of offsets already allocated for a repository.
func (r *Registry) UsedOffsets(repoAlias string) (map[int]bool, error) {
	rows, err := r.db.Query("SELECT port_offset FROM allocations WHERE repo_alias = ?", repoAlias)
	if err != nil {
		return nil, fmt.Errorf("failed to query offsets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	used := make(map[int]bool)
	for rows.Next() {
		var offset int
		if err := rows.Scan(&offset); err != nil {
			return nil, err
		}
		used[offset] = true
	}

	return used, rows.Err()
}

// Commit records an allocation. Re-committing the same worktree replaces its
// record; committing an offset another worktree of the repository holds fails
// on the store's uniqueness constraint.
func (r *Registry) Commit(repoAlias, worktree string, offset int, ports map[string]int) error {
	portsJSON, err := json.Marshal(ports)
	if err != nil {
		return fmt.Errorf("failed to encode ports: %w", err)
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.Exec(`
		INSERT INTO allocations (repo_alias, worktree, port_offset, ports, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(repo_alias, worktree) DO UPDATE SET port_offset = excluded.port_offset, ports = excluded.ports
	`, repoAlias, worktree, offset, string(portsJSON), createdAt)

	if err != nil {
		return fmt.Errorf("failed to record allocation: %w", err)
	}

	return nil
}

// Remove deletes a worktree's allocation. Removing an absent record is not an
// error, so removal is idempotent.
func (r *Registry) Remove(repoAlias, worktree string) error {
	_, err := r.db.Exec("DELETE FROM allocations WHERE repo_alias = ? AND worktree = ?", repoAlias, worktree)
	if err != nil {
		return fmt.Errorf("failed to remove allocation: %w", err)
	}
	return nil
}

// Lookup returns the allocation for a worktree, or nil if none exists.
func (r *Registry) Lookup(repoAlias, worktree string) (*Allocation, error) {
	row := r.db.QueryRow(`
		SELECT id, repo_alias, worktree, port_offset, ports, created_at
		FROM allocations
		WHERE repo_alias = ? AND worktree = ?
	`, repoAlias, worktree)

	a, err := scanAllocation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up allocation: %w", err)
	}

	return a, nil
}

// List returns all allocations, optionally filtered to one repository.
func (r *Registry) List(repoAlias string) ([]Allocation, error) {
	query := `
		SELECT id, repo_alias, worktree, port_offset, ports, created_at
		FROM allocations
	`
	var args []interface{}
	if repoAlias != "" {
		query += " WHERE repo_alias = ?"
		args = append(args, repoAlias)
	}
	query += " ORDER BY repo_alias, port_offset"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var allocations []Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, *a)
	}

	return allocations, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAllocation(row scanner) (*Allocation, error) {
	var a Allocation
	var portsJSON, createdAt string

	err := row.Scan(&a.ID, &a.RepoAlias, &a.Worktree, &a.PortOffset, &portsJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(portsJSON), &a.Ports); err != nil {
		return nil, fmt.Errorf("failed to decode ports for %s/%s: %w", a.RepoAlias, a.Worktree, err)
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &a, nil
}
