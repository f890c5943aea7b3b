package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codesync/codesync-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, displayName, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, display_name, password_hash, is_guest)
		VALUES (?, ?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, username, displayName, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, sessionID string) (*store.User, error) {
	guestUsername := "guest_" + sessionID[:8]

	query := `
		INSERT INTO users (username, display_name, password_hash, is_guest, session_id)
		VALUES (?, ?, '', 1, ?)
	`
	result, err := s.db.ExecContext(ctx, query, guestUsername, guestUsername, sessionID)
	if err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE username = ? AND is_guest = 0
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserBySessionID retrieves a guest user by session ID.
func (s *SQLiteStore) GetUserBySessionID(ctx context.Context, sessionID string) (*store.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE session_id = ? AND is_guest = 1
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== ProjectStore implementation ====

// CreateProject creates a new project and records the owner as a member.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *store.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO projects (id, name, description, language, is_public, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Language, p.IsPublic, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}

	memberQuery := `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES (?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, memberQuery, p.ID, p.OwnerID, store.RoleOwner); err != nil {
		return fmt.Errorf("insert owner member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*store.Project, error) {
	query := `
		SELECT id, name, description, language, is_public, owner_id, created_at, updated_at
		FROM projects
		WHERE id = ?
	`
	var p store.Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Language,
		&p.IsPublic,
		&p.OwnerID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project not found: %w", err)
		}
		return nil, fmt.Errorf("query project: %w", err)
	}

	return &p, nil
}

// ListProjects lists projects the user owns or is a member of, most recently updated first.
func (s *SQLiteStore) ListProjects(ctx context.Context, userID int64) ([]*store.Project, error) {
	query := `
		SELECT DISTINCT p.id, p.name, p.description, p.language, p.is_public, p.owner_id, p.created_at, p.updated_at
		FROM projects p
		LEFT JOIN project_members pm ON pm.project_id = p.id
		WHERE p.owner_id = ? OR pm.user_id = ?
		ORDER BY p.updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*store.Project
	for rows.Next() {
		var p store.Project
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Language, &p.IsPublic, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}

	return projects, rows.Err()
}

// UpdateProject updates mutable project fields.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *store.Project) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE projects
		SET name = ?, description = ?, language = ?, is_public = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Language, p.IsPublic, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("project not found: %s", p.ID)
	}
	return nil
}

// DeleteProject removes a project along with its members and files.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("delete members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AddMember adds a user to a project with the given role.
func (s *SQLiteStore) AddMember(ctx context.Context, projectID string, userID int64, role store.Role) error {
	query := `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT(project_id, user_id) DO UPDATE SET role = excluded.role
	`
	if _, err := s.db.ExecContext(ctx, query, projectID, userID, role); err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a project.
func (s *SQLiteStore) RemoveMember(ctx context.Context, projectID string, userID int64) error {
	query := `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`
	if _, err := s.db.ExecContext(ctx, query, projectID, userID); err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return nil
}

// MemberRole returns the user's role in the project, if any.
func (s *SQLiteStore) MemberRole(ctx context.Context, projectID string, userID int64) (store.Role, bool, error) {
	query := `SELECT role FROM project_members WHERE project_id = ? AND user_id = ?`

	var role store.Role
	err := s.db.QueryRowContext(ctx, query, projectID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query member role: %w", err)
	}

	return role, true, nil
}

// ListMembers lists all members of a project.
func (s *SQLiteStore) ListMembers(ctx context.Context, projectID string) ([]*store.ProjectMember, error) {
	query := `
		SELECT project_id, user_id, role, added_at
		FROM project_members
		WHERE project_id = ?
		ORDER BY added_at
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.ProjectMember
	for rows.Next() {
		var m store.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// ==== FileStore implementation ====

// CreateFile creates a new file in a project.
func (s *SQLiteStore) CreateFile(ctx context.Context, f *store.File) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	query := `
		INSERT INTO files (id, project_id, name, path, content, language, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query,
		f.ID, f.ProjectID, f.Name, f.Path, f.Content, f.Language, f.CreatedBy, f.CreatedAt, f.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFile retrieves a file by ID.
func (s *SQLiteStore) GetFile(ctx context.Context, id string) (*store.File, error) {
	query := `
		SELECT id, project_id, name, path, content, language, created_by, created_at, updated_at
		FROM files
		WHERE id = ?
	`
	var f store.File
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.Content, &f.Language, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file not found: %w", err)
		}
		return nil, fmt.Errorf("query file: %w", err)
	}

	return &f, nil
}

// ListFiles lists all files of a project.
func (s *SQLiteStore) ListFiles(ctx context.Context, projectID string) ([]*store.File, error) {
	query := `
		SELECT id, project_id, name, path, content, language, created_by, created_at, updated_at
		FROM files
		WHERE project_id = ?
		ORDER BY path, name
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*store.File
	for rows.Next() {
		var f store.File
		if err := rows.Scan(
			&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.Content, &f.Language, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, &f)
	}

	return files, rows.Err()
}

// UpdateFile updates name, content, or language of a file.
func (s *SQLiteStore) UpdateFile(ctx context.Context, f *store.File) error {
	f.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE files
		SET name = ?, path = ?, content = ?, language = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, f.Name, f.Path, f.Content, f.Language, f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("file not found: %s", f.ID)
	}
	return nil
}

// DeleteFile removes a file.
func (s *SQLiteStore) DeleteFile(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
