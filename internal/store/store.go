package store

import (
	"context"
	"time"
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// Role defines what a member may do inside a project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Project represents a collaborative workspace.
type Project struct {
	ID          string // UUID
	Name        string
	Description string
	Language    string
	IsPublic    bool
	OwnerID     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectMember represents project membership with a role.
type ProjectMember struct {
	ProjectID string
	UserID    int64
	Role      Role
	AddedAt   time.Time
}

// File represents a source file belonging to a project.
type File struct {
	ID        string // UUID
	ProjectID string
	Name      string
	Path      string
	Content   string
	Language  string
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, displayName, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserBySessionID retrieves a guest user by session ID.
	GetUserBySessionID(ctx context.Context, sessionID string) (*User, error)
}

// ProjectStore handles project persistence and membership.
type ProjectStore interface {
	// CreateProject creates a new project and records the owner as a member.
	CreateProject(ctx context.Context, p *Project) error

	// GetProject retrieves a project by ID.
	GetProject(ctx context.Context, id string) (*Project, error)

	// ListProjects lists projects the user owns or is a member of.
	ListProjects(ctx context.Context, userID int64) ([]*Project, error)

	// UpdateProject updates mutable project fields.
	UpdateProject(ctx context.Context, p *Project) error

	// DeleteProject removes a project along with its members and files.
	DeleteProject(ctx context.Context, id string) error

	// AddMember adds a user to a project with the given role.
	AddMember(ctx context.Context, projectID string, userID int64, role Role) error

	// RemoveMember removes a user from a project.
	RemoveMember(ctx context.Context, projectID string, userID int64) error

	// MemberRole returns the user's role in the project, if any.
	MemberRole(ctx context.Context, projectID string, userID int64) (Role, bool, error)

	// ListMembers lists all members of a project.
	ListMembers(ctx context.Context, projectID string) ([]*ProjectMember, error)
}

// FileStore handles file persistence.
type FileStore interface {
	// CreateFile creates a new file in a project.
	CreateFile(ctx context.Context, f *File) error

	// GetFile retrieves a file by ID.
	GetFile(ctx context.Context, id string) (*File, error)

	// ListFiles lists all files of a project.
	ListFiles(ctx context.Context, projectID string) ([]*File, error)

	// UpdateFile updates name, content, or language of a file.
	UpdateFile(ctx context.Context, f *File) error

	// DeleteFile removes a file.
	DeleteFile(ctx context.Context, id string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ProjectStore
	FileStore

	// Close closes the underlying database connection.
	Close() error
}
