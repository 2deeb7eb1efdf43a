package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"

	"github.com/grove-sh/grove/internal/registry/domain"
)

// projectRepository implements domain.ProjectRepository using SQLite.
type projectRepository struct {
	db *sql.DB
}

func newProjectRepository(db *sql.DB) *projectRepository {
	return &projectRepository{db: db}
}

// Ensure projectRepository implements domain.ProjectRepository.
var _ domain.ProjectRepository = (*projectRepository)(nil)

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// This is the conflict signal the get-or-create flow branches on.
func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode() == sqlite3.CONSTRAINT_UNIQUE
	}
	return false
}

// Insert creates a project row. A UNIQUE violation on name is converted to
// ProjectExistsError so callers can fall back to a lookup instead of
// treating the race as a failure.
func (r *projectRepository) Insert(name string) (int64, error) {
	result, err := r.db.Exec(
		`INSERT INTO projects (name, created_at) VALUES (?, ?)`,
		name, time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, &domain.ProjectExistsError{Name: name}
		}
		return 0, fmt.Errorf("failed to insert project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// FindByName retrieves a project by its unique name.
func (r *projectRepository) FindByName(name string) (*domain.Project, error) {
	row := r.db.QueryRow(
		`SELECT id, name, created_at FROM projects WHERE name = ?`,
		name,
	)
	var model ProjectModel
	err := row.Scan(&model.ID, &model.Name, &model.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ProjectNotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project by name: %w", err)
	}
	return model.toDomain(), nil
}

// List returns all projects ordered lexicographically by name.
func (r *projectRepository) List() ([]domain.Project, error) {
	rows, err := r.db.Query(`SELECT id, name, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []domain.Project
	for rows.Next() {
		var model ProjectModel
		if err := rows.Scan(&model.ID, &model.Name, &model.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, *model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}
