package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/grove-sh/grove/internal/registry/domain"
)

// packageColumns is the list of columns to select for package queries.
const packageColumns = `packages.id, packages.guid, packages.project_id, packages.filename,
	packages.author, packages.author_email, packages.classifiers, packages.home_page,
	packages.keywords, packages.license, packages.project_urls, packages.requires_dist,
	packages.requires_python, packages.sha256_digest, packages.summary, packages.version,
	packages.uploaded_at`

// packageRepository implements domain.PackageRepository using SQLite.
type packageRepository struct {
	db *sql.DB
}

func newPackageRepository(db *sql.DB) *packageRepository {
	return &packageRepository{db: db}
}

// Ensure packageRepository implements domain.PackageRepository.
var _ domain.PackageRepository = (*packageRepository)(nil)

func scanPackage(scanner interface{ Scan(...any) error }) (*PackageModel, error) {
	var model PackageModel
	err := scanner.Scan(
		&model.ID, &model.GUID, &model.ProjectID, &model.Filename,
		&model.Author, &model.AuthorEmail, &model.Classifiers, &model.HomePage,
		&model.Keywords, &model.License, &model.ProjectURLs, &model.RequiresDist,
		&model.RequiresPython, &model.SHA256Digest, &model.Summary, &model.Version,
		&model.UploadedAt,
	)
	return &model, err
}

// Insert creates a package row and sets pkg.ID. Rows are never updated;
// every upload is a new row even for a repeated filename/version.
func (r *packageRepository) Insert(pkg *domain.Package) error {
	if pkg.UploadedAt.IsZero() {
		pkg.UploadedAt = time.Now()
	}
	model := toPackageModel(pkg)

	result, err := r.db.Exec(
		`INSERT INTO packages (
			guid, project_id, filename, author, author_email, classifiers,
			home_page, keywords, license, project_urls, requires_dist,
			requires_python, sha256_digest, summary, version, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.GUID, model.ProjectID, model.Filename, model.Author,
		model.AuthorEmail, model.Classifiers, model.HomePage, model.Keywords,
		model.License, model.ProjectURLs, model.RequiresDist,
		model.RequiresPython, model.SHA256Digest, model.Summary, model.Version,
		model.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert package: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	pkg.ID = id
	return nil
}

// ListByProject returns all packages joined to the named project.
// An unknown project yields an empty result, not an error.
func (r *packageRepository) ListByProject(project string) ([]domain.Package, error) {
	rows, err := r.db.Query(
		`SELECT `+packageColumns+` FROM packages
		 JOIN projects ON packages.project_id = projects.id
		 WHERE projects.name = ?`,
		project,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var packages []domain.Package
	for rows.Next() {
		model, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		packages = append(packages, *model.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating package rows: %w", err)
	}
	return packages, nil
}
