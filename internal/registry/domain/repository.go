package domain

// ProjectRepository defines the persistence interface for Project rows.
// The metadata store's uniqueness constraint on name is the registry's
// only concurrency-control primitive: Insert either commits a new row or
// reports ProjectExistsError, never both.
type ProjectRepository interface {
	// Insert creates a project row and returns its id.
	// Returns ProjectExistsError when the name is already taken.
	Insert(name string) (int64, error)

	// FindByName retrieves a project by its natural key.
	// Returns ProjectNotFoundError if no row matches.
	FindByName(name string) (*Project, error)

	// List returns all projects ordered by name.
	List() ([]Project, error)
}

// PackageRepository defines the persistence interface for Package rows.
type PackageRepository interface {
	// Insert creates a package row and sets pkg.ID.
	// The owning project must already exist; no uniqueness is enforced on
	// (project, filename, version).
	Insert(pkg *Package) error

	// ListByProject returns all packages joined to the named project, in
	// store-default order. An unknown project yields an empty slice.
	ListByProject(project string) ([]Package, error)
}
