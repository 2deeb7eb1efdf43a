// Package application implements the registry use cases on top of the
// domain repositories, the git executor, and the artifact store.
package application

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/grove-sh/grove/internal/artifacts"
	"github.com/grove-sh/grove/internal/cachemanager"
	"github.com/grove-sh/grove/internal/git"
	"github.com/grove-sh/grove/internal/log"
	"github.com/grove-sh/grove/internal/paths"
	"github.com/grove-sh/grove/internal/pubsub"
	"github.com/grove-sh/grove/internal/registry/domain"
)

// UploadAction is the only multipart form action the upload endpoint accepts.
const UploadAction = "file_upload"

const (
	projectsCacheKey      = "projects"
	packagesCacheKeyStart = "packages:"
)

// UnsupportedActionError reports an upload whose :action field is not
// file_upload.
type UnsupportedActionError struct {
	Action string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("Provided `:action=%s` not supported.", e.Action)
}

// EventPayload is published on the service broker for project and package
// lifecycle events.
type EventPayload struct {
	Project string
	Package string
	Version string
}

// Metadata carries the optional core-metadata fields accepted alongside an
// upload.
type Metadata struct {
	Author         string
	AuthorEmail    string
	Classifiers    []string
	HomePage       string
	Keywords       []string
	License        string
	ProjectURLs    map[string]string
	RequiresDist   []string
	RequiresPython string
	SHA256Digest   string
	Summary        string
}

// UploadRequest is one distribution file upload.
type UploadRequest struct {
	Action   string
	Project  string
	Version  string
	Filename string
	Content  io.Reader
	Metadata Metadata
}

// ProjectPage aggregates everything the project detail view needs.
type ProjectPage struct {
	Project       domain.Project
	Packages      []domain.Package
	Commits       []git.CommitInfo
	HasRepository bool
}

// Config wires a Service to its collaborators.
type Config struct {
	Layout   paths.Layout
	Projects domain.ProjectRepository
	Packages domain.PackageRepository
	Git      git.Executor
	Store    *artifacts.Store
	Broker   *pubsub.Broker[EventPayload]

	// CacheTTL bounds how stale the index listings may be. Zero selects
	// the cachemanager default.
	CacheTTL  time.Duration
	SkipCache bool
}

// Service implements the registry operations.
type Service struct {
	layout   paths.Layout
	projects domain.ProjectRepository
	packages domain.PackageRepository
	git      git.Executor
	store    *artifacts.Store
	broker   *pubsub.Broker[EventPayload]

	cacheTTL     time.Duration
	projectCache *cachemanager.ReadThroughCache[string, []domain.Project, struct{}]
	packageCache *cachemanager.ReadThroughCache[string, []domain.Package, string]

	projectEntries cachemanager.CacheManager[string, []domain.Project]
	packageEntries cachemanager.CacheManager[string, []domain.Package]
}

// NewService constructs the registry service.
func NewService(cfg Config) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = cachemanager.DefaultExpiration
	}

	projectEntries := cachemanager.NewInMemoryCacheManager[string, []domain.Project](
		"project-index", ttl, cachemanager.DefaultCleanupInterval)
	packageEntries := cachemanager.NewInMemoryCacheManager[string, []domain.Package](
		"package-index", ttl, cachemanager.DefaultCleanupInterval)

	s := &Service{
		layout:         cfg.Layout,
		projects:       cfg.Projects,
		packages:       cfg.Packages,
		git:            cfg.Git,
		store:          cfg.Store,
		broker:         cfg.Broker,
		cacheTTL:       ttl,
		projectEntries: projectEntries,
		packageEntries: packageEntries,
	}

	s.projectCache = cachemanager.NewReadThroughCache[string, []domain.Project, struct{}](
		projectEntries,
		func(ctx context.Context, _ struct{}) ([]domain.Project, error) {
			return s.projects.List()
		},
		cfg.SkipCache,
	)
	s.packageCache = cachemanager.NewReadThroughCache[string, []domain.Package, string](
		packageEntries,
		func(ctx context.Context, project string) ([]domain.Package, error) {
			return s.packages.ListByProject(project)
		},
		cfg.SkipCache,
	)

	return s
}

// CreateProject registers a new project and initializes its git repository.
// The metadata row is the authority: the row is committed first and the
// repository is created after. Returns ProjectExistsError when the name is
// taken; in that case a missing repository is recreated so an earlier
// partial create heals on retry.
func (s *Service) CreateProject(ctx context.Context, name string) (*domain.Project, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}

	id, err := s.projects.Insert(name)
	if err != nil {
		if domain.IsProjectExists(err) {
			s.healRepository(name)
		}
		return nil, err
	}

	project := &domain.Project{ID: id, Name: name, CreatedAt: time.Now()}
	log.Info(log.CatRegistry, "project created", "name", name, "id", id)

	if repoErr := s.initRepository(name); repoErr != nil {
		// The row stands; the repository will be recreated on a retried
		// create for the same name.
		log.ErrorErr(log.CatRepo, "repository init failed", repoErr, "name", name)
	}

	s.invalidateProjects(ctx)
	s.publish(pubsub.ProjectCreatedEvent, EventPayload{Project: name})

	return project, nil
}

// Upload accepts one distribution file: the metadata row is committed
// first, then the file lands in the artifact store. The owning project is
// created on first upload. Re-uploading a filename adds a new row and
// replaces the stored file.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*domain.Package, error) {
	if req.Action != UploadAction {
		return nil, &UnsupportedActionError{Action: req.Action}
	}
	if err := domain.ValidateName(req.Project); err != nil {
		return nil, err
	}
	if err := domain.ValidateName(req.Filename); err != nil {
		return nil, err
	}

	projectID, created, err := s.ensureProject(req.Project)
	if err != nil {
		return nil, err
	}

	pkg := &domain.Package{
		GUID:           uuid.NewString(),
		ProjectID:      projectID,
		Filename:       req.Filename,
		Author:         req.Metadata.Author,
		AuthorEmail:    req.Metadata.AuthorEmail,
		Classifiers:    req.Metadata.Classifiers,
		HomePage:       req.Metadata.HomePage,
		Keywords:       req.Metadata.Keywords,
		License:        req.Metadata.License,
		ProjectURLs:    req.Metadata.ProjectURLs,
		RequiresDist:   req.Metadata.RequiresDist,
		RequiresPython: req.Metadata.RequiresPython,
		SHA256Digest:   req.Metadata.SHA256Digest,
		Summary:        req.Metadata.Summary,
		Version:        req.Version,
	}
	if err := s.packages.Insert(pkg); err != nil {
		return nil, err
	}

	result, err := s.store.Save(req.Filename, req.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to store artifact %s: %w", req.Filename, err)
	}
	if req.Metadata.SHA256Digest != "" && req.Metadata.SHA256Digest != result.SHA256 {
		log.Warn(log.CatStore, "sha256 digest mismatch",
			"filename", req.Filename,
			"declared", req.Metadata.SHA256Digest,
			"computed", result.SHA256)
	}

	log.Info(log.CatRegistry, "package uploaded",
		"project", req.Project, "filename", req.Filename, "version", req.Version, "bytes", result.Size)

	if created {
		s.invalidateProjects(ctx)
		s.publish(pubsub.ProjectCreatedEvent, EventPayload{Project: req.Project})
	}
	s.invalidatePackages(ctx, req.Project)
	s.publish(pubsub.PackageUploadedEvent, EventPayload{
		Project: req.Project,
		Package: req.Filename,
		Version: req.Version,
	})

	return pkg, nil
}

// ListProjects returns every project ordered by name.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.projectCache.Get(ctx, projectsCacheKey, struct{}{}, s.cacheTTL)
}

// ListPackages returns the packages belonging to the named project. An
// unknown project yields an empty slice, not an error.
func (s *Service) ListPackages(ctx context.Context, project string) ([]domain.Package, error) {
	return s.packageCache.Get(ctx, packagesCacheKeyStart+project, project, s.cacheTTL)
}

// GetProjectPage loads the project detail data. Unknown projects return
// ProjectNotFoundError. A missing or empty repository is not an error; the
// page simply has no commit history.
func (s *Service) GetProjectPage(ctx context.Context, name string) (*ProjectPage, error) {
	if err := domain.ValidateName(name); err != nil {
		return nil, err
	}

	project, err := s.projects.FindByName(name)
	if err != nil {
		return nil, err
	}

	pkgs, err := s.ListPackages(ctx, name)
	if err != nil {
		return nil, err
	}

	page := &ProjectPage{Project: *project, Packages: pkgs}

	repoPath := s.layout.RepositoryPath(name)
	if s.git.IsRepository(repoPath) {
		page.HasRepository = true
		commits, logErr := s.git.CommitLog(repoPath, 10)
		if logErr != nil {
			log.ErrorErr(log.CatRepo, "commit log failed", logErr, "name", name)
		} else {
			page.Commits = commits
		}
	}

	return page, nil
}

// OpenArtifact returns the stored file for filename. The error wraps
// fs.ErrNotExist when the artifact is missing.
func (s *Service) OpenArtifact(filename string) (*os.File, error) {
	return s.store.Open(filename)
}

// HandleStoreChange reacts to an out-of-band change in the artifact
// directory by dropping the cached listings.
func (s *Service) HandleStoreChange(ctx context.Context) {
	log.Info(log.CatWatcher, "artifact directory changed, flushing index caches")
	_ = s.projectEntries.Flush(ctx)
	_ = s.packageEntries.Flush(ctx)
	s.publish(pubsub.StoreChangedEvent, EventPayload{})
}

// ensureProject inserts the project row, falling back to a lookup when the
// name is already taken. The insert-first order makes concurrent first
// uploads deterministic: exactly one insert commits and every loser reads
// the winner's row.
func (s *Service) ensureProject(name string) (int64, bool, error) {
	id, err := s.projects.Insert(name)
	if err == nil {
		return id, true, nil
	}
	if !domain.IsProjectExists(err) {
		return 0, false, err
	}

	project, findErr := s.projects.FindByName(name)
	if findErr != nil {
		return 0, false, findErr
	}
	return project.ID, false, nil
}

func (s *Service) initRepository(name string) error {
	if err := os.MkdirAll(s.layout.ProjectsDir(), 0750); err != nil {
		return fmt.Errorf("failed to create projects directory: %w", err)
	}
	return s.git.InitRepository(s.layout.RepositoryPath(name))
}

// healRepository recreates a project's repository when the row exists but
// the repository went missing, so a conflicting create still converges the
// filesystem.
func (s *Service) healRepository(name string) {
	repoPath := s.layout.RepositoryPath(name)
	if s.git.IsRepository(repoPath) {
		return
	}
	log.Warn(log.CatRepo, "recreating missing repository", "name", name)
	if err := s.initRepository(name); err != nil {
		log.ErrorErr(log.CatRepo, "repository heal failed", err, "name", name)
	}
}

func (s *Service) invalidateProjects(ctx context.Context) {
	_ = s.projectEntries.Delete(ctx, projectsCacheKey)
}

func (s *Service) invalidatePackages(ctx context.Context, project string) {
	_ = s.packageEntries.Delete(ctx, packagesCacheKeyStart+project)
}

func (s *Service) publish(eventType pubsub.EventType, payload EventPayload) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(eventType, payload)
}
