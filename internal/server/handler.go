// Package server exposes the registry over HTTP: the web pages, the
// package index endpoints, and the upload API.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/grove-sh/grove/internal/log"
	"github.com/grove-sh/grove/internal/pubsub"
	"github.com/grove-sh/grove/internal/registry/application"
	"github.com/grove-sh/grove/internal/registry/domain"
)

// DefaultUpstreamIndex is where unknown projects are redirected so a pip
// pointed at this server still resolves the rest of the world.
const DefaultUpstreamIndex = "https://pypi.org/simple"

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger files spill to disk.
const maxUploadMemory = 32 << 20

// Handler serves the registry HTTP surface.
type Handler struct {
	service  *application.Service
	broker   *pubsub.Broker[application.EventPayload]
	upstream string
	version  string
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Service *application.Service
	Broker  *pubsub.Broker[application.EventPayload]
	// UpstreamIndex is the index URL unknown projects redirect to.
	UpstreamIndex string
	Version       string
}

// NewHandler creates an HTTP handler for the registry.
func NewHandler(cfg HandlerConfig) *Handler {
	upstream := strings.TrimSuffix(cfg.UpstreamIndex, "/")
	if upstream == "" {
		upstream = DefaultUpstreamIndex
	}
	return &Handler{
		service:  cfg.Service,
		broker:   cfg.Broker,
		upstream: upstream,
		version:  cfg.Version,
	}
}

// Routes returns the HTTP routes for the registry.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Web pages
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /{$}", h.CreateProject)
	mux.HandleFunc("GET /{project}", h.ProjectPage)
	mux.HandleFunc("GET /{project}/packages/{package}", h.Download)

	// Package index
	mux.HandleFunc("GET /_pypi", h.SimpleIndex)
	mux.HandleFunc("GET /_pypi/{$}", h.SimpleIndex)
	mux.HandleFunc("POST /_pypi", h.Upload)
	mux.HandleFunc("POST /_pypi/{$}", h.Upload)
	mux.HandleFunc("GET /_pypi/{project}", h.SimpleProject)
	mux.HandleFunc("GET /_pypi/{project}/{$}", h.SimpleProject)

	// Event streaming
	mux.HandleFunc("GET /events", h.StreamEvents)

	// Health check
	mux.HandleFunc("GET /health", h.Health)

	return mux
}

// === Web pages ===

// Index renders the project listing page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.serverError(w, "failed to list projects", err)
		return
	}

	h.renderHTML(w, http.StatusOK, "index.html.tmpl", map[string]any{
		"Projects": projects,
	})
}

// CreateProject handles the project creation form.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.plainError(w, http.StatusBadRequest, "malformed form data")
		return
	}

	name := r.PostFormValue("name")
	if name == "" {
		h.plainError(w, http.StatusBadRequest, "missing project name")
		return
	}

	project, err := h.service.CreateProject(r.Context(), name)
	switch {
	case domain.IsInvalidName(err):
		h.plainError(w, http.StatusBadRequest, err.Error())
		return
	case domain.IsProjectExists(err):
		h.plainError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.serverError(w, "failed to create project", err)
		return
	}

	w.Header().Set("Location", "/"+project.Name)
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "Project `%s` has been created.\n", project.Name)
}

// ProjectPage renders the detail page for one project.
func (h *Handler) ProjectPage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("project")

	page, err := h.service.GetProjectPage(r.Context(), name)
	switch {
	case domain.IsInvalidName(err), domain.IsProjectNotFound(err):
		http.NotFound(w, r)
		return
	case err != nil:
		h.serverError(w, "failed to load project page", err)
		return
	}

	h.renderHTML(w, http.StatusOK, "project.html.tmpl", page)
}

// Download serves a stored distribution file.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("package")

	file, err := h.service.OpenArtifact(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, "failed to open artifact", err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		h.serverError(w, "failed to stat artifact", err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

// === Package index ===

// SimpleIndex renders the PEP 503 root index listing every project.
func (h *Handler) SimpleIndex(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.serverError(w, "failed to list projects", err)
		return
	}

	h.renderHTML(w, http.StatusOK, "simple_index.html.tmpl", map[string]any{
		"Projects": projects,
	})
}

// SimpleProject renders the PEP 503 file list for one project. Projects
// with no local packages redirect to the upstream index so installs fall
// through to the wider ecosystem.
func (h *Handler) SimpleProject(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	if err := domain.ValidateName(project); err != nil {
		h.plainError(w, http.StatusBadRequest, err.Error())
		return
	}

	packages, err := h.service.ListPackages(r.Context(), project)
	if err != nil {
		h.serverError(w, "failed to list packages", err)
		return
	}

	if len(packages) == 0 {
		upstream := h.upstream + "/" + project + "/"
		log.Info(log.CatHTTP, "redirecting unknown project upstream", "project", project, "url", upstream)
		http.Redirect(w, r, upstream, http.StatusSeeOther)
		return
	}

	h.renderHTML(w, http.StatusOK, "simple_project.html.tmpl", map[string]any{
		"Project":  project,
		"Packages": packages,
	})
}

// Upload accepts a distribution file upload in the PyPI legacy API shape.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.plainError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("content")
	if err != nil {
		h.plainError(w, http.StatusBadRequest, "missing `content` file field")
		return
	}
	defer file.Close()

	req := application.UploadRequest{
		Action:   r.FormValue(":action"),
		Project:  r.FormValue("name"),
		Version:  r.FormValue("version"),
		Filename: header.Filename,
		Content:  file,
		Metadata: metadataFromForm(r),
	}

	pkg, err := h.service.Upload(r.Context(), req)
	switch {
	case err == nil:
	case isBadUpload(err):
		h.plainError(w, http.StatusBadRequest, err.Error())
		return
	default:
		h.serverError(w, "failed to process upload", err)
		return
	}

	w.Header().Set("Location", "/"+req.Project+"/packages/"+pkg.Filename)
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "Package `%s` has been uploaded.\n", pkg.Filename)
}

// metadataFromForm collects the optional core-metadata fields from the
// multipart form. Multi-valued fields arrive as repeated form entries.
func metadataFromForm(r *http.Request) application.Metadata {
	values := r.MultipartForm.Value

	return application.Metadata{
		Author:         r.FormValue("author"),
		AuthorEmail:    r.FormValue("author_email"),
		Classifiers:    values["classifiers"],
		HomePage:       r.FormValue("home_page"),
		Keywords:       splitKeywords(r.FormValue("keywords")),
		License:        r.FormValue("license"),
		ProjectURLs:    parseProjectURLs(values["project_urls"]),
		RequiresDist:   values["requires_dist"],
		RequiresPython: r.FormValue("requires_python"),
		SHA256Digest:   r.FormValue("sha256_digest"),
		Summary:        r.FormValue("summary"),
	}
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

// parseProjectURLs parses "Label, https://url" entries into a label map.
func parseProjectURLs(entries []string) map[string]string {
	if len(entries) == 0 {
		return nil
	}
	urls := make(map[string]string, len(entries))
	for _, entry := range entries {
		label, url, found := strings.Cut(entry, ",")
		if !found {
			continue
		}
		urls[strings.TrimSpace(label)] = strings.TrimSpace(url)
	}
	return urls
}

func isBadUpload(err error) bool {
	var actionErr *application.UnsupportedActionError
	return errors.As(err, &actionErr) || domain.IsInvalidName(err)
}

// === Event streaming ===

// StreamEvents streams registry events over SSE.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.plainError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events := h.broker.Subscribe(r.Context())

	// Send initial connection event
	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	// Heartbeat ticker to keep connection alive
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Comment line, keeps the connection alive without a real event
			_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}

			data, err := json.Marshal(map[string]any{
				"project":   event.Payload.Project,
				"package":   event.Payload.Package,
				"version":   event.Payload.Version,
				"timestamp": event.Timestamp.Format(time.RFC3339),
			})
			if err != nil {
				log.Error(log.CatHTTP, "failed to marshal event", "error", err)
				continue
			}

			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// === Health ===

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Projects int    `json:"projects"`
}

// Health reports server and store health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Version: h.version})
		return
	}

	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  h.version,
		Projects: len(projects),
	})
}

// === Helpers ===

// renderHTML executes the named template into a buffer first so a render
// failure can still produce a clean 500.
func (h *Handler) renderHTML(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		h.serverError(w, "failed to render template", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatHTTP, "failed to encode JSON response", "error", err)
	}
}

func (h *Handler) plainError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}

func (h *Handler) serverError(w http.ResponseWriter, message string, err error) {
	log.ErrorErr(log.CatHTTP, message, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
