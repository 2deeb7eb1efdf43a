package server

import (
	"bufio"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grove-sh/grove/internal/artifacts"
	"github.com/grove-sh/grove/internal/git"
	"github.com/grove-sh/grove/internal/infrastructure/sqlite"
	"github.com/grove-sh/grove/internal/paths"
	"github.com/grove-sh/grove/internal/pubsub"
	"github.com/grove-sh/grove/internal/registry/application"
)

// stubExecutor avoids a git dependency in handler tests.
type stubExecutor struct {
	repos map[string]bool
}

func (s *stubExecutor) InitRepository(path string) error {
	s.repos[path] = true
	return nil
}

func (s *stubExecutor) IsRepository(path string) bool { return s.repos[path] }

func (s *stubExecutor) CommitLog(path string, limit int) ([]git.CommitInfo, error) {
	return nil, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	layout := paths.Resolve(t.TempDir())
	db, err := sqlite.NewDB(layout.DatabasePath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	broker := pubsub.NewBroker[application.EventPayload]()
	t.Cleanup(broker.Close)

	service := application.NewService(application.Config{
		Layout:   layout,
		Projects: db.Projects(),
		Packages: db.Packages(),
		Git:      &stubExecutor{repos: make(map[string]bool)},
		Store:    artifacts.NewStore(layout.PackagesDir()),
		Broker:   broker,
		CacheTTL: time.Minute,
	})

	handler := NewHandler(HandlerConfig{
		Service:       service,
		Broker:        broker,
		UpstreamIndex: "https://pypi.example.com/simple",
		Version:       "test",
	})

	ts := httptest.NewServer(handler.Routes())
	t.Cleanup(ts.Close)
	return ts
}

// noRedirectClient returns redirect responses instead of following them.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func createProject(t *testing.T, ts *httptest.Server, name string) *http.Response {
	t.Helper()
	resp, err := http.PostForm(ts.URL+"/", url.Values{"name": {name}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

type uploadOpts struct {
	action   string
	name     string
	version  string
	filename string
	content  string
	fields   map[string][]string
}

func upload(t *testing.T, ts *httptest.Server, opts uploadOpts) *http.Response {
	t.Helper()

	var body strings.Builder
	mp := multipart.NewWriter(&body)
	require.NoError(t, mp.WriteField(":action", opts.action))
	require.NoError(t, mp.WriteField("name", opts.name))
	if opts.version != "" {
		require.NoError(t, mp.WriteField("version", opts.version))
	}
	for field, values := range opts.fields {
		for _, value := range values {
			require.NoError(t, mp.WriteField(field, value))
		}
	}
	if opts.filename != "" {
		part, err := mp.CreateFormFile("content", opts.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(opts.content))
		require.NoError(t, err)
	}
	require.NoError(t, mp.Close())

	resp, err := http.Post(ts.URL+"/_pypi", mp.FormDataContentType(), strings.NewReader(body.String()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestHandler_Index(t *testing.T) {
	ts := newTestServer(t)

	createProject(t, ts, "widget")

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, readBody(t, resp), `<a href="/widget">widget</a>`)
}

func TestHandler_CreateProject(t *testing.T) {
	ts := newTestServer(t)

	resp := createProject(t, ts, "widget")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "/widget", resp.Header.Get("Location"))
	require.Contains(t, readBody(t, resp), "Project `widget` has been created.")
}

func TestHandler_CreateProject_Duplicate(t *testing.T) {
	ts := newTestServer(t)

	createProject(t, ts, "widget")
	resp := createProject(t, ts, "widget")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandler_CreateProject_InvalidName(t *testing.T) {
	ts := newTestServer(t)

	resp := createProject(t, ts, "not a name")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_CreateProject_MissingName(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.PostForm(ts.URL+"/", url.Values{})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ProjectPage(t *testing.T) {
	ts := newTestServer(t)

	createProject(t, ts, "widget")
	upload(t, ts, uploadOpts{
		action: "file_upload", name: "widget", version: "1.0",
		filename: "widget-1.0.tar.gz", content: "bytes",
	})

	resp, err := http.Get(ts.URL + "/widget")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	require.Contains(t, body, "widget-1.0.tar.gz")
}

func TestHandler_ProjectPage_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_Upload(t *testing.T) {
	ts := newTestServer(t)

	resp := upload(t, ts, uploadOpts{
		action: "file_upload", name: "widget", version: "1.0",
		filename: "widget-1.0.tar.gz", content: "bytes",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "/widget/packages/widget-1.0.tar.gz", resp.Header.Get("Location"))
	require.Contains(t, readBody(t, resp), "Package `widget-1.0.tar.gz` has been uploaded.")
}

func TestHandler_Upload_UnknownAction(t *testing.T) {
	ts := newTestServer(t)

	resp := upload(t, ts, uploadOpts{
		action: "submit", name: "widget", version: "1.0",
		filename: "widget-1.0.tar.gz", content: "bytes",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Provided `:action=submit` not supported.")
}

func TestHandler_Upload_MissingContent(t *testing.T) {
	ts := newTestServer(t)

	resp := upload(t, ts, uploadOpts{action: "file_upload", name: "widget", version: "1.0"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "missing `content` file field")
}

func TestHandler_Upload_InvalidProjectName(t *testing.T) {
	ts := newTestServer(t)

	resp := upload(t, ts, uploadOpts{
		action: "file_upload", name: "bad name", version: "1.0",
		filename: "widget-1.0.tar.gz", content: "bytes",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_SimpleIndex(t *testing.T) {
	ts := newTestServer(t)

	createProject(t, ts, "widget")
	createProject(t, ts, "anvil")

	for _, path := range []string{"/_pypi", "/_pypi/"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		body := readBody(t, resp)
		resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		// Listing is ordered by name
		require.Less(t,
			strings.Index(body, `<a href="/_pypi/anvil/">anvil</a>`),
			strings.Index(body, `<a href="/_pypi/widget/">widget</a>`))
	}
}

func TestHandler_SimpleProject(t *testing.T) {
	ts := newTestServer(t)

	upload(t, ts, uploadOpts{
		action: "file_upload", name: "widget", version: "1.0",
		filename: "widget-1.0.tar.gz", content: "bytes",
		fields: map[string][]string{"sha256_digest": {"abc123"}},
	})

	resp, err := http.Get(ts.URL + "/_pypi/widget/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	require.Contains(t, body, `href="/widget/packages/widget-1.0.tar.gz#sha256=abc123"`)
}

func TestHandler_SimpleProject_RedirectsUnknownUpstream(t *testing.T) {
	ts := newTestServer(t)

	resp, err := noRedirectClient().Get(ts.URL + "/_pypi/requests/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "https://pypi.example.com/simple/requests/", resp.Header.Get("Location"))
}

func TestHandler_SimpleProject_RedirectsEmptyProject(t *testing.T) {
	ts := newTestServer(t)

	// A project created without uploads has no files to offer
	createProject(t, ts, "widget")

	resp, err := noRedirectClient().Get(ts.URL + "/_pypi/widget/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "https://pypi.example.com/simple/widget/", resp.Header.Get("Location"))
}

func TestHandler_Download(t *testing.T) {
	ts := newTestServer(t)

	upload(t, ts, uploadOpts{
		action: "file_upload", name: "widget", version: "1.0",
		filename: "widget-1.0.tar.gz", content: "tarball bytes",
	})

	resp, err := http.Get(ts.URL + "/widget/packages/widget-1.0.tar.gz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "tarball bytes", readBody(t, resp))
}

func TestHandler_Download_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/widget/packages/missing.tar.gz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_Health(t *testing.T) {
	ts := newTestServer(t)

	createProject(t, ts, "widget")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	body := readBody(t, resp)
	require.Contains(t, body, `"status":"ok"`)
	require.Contains(t, body, `"projects":1`)
}

func TestHandler_StreamEvents(t *testing.T) {
	ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "event: connected\n", line)

	upload(t, ts, uploadOpts{
		action: "file_upload", name: "widget", version: "1.0",
		filename: "widget-1.0.tar.gz", content: "bytes",
	})

	var sawUpload bool
	for !sawUpload {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: package_uploaded") {
			sawUpload = true
		}
	}
}

// Exercises the whole publish-then-install flow end to end.
func TestHandler_PublishAndInstallFlow(t *testing.T) {
	ts := newTestServer(t)

	// Publish two releases
	for _, version := range []string{"1.0", "1.1"} {
		resp := upload(t, ts, uploadOpts{
			action: "file_upload", name: "widget", version: version,
			filename: "widget-" + version + ".tar.gz", content: "release " + version,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Discover via the simple index
	resp, err := http.Get(ts.URL + "/_pypi/widget/")
	require.NoError(t, err)
	body := readBody(t, resp)
	resp.Body.Close()
	require.Contains(t, body, "widget-1.0.tar.gz")
	require.Contains(t, body, "widget-1.1.tar.gz")

	// Fetch the chosen file
	resp, err = http.Get(ts.URL + "/widget/packages/widget-1.1.tar.gz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "release 1.1", readBody(t, resp))
}
