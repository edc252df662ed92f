package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/postdesk/config"
	"github.com/cppla/postdesk/models"
	"github.com/cppla/postdesk/storage"
	"github.com/cppla/postdesk/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listData struct {
	Items      []models.Post `json:"items"`
	Pagination struct {
		Page       int  `json:"page"`
		PageSize   int  `json:"page_size"`
		Total      int  `json:"total"`
		TotalPages int  `json:"total_pages"`
		HasNext    bool `json:"has_next"`
		HasPrev    bool `json:"has_prev"`
	} `json:"pagination"`
}

// switchBackend fails writes on demand.
type switchBackend struct {
	*storage.MemoryBackend
	mu   sync.Mutex
	fail bool
}

func (b *switchBackend) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	fail := b.fail
	b.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

func (b *switchBackend) setFail(v bool) {
	b.mu.Lock()
	b.fail = v
	b.mu.Unlock()
}

func testConfig() config.AppConfig {
	return config.AppConfig{
		GinMode:            "test",
		RateLimitPerMinute: 10000,
		AllowedOrigins:     []string{"*"},
		DefaultAuthor:      "Admin User",
		RetentionDays:      7,
		SearchDebounceMs:   500,
		TokenTTLHours:      1,
		AdminUsername:      "admin",
	}
}

func newServer(t *testing.T, cfg config.AppConfig) (*gin.Engine, *store.Store, *switchBackend) {
	t.Helper()
	config.Set(cfg)
	backend := &switchBackend{MemoryBackend: storage.NewMemoryBackend()}
	s := store.New(storage.NewAdapter(backend, storage.DefaultNamespace))
	_, err := s.Load(context.Background())
	require.NoError(t, err)
	return SetupRouter(cfg, s), s, backend
}

func call(t *testing.T, r http.Handler, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func validPost(title string) map[string]any {
	return map[string]any{
		"title":       title,
		"description": "desc",
		"content":     "body",
		"category":    "Technology",
	}
}

func TestHealth(t *testing.T) {
	r, _, _ := newServer(t, testConfig())
	w, env := call(t, r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
}

func TestListPostsFiltersAndPaginates(t *testing.T) {
	r, _, _ := newServer(t, testConfig())

	w, env := call(t, r, http.MethodGet, "/api/v1/posts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listData](t, env.Data)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Business Trends 2025", list.Items[0].Title, "newest first by default")

	_, env = call(t, r, http.MethodGet, "/api/v1/posts?status=published", nil, "")
	list = decode[listData](t, env.Data)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "1", list.Items[0].ID)

	_, env = call(t, r, http.MethodGet, "/api/v1/posts?search=admin&sort=title-asc", nil, "")
	list = decode[listData](t, env.Data)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Business Trends 2025", list.Items[0].Title)

	_, env = call(t, r, http.MethodGet, "/api/v1/posts?page=9&page_size=1", nil, "")
	list = decode[listData](t, env.Data)
	assert.Equal(t, 2, list.Pagination.Page)
	assert.Equal(t, 2, list.Pagination.TotalPages)
	assert.True(t, list.Pagination.HasPrev)
	assert.False(t, list.Pagination.HasNext)
	require.Len(t, list.Items, 1)

	w, _ = call(t, r, http.MethodGet, "/api/v1/posts?page_size=0", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = call(t, r, http.MethodGet, "/api/v1/posts?status=archived", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListUsesStoredPagination(t *testing.T) {
	r, _, _ := newServer(t, testConfig())

	w, _ := call(t, r, http.MethodPut, "/api/v1/preferences/pagination", map[string]int{"page": 2, "size": 1}, "")
	require.Equal(t, http.StatusOK, w.Code)

	_, env := call(t, r, http.MethodGet, "/api/v1/preferences/pagination", nil, "")
	assert.Equal(t, models.PaginationPrefs{Page: 2, Size: 1}, decode[models.PaginationPrefs](t, env.Data))

	_, env = call(t, r, http.MethodGet, "/api/v1/posts", nil, "")
	list := decode[listData](t, env.Data)
	assert.Equal(t, 2, list.Pagination.Page)
	assert.Equal(t, 1, list.Pagination.PageSize)

	w, _ = call(t, r, http.MethodPut, "/api/v1/preferences/pagination", map[string]int{"page": 1, "size": 0}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateValidationErrors(t *testing.T) {
	r, s, _ := newServer(t, testConfig())

	body := validPost("")
	w, env := call(t, r, http.MethodPost, "/api/v1/posts", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40021, env.Code)
	data := decode[struct {
		Errors map[string]string `json:"errors"`
	}](t, env.Data)
	assert.Equal(t, map[string]string{"title": "Title is required"}, data.Errors)
	assert.Len(t, s.All(), 2, "invalid post is never committed")

	body = validPost("With bad image")
	body["image"] = "data:image/gif;base64,R0lGODlh"
	w, env = call(t, r, http.MethodPost, "/api/v1/posts", body, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40031, env.Code)
}

func TestCreateUpdateDeleteRestore(t *testing.T) {
	r, s, _ := newServer(t, testConfig())

	w, env := call(t, r, http.MethodPost, "/api/v1/posts", validPost("Fresh"), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Post models.Post `json:"post"`
	}](t, env.Data).Post
	assert.Equal(t, "Admin User", created.Author)
	assert.Equal(t, models.StatusDraft, created.Status)
	assert.NotEmpty(t, created.ID)

	path := "/api/v1/posts/" + created.ID
	w, env = call(t, r, http.MethodPatch, path, map[string]any{"title": "Renamed", "status": "published"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[struct {
		Post models.Post `json:"post"`
	}](t, env.Data).Post
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "desc", updated.Description)
	assert.Equal(t, models.StatusPublished, updated.Status)

	w, env = call(t, r, http.MethodPut, path, map[string]any{"title": "   "}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 40021, env.Code)

	w, _ = call(t, r, http.MethodDelete, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = call(t, r, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = call(t, r, http.MethodDelete, path, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, env = call(t, r, http.MethodGet, "/api/v1/stats", nil, "")
	stats := decode[map[string]any](t, env.Data)
	assert.EqualValues(t, 3, stats["total"])
	assert.EqualValues(t, 1, stats["published"])
	assert.EqualValues(t, 1, stats["draft"])

	w, _ = call(t, r, http.MethodPost, path+"/restore", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	w, _ = call(t, r, http.MethodPatch, "/api/v1/posts/unknown", map[string]any{"title": "x"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostTextIsStoredAsSent(t *testing.T) {
	r, _, _ := newServer(t, testConfig())

	content := "# Notes\n\n> quoted\n\nif a < b && c > d { say(\"hi\") }\n<script>alert(1)</script>"
	body := validPost("  Generics: List<T> in Go  ")
	body["content"] = content
	body["description"] = "Why x<y matters & more"
	w, env := call(t, r, http.MethodPost, "/api/v1/posts", body, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[struct {
		Post models.Post `json:"post"`
	}](t, env.Data).Post.ID

	_, env = call(t, r, http.MethodGet, "/api/v1/posts/"+id, nil, "")
	got := decode[struct {
		Post        models.Post `json:"post"`
		ContentHTML string      `json:"content_html"`
	}](t, env.Data)
	assert.Equal(t, content, got.Post.Content)
	assert.Equal(t, "Generics: List<T> in Go", got.Post.Title)
	assert.Equal(t, "Why x<y matters & more", got.Post.Description)
	assert.NotContains(t, got.ContentHTML, "<script>")
	assert.Contains(t, got.ContentHTML, "&gt; quoted")

	_, env = call(t, r, http.MethodGet, "/api/v1/posts?search=list%3Ct%3E", nil, "")
	list := decode[listData](t, env.Data)
	require.Len(t, list.Items, 1)
	assert.Equal(t, id, list.Items[0].ID)
}

func TestDefaultAuthorFollowsConfigReload(t *testing.T) {
	r, _, _ := newServer(t, testConfig())

	reloaded := testConfig()
	reloaded.DefaultAuthor = "Editor"
	config.Set(reloaded)

	w, env := call(t, r, http.MethodPost, "/api/v1/posts", validPost("Reloaded"), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Editor", decode[struct {
		Post models.Post `json:"post"`
	}](t, env.Data).Post.Author)
}

func TestClearImageWithNull(t *testing.T) {
	r, s, _ := newServer(t, testConfig())
	w, _ := call(t, r, http.MethodPatch, "/api/v1/posts/1", map[string]any{"image": nil}, "")
	require.Equal(t, http.StatusOK, w.Code)
	got, err := s.Get("1")
	require.NoError(t, err)
	assert.Nil(t, got.Image)
}

func TestSaveFailureReportsUnsaved(t *testing.T) {
	r, s, backend := newServer(t, testConfig())
	backend.setFail(true)

	w, env := call(t, r, http.MethodPost, "/api/v1/posts", validPost("Offline"), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 50020, env.Code)
	data := decode[map[string]any](t, env.Data)
	assert.Equal(t, true, data["unsaved"])
	assert.True(t, s.Dirty())
	assert.Len(t, s.All(), 3)

	_, env = call(t, r, http.MethodGet, "/api/v1/stats", nil, "")
	assert.Equal(t, true, decode[map[string]any](t, env.Data)["unsaved"])
}

func TestRecentAndCategories(t *testing.T) {
	r, _, _ := newServer(t, testConfig())

	_, env := call(t, r, http.MethodGet, "/api/v1/posts/recent", nil, "")
	recent := decode[struct {
		Items []models.Post `json:"items"`
	}](t, env.Data)
	require.Len(t, recent.Items, 2)
	assert.Equal(t, "2", recent.Items[0].ID)

	_, env = call(t, r, http.MethodGet, "/api/v1/categories", nil, "")
	cats := decode[struct {
		Categories []string `json:"categories"`
		Suggested  []string `json:"suggested"`
	}](t, env.Data)
	assert.Equal(t, []string{"Technology", "Business"}, cats.Categories)
	assert.Equal(t, models.SuggestedCategories, cats.Suggested)
}

func TestSettings(t *testing.T) {
	r, _, _ := newServer(t, testConfig())
	_, env := call(t, r, http.MethodGet, "/api/v1/settings", nil, "")
	settings := decode[map[string]any](t, env.Data)
	assert.EqualValues(t, 500, settings["search_debounce_ms"])
	assert.Equal(t, false, settings["auth_enabled"])
}

func uploadRequest(t *testing.T, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="cover"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadImage(t *testing.T) {
	r, _, _ := newServer(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "image/png", []byte{0x89, 'P', 'N', 'G'}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	data := decode[map[string]any](t, env.Data)
	assert.Equal(t, "data:image/png;base64,iVBORw==", data["image"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "image/gif", []byte("GIF89a")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "40031")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "image/jpeg", make([]byte, 1024*1024+1)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "40031")
}

func TestAuthFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.JWTSecret = "router-test-secret"
	cfg.AdminPasswordHash = string(hash)
	r, _, _ := newServer(t, cfg)

	w, _ := call(t, r, http.MethodPost, "/api/v1/posts", validPost("Nope"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = call(t, r, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := call(t, r, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "correct horse"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[struct {
		Token string `json:"token"`
	}](t, env.Data).Token
	require.NotEmpty(t, token)

	w, _ = call(t, r, http.MethodPost, "/api/v1/posts", validPost("Yes"), token)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = call(t, r, http.MethodGet, "/api/v1/posts", nil, "")
	assert.Equal(t, http.StatusOK, w.Code, "reads stay public")

	w, _ = call(t, r, http.MethodPost, "/api/v1/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = call(t, r, http.MethodPost, "/api/v1/posts", validPost("Revoked"), token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginDisabledInOpenMode(t *testing.T) {
	r, _, _ := newServer(t, testConfig())
	w, _ := call(t, r, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	r, _, _ := newServer(t, testConfig())
	w, env := call(t, r, http.MethodGet, "/api/v1/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, env.Code)
}
