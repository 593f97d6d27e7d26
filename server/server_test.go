package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"auto_wordpress_post_publisher/generator"
	"auto_wordpress_post_publisher/publisher"
	"auto_wordpress_post_publisher/store"
	"auto_wordpress_post_publisher/wizard"
)

// fakeWordPress answers the REST endpoints the server uses.
type fakeWordPress struct {
	mu        sync.Mutex
	published []map[string]string
	postQuery string
}

func (f *fakeWordPress) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/jwt-auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"code":"[jwt_auth] incorrect_password","message":"Wrong password.","data":{"status":403}}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"wp-token","user_display_name":"Admin","user_email":"admin@example.com"}`)
	})
	mux.HandleFunc("/wp-json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name":"Test Blog"}`)
	})
	mux.HandleFunc("/wp-json/wp/v2/categories", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":3,"name":"News","slug":"news"}]`)
	})
	mux.HandleFunc("/wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":5,"name":"go","slug":"go"}]`)
	})
	mux.HandleFunc("/wp-json/wp/v2/media", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":9,"source_url":"https://wp.example/cat.png"}`)
	})
	mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			f.mu.Lock()
			f.postQuery = r.URL.RawQuery
			f.mu.Unlock()
			_, _ = io.WriteString(w, `[{"id":1,"link":"https://wp.example/?p=1","title":{"rendered":"Old"}}]`)
			return
		}
		assert.Equal(t, "Bearer wp-token", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f.mu.Lock()
		f.published = append(f.published, fields)
		f.mu.Unlock()
		if fields["title"] == "forbidden" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"code":"rest_forbidden","message":"Sorry, you are not allowed to do that.","data":{"status":403}}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":77,"link":"https://wp.example/?p=77"}`)
	})
	return mux
}

type harness struct {
	t       *testing.T
	handler http.Handler
	auth    *Authenticator
	wp      *fakeWordPress
	wpURL   string
	srv     *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	wp := &fakeWordPress{}
	wpSrv := httptest.NewServer(wp.handler(t))
	t.Cleanup(wpSrv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"), store.NewSealer("k"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	auth, err := NewAuthenticator("jwt-secret")
	require.NoError(t, err)
	srv, err := New(Options{
		Store:     st,
		Publisher: publisher.New(wpSrv.Client(), logger),
		Auth:      auth,
		LLM:       generator.LLMSettings{Provider: "mock", Model: "mock-model"},
		Logger:    logger,
	})
	require.NoError(t, err)
	return &harness{t: t, handler: srv.Routes(), auth: auth, wp: wp, wpURL: wpSrv.URL, srv: srv}
}

func (h *harness) token(user string) string {
	tok, err := h.auth.Issue(user, time.Hour)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path, user string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+h.token(user))
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) addSite(user string) publisher.Site {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/sites", user, map[string]string{
		"url": h.wpURL, "user_name": "admin", "password": "pw",
	})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[publisher.Site](h.t, rec)
}

func (h *harness) openWizard(user, siteID string) openWizardResp {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/sites/"+siteID+"/wizard", user, nil)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[openWizardResp](h.t, rec)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/sites", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	bad := httptest.NewRecorder()
	h.handler.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	other, err := NewAuthenticator("other-secret")
	require.NoError(t, err)
	forged, err := other.Issue("alice", time.Hour)
	require.NoError(t, err)
	_, err = h.auth.Verify(forged)
	require.Error(t, err)
}

func TestAddSiteRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/api/sites", "alice", map[string]string{
		"url": h.wpURL, "user_name": "admin", "password": "nope",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Wrong password.", decode[errorResp](t, rec).Error)

	rec = h.do(http.MethodPost, "/api/sites", "alice", map[string]string{"url": "ftp://x", "user_name": "a", "password": "b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWizardFlow(t *testing.T) {
	h := newHarness(t)
	site := h.addSite("alice")
	assert.Equal(t, "Test Blog", site.Name)
	assert.Equal(t, "Admin", site.DisplayName)
	require.Len(t, site.Categories, 1)

	opened := h.openWizard("alice", site.ID)
	assert.Empty(t, opened.TokenError)
	assert.Equal(t, "mock-model", opened.Defaults.Model)
	assert.Equal(t, wizard.Collecting, opened.State.Step)
	base := "/api/wizard/" + opened.SessionID

	rec := h.do(http.MethodPost, base+"/completions", "alice", map[string]any{"prompt": "Hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var comp struct {
		Result struct {
			Status string `json:"status"`
			Value  struct {
				Prompt string `json:"prompt"`
			} `json:"value"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comp))
	assert.Equal(t, "ok", comp.Result.Status)
	assert.Equal(t, "Hi", comp.Result.Value.Prompt)

	rec = h.do(http.MethodPost, base+"/publish", "alice", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusConflict, rec.Code, "no publish while collecting")

	rec = h.do(http.MethodPost, base+"/next", "alice", map[string]any{"show_prompt": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decode[snapshotJSON](t, rec)
	assert.Equal(t, "editing", state.Step)
	assert.Contains(t, state.EditedMarkup, "baloon-left-prefix")

	rec = h.do(http.MethodPost, base+"/next", "alice", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "editor content required")

	rec = h.do(http.MethodPost, base+"/next", "alice", map[string]any{"edited": state.EditedMarkup})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state = decode[snapshotJSON](t, rec)
	assert.Equal(t, "reviewing", state.Step)
	assert.Contains(t, state.PublishableMarkup, "[word_balloon")
	assert.NotContains(t, state.PublishableMarkup, "baloon-")

	rec = h.do(http.MethodPost, base+"/publish", "alice", map[string]any{"title": "forbidden"})
	require.Equal(t, http.StatusOK, rec.Code)
	failed := decode[publishJSON](t, rec)
	assert.Equal(t, "failed", failed.Result.Status)
	assert.Equal(t, "Sorry, you are not allowed to do that.", failed.Result.Message)
	assert.Equal(t, "reviewing", failed.State.Step)

	rec = h.do(http.MethodPost, base+"/publish", "alice", map[string]any{"title": "Hello", "category": 3, "tags": []int{5}})
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[publishJSON](t, rec)
	assert.Equal(t, "ok", done.Result.Status)
	assert.Equal(t, "https://wp.example/?p=77", done.Result.Value.Link)
	assert.Equal(t, "done", done.State.Step)

	h.wp.mu.Lock()
	require.Len(t, h.wp.published, 2)
	last := h.wp.published[1]
	h.wp.mu.Unlock()
	assert.Equal(t, "3", last["categories"])
	assert.Equal(t, "5", last["tags"])
	assert.Equal(t, last["content"], last["excerpt"])

	rec = h.do(http.MethodGet, "/api/sites/"+site.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[publisher.Site](t, rec)
	require.NotEmpty(t, stored.Posts)
	assert.Equal(t, int64(77), stored.Posts[len(stored.Posts)-1].ID)

	rec = h.do(http.MethodDelete, base, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(http.MethodGet, base, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWizardIsScopedToUser(t *testing.T) {
	h := newHarness(t)
	site := h.addSite("alice")
	opened := h.openWizard("alice", site.ID)

	rec := h.do(http.MethodGet, "/api/wizard/"+opened.SessionID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(http.MethodPost, "/api/sites/"+site.ID+"/wizard", "bob", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, h.srv.sessions.count())
}

func TestMediaUpload(t *testing.T) {
	h := newHarness(t)
	site := h.addSite("alice")
	opened := h.openWizard("alice", site.ID)
	base := "/api/wizard/" + opened.SessionID

	rec := h.do(http.MethodPost, base+"/next", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "cat.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, base+"/media", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+h.token("alice"))
	out := httptest.NewRecorder()
	h.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())
	assert.Contains(t, out.Body.String(), "https://wp.example/cat.png")
}

func TestSettingsRoundTrip(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPut, "/api/settings", "alice", map[string]any{"chatGptApiKey": "sk-1", "temperature": 0.5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/settings", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[store.Settings](t, rec)
	assert.Equal(t, "sk-1", got.ChatGPTAPIKey)
	assert.Equal(t, 0.5, got.Temperature)

	rec = h.do(http.MethodPut, "/api/settings", "alice", map[string]any{"temperature": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPostsForwardsFilter(t *testing.T) {
	h := newHarness(t)
	site := h.addSite("alice")

	rec := h.do(http.MethodGet, "/api/sites/"+site.ID+"/posts?search=go&tags=5&order=asc&page=2&after=2024-01-01", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	posts := decode[[]publisher.Post](t, rec)
	require.Len(t, posts, 1)

	h.wp.mu.Lock()
	query := h.wp.postQuery
	h.wp.mu.Unlock()
	for _, want := range []string{"search=go", "tags=5", "order=asc", "page=2", "after=2024-01-01T00%3A00%3A00Z"} {
		assert.True(t, strings.Contains(query, want), "query %q lacks %q", query, want)
	}

	rec = h.do(http.MethodGet, "/api/sites/"+site.ID+"/posts?page=0", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type snapshotJSON struct {
	Step              string `json:"step"`
	EditedMarkup      string `json:"edited_markup"`
	PublishableMarkup string `json:"publishable_markup"`
}

type publishJSON struct {
	Result struct {
		Status  string         `json:"status"`
		Message string         `json:"message"`
		Value   publisher.Post `json:"value"`
	} `json:"result"`
	State snapshotJSON `json:"state"`
}
