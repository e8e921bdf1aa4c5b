package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/chepyr/go-kanban/internal/auth"
	"github.com/chepyr/go-kanban/internal/db"
	"github.com/chepyr/go-kanban/internal/kanban"
	"github.com/chepyr/go-kanban/internal/models"
	"github.com/chepyr/go-kanban/internal/ordering"
	"github.com/chepyr/go-kanban/internal/ratelimit"
	"github.com/chepyr/go-kanban/internal/testutil"
)

const testSecret = "test-secret-32-bytes-long-1234567890"

type testServer struct {
	handler *Handler
	router  http.Handler
	db      *sql.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn := testutil.NewSchemaDB(t)
	tokens, err := auth.NewTokenManager(testSecret, "HS256", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	logger := log.New()
	logger.SetOutput(io.Discard)

	h := &Handler{
		Service:     kanban.NewService(db.NewStore(conn), ordering.New(ordering.Weak), bcrypt.MinCost),
		Tokens:      tokens,
		RateLimiter: ratelimit.NewMemoryLimiter(100, time.Minute),
		Logger:      logger,
	}
	return &testServer{handler: h, router: h.NewRouter(), db: conn}
}

func (s *testServer) customer(t *testing.T, username string) (*models.Customer, string) {
	t.Helper()
	c, err := s.handler.Service.CreateCustomer(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	token, err := s.handler.Tokens.Issue(username)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return c, token
}

// do sends form parameters in the body for POST and PUT, and in the query
// string otherwise.
func (s *testServer) do(method, path, token string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil && (method == http.MethodPost || method == http.MethodPut) {
		body = strings.NewReader(form.Encode())
	} else if form != nil {
		path += "?" + form.Encode()
	}
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("want %d, got %d body=%s", want, rec.Code, rec.Body.String())
	}
}

func TestSignIn(t *testing.T) {
	s := newTestServer(t)
	s.customer(t, "alice")

	rec := s.do(http.MethodPost, "/sign-in", "", url.Values{"username": {"alice"}, "password": {"password123"}})
	expectStatus(t, rec, http.StatusOK)
	resp := decode[tokenResponse](t, rec)
	if resp.TokenType != "bearer" {
		t.Errorf("want token_type bearer, got %q", resp.TokenType)
	}
	subject, err := s.handler.Tokens.Validate(resp.Token)
	if err != nil || subject != "alice" {
		t.Errorf("want valid token for alice, got %q, %v", subject, err)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("want X-Request-ID header")
	}
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	s := newTestServer(t)
	s.customer(t, "alice")

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"wrong password", url.Values{"username": {"alice"}, "password": {"nope-nope"}}, http.StatusUnauthorized},
		{"unknown user", url.Values{"username": {"bob"}, "password": {"password123"}}, http.StatusUnauthorized},
		{"missing password", url.Values{"username": {"alice"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/sign-in", "", tt.form)
			expectStatus(t, rec, tt.want)
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("want WWW-Authenticate: Bearer")
			}
		})
	}
}

func TestSignIn_RateLimited(t *testing.T) {
	s := newTestServer(t)
	s.handler.RateLimiter = ratelimit.NewMemoryLimiter(2, time.Minute)
	form := url.Values{"username": {"alice"}, "password": {"whatever1"}}

	for i := 0; i < 2; i++ {
		expectStatus(t, s.do(http.MethodPost, "/sign-in", "", form), http.StatusUnauthorized)
	}
	expectStatus(t, s.do(http.MethodPost, "/sign-in", "", form), http.StatusTooManyRequests)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	s.customer(t, "alice")

	expired, err := s.handler.Tokens.IssueWithTTL("alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	ghost, err := s.handler.Tokens.Issue("ghost")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer abc.def.ghi"},
		{"expired token", "Bearer " + expired},
		{"deleted customer", "Bearer " + ghost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/boards", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			expectStatus(t, rec, http.StatusUnauthorized)
			if rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("want WWW-Authenticate: Bearer")
			}
		})
	}
}

func TestAliceScenario(t *testing.T) {
	s := newTestServer(t)
	s.customer(t, "alice")

	rec := s.do(http.MethodPost, "/sign-in", "", url.Values{"username": {"alice"}, "password": {"password123"}})
	expectStatus(t, rec, http.StatusOK)
	token := decode[tokenResponse](t, rec).Token

	expectStatus(t, s.do(http.MethodGet, "/boards", token, nil), http.StatusNotFound)

	rec = s.do(http.MethodPost, "/boards", token, url.Values{"title": {"Personal"}})
	expectStatus(t, rec, http.StatusOK)
	if b := decode[models.Board](t, rec); b.ID != 1 || b.Title != "Personal" {
		t.Fatalf("unexpected board %+v", b)
	}

	rec = s.do(http.MethodPost, "/sections", token, url.Values{"title": {"Todo"}, "boardId": {"1"}})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodGet, "/boards/1", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var got struct {
		Title    string `json:"title"`
		Sections []struct {
			Title    string            `json:"title"`
			Position int64             `json:"position"`
			Cards    []json.RawMessage `json:"cards"`
		} `json:"sections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "Personal" || len(got.Sections) != 1 {
		t.Fatalf("unexpected board %s", rec.Body.String())
	}
	if sec := got.Sections[0]; sec.Title != "Todo" || sec.Position != 0 || sec.Cards == nil || len(sec.Cards) != 0 {
		t.Fatalf("unexpected section %s", rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/boards", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if boards := decode[[]models.Board](t, rec); len(boards) != 1 {
		t.Fatalf("want 1 board, got %d", len(boards))
	}
}

func TestBoardLifecycle(t *testing.T) {
	s := newTestServer(t)
	_, token := s.customer(t, "alice")

	board := decode[models.Board](t, s.do(http.MethodPost, "/boards", token, url.Values{"title": {"Work"}}))

	rec := s.do(http.MethodPut, "/boards/1", token, url.Values{"newTitle": {"Office"}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Board](t, rec); got.Title != "Office" || got.ID != board.ID {
		t.Fatalf("unexpected board %+v", got)
	}

	s.do(http.MethodPost, "/sections", token, url.Values{"title": {"Todo"}, "boardId": {"1"}})
	s.do(http.MethodPost, "/cards", token, url.Values{"title": {"Task"}, "sectionId": {"1"}})

	rec = s.do(http.MethodDelete, "/boards/1", token, nil)
	expectStatus(t, rec, http.StatusOK)
	deleted := decode[models.Board](t, rec)
	if deleted.Title != "Office" || len(deleted.Sections) != 1 || len(deleted.Sections[0].Cards) != 1 {
		t.Fatalf("want last known state, got %s", rec.Body.String())
	}

	expectStatus(t, s.do(http.MethodGet, "/boards/1", token, nil), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodPut, "/sections/1", token, url.Values{"newTitle": {"x"}}), http.StatusNotFound)
	expectStatus(t, s.do(http.MethodDelete, "/cards/1", token, nil), http.StatusNotFound)
	if n := testutil.Count(t, s.db, "cards"); n != 0 {
		t.Errorf("want cards cascaded, got %d", n)
	}
}

func TestSectionEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, token := s.customer(t, "alice")
	s.do(http.MethodPost, "/boards", token, url.Values{"title": {"Work"}})

	rec := s.do(http.MethodPost, "/sections", token, url.Values{"title": {"Later"}, "boardId": {"1"}, "position": {"5"}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Section](t, rec); got.Position != 5 {
		t.Fatalf("want explicit position 5, got %d", got.Position)
	}
	rec = s.do(http.MethodPost, "/sections", token, url.Values{"title": {"Next"}, "boardId": {"1"}})
	if got := decode[models.Section](t, rec); got.Position != 6 {
		t.Fatalf("want appended position 6, got %d", got.Position)
	}

	rec = s.do(http.MethodPut, "/sections/2/move", token, url.Values{"position": {"0"}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Section](t, rec); got.Position != 0 {
		t.Fatalf("want position 0, got %d", got.Position)
	}

	rec = s.do(http.MethodPut, "/sections/1", token, url.Values{"newTitle": {"Someday"}})
	expectStatus(t, rec, http.StatusOK)

	board := decode[models.Board](t, s.do(http.MethodGet, "/boards/1", token, nil))
	if len(board.Sections) != 2 || board.Sections[0].Title != "Next" || board.Sections[1].Title != "Someday" {
		t.Fatalf("unexpected order %+v", board.Sections)
	}

	rec = s.do(http.MethodDelete, "/sections/1", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Section](t, rec); got.Title != "Someday" {
		t.Fatalf("want deleted section, got %+v", got)
	}
}

func TestCardEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, token := s.customer(t, "alice")
	s.do(http.MethodPost, "/boards", token, url.Values{"title": {"Work"}})
	s.do(http.MethodPost, "/sections", token, url.Values{"title": {"One"}, "boardId": {"1"}})
	s.do(http.MethodPost, "/sections", token, url.Values{"title": {"Two"}, "boardId": {"1"}})

	for i := 0; i < 5; i++ {
		rec := s.do(http.MethodPost, "/cards", token, url.Values{"title": {"card"}, "sectionId": {"1"}})
		expectStatus(t, rec, http.StatusOK)
		if got := decode[models.Card](t, rec); got.Position != int64(i) {
			t.Fatalf("want appended position %d, got %d", i, got.Position)
		}
	}

	body, _ := json.Marshal(map[string]any{"title": "Card five", "description": "details"})
	req := httptest.NewRequest(http.MethodPut, "/cards/5", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Card](t, rec); got.Title != "Card five" || got.Description == nil || *got.Description != "details" {
		t.Fatalf("unexpected card %s", rec.Body.String())
	}

	rec = s.do(http.MethodPut, "/cards/5/move", token, url.Values{"sectionId": {"2"}, "position": {"3"}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Card](t, rec); got.SectionID != 2 || got.Position != 3 {
		t.Fatalf("unexpected moved card %+v", got)
	}

	board := decode[models.Board](t, s.do(http.MethodGet, "/boards/1", token, nil))
	if len(board.Sections[0].Cards) != 4 || len(board.Sections[1].Cards) != 1 {
		t.Fatalf("unexpected card split %s", rec.Body.String())
	}
	if moved := board.Sections[1].Cards[0]; moved.ID != 5 || moved.Position != 3 {
		t.Fatalf("unexpected card in section 2 %+v", moved)
	}

	rec = s.do(http.MethodDelete, "/cards/5", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Card](t, rec); got.ID != 5 {
		t.Fatalf("want deleted card 5, got %+v", got)
	}
}

func TestUpdateCard_BadRequests(t *testing.T) {
	s := newTestServer(t)
	_, token := s.customer(t, "alice")

	req := httptest.NewRequest(http.MethodPut, "/cards/1", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnsupportedMediaType)

	req = httptest.NewRequest(http.MethodPut, "/cards/1", strings.NewReader(`{bad json`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestValidation(t *testing.T) {
	s := newTestServer(t)
	_, token := s.customer(t, "alice")

	tests := []struct {
		name   string
		method string
		path   string
		form   url.Values
	}{
		{"non-numeric id", http.MethodGet, "/boards/abc", nil},
		{"zero id", http.MethodDelete, "/cards/0", nil},
		{"missing board id", http.MethodPost, "/sections", url.Values{"title": {"x"}}},
		{"negative position", http.MethodPut, "/sections/1/move", url.Values{"position": {"-1"}}},
		{"missing position", http.MethodPut, "/cards/1/move", url.Values{"sectionId": {"1"}}},
		{"empty title", http.MethodPost, "/boards", url.Values{"title": {"   "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, token, tt.form)
			expectStatus(t, rec, http.StatusBadRequest)
			if decode[errorResponse](t, rec).Error == "" {
				t.Error("want error message")
			}
		})
	}
}

func TestForeignCustomer(t *testing.T) {
	s := newTestServer(t)
	_, alice := s.customer(t, "alice")
	_, bob := s.customer(t, "bob")
	s.do(http.MethodPost, "/boards", alice, url.Values{"title": {"Private"}})
	s.do(http.MethodPost, "/sections", alice, url.Values{"title": {"Todo"}, "boardId": {"1"}})
	s.do(http.MethodPost, "/cards", alice, url.Values{"title": {"Secret"}, "sectionId": {"1"}})

	tests := []struct {
		method string
		path   string
		form   url.Values
	}{
		{http.MethodGet, "/boards/1", nil},
		{http.MethodPut, "/boards/1", url.Values{"newTitle": {"mine"}}},
		{http.MethodDelete, "/boards/1", nil},
		{http.MethodPost, "/sections", url.Values{"title": {"x"}, "boardId": {"1"}}},
		{http.MethodPut, "/sections/1", url.Values{"newTitle": {"x"}}},
		{http.MethodPut, "/sections/1/move", url.Values{"position": {"2"}}},
		{http.MethodDelete, "/sections/1", nil},
		{http.MethodPost, "/cards", url.Values{"title": {"x"}, "sectionId": {"1"}}},
		{http.MethodPut, "/cards/1/move", url.Values{"sectionId": {"1"}, "position": {"0"}}},
		{http.MethodDelete, "/cards/1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			expectStatus(t, s.do(tt.method, tt.path, bob, tt.form), http.StatusForbidden)
		})
	}

	expectStatus(t, s.do(http.MethodGet, "/boards/1", alice, nil), http.StatusOK)
	expectStatus(t, s.do(http.MethodGet, "/boards", bob, nil), http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if decode[map[string]string](t, rec)["status"] != "ok" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	_ = s.db.Close()
	expectStatus(t, s.do(http.MethodGet, "/healthz", "", nil), http.StatusServiceUnavailable)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remote     string
		trustProxy bool
		want       string
	}{
		{"forwarded ignored by default", "203.0.113.7", "10.0.0.2:1234", false, "10.0.0.2"},
		{"forwarded chain behind trusted proxy", "203.0.113.7, 10.0.0.1", "10.0.0.2:1234", true, "203.0.113.7"},
		{"trusted proxy without header", "", "192.0.2.1:5555", true, "192.0.2.1"},
		{"peer address", "", "192.0.2.1:5555", false, "192.0.2.1"},
		{"peer without port", "", "192.0.2.1", false, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sign-in", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("want %s, got %s", tt.want, got)
			}
		})
	}
}

func signInFrom(s *testServer, remote, forwarded string) *httptest.ResponseRecorder {
	form := url.Values{"username": {"alice"}, "password": {"whatever1"}}
	req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remote
	req.Header.Set("X-Forwarded-For", forwarded)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// checks that rotating X-Forwarded-For does not reset the per-peer count
func TestSignIn_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	s := newTestServer(t)
	s.handler.RateLimiter = ratelimit.NewMemoryLimiter(2, time.Minute)

	limited := 0
	for i := 0; i < 10; i++ {
		rec := signInFrom(s, "198.51.100.9:4000", fmt.Sprintf("10.0.0.%d", i))
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 8 {
		t.Fatalf("want 8 limited attempts, got %d", limited)
	}
}

func TestSignIn_RateLimitTrustedProxy(t *testing.T) {
	s := newTestServer(t)
	s.handler.RateLimiter = ratelimit.NewMemoryLimiter(1, time.Minute)
	s.handler.TrustProxy = true

	expectStatus(t, signInFrom(s, "10.0.0.1:80", "203.0.113.1"), http.StatusUnauthorized)
	expectStatus(t, signInFrom(s, "10.0.0.1:80", "203.0.113.2"), http.StatusUnauthorized)
	expectStatus(t, signInFrom(s, "10.0.0.1:80", "203.0.113.1"), http.StatusTooManyRequests)
}

func TestSignIn_JSONBody(t *testing.T) {
	s := newTestServer(t)
	s.customer(t, "alice")

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"username":"alice","password":"password123"}`)
	expectStatus(t, rec, http.StatusOK)
	resp := decode[tokenResponse](t, rec)
	if subject, err := s.handler.Tokens.Validate(resp.Token); err != nil || subject != "alice" {
		t.Errorf("want valid token for alice, got %q, %v", subject, err)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("want token_type bearer, got %q", resp.TokenType)
	}

	expectStatus(t, post(`{"username":"alice","password":"wrong-pass"}`), http.StatusUnauthorized)
	expectStatus(t, post(`{"username":"alice"`), http.StatusBadRequest)
	expectStatus(t, post(`{"username":"alice"}`), http.StatusBadRequest)
}

func TestCreateCard_Description(t *testing.T) {
	s := newTestServer(t)
	_, token := s.customer(t, "alice")
	s.do(http.MethodPost, "/boards", token, url.Values{"title": {"Work"}})
	s.do(http.MethodPost, "/sections", token, url.Values{"title": {"Todo"}, "boardId": {"1"}})

	rec := s.do(http.MethodPost, "/cards", token, url.Values{"description": {"details"}, "title": {"Task"}, "sectionId": {"1"}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Card](t, rec); got.Description == nil || *got.Description != "details" {
		t.Fatalf("want description kept, got %s", rec.Body.String())
	}

	rec = s.do(http.MethodPost, "/cards", token, url.Values{"title": {"Bare"}, "sectionId": {"1"}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Card](t, rec); got.Description != nil {
		t.Fatalf("want no description, got %s", rec.Body.String())
	}
}
