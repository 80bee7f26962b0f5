package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/deleteflow"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/export"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/form"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/mapper"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/session"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/state"
)

// memStore is an in-memory record store keyed by kind and id.
type memStore struct {
	mu      sync.Mutex
	next    int64
	rows    map[entity.Kind]map[string]mapper.Fields
	rosters map[string][]string
}

func newMemStore() *memStore {
	m := &memStore{next: 100, rows: map[entity.Kind]map[string]mapper.Fields{}, rosters: map[string][]string{}}
	for _, k := range entity.Kinds() {
		m.rows[k] = map[string]mapper.Fields{}
	}
	return m
}

func (m *memStore) put(kind entity.Kind, id string, f mapper.Fields) {
	f["id"] = id
	m.rows[kind][id] = f
}

func (m *memStore) ListAll(_ context.Context, kind entity.Kind) ([]mapper.Fields, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []mapper.Fields{}
	for _, r := range m.rows[kind] {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) ListClassRoster(_ context.Context, classID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rosters[classID]
}

func (m *memStore) GetByID(_ context.Context, kind entity.Kind, id string) (mapper.Fields, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[kind][id]
	return r, ok, nil
}

func (m *memStore) Insert(_ context.Context, kind entity.Kind, f mapper.Fields) (mapper.Fields, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	row := mapper.Fields{}
	for k, v := range f {
		row[k] = v
	}
	key := strconv.FormatInt(m.next, 10)
	row["id"] = key
	m.rows[kind][key] = row
	return row, nil
}

func (m *memStore) Update(_ context.Context, kind entity.Kind, id string, f mapper.Fields) (mapper.Fields, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[kind][id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	for k, v := range f {
		r[k] = v
	}
	return r, nil
}

func (m *memStore) Delete(_ context.Context, kind entity.Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == entity.KindCourse {
		for _, c := range m.rows[entity.KindClass] {
			if c["courseId"] == id {
				return apperr.NewConflict("courses", id, nil)
			}
		}
	}
	if _, ok := m.rows[kind][id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.rows[kind], id)
	return nil
}

func (m *memStore) ReplaceClassRoster(_ context.Context, classID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rosters[classID] = ids
	return nil
}

type stubWriter struct{}

func (stubWriter) GenerateCourseDescription(_ context.Context, name string) string {
	return "about " + name
}

func (stubWriter) SummarizePatientCase(_ context.Context, name, _ string) string {
	return "summary " + name
}

type testServer struct {
	srv   *httptest.Server
	store *memStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hasher := session.BcryptHasher{Cost: bcrypt.MinCost}
	adminHash, _, err := hasher.Hash("adminpw")
	require.NoError(t, err)

	st := newMemStore()
	st.put(entity.KindUser, "1", mapper.Fields{"username": "admin", "password": adminHash, "role": "ADMIN"})
	st.put(entity.KindUser, "2", mapper.Fields{"username": "joana", "password": "legacy", "role": "USER"})
	st.put(entity.KindCourse, "3", mapper.Fields{"name": "Psicanálise"})
	st.put(entity.KindClass, "10", mapper.Fields{"name": "Turma A", "courseId": "3"})
	st.put(entity.KindStudent, "1", mapper.Fields{"name": "Ana", "email": "ana@example.com"})
	st.put(entity.KindPsychoanalyst, "5", mapper.Fields{"name": "Dra. Reis"})
	st.put(entity.KindPatient, "7", mapper.Fields{"name": "Davi", "clinicalNotes": "anxiety"})

	cache := state.New(st, nil)
	cache.Bootstrap(context.Background())

	svc, err := session.NewService(session.Config{Secret: "s", TTL: time.Hour}, cache, st, hasher, nil, nil)
	require.NoError(t, err)
	sub := form.NewSubmitter(st, cache, stubWriter{}, hasher, nil)

	h := RegisterRoutes(Deps{
		Session:   svc,
		Auth:      session.NewHandler(svc, nil),
		State:     state.NewHandler(cache, nil),
		Forms:     form.NewHandler(sub, nil),
		Deletions: deleteflow.NewHandler(deleteflow.NewRegistry(st, cache, time.Minute, nil), nil),
		Export:    export.NewHandler(cache, nil),
		Ready:     func() bool { return true },
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: st}
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+Prefix+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (ts *testServer) login(t *testing.T, user, pw string) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/session", "", `{"username":"`+user+`","password":"`+pw+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok, _ := body["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestHealthAndHeaders(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestRequestIDIsKept(t *testing.T) {
	h := RequestIDMiddleware(func() string { return "generated" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get(RequestIDHeader)))
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "generated", rec.Header().Get(RequestIDHeader))
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/students", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/session", "", `{"username":"admin","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUsersAreAdminOnly(t *testing.T) {
	ts := newTestServer(t)
	user := ts.login(t, "joana", "legacy")
	admin := ts.login(t, "ADMIN", "adminpw")

	resp, _ := ts.do(t, http.MethodGet, "/users", user, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/users", user, `{"username":"x","password":"y"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/users", admin, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/students", user, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// legacy password was rehashed on login
	hash, _ := ts.store.rows[entity.KindUser]["2"]["password"].(string)
	assert.True(t, strings.HasPrefix(hash, "$2"))
}

func TestCreateThenList(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "adminpw")

	resp, body := ts.do(t, http.MethodPost, "/students", tok, `{"name":"Bruno","email":"bruno@example.com"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "create", body["mode"])

	resp, dash := ts.do(t, http.MethodGet, "/dashboard", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	counts := dash["counts"].(map[string]any)
	assert.EqualValues(t, 2, counts["students"])

	resp, body = ts.do(t, http.MethodPost, "/students", tok, `{"name":"","email":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "draft")
}

func TestRosterAndLinking(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "adminpw")

	resp, _ := ts.do(t, http.MethodPut, "/classes/10/students", tok, `{"studentIds":["1"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"1"}, ts.store.rosters["10"])

	resp, _ = ts.do(t, http.MethodPost, "/psychoanalysts/5/patients", tok, `{"patientId":"7"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "5", ts.store.rows[entity.KindPatient]["7"]["analystId"])

	resp, _ = ts.do(t, http.MethodPost, "/patients/7/summary", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "adminpw")

	resp, body := ts.do(t, http.MethodPost, "/courses/3/deletion", tok, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := body["token"].(string)

	resp, body = ts.do(t, http.MethodPost, "/deletions/"+token+"/confirm", tok, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apperr.ConflictMessage, body["error"])

	resp, body = ts.do(t, http.MethodPost, "/students/1/deletion", tok, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodPost, "/deletions/"+body["token"].(string)+"/confirm", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/students/1", tok, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportRoute(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.login(t, "admin", "adminpw")

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+Prefix+"/students/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
}

func TestWithPrefix(t *testing.T) {
	assert.Equal(t, "GET /gerenciador-api/x", withPrefix("GET /x"))
	assert.Equal(t, "/gerenciador-api/x", withPrefix("/x"))
}
