package api

import (
	"bytes"
	"context"
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
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/grievo/internal/api/middleware"
	"github.com/timmy/grievo/internal/config"
	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/repository"
	"github.com/timmy/grievo/internal/service"
	"github.com/timmy/grievo/internal/storage"
)

const waterComplaint = "Water has not come for 3 days, pipeline burst"

// wordBackend embeds text as counts over a vocabulary built from the seeds
// and the given texts.
type wordBackend struct {
	index map[string]int
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func newWordBackend(texts ...string) *wordBackend {
	b := &wordBackend{index: map[string]int{}}
	all := append([]string{}, texts...)
	for _, s := range service.DefaultSeeds {
		all = append(all, s.Phrase)
	}
	for _, t := range all {
		for _, w := range words(t) {
			if _, ok := b.index[w]; !ok {
				b.index[w] = len(b.index)
			}
		}
	}
	return b
}

func (b *wordBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(b.index))
		for _, w := range words(t) {
			if idx, ok := b.index[w]; ok {
				v[idx]++
			}
		}
		out[i] = v
	}
	return out, nil
}

type testServer struct {
	t      *testing.T
	router http.Handler
	auth   *service.AuthService
}

// memObjects is an in-memory storage.ObjectStorage.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memObjects) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjects) GetURL(key string) string { return "https://cdn.test/" + key }

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjects) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func newTestServer(t *testing.T, seed bool) *testServer {
	return buildTestServer(t, seed, nil)
}

func buildTestServer(t *testing.T, seed bool, objects storage.ObjectStorage) *testServer {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "api.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	complaintRepo := repository.NewComplaintRepository(db)
	userRepo := repository.NewUserRepository(db)

	embedder := service.NewEmbeddingService(newWordBackend(waterComplaint), service.EmbeddingServiceConfig{ModelVersion: "test:words"})
	classifier := service.NewClassifier(embedder, nil, nil)
	if seed {
		require.NoError(t, classifier.InitializeSeeds(context.Background()))
	}

	auth, err := service.NewAuthService(userRepo, service.AuthConfig{Secret: "test-secret", TokenTTL: time.Hour}, nil)
	require.NoError(t, err)

	var attachments *service.AttachmentService
	if objects != nil {
		attachments = service.NewAttachmentService(complaintRepo, complaintRepo, objects, 1<<20, nil)
	}

	router := SetupRouter(Services{
		Complaints:  service.NewComplaintService(complaintRepo, embedder, classifier, nil),
		Attachments: attachments,
		Dashboard:   service.NewDashboardService(complaintRepo, classifier.Categories(), 48*time.Hour, nil),
		Auth:        auth,
		Classifier:  classifier,
	}, RouterConfig{Mode: "test", CORS: middleware.CORSConfig{AllowAllOrigins: true}})

	return &testServer{t: t, router: router, auth: auth}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) token(name, phone string, role domain.Role) string {
	s.t.Helper()
	res, err := s.auth.Register(context.Background(), service.RegisterInput{Name: name, Phone: phone, Password: "pw", Role: role})
	require.NoError(s.t, err)
	return res.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, true, body["classifierReady"])
	assert.Contains(t, body, "uptime")
	assert.Contains(t, body, "timestamp")
}

func TestHealth_DegradedBeforeSeeding(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])

	w = s.do(http.MethodPost, "/api/complaints/classify", "", map[string]string{"transcriptText": waterComplaint})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", decode(t, w)["message"])
}

func TestClassifyPreview(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(http.MethodPost, "/api/complaints/classify", "", map[string]string{"text": waterComplaint})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := w.Body.String()
	assert.Contains(t, body, `"category":"Water"`)
	assert.Contains(t, body, `"priorityLabel":"Low"`)
	assert.Contains(t, body, `"similarityBreakdown":{"Healthcare":0,"Education":0,"Water":0.236,"Electricity":0,"Roads":0,"Sanitation":0}`)

	w = s.do(http.MethodPost, "/api/complaints/classify", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide transcript text", decode(t, w)["message"])
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Asha", "phone": "900", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode(t, w)
	assert.Equal(t, "user", reg["role"])
	assert.NotEmpty(t, reg["token"])
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Asha", "phone": "900", "password": "pw"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "Eve", "phone": "901", "password": "pw", "role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"phone": "900", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, reg["id"], decode(t, w)["id"])

	w = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"phone": "900", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestComplaintRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, true)
	userToken := s.token("Asha", "900", domain.RoleUser)

	w := s.do(http.MethodPost, "/api/complaints", "", map[string]interface{}{"transcriptText": waterComplaint})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, no token", decode(t, w)["message"])

	w = s.do(http.MethodGet, "/api/complaints", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/complaints", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/dashboard/stats", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestComplaintLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, true)
	userToken := s.token("Asha", "900", domain.RoleUser)
	adminToken := s.token("Admin", "100", domain.RoleAdmin)

	w := s.do(http.MethodPost, "/api/complaints", userToken, map[string]interface{}{
		"transcriptText": waterComplaint,
		"location":       map[string]interface{}{"address": "Ward 4", "latitude": 13.08},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id := created["id"].(string)
	assert.Equal(t, "Water", created["category"])
	assert.Equal(t, "Submitted", created["status"])

	w = s.do(http.MethodPost, "/api/complaints", userToken, map[string]interface{}{"transcriptText": waterComplaint})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide transcript text and location", decode(t, w)["message"])

	w = s.do(http.MethodPatch, "/api/complaints/"+id+"/status", adminToken, map[string]string{"status": "Closed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status", decode(t, w)["message"])

	w = s.do(http.MethodPatch, "/api/complaints/"+id+"/status", adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Please provide a validation status", decode(t, w)["message"])

	w = s.do(http.MethodPatch, "/api/complaints/missing/status", adminToken, map[string]string{"status": "Completed"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Complaint not found", decode(t, w)["message"])

	w = s.do(http.MethodPatch, "/api/complaints/"+id+"/status", adminToken, map[string]string{"status": "InProgress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/complaints/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "InProgress", got["status"])
	timeline := got["timeline"].([]interface{})
	require.Len(t, timeline, 2)
	assert.Equal(t, "Complaint submitted", timeline[0].(map[string]interface{})["message"])
	assert.Equal(t, "Status updated to InProgress", timeline[1].(map[string]interface{})["message"])

	w = s.do(http.MethodGet, "/api/complaints", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = s.do(http.MethodGet, "/api/complaints/mine", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0]["id"])

	w = s.do(http.MethodGet, "/api/complaints/mine", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = s.do(http.MethodGet, "/api/dashboard/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(1), stats["totalComplaints"])
	assert.Equal(t, float64(1), stats["inProgress"])
	assert.Equal(t, float64(1), stats["lowPriority"])

	w = s.do(http.MethodGet, "/api/dashboard/priority-distribution", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"High":0,"Medium":0,"Low":1}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/dashboard/category-distribution", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"Healthcare":0,"Education":0,"Water":1,"Electricity":0,"Roads":0,"Sanitation":0,"General":0}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/dashboard/aging", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestAttachmentsDisabled(t *testing.T) {
	s := newTestServer(t, true)
	userToken := s.token("Asha", "900", domain.RoleUser)

	w := s.do(http.MethodPost, "/api/complaints/abc/attachments", userToken, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodOptions, "/api/complaints", nil)
	req.Header.Set("Origin", "https://portal.example")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestAttachmentURLsOnEveryComplaintRead(t *testing.T) {
	s := buildTestServer(t, true, &memObjects{objects: map[string][]byte{}})
	userToken := s.token("Asha", "900", domain.RoleUser)
	adminToken := s.token("Admin", "100", domain.RoleAdmin)

	w := s.do(http.MethodPost, "/api/complaints", userToken, map[string]interface{}{
		"transcriptText": waterComplaint,
		"location":       map[string]interface{}{"address": "Ward 4"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["id"].(string)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "note.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("the tap has been dry since monday"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/complaints/"+id+"/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+userToken)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	wantURL := decode(t, w)["url"].(string)
	require.True(t, strings.HasPrefix(wantURL, "https://cdn.test/complaints/"+id+"/"), wantURL)

	attachmentURL := func(complaint map[string]interface{}) string {
		list, ok := complaint["attachments"].([]interface{})
		require.True(t, ok, "attachments missing: %v", complaint)
		require.Len(t, list, 1)
		return list[0].(map[string]interface{})["url"].(string)
	}

	w = s.do(http.MethodGet, "/api/complaints/"+id, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, wantURL, attachmentURL(decode(t, w)))

	for _, read := range []struct{ path, token string }{
		{"/api/complaints", adminToken},
		{"/api/complaints/mine", userToken},
	} {
		w = s.do(http.MethodGet, read.path, read.token, nil)
		require.Equal(t, http.StatusOK, w.Code, read.path)
		var list []map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 1, read.path)
		assert.Equal(t, wantURL, attachmentURL(list[0]), read.path)
	}
}
