package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"contactbook/backend/internal/model"
	"contactbook/backend/internal/repository"
)

type fakeTokenStore struct {
	mu     sync.Mutex
	active map[string]bool
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{active: make(map[string]bool)}
}

func (f *fakeTokenStore) Store(_ context.Context, _ uint64, refreshToken string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[refreshToken] = true
	return nil
}

func (f *fakeTokenStore) IsActive(_ context.Context, refreshToken string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[refreshToken], nil
}

func (f *fakeTokenStore) Revoke(_ context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, refreshToken)
	return nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		AppPort:            "0",
		JWTSecret:          "test-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		UploadDir:          t.TempDir(),
		LoginRatePerMinute: 600,
		LoginRateBurst:     100,
	}
}

func newTestServer(t *testing.T) (*Server, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	s, err := newServer(testConfig(t), nil, store.Users(), store.Contacts(), newFakeTokenStore())
	require.NoError(t, err)
	return s, store
}

func doJSON(t *testing.T, s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
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
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func signupUser(t *testing.T, s *Server, name, email, password, role string) (string, uint64) {
	t.Helper()
	body := map[string]string{"name": name, "email": email, "password": password}
	if role != "" {
		body["role"] = role
	}
	rec := doJSON(t, s, http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	payload := decodeBody(t, rec)
	token, _ := payload["accessToken"].(string)
	require.NotEmpty(t, token)
	user, _ := payload["user"].(map[string]interface{})
	id, _ := user["id"].(float64)
	return token, uint64(id)
}

func TestSignupAndLogin(t *testing.T) {
	s, _ := newTestServer(t)

	_, _ = signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@x.com", "password": "secret1", "role": "user",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	payload := decodeBody(t, rec)
	require.NotEmpty(t, payload["accessToken"])
	require.NotEmpty(t, payload["refreshToken"])

	// Wrong password and unknown email are indistinguishable.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@x.com", "password": "wrong12", "role": "user",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ghost@x.com", "password": "secret1", "role": "user",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Role must match the stored role.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@x.com", "password": "secret1", "role": "admin",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSignupValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "x@x.com", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/signup", "", map[string]string{"name": "A", "email": "x@x.com", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/signup", "", map[string]string{"name": "A", "email": "x@x.com", "password": "secret1", "role": "root"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupDuplicateEmail(t *testing.T) {
	s, store := newTestServer(t)

	_, _ = signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Ann Again", "email": "ann@x.com", "password": "secret2",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "already registered")

	users, err := store.Users().ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/contacts", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshTokenRejectedAsAccessToken(t *testing.T) {
	s, _ := newTestServer(t)
	_, _ = signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@x.com", "password": "secret1", "role": "user",
	})
	refreshToken, _ := decodeBody(t, rec)["refreshToken"].(string)

	rec = doJSON(t, s, http.MethodGet, "/api/contacts", refreshToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContactCrudFlow(t *testing.T) {
	s, _ := newTestServer(t)
	token, annID := signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	rec := doJSON(t, s, http.MethodPost, "/api/contacts", token, map[string]interface{}{
		"name": "Bob", "category": "work", "phone": "123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	contactID := created["id"].(float64)
	require.Equal(t, float64(annID), created["user_id"])
	require.Equal(t, "work", created["category"])

	rec = doJSON(t, s, http.MethodGet, "/api/contacts", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	path := "/api/contacts/" + jsonID(contactID)

	// Partial update: only phone changes.
	rec = doJSON(t, s, http.MethodPut, path, token, map[string]string{"phone": "555"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody(t, rec)
	require.Equal(t, "555", updated["phone"])
	require.Equal(t, "Bob", updated["name"])

	// Empty update is a rejected no-op.
	rec = doJSON(t, s, http.MethodPut, path, token, map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "no fields")

	// Toggle twice returns to the original state.
	rec = doJSON(t, s, http.MethodPatch, path+"/favorite", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(1), decodeBody(t, rec)["is_favorite"])
	rec = doJSON(t, s, http.MethodPatch, path+"/favorite", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, float64(0), decodeBody(t, rec)["is_favorite"])

	rec = doJSON(t, s, http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContactFavoriteCoercionForms(t *testing.T) {
	s, _ := newTestServer(t)
	token, annID := signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	for _, favorite := range []interface{}{true, 1, "1"} {
		rec := doJSON(t, s, http.MethodPost, "/api/contacts", token, map[string]interface{}{
			"name": "Fav", "is_favorite": favorite,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.Equal(t, float64(1), decodeBody(t, rec)["is_favorite"])
	}

	rec := doJSON(t, s, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody(t, rec)
	require.Equal(t, float64(3), stats["total"], "owner %d", annID)
	require.Equal(t, float64(3), stats["favorites"])

	rec = doJSON(t, s, http.MethodPost, "/api/contacts", token, map[string]interface{}{
		"name": "Bad", "is_favorite": "maybe",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactOwnershipOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	annToken, _ := signupUser(t, s, "Ann", "ann@x.com", "secret1", "")
	eveToken, _ := signupUser(t, s, "Eve", "eve@x.com", "secret1", "")
	adminToken, _ := signupUser(t, s, "Root", "root@x.com", "secret1", "admin")

	rec := doJSON(t, s, http.MethodPost, "/api/contacts", annToken, map[string]string{"name": "Bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	path := "/api/contacts/" + jsonID(decodeBody(t, rec)["id"].(float64))

	// Non-owner gets 403 for an existing contact, 404 for a missing one.
	rec = doJSON(t, s, http.MethodGet, path, eveToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/api/contacts/99999", eveToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Admin bypasses ownership but not existence.
	rec = doJSON(t, s, http.MethodGet, path, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/api/contacts/99999", adminToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Eve's own listing never shows Ann's contact.
	rec = doJSON(t, s, http.MethodGet, "/api/contacts", eveToken, nil)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Empty(t, list)
}

func TestDashboardScenario(t *testing.T) {
	s, _ := newTestServer(t)
	token, _ := signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	rec := doJSON(t, s, http.MethodPost, "/api/contacts", token, map[string]string{"name": "Bob", "category": "work"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody(t, rec)
	require.Equal(t, float64(1), stats["total"])
	require.Equal(t, float64(0), stats["favorites"])
	require.Equal(t, float64(1), stats["work"])
	require.Equal(t, float64(0), stats["personal"])
}

type failingStatsStore struct {
	repository.ContactStore
}

func (f failingStatsStore) CountStats(context.Context, uint64) (model.ContactStats, error) {
	return model.ContactStats{}, errors.New("store down")
}

func TestDashboardDegradesToZeroCounts(t *testing.T) {
	store := repository.NewMemoryStore()
	s, err := newServer(testConfig(t), nil, store.Users(), failingStatsStore{store.Contacts()}, newFakeTokenStore())
	require.NoError(t, err)

	token, _ := signupUser(t, s, "Ann", "ann@x.com", "secret1", "")
	rec := doJSON(t, s, http.MethodGet, "/api/dashboard", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody(t, rec)
	require.Equal(t, float64(0), stats["total"])
	require.Equal(t, float64(0), stats["favorites"])
}

func TestAdminEndpoints(t *testing.T) {
	s, store := newTestServer(t)
	annToken, annID := signupUser(t, s, "Ann", "ann@x.com", "secret1", "")
	adminToken, adminID := signupUser(t, s, "Root", "root@x.com", "secret1", "admin")

	rec := doJSON(t, s, http.MethodPost, "/api/contacts", annToken, map[string]string{"name": "Bob"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Non-admin is rejected outright.
	rec = doJSON(t, s, http.MethodGet, "/api/admin/users", annToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)

	rec = doJSON(t, s, http.MethodGet, "/api/admin/contacts", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Admins cannot delete themselves.
	rec = doJSON(t, s, http.MethodDelete, "/api/admin/users/"+jsonID(float64(adminID)), adminToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Deleting Ann cascades to her contacts.
	rec = doJSON(t, s, http.MethodDelete, "/api/admin/users/"+jsonID(float64(annID)), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contacts, err := store.Contacts().ListByOwner(context.Background(), annID)
	require.NoError(t, err)
	require.Empty(t, contacts)

	rec = doJSON(t, s, http.MethodDelete, "/api/admin/users/99999", adminToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshRotationAndLogout(t *testing.T) {
	s, _ := newTestServer(t)
	_, _ = signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@x.com", "password": "secret1", "role": "user",
	})
	firstRefresh, _ := decodeBody(t, rec)["refreshToken"].(string)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": firstRefresh})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	secondRefresh, _ := decodeBody(t, rec)["refreshToken"].(string)
	require.NotEqual(t, firstRefresh, secondRefresh)

	// The rotated-out token is no longer usable.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": firstRefresh})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": secondRefresh})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, s, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": secondRefresh})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.LoginRatePerMinute = 1
	cfg.LoginRateBurst = 1
	store := repository.NewMemoryStore()
	s, err := newServer(cfg, nil, store.Users(), store.Contacts(), newFakeTokenStore())
	require.NoError(t, err)

	_, _ = signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	body := map[string]string{"email": "ann@x.com", "password": "secret1", "role": "user"}
	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", body)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different account is unaffected.
	_, _ = signupUser(t, s, "Eve", "eve@x.com", "secret1", "")
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "eve@x.com", "password": "secret1", "role": "user",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMultipartContactCreateWithUpload(t *testing.T) {
	s, _ := newTestServer(t)
	token, _ := signupUser(t, s, "Ann", "ann@x.com", "secret1", "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Pic Pal"))
	require.NoError(t, mw.WriteField("is_favorite", "1"))
	fw, err := mw.CreateFormFile("profile_image", "avatar.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/contacts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	require.Equal(t, float64(1), created["is_favorite"])

	filename, _ := created["profile_image"].(string)
	require.NotEmpty(t, filename)
	_, err = os.Stat(filepath.Join(s.cfg.UploadDir, filename))
	require.NoError(t, err)
}

func TestContactForm(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/contact-form/contact", "", map[string]string{
		"firstName": "Ann", "lastName": "Example", "email": "ann@x.com", "message": "hi",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func jsonID(id float64) string {
	return strconv.FormatUint(uint64(id), 10)
}
