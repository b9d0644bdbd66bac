package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/server/auth"
	"github.com/wassertech/fieldsync/internal/server/services"
	"github.com/wassertech/fieldsync/internal/wire"
)

var testSecret = []byte("router-test-secret")

type fakeUsers struct {
	session *services.Session
	err     error
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (*services.Session, error) {
	return f.session, f.err
}

type fakeSync struct {
	pushResp  *wire.PushResponse
	pullResp  *wire.PullResponse
	lastSince int64
	lastKinds []wire.Kind
	claims    *auth.Claims
}

func (f *fakeSync) Push(ctx context.Context, claims *auth.Claims, req *wire.PushRequest) (*wire.PushResponse, error) {
	f.claims = claims
	return f.pushResp, nil
}

func (f *fakeSync) Pull(ctx context.Context, claims *auth.Claims, since int64, kinds []wire.Kind, clientID string) (*wire.PullResponse, error) {
	f.claims = claims
	f.lastSince = since
	f.lastKinds = kinds
	return f.pullResp, nil
}

type fakeReports struct {
	downloadErr error
}

func (f *fakeReports) UploadURL(ctx context.Context) (string, string, error) {
	return "reports/k", "https://s3/put", nil
}

func (f *fakeReports) DownloadURL(ctx context.Context, claims *auth.Claims, id string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return "https://s3/get/" + id, nil
}

func setupRouter(t *testing.T, sync *fakeSync) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &fakeUsers{session: &services.Session{Token: "tok", Role: "ADMIN"}}
	router := NewRouter(users, sync, &fakeReports{}, testSecret, logging.NewNop())

	token, err := auth.GenerateToken("u-1", "ADMIN", "", testSecret, time.Minute)
	require.NoError(t, err)
	return router, token
}

func TestLoginEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	users := &fakeUsers{session: &services.Session{Token: "tok-1", Role: "CLIENT", ClientID: "c-1"}}
	router := NewRouter(users, &fakeSync{}, &fakeReports{}, testSecret, logging.NewNop())

	body, _ := json.Marshal(map[string]string{"email": "a@b.c", "password": "pw"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "tok-1", resp["token"])
	require.Equal(t, "c-1", resp["clientId"])
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	users := &fakeUsers{err: common.ErrInvalidCredentials}
	router := NewRouter(users, &fakeSync{}, &fakeReports{}, testSecret, logging.NewNop())

	body, _ := json.Marshal(map[string]string{"email": "a@b.c", "password": "bad"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body)))

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPushEndpoint_RequiresAuth(t *testing.T) {
	router, _ := setupRouter(t, &fakeSync{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync/push", bytes.NewReader([]byte("{}"))))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sync/push", bytes.NewReader([]byte("{}")))
	req.Header.Set("Authorization", "Bearer garbage")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPushEndpoint(t *testing.T) {
	sync := &fakeSync{pushResp: &wire.PushResponse{
		Success: true,
		Result:  map[wire.Kind]wire.KindResult{wire.KindClients: {Inserted: []string{"c-1"}}},
	}}
	router, token := setupRouter(t, sync)

	pushReq := &wire.PushRequest{}
	pushReq.Add(wire.KindClients, wire.Record{ID: "c-1", UpdatedAtEpoch: 1000})
	body, err := json.Marshal(pushReq)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sync/push", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u-1", sync.claims.UserID)

	var resp wire.PushResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, []string{"c-1"}, resp.Result[wire.KindClients].Inserted)
}

func TestPullEndpoint(t *testing.T) {
	sync := &fakeSync{pullResp: &wire.PullResponse{Timestamp: 4200}}
	router, token := setupRouter(t, sync)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sync/pull?since=1500", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(1500), sync.lastSince)

	var resp wire.PullResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(4200), resp.Timestamp)
}

func TestPullEndpoint_EntitySubset(t *testing.T) {
	sync := &fakeSync{pullResp: &wire.PullResponse{Timestamp: 4200}}
	router, token := setupRouter(t, sync)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sync/pull?since=0&entities[]=reports&entities[]=icons", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []wire.Kind{wire.KindReports, wire.KindIcons}, sync.lastKinds)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/sync/pull?since=0&entities[]=no_such_table", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPullEndpoint_BadSince(t *testing.T) {
	router, token := setupRouter(t, &fakeSync{pullResp: &wire.PullResponse{Timestamp: 1}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sync/pull?since=yesterday", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportEndpoints(t *testing.T) {
	router, token := setupRouter(t, &fakeSync{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reports/r-1/url", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "https://s3/get/r-1")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/reports/upload-url", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "https://s3/put")
}

func TestReportEndpoint_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := &fakeUsers{}
	router := NewRouter(users, &fakeSync{}, &fakeReports{downloadErr: common.ErrNotFound}, testSecret, logging.NewNop())

	token, err := auth.GenerateToken("u-1", "ADMIN", "", testSecret, time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reports/missing/url", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
