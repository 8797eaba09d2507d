package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/danmuck/labctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	testlog.Start(t)
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func formRequest(t *testing.T, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if image != nil {
		part, err := w.CreateFormFile("image", "image.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	return rr, body
}

func TestUploadImageStoresMetadata(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	rr, body := serve(s, formRequest(t, "/upload/image", map[string]string{
		"name":  "John Doe",
		"email": "john@example.com",
	}, []byte("jpeg-bytes")))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, "John Doe", body["name"])
	assert.Equal(t, "image.jpg", body["filename"])
	assert.EqualValues(t, len("jpeg-bytes"), body["size"])

	uploads, err := s.Store().UploadsByEmail("JOHN@example.com")
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, int64(len("jpeg-bytes")), uploads[0].Size)
}

func TestUploadImageValidation(t *testing.T) {
	s := newTestServer(t, Config{MaxUploadBytes: 4})

	rr, body := serve(s, formRequest(t, "/upload/image", map[string]string{
		"name":  "John Doe",
		"email": "john@example.com",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "image field is required", body["error"])

	rr, _ = serve(s, formRequest(t, "/upload/image", map[string]string{
		"name": "John Doe",
	}, []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, body = serve(s, formRequest(t, "/upload/image", map[string]string{
		"name":  "John Doe",
		"email": "john@example.com",
	}, []byte("too large for the limit")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "file size exceeds the maximum limit", body["error"])
}

func TestCreateUserAndDuplicate(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	rr, body := serve(s, formRequest(t, "/users/create", map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
	}, nil))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, body["id"])
	assert.Equal(t, "jane@example.com", body["email"])

	rr, _ = serve(s, formRequest(t, "/users/create", map[string]string{
		"name":  "Jane Again",
		"email": "Jane@Example.com",
	}, nil))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, body = serve(s, httptest.NewRequest(http.MethodGet, "/users/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Jane Doe", body["name"])

	rr, _ = serve(s, httptest.NewRequest(http.MethodGet, "/users/99", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = serve(s, httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateUserRejectsBadEmail(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	rr, body := serve(s, formRequest(t, "/users/create", map[string]string{
		"name":  "Jane Doe",
		"email": "not-an-email",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, body["error"], "invalid email")
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	rr, body := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body["status"])

	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "labctl_http_requests_total")
}

func TestServeStopsOnCancel(t *testing.T) {
	s := newTestServer(t, Config{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop after cancel")
	}
}
