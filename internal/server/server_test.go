package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"quill/internal/config"
	"quill/internal/forms"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	testJWTSecret = "test-secret-key-12345678901234567890123456789012"
	testPassword  = "Sturdy!Passw0rd"
)

type testEnv struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

// newTestEnv builds the full application over a private sqlite database.
// Redis stays disabled.
func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	if flags == "" {
		flags = "post_images=on,threaded_comments=on"
	}
	cfg := &config.Config{
		JWTSecret:            testJWTSecret,
		Env:                  "test",
		FeatureFlags:         flags,
		MediaDir:             t.TempDir(),
		ImageMaxUploadSizeMB: 1,
	}
	db := testutil.NewTestDB(t)
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, app: srv.NewApp(), db: db}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// createUser registers an account directly through the auth service and
// returns it with a session token.
func (e *testEnv) createUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	form := e.srv.authService.NewRegisterForm(forms.RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		Password1: testPassword,
		Password2: testPassword,
	})
	form.Cost = bcrypt.MinCost
	user, token, err := e.srv.authService.Register(context.Background(), form)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) createPost(t *testing.T, authorID uint, title string) *models.Post {
	t.Helper()
	post := &models.Post{Title: title, Content: "Body of " + title, UserID: authorID}
	require.NoError(t, e.srv.postRepo.Create(context.Background(), post))
	return post
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMETextHTML)
	return req
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	return req
}

func pageRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMETextHTML)
	return req
}

// multipartRequest builds a form submission with one optional file part.
func multipartRequest(t *testing.T, method, target string, fields map[string]string, fileField, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAccept, fiber.MIMETextHTML)
	return req
}

func withCookie(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: token})
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthChecks(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, resp, &body)
	require.Equal(t, "healthy", body.Status)
	require.Equal(t, "healthy", body.Checks["database"])
	require.Equal(t, "disabled", body.Checks["redis"])
}

func TestUnknownRouteRendersErrorPage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	resp := env.do(t, pageRequest("/nowhere"))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Страница не найдена.")

	resp = env.do(t, jsonRequest(t, http.MethodGet, "/api/nowhere", nil))
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var body models.ErrorResponse
	decodeJSON(t, resp, &body)
	require.NotEmpty(t, body.Error)
}
