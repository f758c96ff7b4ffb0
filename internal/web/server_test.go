package web_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/evdwaal/staylink/internal/auth"
	authdb "github.com/evdwaal/staylink/internal/auth/db"
	"github.com/evdwaal/staylink/internal/db/testdb"
	"github.com/evdwaal/staylink/internal/email"
	profiledb "github.com/evdwaal/staylink/internal/profile/db"
	"github.com/evdwaal/staylink/internal/vtoken"
	vtokendb "github.com/evdwaal/staylink/internal/vtoken/db"
	"github.com/evdwaal/staylink/internal/web"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`code is (\d{6})`)

type serverTest struct {
	server *web.Server
	svc    *auth.Service
	sender *email.MemorySender
}

func newServerTest(t *testing.T) *serverTest {
	t.Helper()

	testDB := testdb.RunWhile(t, true)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := authdb.New(testDB)
	profiles := profiledb.New(testDB, time.Now)
	tokens := vtoken.NewService(vtokendb.New(testDB), logger, vtoken.Config{})
	sender := email.NewMemorySender()

	svc, err := auth.NewService(users, tokens, profiles, sender, func(err error) {
		t.Errorf("worker error: %v", err)
	}, auth.ServiceConfig{
		WorkerTimeout: time.Second,
		From:          "noreply@staylink.example",
		BaseURL:       "https://staylink.example",
	})
	require.NoError(t, err)

	server := web.NewServer(&web.ServerDeps{
		Logger:      logger,
		AuthService: svc,
		Profiles:    profiles,
	}, web.ServerConfig{
		AllowedOrigins: []string{"https://staylink.example"},
	})

	return &serverTest{
		server: server,
		svc:    svc,
		sender: sender,
	}
}

func (st *serverTest) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	st.server.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))

	return v
}

func parseTime(t *testing.T, v any) time.Time {
	t.Helper()

	s, ok := v.(string)
	require.True(t, ok, "expected a timestamp, got %v", v)

	parsed, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)

	return parsed
}

// registerVerified registers a hotel account and walks it through email
// verification. It returns the user id.
func (st *serverTest) registerVerified(t *testing.T, addr string) string {
	t.Helper()

	rec := st.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    addr,
		"password": "reallysecret",
		"type":     "hotel",
		"name":     "Hotel Zeezicht",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	st.svc.Wait()

	msg := st.sender.Emails[len(st.sender.Emails)-1]
	code := codePattern.FindStringSubmatch(msg.Body)
	require.NotNil(t, code)

	rec = st.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{
		"email": addr,
		"code":  code[1],
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = st.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    addr,
		"password": "reallysecret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	user := decode[map[string]any](t, rec)

	return user["id"].(string)
}

func Test_Server_Health(t *testing.T) {
	st := newServerTest(t)

	rec := st.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func Test_Server_AuthFlow(t *testing.T) {
	t.Run("ok, register, verify and login", func(t *testing.T) {
		st := newServerTest(t)

		uid := st.registerVerified(t, "alice@example.com")
		require.NotEmpty(t, uid)
	})

	t.Run("fail, wrong code gets the generic message", func(t *testing.T) {
		st := newServerTest(t)

		rec := st.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email":    "alice@example.com",
			"password": "reallysecret",
			"type":     "hotel",
		})
		require.Equal(t, http.StatusAccepted, rec.Code)
		st.svc.Wait()

		rec = st.do(t, http.MethodPost, "/api/auth/verify-email", map[string]string{
			"email": "alice@example.com",
			"code":  "999999",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid or expired code", decode[map[string]string](t, rec)["error"])
	})

	t.Run("fail, login with wrong password", func(t *testing.T) {
		st := newServerTest(t)
		st.registerVerified(t, "alice@example.com")

		rec := st.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "wrongsecret",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("fail, invalid email on register", func(t *testing.T) {
		st := newServerTest(t)

		rec := st.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email":    "not-an-email",
			"password": "reallysecret",
			"type":     "hotel",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("fail, unknown user type on register", func(t *testing.T) {
		st := newServerTest(t)

		rec := st.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"email":    "alice@example.com",
			"password": "reallysecret",
			"type":     "admin",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "unknown user type", decode[map[string]string](t, rec)["error"])
	})
}

func Test_Server_PasswordReset(t *testing.T) {
	t.Run("ok, forgot password is always accepted", func(t *testing.T) {
		st := newServerTest(t)

		rec := st.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{
			"email": "nobody@example.com",
		})
		require.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("fail, bogus reset token gets the generic message", func(t *testing.T) {
		st := newServerTest(t)
		uid := st.registerVerified(t, "alice@example.com")

		rec := st.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
			"uid":      uid,
			"token":    "bogus-token",
			"password": "freshsecret",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid or expired code", decode[map[string]string](t, rec)["error"])
	})
}

func Test_Server_Profile(t *testing.T) {
	t.Run("ok, profile lifecycle through the API", func(t *testing.T) {
		st := newServerTest(t)
		uid := st.registerVerified(t, "alice@example.com")
		path := fmt.Sprintf("/api/hotels/%s/profile", uid)

		rec := st.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		p := decode[map[string]any](t, rec)
		require.Equal(t, "Not specified", p["location"])
		require.Equal(t, false, p["complete"])
		require.Nil(t, p["completed_at"])

		// Fill in everything, the profile completes.
		rec = st.do(t, http.MethodPut, path, map[string]string{
			"location": "Amsterdam",
			"about":    "Small hotel by the canal",
			"website":  "https://zeezicht.example.com",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		p = decode[map[string]any](t, rec)
		require.Equal(t, true, p["complete"])
		completedAt := parseTime(t, p["completed_at"])

		// Clearing a watched field flips complete but keeps the timestamp.
		rec = st.do(t, http.MethodPut, path, map[string]string{
			"about": "",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		p = decode[map[string]any](t, rec)
		require.Equal(t, false, p["complete"])
		require.True(t, completedAt.Equal(parseTime(t, p["completed_at"])))
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		st := newServerTest(t)

		rec := st.do(t, http.MethodGet, "/api/hotels/2c62a0af-18ec-4d5a-b082-8f4e6a3bcd68/profile", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("fail, invalid user id", func(t *testing.T) {
		st := newServerTest(t)

		rec := st.do(t, http.MethodGet, "/api/hotels/banana/profile", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
