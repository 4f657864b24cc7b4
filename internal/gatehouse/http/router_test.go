package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gatehousehttp "github.com/mveljko/gatehouse/internal/gatehouse/http"
	"github.com/mveljko/gatehouse/internal/gatehouse/service"
	"github.com/mveljko/gatehouse/internal/gatehouse/store/drivers/sqlite"
	"github.com/mveljko/gatehouse/pkg/jwtx"
	"github.com/mveljko/gatehouse/pkg/kvx"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	server *httptest.Server
	client *http.Client
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mr := miniredis.RunT(t)
	kv, err := kvx.NewRedis(context.Background(), kvx.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	signer, err := jwtx.NewHS256(testSecret, "gatehouse-test")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gatehousehttp.NewRouter("test", false, st, kv, logger)
	router.TokenService = &service.TokenService{
		Signer:     signer,
		Store:      kv,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
	router.UserService = &service.UserService{Store: st, TOTPIssuer: "gatehouse-test"}
	router.RateLimiter = &service.RateLimiter{Store: kv}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{server: server, client: client, redis: mr}
}

// csrfToken fetches the login page and returns the provisioned token.
func (e *testEnv) csrfToken(t *testing.T) string {
	t.Helper()

	resp, err := e.client.Get(e.server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token := e.cookieValue(t, "csrf_token")
	require.NotEmpty(t, token)
	return token
}

func (e *testEnv) cookieValue(t *testing.T, name string) string {
	t.Helper()

	u, err := url.Parse(e.server.URL)
	require.NoError(t, err)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (e *testEnv) postJSON(t *testing.T, path string, body any, headers map[string]string) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) register(t *testing.T, username, email, password string) {
	t.Helper()

	token := e.csrfToken(t)
	resp := e.postJSON(t, "/register", map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	}, map[string]string{"X-CSRF-Token": token})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func decodeError(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/register", "/register/success", "/forgot-password"} {
		t.Run("GET "+path, func(t *testing.T) {
			resp, err := env.client.Get(env.server.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Contains(t, resp.Header.Get("Content-Type"), "text/html")

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Contains(t, string(body), "Gatehouse")
		})
	}

	t.Run("login page embeds the csrf token", func(t *testing.T) {
		resp, err := env.client.Get(env.server.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()

		token := env.cookieValue(t, "csrf_token")
		require.NotEmpty(t, token)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), token)
	})
}

func TestCSRFProtection(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "correct1horse")

	t.Run("post without token rejected", func(t *testing.T) {
		resp := env.postJSON(t, "/login", map[string]string{
			"username": "alice", "password": "correct1horse",
		}, nil)
		defer resp.Body.Close()

		// The cookie exists in the jar but no header was sent.
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("post with wrong token rejected identically", func(t *testing.T) {
		resp := env.postJSON(t, "/login", map[string]string{
			"username": "alice", "password": "correct1horse",
		}, map[string]string{"X-CSRF-Token": "attacker-guess"})
		defer resp.Body.Close()

		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("post with matching token passes", func(t *testing.T) {
		token := env.csrfToken(t)
		resp := env.postJSON(t, "/login", map[string]string{
			"username": "alice", "password": "correct1horse",
		}, map[string]string{"X-CSRF-Token": token})
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "correct1horse")

	t.Run("json login sets cookies and returns the pair", func(t *testing.T) {
		token := env.csrfToken(t)
		resp := env.postJSON(t, "/login", map[string]string{
			"username": "alice", "password": "correct1horse",
		}, map[string]string{"X-CSRF-Token": token})
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)

		var pair map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
		require.NotEmpty(t, pair["access_token"])
		require.NotEmpty(t, pair["refresh_token"])

		require.NotEmpty(t, env.cookieValue(t, "access_token"))
		require.NotEmpty(t, env.cookieValue(t, "refresh_token"))
	})

	t.Run("dashboard works with the session cookie", func(t *testing.T) {
		resp, err := env.client.Get(env.server.URL + "/dashboard")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("guest pages redirect an authenticated user", func(t *testing.T) {
		resp, err := env.client.Get(env.server.URL + "/")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, "/dashboard", resp.Header.Get("Location"))
	})
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)

	t.Run("browser redirected to login", func(t *testing.T) {
		resp, err := env.client.Get(env.server.URL + "/dashboard")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, "/", resp.Header.Get("Location"))
	})

	t.Run("json client gets 401 envelope", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/dashboard", nil)
		require.NoError(t, err)
		req.Header.Set("Accept", "application/json")

		resp, err := env.client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeError(t, resp)
		require.Equal(t, "unauthorized", body["error"])
		require.Contains(t, body, "request_id")
	})
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "correct1horse")
	token := env.csrfToken(t)

	attacker := map[string]string{
		"X-CSRF-Token":    token,
		"X-Forwarded-For": "203.0.113.9",
	}

	// Five wrong passwords burn the window for this address.
	for i := range 5 {
		resp := env.postJSON(t, "/login", map[string]string{
			"username": "alice", "password": "wrong1password",
		}, attacker)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	// Sixth attempt is refused before credentials are looked at, even
	// though the password is now correct.
	resp := env.postJSON(t, "/login", map[string]string{
		"username": "alice", "password": "correct1horse",
	}, attacker)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// The window eventually resets.
	env.redis.FastForward(16 * time.Minute)
	resp2 := env.postJSON(t, "/login", map[string]string{
		"username": "alice", "password": "wrong1password",
	}, attacker)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)

	// A different address is unaffected by the attacker's budget.
	other := map[string]string{
		"X-CSRF-Token":    token,
		"X-Forwarded-For": "198.51.100.7",
	}
	resp3 := env.postJSON(t, "/login", map[string]string{
		"username": "alice", "password": "correct1horse",
	}, other)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusOK, resp3.StatusCode)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "correct1horse")

	token := env.csrfToken(t)
	resp := env.postJSON(t, "/login", map[string]string{
		"username": "alice", "password": "correct1horse",
	}, map[string]string{"X-CSRF-Token": token})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	accessToken := env.cookieValue(t, "access_token")
	require.NotEmpty(t, accessToken)

	// Provision a fresh csrf token from an authenticated page.
	dash, err := env.client.Get(env.server.URL + "/dashboard")
	require.NoError(t, err)
	dash.Body.Close()
	csrf := env.cookieValue(t, "csrf_token")

	out := env.postJSON(t, "/logout", map[string]string{}, map[string]string{"X-CSRF-Token": csrf})
	defer out.Body.Close()
	require.Equal(t, http.StatusOK, out.StatusCode)

	// The old access token no longer opens the dashboard even if the
	// client kept a copy: its allow-list entry is gone.
	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/dashboard", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(&http.Cookie{Name: "access_token", Value: accessToken})

	replay, err := env.client.Do(req)
	require.NoError(t, err)
	defer replay.Body.Close()
	require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "correct1horse")

	token := env.csrfToken(t)
	login := env.postJSON(t, "/login", map[string]string{
		"username": "alice", "password": "correct1horse",
	}, map[string]string{"X-CSRF-Token": token})
	login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)

	oldRefresh := env.cookieValue(t, "refresh_token")
	require.NotEmpty(t, oldRefresh)

	dash, err := env.client.Get(env.server.URL + "/dashboard")
	require.NoError(t, err)
	dash.Body.Close()
	csrf := env.cookieValue(t, "csrf_token")

	resp := env.postJSON(t, "/refresh", map[string]string{}, map[string]string{"X-CSRF-Token": csrf})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	newRefresh := env.cookieValue(t, "refresh_token")
	require.NotEmpty(t, newRefresh)
	require.NotEqual(t, oldRefresh, newRefresh)

	// The rotated-out refresh token is spent.
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/refresh", strings.NewReader("{}"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: csrf})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: oldRefresh})

	bare := &http.Client{}
	replay, err := bare.Do(req)
	require.NoError(t, err)
	defer replay.Body.Close()
	require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "alice@example.com", "correct1horse")

	token := env.csrfToken(t)
	login := env.postJSON(t, "/login", map[string]string{
		"username": "alice", "password": "correct1horse",
	}, map[string]string{"X-CSRF-Token": token})
	login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)

	dash, err := env.client.Get(env.server.URL + "/dashboard")
	require.NoError(t, err)
	dash.Body.Close()
	csrf := env.cookieValue(t, "csrf_token")

	t.Run("wrong current password", func(t *testing.T) {
		resp := env.postJSON(t, "/password/change", map[string]string{
			"current_password": "wrong1password",
			"new_password":     "brand2newpass",
		}, map[string]string{"X-CSRF-Token": csrf})
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("weak new password", func(t *testing.T) {
		resp := env.postJSON(t, "/password/change", map[string]string{
			"current_password": "correct1horse",
			"new_password":     "weak",
		}, map[string]string{"X-CSRF-Token": csrf})
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("success", func(t *testing.T) {
		resp := env.postJSON(t, "/password/change", map[string]string{
			"current_password": "correct1horse",
			"new_password":     "brand2newpass",
		}, map[string]string{"X-CSRF-Token": csrf})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	t.Run("livez", func(t *testing.T) {
		resp, err := env.client.Get(env.server.URL + "/livez")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("readyz degrades when the token store dies", func(t *testing.T) {
		resp, err := env.client.Get(env.server.URL + "/readyz")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		env.redis.Close()

		resp, err = env.client.Get(env.server.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}
