package oauth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	folioAuth "github.com/MrEthical07/folioAuth"
)

type fakeProvider struct {
	srv          *httptest.Server
	userStatus   atomic.Int32
	userBody     atomic.Value
	emailsBody   atomic.Value
	exchangeCode int
	userHits     atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{exchangeCode: http.StatusOK}
	fp.userStatus.Store(http.StatusOK)
	fp.userBody.Store(`{"id":42,"login":"octo","name":"","email":"octo@example.com","avatar_url":"https://img.example.com/o.png"}`)
	fp.emailsBody.Store(`[]`)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if fp.exchangeCode != http.StatusOK {
			w.WriteHeader(fp.exchangeCode)
			_, _ = io.WriteString(w, `{"error":"bad_verification_code"}`)
			return
		}
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"at-123","token_type":"bearer"}`)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fp.userHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(int(fp.userStatus.Load()))
		_, _ = io.WriteString(w, fp.userBody.Load().(string))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, fp.emailsBody.Load().(string))
	})
	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakeProvider) github() *Provider {
	p := GitHub("client", "secret", "http://app.example.com/oauth/github/callback")
	p.Config.Endpoint = oauth2.Endpoint{
		AuthURL:   fp.srv.URL + "/authorize",
		TokenURL:  fp.srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.UserInfoURL = fp.srv.URL + "/user"
	p.EmailsURL = fp.srv.URL + "/user/emails"
	return p
}

func newTestClient(fp *fakeProvider, breaker BreakerConfig) *Client {
	return NewClient(Config{
		HTTPClient: fp.srv.Client(),
		Breaker:    breaker,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), fp.github())
}

// startFlow runs Start and returns the state cookie it set.
func startFlow(t *testing.T, c *Client) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github/start", nil)
	require.NoError(t, c.Start(rec, req, "github"))

	res := rec.Result()
	require.Equal(t, http.StatusFound, res.StatusCode)
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func callbackRequest(state, code string, cookie *http.Cookie) *http.Request {
	q := url.Values{}
	q.Set("state", state)
	q.Set("code", code)
	req := httptest.NewRequest(http.MethodGet, "/oauth/github/callback?"+q.Encode(), nil)
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return req
}

func TestStartRedirectsWithState(t *testing.T) {
	fp := newFakeProvider(t)
	c := newTestClient(fp, BreakerConfig{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/oauth/github/start", nil)
	require.NoError(t, c.Start(rec, req, "github"))

	res := rec.Result()
	loc, err := url.Parse(res.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", loc.Path)
	assert.Equal(t, "client", loc.Query().Get("client_id"))

	cookie := res.Cookies()[0]
	assert.Equal(t, defaultStateCookie, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/oauth/github", cookie.Path)
	assert.Equal(t, loc.Query().Get("state"), cookie.Value)
}

func TestStartUnknownProvider(t *testing.T) {
	fp := newFakeProvider(t)
	c := newTestClient(fp, BreakerConfig{})

	err := c.Start(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), "myspace")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.ErrorIs(t, err, folioAuth.ErrValidation)
}

func TestCallbackSuccess(t *testing.T) {
	fp := newFakeProvider(t)
	c := newTestClient(fp, BreakerConfig{})
	cookie := startFlow(t, c)

	rec := httptest.NewRecorder()
	id, err := c.Callback(rec, callbackRequest(cookie.Value, "good-code", cookie), "github")
	require.NoError(t, err)

	assert.Equal(t, "github", id.Provider)
	assert.Equal(t, "42", id.Subject)
	assert.Equal(t, "octo@example.com", id.Email)
	assert.Equal(t, "octo", id.Name)
	assert.Equal(t, "https://img.example.com/o.png", id.AvatarURL)
	assert.Equal(t, "at-123", id.AccessToken)

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestCallbackStateMismatch(t *testing.T) {
	fp := newFakeProvider(t)
	c := newTestClient(fp, BreakerConfig{})
	cookie := startFlow(t, c)

	tests := []struct {
		name   string
		state  string
		cookie *http.Cookie
	}{
		{"missing cookie", cookie.Value, nil},
		{"wrong state", "forged", cookie},
		{"empty state", "", cookie},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Callback(httptest.NewRecorder(), callbackRequest(tt.state, "good-code", tt.cookie), "github")
			assert.ErrorIs(t, err, ErrStateMismatch)
			assert.ErrorIs(t, err, folioAuth.ErrTokenInvalid)
		})
	}
	assert.Zero(t, fp.userHits.Load())
}

func TestCallbackRejectedCode(t *testing.T) {
	fp := newFakeProvider(t)
	c := newTestClient(fp, BreakerConfig{})
	cookie := startFlow(t, c)

	_, err := c.Callback(httptest.NewRecorder(), callbackRequest(cookie.Value, "stale-code", cookie), "github")
	assert.ErrorIs(t, err, folioAuth.ErrTokenInvalid)
}

func TestCallbackTokenEndpointDown(t *testing.T) {
	fp := newFakeProvider(t)
	fp.exchangeCode = http.StatusBadGateway
	c := newTestClient(fp, BreakerConfig{})
	cookie := startFlow(t, c)

	_, err := c.Callback(httptest.NewRecorder(), callbackRequest(cookie.Value, "good-code", cookie), "github")
	assert.ErrorIs(t, err, folioAuth.ErrProviderUnavailable)
}

func TestCallbackFallsBackToPrimaryEmail(t *testing.T) {
	fp := newFakeProvider(t)
	fp.userBody.Store(`{"id":7,"login":"hidden","name":"Hidden User","email":null}`)
	fp.emailsBody.Store(`[{"email":"old@example.com","primary":false,"verified":true},{"email":"main@example.com","primary":true,"verified":true}]`)
	c := newTestClient(fp, BreakerConfig{})
	cookie := startFlow(t, c)

	id, err := c.Callback(httptest.NewRecorder(), callbackRequest(cookie.Value, "good-code", cookie), "github")
	require.NoError(t, err)
	assert.Equal(t, "main@example.com", id.Email)
	assert.Equal(t, "Hidden User", id.Name)
}

func TestCallbackNoVerifiedEmail(t *testing.T) {
	fp := newFakeProvider(t)
	fp.userBody.Store(`{"id":7,"login":"hidden","email":null}`)
	fp.emailsBody.Store(`[{"email":"main@example.com","primary":true,"verified":false}]`)
	c := newTestClient(fp, BreakerConfig{})
	cookie := startFlow(t, c)

	_, err := c.Callback(httptest.NewRecorder(), callbackRequest(cookie.Value, "good-code", cookie), "github")
	assert.ErrorIs(t, err, ErrEmailUnavailable)
}

func TestCallbackBreakerOpensOnUpstreamFailures(t *testing.T) {
	fp := newFakeProvider(t)
	fp.userStatus.Store(http.StatusServiceUnavailable)
	c := newTestClient(fp, BreakerConfig{
		MaxRequests:  1,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})

	for i := 0; i < 2; i++ {
		cookie := startFlow(t, c)
		_, err := c.Callback(httptest.NewRecorder(), callbackRequest(cookie.Value, "good-code", cookie), "github")
		require.ErrorIs(t, err, folioAuth.ErrProviderUnavailable)
	}
	require.EqualValues(t, 2, fp.userHits.Load())

	cookie := startFlow(t, c)
	_, err := c.Callback(httptest.NewRecorder(), callbackRequest(cookie.Value, "good-code", cookie), "github")
	assert.ErrorIs(t, err, folioAuth.ErrProviderUnavailable)
	assert.EqualValues(t, 2, fp.userHits.Load(), "open breaker must not reach the provider")
}

func TestUserinfoUnauthorizedDoesNotTripBreaker(t *testing.T) {
	fp := newFakeProvider(t)
	fp.userStatus.Store(http.StatusForbidden)
	c := newTestClient(fp, BreakerConfig{MaxRequests: 1, Timeout: time.Minute, FailureRatio: 0.1, MinRequests: 1})

	for i := 0; i < 3; i++ {
		cookie := startFlow(t, c)
		_, err := c.Callback(httptest.NewRecorder(), callbackRequest(cookie.Value, "good-code", cookie), "github")
		require.Error(t, err)
		assert.ErrorIs(t, err, folioAuth.ErrTokenInvalid)
		assert.False(t, errors.Is(err, folioAuth.ErrProviderUnavailable))
	}
	assert.EqualValues(t, 3, fp.userHits.Load())
}
