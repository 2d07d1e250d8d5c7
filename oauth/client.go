package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/MrEthical07/folioAuth/internal"
)

const (
	defaultStateCookie = "folio_oauth_state"
	defaultStateTTL    = 10 * time.Minute
	maxProfileBytes    = 1 << 20
)

var (
	// ErrUnknownProvider is returned for a provider name that was not registered.
	ErrUnknownProvider = fmt.Errorf("%w: unknown identity provider", folioAuth.ErrValidation)

	// ErrStateMismatch is returned when the callback state does not match the
	// state cookie set by Start.
	ErrStateMismatch = fmt.Errorf("%w: oauth state mismatch", folioAuth.ErrTokenInvalid)

	// ErrEmailUnavailable is returned when the provider did not disclose a
	// verified email address.
	ErrEmailUnavailable = fmt.Errorf("%w: provider did not return a verified email", folioAuth.ErrValidation)

	errUpstream = errors.New("identity provider returned an error")
)

// BreakerConfig controls the circuit breaker placed in front of each
// provider's userinfo endpoint.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Config configures a Client.
type Config struct {
	StateCookie  string
	StateTTL     time.Duration
	CookieSecure bool
	HTTPClient   *http.Client
	Breaker      BreakerConfig
}

// Client drives the handshake for a fixed set of providers.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	providers map[string]*Provider
	breakers  map[string]*gobreaker.CircuitBreaker[[]byte]
	now       func() time.Time
}

// NewClient returns a Client for the given providers. Zero values in cfg
// are replaced with defaults.
func NewClient(cfg Config, logger *slog.Logger, providers ...*Provider) *Client {
	if cfg.StateCookie == "" {
		cfg.StateCookie = defaultStateCookie
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = defaultStateTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		providers: make(map[string]*Provider, len(providers)),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[[]byte], len(providers)),
		now:       time.Now,
	}
	for _, p := range providers {
		if p == nil || p.Name == "" {
			continue
		}
		c.providers[p.Name] = p
		c.breakers[p.Name] = c.newBreaker(p.Name)
	}
	return c
}

func (c *Client) newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	bc := c.cfg.Breaker
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "oauth-" + name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureRatio
		},
		// Only upstream trouble counts against the provider; a rejected
		// access token is the caller's problem.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, errUpstream)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("oauth circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// Providers returns the registered provider names.
func (c *Client) Providers() []string {
	out := make([]string, 0, len(c.providers))
	for name := range c.providers {
		out = append(out, name)
	}
	return out
}

// Start sets the state cookie and redirects the browser to the provider's
// consent page.
func (c *Client) Start(w http.ResponseWriter, r *http.Request, provider string) error {
	p, ok := c.providers[provider]
	if !ok {
		return ErrUnknownProvider
	}
	state, err := internal.NewState()
	if err != nil {
		return fmt.Errorf("generate oauth state: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.StateCookie,
		Value:    state,
		Path:     "/oauth/" + p.Name,
		Expires:  c.now().Add(c.cfg.StateTTL),
		MaxAge:   int(c.cfg.StateTTL / time.Second),
		HttpOnly: true,
		Secure:   c.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, p.Config.AuthCodeURL(state), http.StatusFound)
	return nil
}

// Callback validates the returned state, exchanges the code and fetches the
// user's profile. The state cookie is cleared whatever the outcome.
func (c *Client) Callback(w http.ResponseWriter, r *http.Request, provider string) (folioAuth.ExternalIdentity, error) {
	p, ok := c.providers[provider]
	if !ok {
		return folioAuth.ExternalIdentity{}, ErrUnknownProvider
	}

	cookie, err := r.Cookie(c.cfg.StateCookie)
	c.clearState(w, p.Name)
	if err != nil || cookie.Value == "" {
		return folioAuth.ExternalIdentity{}, ErrStateMismatch
	}
	state := r.URL.Query().Get("state")
	if subtle.ConstantTimeCompare([]byte(state), []byte(cookie.Value)) != 1 {
		return folioAuth.ExternalIdentity{}, ErrStateMismatch
	}
	if e := r.URL.Query().Get("error"); e != "" {
		return folioAuth.ExternalIdentity{}, fmt.Errorf("%w: provider denied consent: %s", folioAuth.ErrValidation, e)
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		return folioAuth.ExternalIdentity{}, fmt.Errorf("%w: missing authorization code", folioAuth.ErrValidation)
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, c.cfg.HTTPClient)
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return folioAuth.ExternalIdentity{}, classifyExchange(err)
	}

	profile, err := c.profile(ctx, p, token)
	if err != nil {
		return folioAuth.ExternalIdentity{}, err
	}
	if profile.Email == "" {
		return folioAuth.ExternalIdentity{}, ErrEmailUnavailable
	}

	return folioAuth.ExternalIdentity{
		Provider:    p.Name,
		Subject:     profile.Subject,
		Email:       profile.Email,
		Name:        profile.Name,
		AvatarURL:   profile.AvatarURL,
		AccessToken: token.AccessToken,
	}, nil
}

func (c *Client) clearState(w http.ResponseWriter, provider string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.StateCookie,
		Value:    "",
		Path:     "/oauth/" + provider,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *Client) profile(ctx context.Context, p *Provider, token *oauth2.Token) (Profile, error) {
	body, err := c.fetch(ctx, p, p.UserInfoURL, token)
	if err != nil {
		return Profile{}, err
	}
	profile, err := p.decode(body)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", folioAuth.ErrProviderUnavailable, err)
	}
	if profile.Email != "" || p.EmailsURL == "" {
		return profile, nil
	}

	body, err = c.fetch(ctx, p, p.EmailsURL, token)
	if err != nil {
		return Profile{}, err
	}
	email, err := primaryEmail(body)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", folioAuth.ErrProviderUnavailable, err)
	}
	profile.Email = email
	return profile, nil
}

// fetch GETs url with the access token through the provider's breaker.
func (c *Client) fetch(ctx context.Context, p *Provider, url string, token *oauth2.Token) ([]byte, error) {
	body, err := c.breakers[p.Name].Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, err
		}
		token.SetAuthHeader(req)
		req.Header.Set("Accept", "application/json")

		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUpstream, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", errUpstream, err)
		}
		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", errUpstream, resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: userinfo status %d", folioAuth.ErrTokenInvalid, resp.StatusCode)
		}
		return data, nil
	})
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.logger.WarnContext(ctx, "oauth userinfo short-circuited", slog.String("provider", p.Name))
		return nil, fmt.Errorf("%w: %v", folioAuth.ErrProviderUnavailable, err)
	case errors.Is(err, errUpstream):
		c.logger.WarnContext(ctx, "oauth userinfo failed",
			slog.String("provider", p.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", folioAuth.ErrProviderUnavailable, err)
	default:
		return nil, err
	}
}

func classifyExchange(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500 {
		return fmt.Errorf("%w: code exchange rejected", folioAuth.ErrTokenInvalid)
	}
	return fmt.Errorf("%w: code exchange: %v", folioAuth.ErrProviderUnavailable, err)
}
