// Package guard adapts the session route guard to go-router middleware: every
// request through it is one navigation attempt, denied requests are redirected
// to the login entry point with the rejected destination remembered in a
// short-lived cookie.
package guard

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Authorizer mirrors the session.Engine surface this middleware needs without
// importing the root package.
type Authorizer interface {
	Authorized() bool
}

// Logger mirrors the root package logger interface.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type Config struct {
	// Authorizer decides whether the current navigation is allowed. Required.
	Authorizer Authorizer

	// Filter skips the guard for matching requests (public assets, the login
	// page itself).
	Filter func(router.Context) bool

	// LoginPath is the redirect target for denied navigation. Defaults to "/login".
	LoginPath string

	// OriginKey names the cookie remembering the rejected destination.
	// Defaults to "session_origin".
	OriginKey string

	// OriginTTL bounds how long the remembered destination stays valid.
	// Defaults to five minutes.
	OriginTTL time.Duration

	// ErrorHandler overrides the default redirect-to-login behavior.
	ErrorHandler func(router.Context, error) error

	Logger Logger
}

func (c *Config) setDefaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.OriginKey == "" {
		c.OriginKey = "session_origin"
	}
	if c.OriginTTL <= 0 {
		c.OriginTTL = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = defaultErrorHandler(*c)
	}
}

// New builds the guard middleware. It evaluates the authorizer on every
// request, never once at setup: session state changes between navigations due
// to forced logout or another tab.
func New(cfg Config) router.MiddlewareFunc {
	cfg.setDefaults()

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if cfg.Filter != nil && cfg.Filter(c) {
				return next(c)
			}

			if cfg.Authorizer != nil && cfg.Authorizer.Authorized() {
				return next(c)
			}

			richErr := errors.New("authentication required", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithMetadata(map[string]any{
					"path": c.OriginalURL(),
				})

			return cfg.ErrorHandler(c, richErr)
		}
	}
}

// SetOrigin remembers the rejected destination for the post-login redirect.
func SetOrigin(c router.Context, cfg Config) {
	cfg.setDefaults()

	c.Cookie(&router.Cookie{
		Name:     cfg.OriginKey,
		Value:    c.OriginalURL(),
		Expires:  time.Now().Add(cfg.OriginTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// Origin returns the remembered destination, clearing it so it is consumed at
// most once, and falls back to def when nothing was remembered.
func Origin(c router.Context, cfg Config, def string) string {
	cfg.setDefaults()

	r := c.Cookies(cfg.OriginKey)
	if r == "" {
		return def
	}
	clearCookie(c, cfg.OriginKey)
	return r
}

func defaultErrorHandler(cfg Config) func(router.Context, error) error {
	return func(c router.Context, err error) error {
		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryAuth, "authentication required").
				WithCode(errors.CodeUnauthorized)
		}

		cfg.Logger.Info(
			"Navigation denied, redirecting to login",
			"error", richErr.Message,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		SetOrigin(c, cfg)

		statusCode := http.StatusSeeOther
		if c.Method() == string(router.GET) {
			statusCode = http.StatusFound
		}
		return c.Redirect(cfg.LoginPath, statusCode)
	}
}

func clearCookie(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
