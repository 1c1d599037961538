package session

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Config holds the externally tunable session policy. Timeout is the
// inactivity window, PollInterval how often the monitor compares now against
// last activity, SignalKinds which interaction signals count as liveness.
type Config struct {
	// Timeout is the inactivity duration after which the monitor forces a
	// logout. Zero or negative is a configuration error: the monitor will
	// refuse to arm and the engine logs a startup warning.
	Timeout time.Duration

	// PollInterval is the monitor's tick cadence. Defaults to a minute.
	PollInterval time.Duration

	// SignalKinds is the liveness signal set the watchdog subscribes to.
	// Defaults to DefaultSignalKinds.
	SignalKinds []SignalKind

	// LoginPath is the login entry point guards redirect to. Defaults to "/login".
	LoginPath string

	// PersistSnapshot persists the user snapshot alongside the token so a
	// restart restores the full user instead of a placeholder.
	PersistSnapshot bool

	// WarningLead, when positive, fires the warning handler once per armed
	// session when remaining time drops below this lead.
	WarningLead time.Duration
}

// DefaultConfig returns the policy used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Minute,
		PollInterval: time.Minute,
		SignalKinds:  DefaultSignalKinds(),
		LoginPath:    "/login",
	}
}

func (c *Config) setDefaults() {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if len(c.SignalKinds) == 0 {
		c.SignalKinds = def.SignalKinds
	}
	if c.LoginPath == "" {
		c.LoginPath = def.LoginPath
	}
}

// Validate checks the timeout policy. A failing Timeout does not prevent
// engine construction; it disables the inactivity monitor (fail safe: no
// spurious forced logouts from a misconfigured policy).
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Required, validation.By(positiveDuration)),
		validation.Field(&c.PollInterval, validation.Required, validation.By(positiveDuration)),
		validation.Field(&c.SignalKinds, validation.Required),
	)
}

func positiveDuration(value any) error {
	d, ok := value.(time.Duration)
	if !ok || d <= 0 {
		return errors.New("must be a positive duration")
	}
	return nil
}
