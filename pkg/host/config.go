// Package host implements the out-of-process half of the binding: it
// drives a real module's VTable on behalf of directives that arrive over
// the control channel from one or more Proxy peers, and forwards data
// frames in both directions.
package host

import (
	"time"

	"github.com/gwbridge/gwbridge/pkg/logging"
	"github.com/gwbridge/gwbridge/pkg/module"
	"github.com/gwbridge/gwbridge/pkg/transport"
)

// Config is a Host session's configuration.
type Config struct {
	// ControlURL is the endpoint this session listens on for control
	// frames; required.
	ControlURL string

	// MessageURL is the default data-channel endpoint used when a
	// CreateFrame's URI field is empty. A non-empty CreateFrame URI
	// always takes precedence (spec.md §4.D).
	MessageURL string

	Compression  transport.CompressionCodec
	MessageCodec module.MessageCodec
	Logger       logging.Logger

	// Registry, when set, makes Attach register the new session under
	// its connection ID before returning -- enforcing the registry's own
	// capacity (ErrRegistryFull) and uniqueness (ErrDuplicateConnectionID)
	// rules as part of Attach itself rather than leaving capacity
	// enforcement to a separately-remembered caller step. Nil means
	// Attach does no registry bookkeeping at all.
	Registry *Registry

	// SessionIdleTimeout is how long a session may go without control or
	// data activity before it counts as idle. Attach and the worker thread
	// do not read it and Attach starts no Reaper; a Reaper takes its idle
	// timeout as an argument to NewReaper.
	SessionIdleTimeout time.Duration

	// ReapInterval is a sweep interval for a Reaper (default 30s). Like
	// SessionIdleTimeout it is not read by Attach; NewReaper takes the
	// interval it uses as an argument.
	ReapInterval time.Duration
}

// Option mutates a Config under construction.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Compression:        transport.CompressionNone,
		Logger:             logging.Nop{},
		ReapInterval:       30 * time.Second,
		SessionIdleTimeout: 0,
	}
}

// NewConfig builds a Config for the given control endpoint, applying
// opts in order.
func NewConfig(controlURL string, opts ...Option) *Config {
	cfg := defaultConfig()
	cfg.ControlURL = controlURL
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

func WithMessageURL(url string) Option {
	return func(c *Config) { c.MessageURL = url }
}

func WithCompression(codec transport.CompressionCodec) Option {
	return func(c *Config) { c.Compression = codec }
}

func WithMessageCodec(codec module.MessageCodec) Option {
	return func(c *Config) { c.MessageCodec = codec }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithRegistry(reg *Registry) Option {
	return func(c *Config) { c.Registry = reg }
}

func WithSessionIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.SessionIdleTimeout = d }
}

func WithReapInterval(d time.Duration) Option {
	return func(c *Config) { c.ReapInterval = d }
}
