package proxy

import (
	"time"

	"github.com/gwbridge/gwbridge/pkg/logging"
	"github.com/gwbridge/gwbridge/pkg/module"
	"github.com/gwbridge/gwbridge/pkg/transport"
)

// LifecycleMode selects whether Create blocks for the handshake result.
type LifecycleMode uint8

const (
	// Sync makes Create join the async-creator goroutine and fail if the
	// handshake fails.
	Sync LifecycleMode = iota
	// Async makes Create return immediately; a failed handshake only
	// ever surfaces later as dropped sends.
	Async
)

// Config is the Proxy's configuration, consumed once at Create. The first
// five fields (ControlURL, MessageURL, ModuleArgs, LifecycleMode,
// DefaultWaitMS) are exactly spec.md §3's ProxyConfig; of these only
// MessageURL and ModuleArgs are carried in a frame (the CreateFrame). The
// rest are this binding's ambient additions (compression, logging,
// retry tuning).
type Config struct {
	ControlURL    string
	MessageURL    string
	ModuleArgs    []byte
	LifecycleMode LifecycleMode
	DefaultWaitMS int

	// CreateTimeout bounds a single create-handshake attempt (used by
	// both the async-creator and, on reattach, the supervisor). The spec
	// flags the overall retry bound as implementation-defined; this is
	// that bound.
	CreateTimeout time.Duration

	// Compression selects the optional data-channel envelope codec.
	Compression transport.CompressionCodec

	// MessageCodec decodes bytes read off the message channel back into
	// a module.Message. Required before Start is called.
	MessageCodec module.MessageCodec

	// DestroySendAttempts is the spec's "10 retries + 1 initial attempt"
	// (default 11), kept as a tunable rather than a magic literal.
	DestroySendAttempts int

	Logger logging.Logger
}

// Option mutates a Config under construction.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		DefaultWaitMS:       1000,
		CreateTimeout:       30 * time.Second,
		DestroySendAttempts: defaultDestroySendAttempts,
		Compression:         transport.CompressionNone,
		Logger:              logging.Nop{},
	}
}

// NewConfig builds a Config for the two given endpoints, applying opts
// in order.
func NewConfig(controlURL, messageURL string, opts ...Option) *Config {
	cfg := defaultConfig()
	cfg.ControlURL = controlURL
	cfg.MessageURL = messageURL
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

func WithModuleArgs(b []byte) Option {
	return func(c *Config) { c.ModuleArgs = append([]byte(nil), b...) }
}

func WithLifecycleMode(m LifecycleMode) Option {
	return func(c *Config) { c.LifecycleMode = m }
}

func WithDefaultWaitMS(ms int) Option {
	return func(c *Config) { c.DefaultWaitMS = ms }
}

func WithCreateTimeout(d time.Duration) Option {
	return func(c *Config) { c.CreateTimeout = d }
}

func WithCompression(codec transport.CompressionCodec) Option {
	return func(c *Config) { c.Compression = codec }
}

func WithMessageCodec(codec module.MessageCodec) Option {
	return func(c *Config) { c.MessageCodec = codec }
}

func WithDestroySendAttempts(n int) Option {
	return func(c *Config) { c.DestroySendAttempts = n }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// ParseConfiguration clones the given opaque configuration text. Per the
// module contract it does not interpret structure: the structured fields
// (URLs, lifecycle mode, wait interval) are expected to already be set on
// the Config the caller actually passes to Create -- typically built with
// NewConfig -- not recovered from this clone. The returned Config holds
// the default settings with the cloned text as ModuleArgs.
func ParseConfiguration(text []byte) *Config {
	if text == nil {
		return nil
	}
	cfg := defaultConfig()
	cfg.ModuleArgs = append([]byte(nil), text...)
	return &cfg
}

// FreeConfiguration releases a parsed configuration. It is a no-op on nil
// and exists only for symmetry with the module contract -- Go's GC
// reclaims the clone ParseConfiguration made.
func FreeConfiguration(cfg *Config) {}
