package core

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SignatureScheme selects the signing strategy used for signed endpoints.
type SignatureScheme string

const (
	// SchemeHMAC signs with HMAC-SHA256 and a hex digest.
	SchemeHMAC SignatureScheme = "hmac"
	// SchemeEd25519 signs with an Ed25519 PKCS#8 key and a base64 signature.
	SchemeEd25519 SignatureScheme = "ed25519"
)

// WindowBudget is the basic weight of one fixed-reset window and its length.
type WindowBudget struct {
	Weight   int           `json:"weight" yaml:"weight" validate:"min=1"`
	Interval time.Duration `json:"interval" yaml:"interval" validate:"min=1ms"`
}

// RateLimitConfig holds the budgets of every local rate window.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	IPAPI  WindowBudget `json:"ip_api" yaml:"ip_api"`
	IPSAPI WindowBudget `json:"ip_sapi" yaml:"ip_sapi"`

	AccountAPI  WindowBudget `json:"account_api" yaml:"account_api"`
	AccountSAPI WindowBudget `json:"account_sapi" yaml:"account_sapi"`

	OrderSecond WindowBudget `json:"order_second" yaml:"order_second"`
	OrderMinute WindowBudget `json:"order_minute" yaml:"order_minute"`
	OrderDay    WindowBudget `json:"order_day" yaml:"order_day"`
}

// DefaultRateLimitConfig returns the published Binance spot budgets.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:     true,
		IPAPI:       WindowBudget{Weight: 6000, Interval: time.Minute},
		IPSAPI:      WindowBudget{Weight: 12000, Interval: time.Minute},
		AccountAPI:  WindowBudget{Weight: 180000, Interval: time.Minute},
		AccountSAPI: WindowBudget{Weight: 180000, Interval: time.Minute},
		OrderSecond: WindowBudget{Weight: 100, Interval: 10 * time.Second},
		OrderMinute: WindowBudget{Weight: 61000, Interval: 5 * time.Minute},
		OrderDay:    WindowBudget{Weight: 200000, Interval: 24 * time.Hour},
	}
}

// StreamConfig holds settings for websocket connections.
type StreamConfig struct {
	// URL is the raw stream endpoint, e.g. wss://stream.binance.com:9443/ws.
	URL string `json:"url" yaml:"url" validate:"required"`
	// ControlFramesPerSecond paces SUBSCRIBE/UNSUBSCRIBE frames.
	ControlFramesPerSecond float64 `json:"control_frames_per_second" yaml:"control_frames_per_second" validate:"gt=0"`
	// CommandBuffer is the capacity of the command channel feeding the writer.
	CommandBuffer int `json:"command_buffer" yaml:"command_buffer" validate:"min=1"`
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout" validate:"min=0"`
}

// Config contains all configuration options for a client.
type Config struct {
	BaseURL string       `json:"base_url" yaml:"base_url" validate:"required,url"`
	Stream  StreamConfig `json:"stream" yaml:"stream"`

	Credentials      []Credentials   `json:"credentials,omitempty" yaml:"credentials" validate:"dive"`
	RotationStrategy string          `json:"rotation_strategy" yaml:"rotation_strategy" validate:"omitempty,oneof=round_robin on_error"`
	SignatureScheme  SignatureScheme `json:"signature_scheme" yaml:"signature_scheme" validate:"oneof=hmac ed25519"`
	RecvWindow       time.Duration   `json:"recv_window" yaml:"recv_window" validate:"min=0"`

	// Timeout is the deadline of a whole pipeline call. Zero disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"min=0"`

	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled" yaml:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold" yaml:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold" yaml:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout" yaml:"circuit_breaker_timeout"`

	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config for Binance spot production endpoints.
// Default values: 10s timeout, 5s recvWindow, HMAC signing, published rate budgets,
// 5 control frames per second, circuit breaker off.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://api.binance.com",
		Stream: StreamConfig{
			URL:                    "wss://stream.binance.com:9443/ws",
			ControlFramesPerSecond: 5,
			CommandBuffer:          64,
			HandshakeTimeout:       10 * time.Second,
		},
		SignatureScheme:  SchemeHMAC,
		RotationStrategy: "round_robin",
		RecvWindow:       5 * time.Second,
		Timeout:          10 * time.Second,
		RateLimit:        DefaultRateLimitConfig(),

		CircuitBreakerEnabled:          false,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

// TestnetConfig returns a Config pointing at the spot testnet.
func TestnetConfig() *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://testnet.binance.vision"
	cfg.Stream.URL = "wss://testnet.binance.vision/ws"
	return cfg
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	return nil
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, NewParameterError("parse config", err).WithCode(ErrCodeInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewParameterError("invalid config", err).WithCode(ErrCodeInvalidConfig)
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// WithCredentials appends API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds ...Credentials) *Config {
	c.Credentials = append(c.Credentials, creds...)
	return c
}

// WithSignatureScheme sets the signing strategy and returns the config for chaining.
func (c *Config) WithSignatureScheme(scheme SignatureScheme) *Config {
	c.SignatureScheme = scheme
	return c
}

// WithTimeout sets the pipeline deadline and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRecvWindow sets the default recvWindow for signed requests.
func (c *Config) WithRecvWindow(window time.Duration) *Config {
	c.RecvWindow = window
	return c
}

// WithRateLimit replaces the rate window budgets and returns the config for chaining.
func (c *Config) WithRateLimit(limits RateLimitConfig) *Config {
	c.RateLimit = limits
	return c
}

// WithCircuitBreaker enables the breaker stage with the given thresholds.
func (c *Config) WithCircuitBreaker(failThreshold, successThreshold int, timeout time.Duration) *Config {
	c.CircuitBreakerEnabled = true
	c.CircuitBreakerFailThreshold = failThreshold
	c.CircuitBreakerSuccessThreshold = successThreshold
	c.CircuitBreakerTimeout = timeout
	return c
}
