/*
Package configs loads the server configuration from environment variables.

Besides the usual server settings it carries the timing of the delivery simulator (handshake,
echo, auto-reply and acceptance delays) so latency can be tuned per environment and shortened in tests.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	JWTSecret      string

	// Directory Settings. An empty DSN selects the in-memory demo directory.
	DatabaseDSN string

	// Avatar Storage Settings. An empty bucket disables presigned avatar URLs.
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Session Settings
	SessionIdleTimeout time.Duration
	DemoSeed           bool

	// Simulator holds the delivery simulator timing.
	Simulator SimulatorConfig
}

// SimulatorConfig tunes the simulated backend.
type SimulatorConfig struct {
	// HandshakeDelay is the time between connect and the connect event.
	HandshakeDelay time.Duration

	// EchoDelay is the latency before an intent is acknowledged by the server.
	EchoDelay time.Duration

	// ReplyDelay is the time between the echo of a message and the counterpart's auto-reply.
	ReplyDelay time.Duration

	// AcceptDelay is the minimum time before a connection request is answered.
	AcceptDelay time.Duration

	// AcceptJitter is the upper bound of random time added to AcceptDelay.
	AcceptJitter time.Duration

	// RejectRate is the probability in [0,1] that a request is rejected instead of accepted.
	RejectRate float64

	// AutoReply is the canned reply content.
	AutoReply string
}

// DefaultSimulatorConfig returns the demo latencies: 500ms handshake, 300ms echo, 2s reply, 3-5s accept.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		HandshakeDelay: 500 * time.Millisecond,
		EchoDelay:      300 * time.Millisecond,
		ReplyDelay:     2 * time.Second,
		AcceptDelay:    3 * time.Second,
		AcceptJitter:   2 * time.Second,
		RejectRate:     0,
		AutoReply:      "Thanks for your message! This is an automated reply from the mock socket server.",
	}
}

// LoadConfig reads and validates the configuration from environment variables, applying defaults.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	port, err := intEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", cfg.Environment)
		}
		cfg.JWTSecret = "your_default_insecure_secret_key_change_me"
	}

	// --- Directory Settings ---
	cfg.DatabaseDSN = os.Getenv("DATABASE_URL")

	// --- Avatar Storage Settings ---
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	if cfg.S3BucketName != "" {
		cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
		cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
		cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")
		if cfg.S3Endpoint == "" || cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			return nil, fmt.Errorf("S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET_NAME is set")
		}
	}

	// --- Session Settings ---
	if cfg.SessionIdleTimeout, err = durationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DemoSeed, err = boolEnv("DEMO_SEED", cfg.IsDevelopment()); err != nil {
		return nil, err
	}

	// --- Simulator Settings ---
	sim := DefaultSimulatorConfig()
	if sim.HandshakeDelay, err = durationEnv("HANDSHAKE_DELAY", sim.HandshakeDelay); err != nil {
		return nil, err
	}
	if sim.EchoDelay, err = durationEnv("ECHO_DELAY", sim.EchoDelay); err != nil {
		return nil, err
	}
	if sim.ReplyDelay, err = durationEnv("REPLY_DELAY", sim.ReplyDelay); err != nil {
		return nil, err
	}
	if sim.AcceptDelay, err = durationEnv("ACCEPT_DELAY", sim.AcceptDelay); err != nil {
		return nil, err
	}
	if sim.AcceptJitter, err = durationEnv("ACCEPT_JITTER", sim.AcceptJitter); err != nil {
		return nil, err
	}
	if sim.RejectRate, err = floatEnv("REJECT_RATE", sim.RejectRate); err != nil {
		return nil, err
	}
	if sim.RejectRate < 0 || sim.RejectRate > 1 {
		return nil, fmt.Errorf("REJECT_RATE must be within [0,1], got %v", sim.RejectRate)
	}
	if reply := os.Getenv("AUTO_REPLY_TEXT"); reply != "" {
		sim.AutoReply = reply
	}
	cfg.Simulator = sim

	return cfg, nil
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

// durationEnv parses Go duration syntax ("300ms", "2s"). Negative values are rejected.
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, raw)
	}
	return v, nil
}
