package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultServerName   = "xmlrpcd"
	DefaultServerAddr   = ":8000"
	DefaultRPCPath      = "/RPC2"
	DefaultMaxBodyBytes = 4 << 20
	DefaultClientURL    = "http://localhost:8000/RPC2"
	DefaultUserAgent    = "xmlrpcctl/1"
)

type ServerConfig struct {
	Name            string
	Addr            string
	RPCPath         string
	CorsOrigins     []string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// AuthToken, when set, is required as a bearer token on the RPC route.
	AuthToken   string
	TLSCertFile string
	TLSKeyFile  string
}

type ClientConfig struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	AuthToken string
	// CAFile adds a PEM bundle to the roots trusted for https endpoints.
	CAFile string
}

// serverFile is the on-disk shape; durations are Go duration strings.
type serverFile struct {
	Name            string   `toml:"name"`
	Addr            string   `toml:"addr"`
	RPCPath         string   `toml:"rpc_path"`
	CorsOrigins     []string `toml:"cors_origins"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`
	ReadTimeout     string   `toml:"read_timeout"`
	WriteTimeout    string   `toml:"write_timeout"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
	AuthToken       string   `toml:"auth_token,omitempty"`
	TLSCertFile     string   `toml:"tls_cert_file,omitempty"`
	TLSKeyFile      string   `toml:"tls_key_file,omitempty"`
}

type clientFile struct {
	URL       string `toml:"url"`
	Timeout   string `toml:"timeout"`
	UserAgent string `toml:"user_agent"`
	AuthToken string `toml:"auth_token,omitempty"`
	CAFile    string `toml:"ca_file,omitempty"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:            DefaultServerName,
		Addr:            DefaultServerAddr,
		RPCPath:         DefaultRPCPath,
		CorsOrigins:     []string{"http://localhost:3000"},
		MaxBodyBytes:    DefaultMaxBodyBytes,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:       DefaultClientURL,
		Timeout:   30 * time.Second,
		UserAgent: DefaultUserAgent,
	}
}

// TLS reports whether the server terminates TLS itself.
func (c ServerConfig) TLS() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// LoadServerConfig overlays the keys present in path onto the defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("rpc_path") {
		cfg.RPCPath = strings.TrimSpace(raw.RPCPath)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("max_body_bytes") {
		cfg.MaxBodyBytes = raw.MaxBodyBytes
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("tls_cert_file") {
		cfg.TLSCertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		cfg.TLSKeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"shutdown_timeout", raw.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return ServerConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}
	if meta.IsDefined("user_agent") {
		cfg.UserAgent = strings.TrimSpace(raw.UserAgent)
	}
	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}
	if meta.IsDefined("ca_file") {
		cfg.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if !strings.HasPrefix(cfg.RPCPath, "/") {
		return fmt.Errorf("server config rpc_path must start with /: %q", cfg.RPCPath)
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("server config max_body_bytes must be positive")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("server config timeouts must not be negative")
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return fmt.Errorf("server config needs both tls_cert_file and tls_key_file")
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return fmt.Errorf("client config url invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("client config url must be http or https: %q", cfg.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("client config url missing host: %q", cfg.URL)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("client config timeout must not be negative")
	}
	return nil
}
