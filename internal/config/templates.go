package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	KindServer = "server"
	KindClient = "client"
)

// Template renders the defaults for kind as a TOML document.
func Template(kind string) (string, error) {
	var doc any
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer:
		cfg := DefaultServerConfig()
		doc = serverFile{
			Name:            cfg.Name,
			Addr:            cfg.Addr,
			RPCPath:         cfg.RPCPath,
			CorsOrigins:     cfg.CorsOrigins,
			MaxBodyBytes:    cfg.MaxBodyBytes,
			ReadTimeout:     cfg.ReadTimeout.String(),
			WriteTimeout:    cfg.WriteTimeout.String(),
			ShutdownTimeout: cfg.ShutdownTimeout.String(),
		}
	case KindClient:
		cfg := DefaultClientConfig()
		doc = clientFile{
			URL:       cfg.URL,
			Timeout:   cfg.Timeout.String(),
			UserAgent: cfg.UserAgent,
		}
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("render %s template: %w", kind, err)
	}
	return string(data), nil
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as kind and reports the first problem found.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer:
		_, err := LoadServerConfig(path)
		return err
	case KindClient:
		_, err := LoadClientConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}
