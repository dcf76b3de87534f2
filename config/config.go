// Package config defines the narrow configuration surface the A2A
// server actually consumes: listen address, log level, TLS mode, and
// the static fields of the AgentCard. It is intentionally smaller than
// a general-purpose gateway config: authentication, backend proxying,
// and user/key management are out of scope per the library's Non-goals.
package config

import (
	"context"
	"errors"

	"github.com/gate4ai/a2a"
)

// ErrNotFound reports an absent configuration key. Neither
// InternalConfig nor YamlConfig returns it; both report an unset value
// as its zero value.
var ErrNotFound = errors.New("config: not found")

// AgentCardBase holds the fields of the AgentCard that come from static
// configuration rather than runtime capability negotiation.
type AgentCardBase struct {
	Name               string
	Description        string
	Version            string
	DocumentationURL   string
	Provider           *a2a.AgentProvider
	DefaultInputModes  []string
	DefaultOutputModes []string
	Skills             []a2a.AgentSkill
}

// Config is implemented by InternalConfig (in-memory) and YamlConfig
// (file-backed, hot-reloadable).
type Config interface {
	ListenAddr() (string, error)
	LogLevel() (string, error)

	SSLEnabled() (bool, error)
	SSLMode() (string, error) // "manual" or "acme"
	SSLCertFile() (string, error)
	SSLKeyFile() (string, error)
	SSLAcmeDomains() ([]string, error)
	SSLAcmeEmail() (string, error)
	SSLAcmeCacheDir() (string, error)

	AgentCardBase() (AgentCardBase, error)

	Status(ctx context.Context) error
	Close() error
}
