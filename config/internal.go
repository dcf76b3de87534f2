package config

import (
	"context"
	"sync"
)

var _ Config = (*InternalConfig)(nil)

// InternalConfig is an in-memory Config, convenient for tests and for
// embedding the library in a binary that already owns its own
// configuration story.
type InternalConfig struct {
	mu sync.RWMutex

	ServerAddress string
	LogLevelValue string

	SSLEnabledValue      bool
	SSLModeValue         string
	SSLCertFileValue     string
	SSLKeyFileValue      string
	SSLAcmeDomainsValue  []string
	SSLAcmeEmailValue    string
	SSLAcmeCacheDirValue string

	CardBase AgentCardBase
}

// NewInternalConfig returns a config with sane local-development
// defaults: plaintext HTTP on :8080, info-level logging.
func NewInternalConfig() *InternalConfig {
	return &InternalConfig{
		ServerAddress:        ":8080",
		LogLevelValue:        "info",
		SSLModeValue:         "manual",
		SSLAcmeCacheDirValue: "./.autocert-cache",
		CardBase: AgentCardBase{
			Name:               "Unnamed Agent",
			Version:            "0.0.0",
			DefaultInputModes:  []string{"text"},
			DefaultOutputModes: []string{"text"},
		},
	}
}

func (c *InternalConfig) ListenAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerAddress, nil
}

func (c *InternalConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LogLevelValue, nil
}

func (c *InternalConfig) SSLEnabled() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLEnabledValue, nil
}

func (c *InternalConfig) SSLMode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLModeValue, nil
}

func (c *InternalConfig) SSLCertFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLCertFileValue, nil
}

func (c *InternalConfig) SSLKeyFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLKeyFileValue, nil
}

func (c *InternalConfig) SSLAcmeDomains() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.SSLAcmeDomainsValue))
	copy(out, c.SSLAcmeDomainsValue)
	return out, nil
}

func (c *InternalConfig) SSLAcmeEmail() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeEmailValue, nil
}

func (c *InternalConfig) SSLAcmeCacheDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeCacheDirValue, nil
}

func (c *InternalConfig) AgentCardBase() (AgentCardBase, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CardBase, nil
}

func (c *InternalConfig) Status(ctx context.Context) error { return nil }
func (c *InternalConfig) Close() error                     { return nil }
