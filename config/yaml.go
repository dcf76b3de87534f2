package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gate4ai/a2a"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var _ Config = (*YamlConfig)(nil)

// YamlConfig is a file-backed Config that re-parses its file whenever
// Update is called, and optionally watches the file for changes.
type YamlConfig struct {
	mu         sync.RWMutex
	configPath string
	logger     *zap.Logger

	serverAddress string
	logLevel      string

	sslEnabled      bool
	sslMode         string
	sslCertFile     string
	sslKeyFile      string
	sslAcmeDomains  []string
	sslAcmeEmail    string
	sslAcmeCacheDir string

	cardBase AgentCardBase

	watcher *fsnotify.Watcher
	done    chan struct{}
}

type yamlDoc struct {
	Server struct {
		Address  string `yaml:"address"`
		LogLevel string `yaml:"log_level"`
		SSL      struct {
			Enabled      bool     `yaml:"enabled"`
			Mode         string   `yaml:"mode"`
			CertFile     string   `yaml:"cert_file"`
			KeyFile      string   `yaml:"key_file"`
			AcmeDomains  []string `yaml:"acme_domains"`
			AcmeEmail    string   `yaml:"acme_email"`
			AcmeCacheDir string   `yaml:"acme_cache_dir"`
		} `yaml:"ssl"`
		Agent struct {
			Name               string   `yaml:"name"`
			Description        string   `yaml:"description"`
			Version            string   `yaml:"version"`
			DocumentationURL   string   `yaml:"documentation_url"`
			DefaultInputModes  []string `yaml:"default_input_modes"`
			DefaultOutputModes []string `yaml:"default_output_modes"`
			Provider           *struct {
				Organization string `yaml:"organization"`
				URL          string `yaml:"url"`
			} `yaml:"provider"`
			Skills []a2a.AgentSkill `yaml:"skills"`
		} `yaml:"agent"`
	} `yaml:"server"`
}

// NewYamlConfig loads configPath once. Call Watch to keep it current.
func NewYamlConfig(configPath string, logger *zap.Logger) (*YamlConfig, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	c := &YamlConfig{
		configPath:      configPath,
		logger:          logger,
		sslMode:         "manual",
		sslAcmeCacheDir: "./.autocert-cache",
	}
	if err := c.Update(); err != nil {
		return nil, err
	}
	return c, nil
}

// Update reloads configuration from disk.
func (c *YamlConfig) Update() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		c.logger.Error("failed to read config file", zap.String("path", c.configPath), zap.Error(err))
		return err
	}

	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		c.logger.Error("failed to parse config yaml", zap.Error(err))
		return err
	}

	c.serverAddress = doc.Server.Address
	c.logLevel = doc.Server.LogLevel

	c.sslEnabled = doc.Server.SSL.Enabled
	c.sslMode = strings.ToLower(doc.Server.SSL.Mode)
	if c.sslMode != "acme" {
		c.sslMode = "manual"
	}
	c.sslCertFile = doc.Server.SSL.CertFile
	c.sslKeyFile = doc.Server.SSL.KeyFile
	c.sslAcmeDomains = doc.Server.SSL.AcmeDomains
	c.sslAcmeEmail = doc.Server.SSL.AcmeEmail
	c.sslAcmeCacheDir = doc.Server.SSL.AcmeCacheDir
	if c.sslAcmeCacheDir == "" {
		c.sslAcmeCacheDir = "./.autocert-cache"
	}

	base := AgentCardBase{
		Name:               doc.Server.Agent.Name,
		Description:        doc.Server.Agent.Description,
		Version:            doc.Server.Agent.Version,
		DocumentationURL:   doc.Server.Agent.DocumentationURL,
		DefaultInputModes:  doc.Server.Agent.DefaultInputModes,
		DefaultOutputModes: doc.Server.Agent.DefaultOutputModes,
		Skills:             doc.Server.Agent.Skills,
	}
	if doc.Server.Agent.Provider != nil {
		base.Provider = &a2a.AgentProvider{
			Organization: doc.Server.Agent.Provider.Organization,
			URL:          doc.Server.Agent.Provider.URL,
		}
	}
	c.cardBase = base

	return nil
}

// Watch starts an fsnotify watcher on the config file and calls Update
// on every write, logging (but not propagating) reload failures so a
// single bad edit doesn't take the process down. Cancel ctx to stop.
func (c *YamlConfig) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	if err := watcher.Add(c.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("config: watch %s: %w", c.configPath, err)
	}

	c.mu.Lock()
	c.watcher = watcher
	c.done = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.Update(); err != nil {
					c.logger.Warn("config reload failed, keeping previous values", zap.Error(err))
				} else {
					c.logger.Info("config reloaded", zap.String("path", c.configPath))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Error("config watcher error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (c *YamlConfig) ListenAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverAddress, nil
}

func (c *YamlConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logLevel, nil
}

func (c *YamlConfig) SSLEnabled() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslEnabled, nil
}

func (c *YamlConfig) SSLMode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslMode, nil
}

func (c *YamlConfig) SSLCertFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslCertFile, nil
}

func (c *YamlConfig) SSLKeyFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslKeyFile, nil
}

func (c *YamlConfig) SSLAcmeDomains() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.sslAcmeDomains))
	copy(out, c.sslAcmeDomains)
	return out, nil
}

func (c *YamlConfig) SSLAcmeEmail() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslAcmeEmail, nil
}

func (c *YamlConfig) SSLAcmeCacheDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sslAcmeCacheDir, nil
}

func (c *YamlConfig) AgentCardBase() (AgentCardBase, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cardBase, nil
}

func (c *YamlConfig) Status(ctx context.Context) error {
	if _, err := os.Stat(c.configPath); err != nil {
		return fmt.Errorf("config file error: %w", err)
	}
	return nil
}

func (c *YamlConfig) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
