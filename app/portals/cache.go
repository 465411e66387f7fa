package portals

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Cache loads portal templates from a directory and keeps them in memory.
type Cache struct {
	portalsDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewCache(portalsDir string) *Cache {
	return &Cache{
		portalsDir: portalsDir,
		cache:      make(map[string]*Config),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.portalsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(c.portalsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		portalName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := c.LoadConfig(portalName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Portal template loaded", "portal", portalName,
			"kind", config.Portal.Kind, "enabled", config.Settings.Enabled,
			"seeds", len(config.Seeds), "neighborhoods", len(config.Neighborhoods))
	}

	return nil
}

func (c *Cache) LoadConfig(portalName string) (*Config, error) {
	configFile := filepath.Join(c.portalsDir, portalName+".yml")
	config, err := c.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = portalName

	if err := c.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid portal template %s: %w", configFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[config.Name] = config

	return config, nil
}

func (c *Cache) GetConfig(portalName string) (*Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	config, ok := c.cache[portalName]
	if !ok {
		return nil, fmt.Errorf("portal template with name '%s' not found", portalName)
	}
	return config, nil
}

func (c *Cache) GetConfigs() map[string]*Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(c.cache))
	for k, v := range c.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (c *Cache) GetEnabledConfigs() map[string]*Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	enabled := make(map[string]*Config)
	for k, v := range c.cache {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (c *Cache) GetConfigCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Cache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Portal.Kind == "" {
		config.Portal.Kind = KindHTML
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}

	return &config, nil
}

func (c *Cache) validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("portal config is nil")
	}

	if config.Portal.BaseURL == "" {
		return fmt.Errorf("portal base URL is required")
	}

	if config.Portal.Kind != KindHTML && config.Portal.Kind != KindFeed {
		return fmt.Errorf("unknown portal kind: %s", config.Portal.Kind)
	}

	if config.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if len(config.Seeds) == 0 {
		return fmt.Errorf("at least one seed URL is required")
	}
	for i, seed := range config.Seeds {
		if seed.URL == "" {
			return fmt.Errorf("seed at index %d has an empty URL", i)
		}
	}

	if config.Portal.Kind == KindHTML {
		if config.Selector.Item == "" {
			return fmt.Errorf("item selector is required for html portals")
		}
		if config.Selector.Title == "" {
			return fmt.Errorf("title selector is required for html portals")
		}
	}

	return nil
}
