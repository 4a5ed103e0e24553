package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MANIMFORGE_RENDER_QUALITY.
const EnvPrefix = "MANIMFORGE"

// ConfigWatcher is notified after a successful (re)load.
type ConfigWatcher func(oldConfig, newConfig *Config)

// ConfigManager manages application configuration
type ConfigManager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
	envFile    string
	watchers   []ConfigWatcher
	logger     hclog.Logger
}

var (
	globalManager *ConfigManager
	managerOnce   sync.Once
)

// GetConfigManager returns the process-wide configuration manager
func GetConfigManager() *ConfigManager {
	managerOnce.Do(func() {
		globalManager = NewConfigManager(hclog.NewNullLogger())
	})
	return globalManager
}

// NewConfigManager creates a manager holding the default configuration
func NewConfigManager(logger hclog.Logger) *ConfigManager {
	return &ConfigManager{
		config:  DefaultConfig(),
		envFile: ".env",
		logger:  logger.Named("config"),
	}
}

// SetLogger replaces the manager's logger.
func (cm *ConfigManager) SetLogger(logger hclog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger.Named("config")
}

// SetEnvFile sets the dotenv file read during load; empty disables it.
func (cm *ConfigManager) SetEnvFile(path string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.envFile = path
}

// LoadConfig loads defaults, then the file at configPath if it exists, then
// the dotenv file, then environment overrides. The result is validated
// before it replaces the current configuration.
func (cm *ConfigManager) LoadConfig(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	oldConfig := cm.config
	newConfig := DefaultConfig()

	if configPath != "" && fileExists(configPath) {
		if err := loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
		cm.logger.Info("configuration loaded from file", "path", configPath)
	}

	if cm.envFile != "" && fileExists(cm.envFile) {
		// existing environment wins over the file
		if err := godotenv.Load(cm.envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", cm.envFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, newConfig); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := ValidateSchema(newConfig); err != nil {
		return fmt.Errorf("configuration schema check failed: %w", err)
	}
	if err := validateConfig(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	applyDerivedConfig(newConfig)

	cm.configPath = configPath
	cm.config = newConfig

	for _, watcher := range cm.watchers {
		go watcher(oldConfig, newConfig)
	}
	return nil
}

// Reload loads again from the last config path.
func (cm *ConfigManager) Reload() error {
	cm.mu.RLock()
	path := cm.configPath
	cm.mu.RUnlock()
	return cm.LoadConfig(path)
}

// GetConfig returns a copy of the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	c := *cm.config
	return &c
}

// ConfigPath returns the file the configuration was loaded from.
func (cm *ConfigManager) ConfigPath() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.configPath
}

// AddWatcher registers a callback for configuration changes
func (cm *ConfigManager) AddWatcher(watcher ConfigWatcher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.watchers = append(cm.watchers, watcher)
}

// SaveConfig writes the current configuration back to its file.
func (cm *ConfigManager) SaveConfig() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.configPath == "" {
		return fmt.Errorf("no config path set")
	}
	return saveToFile(cm.configPath, cm.config)
}

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}
}

func saveToFile(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func validateConfig(config *Config) error {
	if config.Render.OutputDir == "" || config.Render.TempDir == "" {
		return fmt.Errorf("render output_dir and temp_dir are required")
	}
	if filepath.Clean(config.Render.OutputDir) == filepath.Clean(config.Render.TempDir) {
		return fmt.Errorf("render output_dir and temp_dir must differ")
	}
	if config.Database.Type == "postgres" && config.Database.DSN == "" {
		return fmt.Errorf("postgres database requires a dsn")
	}
	if config.Generator.Provider == "gemini" && config.Generator.APIKey == "" {
		return fmt.Errorf("gemini generator requires an api key")
	}
	if config.Projects.Backend == "redis" && config.Projects.RedisAddr == "" {
		return fmt.Errorf("redis project store requires redis_addr")
	}
	return nil
}

func applyDerivedConfig(config *Config) {
	if !strings.HasPrefix(config.Render.URLPrefix, "/") {
		config.Render.URLPrefix = "/" + config.Render.URLPrefix
	}
	config.Render.URLPrefix = strings.TrimRight(config.Render.URLPrefix, "/")
	if config.Render.URLPrefix == "" {
		config.Render.URLPrefix = "/"
	}
	if config.Generator.RequestsPerMin <= 0 {
		config.Generator.RequestsPerMin = 1
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Get returns the process-wide configuration
func Get() *Config {
	return GetConfigManager().GetConfig()
}

// Load loads the process-wide configuration
func Load(configPath string) error {
	return GetConfigManager().LoadConfig(configPath)
}

// AddWatcher registers a watcher on the process-wide manager
func AddWatcher(watcher ConfigWatcher) {
	GetConfigManager().AddWatcher(watcher)
}
