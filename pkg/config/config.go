package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	LocalBaseURL    string
	LocalAPIKey     string

	Mode            string
	ThresholdsPath  string
	LearningBackend string // "file" or "sqlite"
	LearningPath    string
	ConfigDir       string
}

// FileConfig represents the structure of ~/.crisisgate/config.yaml
type FileConfig struct {
	APIKeys  APIKeysConfig  `yaml:"api_keys"`
	Engine   EngineConfig   `yaml:"engine"`
	Learning LearningConfig `yaml:"learning"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic    string `yaml:"anthropic"`
	OpenAI       string `yaml:"openai"`
	Google       string `yaml:"google"`
	LocalBaseURL string `yaml:"local_base_url"`
	Local        string `yaml:"local"`
}

// EngineConfig holds decision engine settings from file.
type EngineConfig struct {
	Mode           string `yaml:"mode"`
	ThresholdsPath string `yaml:"thresholds_path"`
}

// LearningConfig holds learning-state persistence settings from file.
type LearningConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		LocalBaseURL:    getEnvOrDefault("LOCAL_CLASSIFIER_URL", fileConfig.APIKeys.LocalBaseURL),
		LocalAPIKey:     getEnvOrDefault("LOCAL_CLASSIFIER_KEY", fileConfig.APIKeys.Local),
		Mode:            getEnvOrDefault("CRISISGATE_MODE", fileConfig.Engine.Mode),
		ThresholdsPath:  getEnvOrDefault("CRISISGATE_THRESHOLDS", fileConfig.Engine.ThresholdsPath),
		LearningBackend: getEnvOrDefault("CRISISGATE_LEARNING_BACKEND", fileConfig.Learning.Backend),
		LearningPath:    getEnvOrDefault("CRISISGATE_LEARNING_PATH", fileConfig.Learning.Path),
		ConfigDir:       configDir,
	}

	if cfg.Mode == "" {
		cfg.Mode = "consensus"
	}
	if cfg.ThresholdsPath == "" {
		candidate := filepath.Join(configDir, "thresholds.yaml")
		if _, err := os.Stat(candidate); err == nil {
			cfg.ThresholdsPath = candidate
		}
	}
	if cfg.LearningBackend == "" {
		cfg.LearningBackend = "file"
	}
	if cfg.LearningPath == "" {
		switch cfg.LearningBackend {
		case "sqlite":
			cfg.LearningPath = filepath.Join(configDir, "learning.db")
		default:
			cfg.LearningPath = filepath.Join(configDir, "learning.json")
		}
	}

	return cfg, nil
}

// HasAdapter returns true if the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "local":
		return c.LocalBaseURL != ""
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".crisisgate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
