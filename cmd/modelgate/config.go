package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envModelgateConfig = "MODELGATE_CONFIG"

// Config represents the modelgate configuration file
// (~/.config/modelgate/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	ModelsDir     string `yaml:"models_dir"`
	Function      string `yaml:"function"`
	Runtime       string `yaml:"runtime"`
	StackMarginMB *int64 `yaml:"stack_margin_mb"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string        `yaml:"server_address"`
	AllowModelAPI *bool         `yaml:"allow_model_api"`
	Models        []ModelConfig `yaml:"models"`
}

// ModelConfig is a model the server loads at startup.
type ModelConfig struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Function string `yaml:"function"`
}

func configPath() string {
	if p := os.Getenv(envModelgateConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "modelgate", "config.yaml")
}

// applyModelConfig applies config file defaults to the shared model and
// logging flags when the corresponding CLI flag was not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.Function != "" && !c.IsSet("function") {
		functionName = cfg.Function
	}
	if cfg.Runtime != "" && !c.IsSet("runtime") {
		runtimeName = cfg.Runtime
	}
	if cfg.StackMarginMB != nil && !c.IsSet("stack-margin") {
		stackMargin = *cfg.StackMarginMB
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, allowModelAPI *bool) {
	applyModelConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.AllowModelAPI != nil && !c.IsSet("allow-model-api") {
		*allowModelAPI = *cfg.AllowModelAPI
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	cfg, _ := loadConfigFile(configPath())
	return cfg
}

func loadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
