// Package config loads the application and run configuration files.
package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application-level configuration: endpoints, paths and
// logging. Run parameters live in RunConfig.
type Config struct {
	APIBaseURL   string   `mapstructure:"api_base_url"`
	RPCList      []string `mapstructure:"rpc_list"`
	WalletsFile  string   `mapstructure:"wallets_file"`
	ReportDir    string   `mapstructure:"report_dir"`
	LogFile      string   `mapstructure:"log_file"`
	DebugLogging bool     `mapstructure:"debug_logging"`
	DryRun       bool     `mapstructure:"dry_run"`
}

const (
	DefaultReportDir   = "reports"
	DefaultWalletsFile = "wallets.yaml"
)

// LoadConfig reads the application config file, applies environment
// overrides with the SOLFLEET prefix, and validates endpoints.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"report_dir":   DefaultReportDir,
		"wallets_file": DefaultWalletsFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.APIBaseURL == "" && !cfg.DryRun {
		return errors.New("missing api_base_url in configuration")
	}
	if cfg.APIBaseURL != "" {
		if err := validateURL(cfg.APIBaseURL, "http"); err != nil {
			return errors.New("invalid API base URL")
		}
	}
	if len(cfg.RPCList) == 0 && !cfg.DryRun {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURL(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if cfg.WalletsFile == "" {
		return errors.New("wallets_file is required")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("SOLFLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if env := v.GetString("API_BASE_URL"); env != "" {
		cfg.APIBaseURL = env
	}
	if env := v.GetString("RPC_LIST"); env != "" {
		var clean []string
		for _, item := range strings.Split(env, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				clean = append(clean, trimmed)
			}
		}
		if len(clean) > 0 {
			cfg.RPCList = clean
		}
	}
	if env := v.GetString("WALLETS_FILE"); env != "" {
		cfg.WalletsFile = env
	}
}
