package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. STATUSAUDIT_RATE_LIMIT.
const EnvPrefix = "STATUSAUDIT"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"rate-limit":    "rate_limit",
	"input":         "input",
	"timeout":       "http.request_timeout",
	"max-redirects": "http.max_redirects",
	"user-agent":    "http.user_agent",
	"output-dir":    "output.dir",
	"json":          "output.json",
	"csv":           "output.csv",
	"log-level":     "log.level",
	"log-pretty":    "log.pretty",
	"log-dir":       "log.dir",
	"metrics-file":  "metrics_file",
	"quiet":         "quiet",
}

// Load reads the configuration. path may be empty; flags may be nil. Flags
// only override the other sources when they were set on the command line.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetDefault("rate_limit", 30)
	v.SetDefault("input", "")

	v.SetDefault("http.request_timeout", "30s")
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("http.user_agent", "statusaudit/1.0 (+https://github.com/lukemcguire/statusaudit)")
	v.SetDefault("http.verify_tls", true)

	v.SetDefault("output.dir", "errors")
	v.SetDefault("output.json", false)
	v.SetDefault("output.csv", false)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.dir", "logs")

	v.SetDefault("metrics_file", "")
	v.SetDefault("quiet", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
		// --insecure is the inverse of http.verify_tls.
		if flags.Changed("insecure") {
			insecure, err := flags.GetBool("insecure")
			if err != nil {
				return nil, fmt.Errorf("read flag --insecure: %w", err)
			}
			v.Set("http.verify_tls", !insecure)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
