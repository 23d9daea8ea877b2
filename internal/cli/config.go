package cli

import (
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix namespaces every environment override.
const envPrefix = "AWSGEN"

// configKey ties a config key to its flag and environment variable.
type configKey struct {
	key  string
	flag string
	env  string
}

var generateKeys = []configKey{
	{"inputs", "input", "INPUTS"},
	{"docs", "docs", "DOCS"},
	{"endpoints", "endpoints", "ENDPOINTS"},
	{"out", "out", "OUT"},
	{"runtimeImport", "runtime-import", "RUNTIME_IMPORT"},
	{"services", "services", "SERVICES"},
	{"workers", "workers", "WORKERS"},
	{"dryRun", "dry-run", "DRY_RUN"},
	{"force", "force", "FORCE"},
	{"verbose", "verbose", "VERBOSE"},
}

// loadGenerateConfig merges defaults, the optional config file, environment
// variables and changed flags, in increasing precedence.
func loadGenerateConfig(flags *pflag.FlagSet, configPath string) (*GenerateConfig, error) {
	v := viper.New()
	def := defaultGenerateConfig()
	v.SetDefault("out", def.Out)
	v.SetDefault("runtimeImport", def.RuntimeImport)
	v.SetDefault("workers", def.Workers)

	for _, k := range generateKeys {
		if err := v.BindEnv(k.key, envPrefix+"_"+k.env); err != nil {
			return nil, err
		}
		if f := flags.Lookup(k.flag); f != nil {
			if err := v.BindPFlag(k.key, f); err != nil {
				return nil, err
			}
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, usageErrorf("read config file %q: %v", configPath, err)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, usageErrorf("parse config file %q: %w", configPath, err)
		}
		if unknown := unknownKeys(v); len(unknown) > 0 {
			return nil, usageErrorf("config file %q: unknown field %q", configPath, unknown[0])
		}
	}

	var cfg GenerateConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, usageErrorf("config: %v", err)
	}
	cfg.ConfigPath = configPath
	return &cfg, nil
}

// unknownKeys lists top-level config file keys no option claims.
func unknownKeys(v *viper.Viper) []string {
	known := make(map[string]bool, len(generateKeys))
	for _, k := range generateKeys {
		known[strings.ToLower(k.key)] = true
	}
	var out []string
	for _, key := range v.AllKeys() {
		top, _, _ := strings.Cut(key, ".")
		if !known[top] {
			out = append(out, top)
		}
	}
	sort.Strings(out)
	return out
}
