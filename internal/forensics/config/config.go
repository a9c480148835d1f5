// Package config loads the forensics shadow pipeline's runtime
// configuration from YAML with environment-variable overrides, in the
// style of the application config loader this module is grounded on.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables for worker offload and the policy
// selector.
type Config struct {
	WorkerURL             string  `yaml:"worker_url"`
	WorkerSharedSecret    string  `yaml:"worker_shared_secret"`
	DynamicPolicyEnabled  bool    `yaml:"dynamic_policy_enabled"`
	PolicyLearningEnabled bool    `yaml:"policy_learning_enabled"`
	PolicyEpsilon         float64 `yaml:"policy_epsilon"`
	PolicyLearningRate    float64 `yaml:"policy_learning_rate"`

	EnvironmentPrefix string `yaml:"environment_prefix"`
	RedisAddr         string `yaml:"redis_addr"`
	PostgresDSN       string `yaml:"postgres_dsn"`
}

// Default returns the configuration's documented defaults.
func Default() Config {
	return Config{
		DynamicPolicyEnabled:  true,
		PolicyLearningEnabled: true,
		PolicyEpsilon:         0.15,
		PolicyLearningRate:    0.2,
		EnvironmentPrefix:     "forensics",
	}
}

// Load reads a YAML config file, applies defaults for unset fields,
// overlays environment variables, and clamps tunables into their
// documented ranges.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return applyEnvAndClamp(cfg), nil
			}
			return Config{}, err
		}
		loaded := Default()
		if err := yaml.Unmarshal(b, &loaded); err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	return applyEnvAndClamp(cfg), nil
}

func applyEnvAndClamp(cfg Config) Config {
	if v := os.Getenv("FORENSICS_WORKER_URL"); v != "" {
		cfg.WorkerURL = v
	}
	if v := os.Getenv("FORENSICS_WORKER_SHARED_SECRET"); v != "" {
		cfg.WorkerSharedSecret = v
	}
	if v := os.Getenv("FORENSICS_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("FORENSICS_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("FORENSICS_DYNAMIC_POLICY_ENABLED"); v != "" {
		cfg.DynamicPolicyEnabled = parseBool(v, cfg.DynamicPolicyEnabled)
	}
	if v := os.Getenv("FORENSICS_POLICY_LEARNING_ENABLED"); v != "" {
		cfg.PolicyLearningEnabled = parseBool(v, cfg.PolicyLearningEnabled)
	}
	if v := os.Getenv("FORENSICS_POLICY_EPSILON"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PolicyEpsilon = f
		}
	}
	if v := os.Getenv("FORENSICS_POLICY_LEARNING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PolicyLearningRate = f
		}
	}

	cfg.PolicyEpsilon = clamp(cfg.PolicyEpsilon, 0, 1)
	cfg.PolicyLearningRate = clamp(cfg.PolicyLearningRate, 0.01, 1)
	return cfg
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
