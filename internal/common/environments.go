package common

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"metaverse-ledger-go/internal/models"

	"gopkg.in/yaml.v2"
)

type LedgerEnvironment struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

type LedgerEnvironmentsConfig struct {
	Environments []LedgerEnvironment `yaml:"environments"`
}

var ErrUnknownEnvironment = errors.New("unknown ledger environment")

func LoadLedgerEnvironments(environmentsFile string) ([]LedgerEnvironment, error) {
	var environmentsPath string
	if filepath.IsAbs(environmentsFile) {
		environmentsPath = environmentsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		environmentsPath = filepath.Join(wd, environmentsFile)
	}

	data, err := os.ReadFile(environmentsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", environmentsFile, err)
	}

	var config LedgerEnvironmentsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", environmentsFile, err)
	}

	seen := make(map[string]bool, len(config.Environments))
	for i, env := range config.Environments {
		if env.Name == "" {
			return nil, fmt.Errorf("environment at index %d missing name", i)
		}
		if seen[env.Name] {
			return nil, fmt.Errorf("environment %q defined more than once", env.Name)
		}
		seen[env.Name] = true

		u, err := url.Parse(env.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("environment %q has invalid base_url %q", env.Name, env.BaseURL)
		}
	}

	return config.Environments, nil
}

// ResolveLedgerBaseURL returns the explicit base url if one is configured,
// otherwise the base url of the named environment.
func ResolveLedgerBaseURL(cfg models.LedgerConfig) (string, error) {
	if cfg.BaseURL != "" {
		return cfg.BaseURL, nil
	}
	if cfg.Environment == "" {
		return "", errors.New("either LEDGER_BASE_URL or LEDGER_ENVIRONMENT must be set")
	}

	environments, err := LoadLedgerEnvironments(cfg.EnvironmentsFile)
	if err != nil {
		return "", err
	}
	for _, env := range environments {
		if env.Name == cfg.Environment {
			return env.BaseURL, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownEnvironment, cfg.Environment)
}
