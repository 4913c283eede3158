package auth

import (
	"encoding/json"
	"os"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// PolicyOption customizes how LoadPolicyConfig assembles the config.
type PolicyOption func(*policyLoadOptions)

type policyLoadOptions struct {
	filePath string
	base     *PolicyConfig
}

// WithPolicyFile layers a JSON policy file between defaults and env
// overrides. A missing file is an error; use the option only when the
// deployment ships one.
func WithPolicyFile(path string) PolicyOption {
	return func(o *policyLoadOptions) {
		o.filePath = path
	}
}

// WithPolicyDefaults replaces the built-in defaults as the bottom layer.
func WithPolicyDefaults(cfg PolicyConfig) PolicyOption {
	return func(o *policyLoadOptions) {
		o.base = &cfg
	}
}

// LoadPolicyConfig builds the policy value by layering, lowest to highest
// precedence: defaults, optional JSON file, environment variables. The
// result is validated; an invalid config is returned as a fatal error and
// must abort startup.
func LoadPolicyConfig(opts ...PolicyOption) (PolicyConfig, error) {
	options := &policyLoadOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	cfg := DefaultPolicyConfig()
	if options.base != nil {
		cfg = *options.base
	}

	if options.filePath != "" {
		raw, err := os.ReadFile(options.filePath)
		if err != nil {
			return PolicyConfig{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read auth policy file").
				WithMetadata(map[string]any{"path": options.filePath})
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return PolicyConfig{}, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse auth policy file").
				WithTextCode(textCodeInvalidPolicy).
				WithMetadata(map[string]any{"path": options.filePath})
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return PolicyConfig{}, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse auth policy environment overrides").
			WithTextCode(textCodeInvalidPolicy)
	}

	if err := cfg.Validate(); err != nil {
		return PolicyConfig{}, err
	}

	return cfg, nil
}

// MustLoadPolicyConfig is LoadPolicyConfig for wiring paths where invalid
// policy should stop the process immediately.
func MustLoadPolicyConfig(opts ...PolicyOption) PolicyConfig {
	cfg, err := LoadPolicyConfig(opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}
