package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	switch cfg.Store.Type {
	case StoreZookeeper:
		zkCfg, err := decodeZookeeper(cfg.Store.Zookeeper)
		if err != nil {
			return err
		}
		if len(zkCfg.Servers) == 0 {
			if _, _, err := cfg.CoordinationEndpoint(); err != nil {
				return fmt.Errorf("store.zookeeper: %w", err)
			}
		}
	case StoreRemote:
		remote, err := decodeRemote(cfg.Store.Remote)
		if err != nil {
			return err
		}
		if len(remote.Endpoints) == 0 {
			if _, _, err := cfg.CoordinationEndpoint(); err != nil {
				return fmt.Errorf("store.remote: %w", err)
			}
		}
	case StoreBadger:
		badgerCfg, err := decodeBadger(cfg.Store.Badger)
		if err != nil {
			return err
		}
		if err := validate.Struct(badgerCfg); err != nil {
			return fmt.Errorf("store.badger: %w", formatValidationError(err))
		}
	}

	if cfg.Server.RateLimit > 0 && cfg.Server.RateLimitBurst > 0 && cfg.Server.RateLimitBurst < cfg.Server.RateLimit {
		return fmt.Errorf("server: rate_limit_burst (%d) must be at least rate_limit (%d)", cfg.Server.RateLimitBurst, cfg.Server.RateLimit)
	}
	if cfg.Server.SessionReapInterval > cfg.Server.SessionTTL {
		return fmt.Errorf("server: session_reap_interval (%s) must not exceed session_ttl (%s)", cfg.Server.SessionReapInterval, cfg.Server.SessionTTL)
	}
	return nil
}

// formatValidationError reports the first failed tag with its field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
