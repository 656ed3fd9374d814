/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads service configuration from a JSON file or the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

const (
	configSourceFile = "file"
	configSourceEnv  = "env"

	// DefaultEnvPrefix prefixes every variable read when CONFIG_SOURCE=env.
	DefaultEnvPrefix = "NETALERTX_"
)

// ConfigLoader fills dst from some source.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configs that can check themselves.
type Validator interface {
	Validate() error
}

// Defaulter is implemented by configs that fill unset fields before validation.
type Defaulter interface {
	ApplyDefaults()
}

// Config holds the configuration loading dependencies.
type Config struct {
	defaultLoader ConfigLoader
	logger        logger.Logger
}

// NewConfig returns a Config that reads files unless CONFIG_SOURCE says otherwise.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		defaultLoader: &FileConfigLoader{},
		logger:        log,
	}
}

// ValidateConfig validates a configuration if it implements Validator.
func ValidateConfig(cfg interface{}) error {
	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}

	return v.Validate()
}

// LoadAndValidate loads cfg, applies defaults, resolves TLS paths and validates it.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if cfg == nil {
		return errInvalidConfigPtr
	}

	loader, err := c.loaderFor(strings.ToLower(os.Getenv("CONFIG_SOURCE")))
	if err != nil {
		return err
	}

	if err := loader.Load(ctx, path, cfg); err != nil {
		return err
	}

	if d, ok := cfg.(Defaulter); ok {
		d.ApplyDefaults()
	}

	if pc, ok := cfg.(*models.PresenceConfig); ok {
		c.normalizePresenceTLS(pc)
	}

	return ValidateConfig(cfg)
}

func (c *Config) loaderFor(source string) (ConfigLoader, error) {
	switch source {
	case configSourceEnv:
		prefix := os.Getenv("CONFIG_ENV_PREFIX")
		if prefix == "" {
			prefix = DefaultEnvPrefix
		}

		return NewEnvConfigLoader(c.logger, prefix), nil
	case configSourceFile, "":
		return c.defaultLoader, nil
	default:
		return nil, fmt.Errorf("%w: %s (expected '%s' or '%s')",
			errInvalidConfigSource, source, configSourceFile, configSourceEnv)
	}
}

func (c *Config) normalizePresenceTLS(cfg *models.PresenceConfig) {
	if cfg.NATS != nil && cfg.NATS.Security != nil {
		c.normalizeTLSPaths(&cfg.NATS.Security.TLS, cfg.NATS.Security.CertDir)
	}

	if cfg.Database != nil && cfg.Database.TLS != nil {
		c.normalizeTLSPaths(cfg.Database.TLS, cfg.Database.CertDir)
	}
}

func (c *Config) normalizeTLSPaths(tls *models.TLSConfig, certDir string) {
	NormalizeTLSPaths(tls, certDir)

	c.logger.Debug().
		Str("cert_file", tls.CertFile).
		Str("key_file", tls.KeyFile).
		Str("ca_file", tls.CAFile).
		Msg("Normalized TLS paths")
}

// NormalizeTLSPaths joins relative, non-empty TLS paths onto certDir.
func NormalizeTLSPaths(tls *models.TLSConfig, certDir string) {
	if certDir == "" {
		return
	}

	resolve := func(path string) string {
		if path == "" || filepath.IsAbs(path) {
			return path
		}

		return filepath.Join(certDir, path)
	}

	tls.CertFile = resolve(tls.CertFile)
	tls.KeyFile = resolve(tls.KeyFile)
	tls.CAFile = resolve(tls.CAFile)
}
