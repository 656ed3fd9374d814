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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwills/NetAlertX/pkg/logger"
)

var (
	errInvalidDuration   = errors.New("invalid duration")
	errDatabaseRequired  = errors.New("database configuration is required")
	errDatabaseHost      = errors.New("database host is required")
	errDatabaseName      = errors.New("database name is required")
	errNATSURLRequired   = errors.New("nats url is required")
	errNATSStream        = errors.New("nats stream is required")
	errInvalidTimezone   = errors.New("invalid timezone")
	errNegativeRetention = errors.New("retention days must not be negative")
)

const (
	DefaultScanSubject   = "netalertx.scans.>"
	DefaultNotifySubject = "netalertx.notifications"
	DefaultStream        = "NETALERTX"
	DefaultConsumer      = "presence-engine"
	DefaultCycleTimeout  = 2 * time.Minute
	DefaultListenAddr    = ":50070"
)

// Duration accepts a Go duration string or a nanosecond count in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// CNPGDatabase describes the Postgres cluster that stores devices, events and sessions.
type CNPGDatabase struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password"`
	SSLMode            string            `json:"ssl_mode"`
	ApplicationName    string            `json:"application_name"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
	MaxConnections     int32             `json:"max_connections"`
	MinConnections     int32             `json:"min_connections"`
	MaxConnLifetime    Duration          `json:"max_conn_lifetime"`
	HealthCheckPeriod  Duration          `json:"health_check_period"`
	StatementTimeout   Duration          `json:"statement_timeout"`
	CertDir            string            `json:"cert_dir,omitempty"`
	TLS                *TLSConfig        `json:"tls,omitempty"`
}

// NATSConfig configures scan intake and batch publishing.
type NATSConfig struct {
	URL           string          `json:"url"`
	Domain        string          `json:"domain,omitempty"`
	Security      *SecurityConfig `json:"security,omitempty"`
	Stream        string          `json:"stream"`
	Consumer      string          `json:"consumer"`
	Subject       string          `json:"subject"`
	NotifySubject string          `json:"notify_subject"`
}

// Validate ensures the NATS configuration is valid
func (c *NATSConfig) Validate() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, errNATSURLRequired)
	}

	if c.Stream == "" {
		errs = append(errs, errNATSStream)
	}

	return errors.Join(errs...)
}

// RetentionConfig drives the periodic history prune.
type RetentionConfig struct {
	DaysToKeepEvents int      `json:"days_to_keep_events"`
	Interval         Duration `json:"interval"`
}

// PresenceConfig is the configuration file of the presence daemon.
type PresenceConfig struct {
	Logging      *logger.Config    `json:"logging"`
	Database     *CNPGDatabase     `json:"database"`
	NATS         *NATSConfig       `json:"nats,omitempty"`
	Timezone     string            `json:"timezone"`
	ListenAddr   string            `json:"listen_addr"`
	Settings     map[string]string `json:"settings,omitempty"`
	Retention    RetentionConfig   `json:"retention"`
	CycleTimeout Duration          `json:"cycle_timeout"`
}

// ApplyDefaults fills unset optional fields.
func (c *PresenceConfig) ApplyDefaults() {
	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	if c.Timezone == "" {
		c.Timezone = "UTC"
	}

	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.CycleTimeout <= 0 {
		c.CycleTimeout = Duration(DefaultCycleTimeout)
	}

	if c.Retention.Interval <= 0 {
		c.Retention.Interval = Duration(24 * time.Hour)
	}

	if c.Database != nil && c.Database.ApplicationName == "" {
		c.Database.ApplicationName = "netalertx-presence"
	}

	if c.NATS != nil {
		if c.NATS.Stream == "" {
			c.NATS.Stream = DefaultStream
		}

		if c.NATS.Consumer == "" {
			c.NATS.Consumer = DefaultConsumer
		}

		if c.NATS.Subject == "" {
			c.NATS.Subject = DefaultScanSubject
		}

		if c.NATS.NotifySubject == "" {
			c.NATS.NotifySubject = DefaultNotifySubject
		}
	}
}

// Validate reports every problem at once.
func (c *PresenceConfig) Validate() error {
	var errs []error

	if c.Database == nil {
		errs = append(errs, errDatabaseRequired)
	} else {
		if c.Database.Host == "" {
			errs = append(errs, errDatabaseHost)
		}

		if c.Database.Database == "" {
			errs = append(errs, errDatabaseName)
		}
	}

	if c.NATS != nil {
		if err := c.NATS.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("%w %q: %w", errInvalidTimezone, c.Timezone, err))
	}

	if c.Retention.DaysToKeepEvents < 0 {
		errs = append(errs, errNegativeRetention)
	}

	return errors.Join(errs...)
}
