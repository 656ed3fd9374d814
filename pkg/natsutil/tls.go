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

package natsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/bryanwills/NetAlertX/pkg/config"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

var (
	// ErrUnknownSecurityMode is returned for a mode other than none, tls or mtls.
	ErrUnknownSecurityMode = errors.New("unknown nats security mode")
	// ErrCAParsingFailed is returned when CA certificate cannot be parsed
	ErrCAParsingFailed = errors.New("failed to parse CA certificate")
)

// TLSConfig builds the client TLS configuration for sec. It returns nil for a
// nil config or mode none. Mode tls only verifies the server; mtls also
// presents a client certificate.
func TLSConfig(sec *models.SecurityConfig) (*tls.Config, error) {
	if sec == nil || sec.Mode == "" || sec.Mode == models.SecurityModeNone {
		return nil, nil
	}

	if sec.Mode != models.SecurityModeTLS && sec.Mode != models.SecurityModeMTLS {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSecurityMode, sec.Mode)
	}

	paths := sec.TLS
	config.NormalizeTLSPaths(&paths, sec.CertDir)

	conf := &tls.Config{
		ServerName: sec.ServerName,
		MinVersion: tls.VersionTLS13,
	}

	if paths.CAFile != "" {
		caCert, err := os.ReadFile(paths.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, ErrCAParsingFailed
		}

		conf.RootCAs = caPool
	}

	if sec.Mode == models.SecurityModeMTLS {
		cert, err := tls.LoadX509KeyPair(paths.CertFile, paths.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		conf.Certificates = []tls.Certificate{cert}
	}

	return conf, nil
}
