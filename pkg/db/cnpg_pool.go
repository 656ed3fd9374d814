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

package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
)

const defaultCNPGPort = 5432

// NewCNPGPool dials the configured Postgres cluster and returns a pgx pool for
// the device, event and session tables.
func NewCNPGPool(ctx context.Context, cfg *models.CNPGDatabase, log logger.Logger) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, ErrNilPool
	}

	cnpg := *cfg
	if cnpg.Port == 0 {
		cnpg.Port = defaultCNPGPort
	}

	connURL, err := buildCNPGConnURL(&cnpg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("cnpg: failed to parse connection string: %w", err)
	}

	if cnpg.MaxConnections > 0 {
		poolConfig.MaxConns = cnpg.MaxConnections
	}

	if cnpg.MinConnections > 0 {
		poolConfig.MinConns = cnpg.MinConnections
	}

	if cnpg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cnpg.MaxConnLifetime)
	}

	if cnpg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(cnpg.HealthCheckPeriod)
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}

	for k, v := range cnpg.ExtraRuntimeParams {
		if k == "" {
			continue
		}

		poolConfig.ConnConfig.RuntimeParams[k] = v
	}

	if cnpg.StatementTimeout > 0 {
		timeout := time.Duration(cnpg.StatementTimeout) / time.Millisecond
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(int64(timeout), 10)
	}

	// Timestamps are compared in UTC on the server; display zones are applied by the gate.
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	tlsConfig, err := buildCNPGTLSConfig(&cnpg)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		poolConfig.ConnConfig.TLSConfig = tlsConfig
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("cnpg: failed to initialize pool: %w", err)
	}

	if log != nil {
		log.Info().
			Str("host", cnpg.Host).
			Int("port", cnpg.Port).
			Str("database", cnpg.Database).
			Int32("max_conns", poolConfig.MaxConns).
			Msg("connected to postgres cluster")
	}

	return pool, nil
}

func buildCNPGConnURL(cnpg *models.CNPGDatabase) (*url.URL, error) {
	port := cnpg.Port
	if port == 0 {
		port = defaultCNPGPort
	}

	connURL := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cnpg.Host, port),
		Path:   "/" + cnpg.Database,
	}

	if cnpg.Username != "" {
		if cnpg.Password != "" {
			connURL.User = url.UserPassword(cnpg.Username, cnpg.Password)
		} else {
			connURL.User = url.User(cnpg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cnpg.SSLMode

	switch {
	case sslMode == "" && cnpg.TLS != nil:
		sslMode = "verify-full"
	case sslMode == "":
		sslMode = "disable"
	case sslMode == "disable" && cnpg.TLS != nil:
		return nil, ErrCNPGTLSDisabled
	}

	query.Set("sslmode", sslMode)

	if cnpg.ApplicationName != "" {
		query.Set("application_name", cnpg.ApplicationName)
	}

	if cnpg.TLS != nil {
		certFile, keyFile, caFile := resolveCNPGTLSPaths(cnpg)
		query.Set("sslcert", certFile)
		query.Set("sslkey", keyFile)
		query.Set("sslrootcert", caFile)
	}

	connURL.RawQuery = query.Encode()

	return connURL, nil
}

func resolveCNPGTLSPaths(cfg *models.CNPGDatabase) (certFile, keyFile, caFile string) {
	resolve := func(path string) string {
		if path == "" {
			return path
		}

		if filepath.IsAbs(path) || cfg.CertDir == "" {
			return path
		}

		return filepath.Join(cfg.CertDir, path)
	}

	return resolve(cfg.TLS.CertFile), resolve(cfg.TLS.KeyFile), resolve(cfg.TLS.CAFile)
}

func buildCNPGTLSConfig(cfg *models.CNPGDatabase) (*tls.Config, error) {
	if cfg == nil || cfg.TLS == nil {
		return nil, nil
	}

	certFile, keyFile, caFile := resolveCNPGTLSPaths(cfg)

	if certFile == "" || keyFile == "" || caFile == "" {
		return nil, ErrCNPGTLSIncomplete
	}

	clientCert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("cnpg tls: failed to load client keypair: %w", err)
	}

	caBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("cnpg tls: failed to read CA file: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caBytes) {
		return nil, ErrCNPGCAAppendFailed
	}

	return &tls.Config{
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
		ServerName:   cfg.Host,
	}, nil
}
