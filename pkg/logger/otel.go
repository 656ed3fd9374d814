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

package logger

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	log "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
	errFailedToParseCACert  = errors.New("failed to parse CA certificate")
)

const (
	maxAttributeValueLength = 4096
	truncatedKeysAttribute  = "otel.truncated_keys"
	defaultScope            = "netalertx-logger"
	serviceVersion          = "1.0.0"
)

// OTelWriter turns zerolog JSON lines into OTLP log records, one scope per component.
type OTelWriter struct {
	provider *sdklog.LoggerProvider
	loggers  map[string]log.Logger
	mu       sync.Mutex
	ctx      context.Context
}

type OTelConfig struct {
	Enabled      bool              `json:"enabled"`
	Endpoint     string            `json:"endpoint"`
	Headers      map[string]string `json:"headers"`
	ServiceName  string            `json:"service_name"`
	BatchTimeout Duration          `json:"batch_timeout"`
	Insecure     bool              `json:"insecure"`
	TLS          *TLSConfig        `json:"tls,omitempty"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file,omitempty"`
}

//nolint:gochecknoglobals // needed for proper OTel shutdown handling
var otelProvider *sdklog.LoggerProvider

func NewOTELWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(config.Endpoint),
	}

	if config.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	} else if config.TLS != nil {
		tlsConfig, err := setupTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
		}

		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName, serviceVersion)
	if err != nil {
		return nil, err
	}

	batchTimeout := time.Duration(config.BatchTimeout)
	if batchTimeout == 0 {
		batchTimeout = 5 * time.Second
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(batchTimeout))),
	)

	otelProvider = provider
	global.SetLoggerProvider(provider)

	return &OTelWriter{
		provider: provider,
		loggers:  make(map[string]log.Logger),
		ctx:      ctx,
	}, nil
}

func newResource(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

func (w *OTelWriter) Write(p []byte) (n int, err error) {
	if w.provider == nil {
		return len(p), nil
	}

	entry := make(map[string]interface{})
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	record := buildRecord(entry)

	scope := defaultScope
	if component, ok := entry["component"].(string); ok && component != "" {
		scope = component

		delete(entry, "component")
	}

	sanitized, truncatedKeys := sanitizeLogEntry(entry)
	for key, value := range sanitized {
		record.AddAttributes(log.String(key, value))
	}

	if len(truncatedKeys) > 0 {
		record.AddAttributes(log.String(truncatedKeysAttribute, strings.Join(truncatedKeys, ",")))
	}

	w.scopeLogger(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scopeLogger(scope string) log.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	logger, found := w.loggers[scope]
	if !found {
		logger = w.provider.Logger(scope)
		w.loggers[scope] = logger
	}

	return logger
}

// buildRecord moves time, level and message out of entry and into the record.
func buildRecord(entry map[string]interface{}) log.Record {
	record := log.Record{}

	if timestamp, ok := entry["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, timestamp); err == nil {
			record.SetTimestamp(parsed)
			delete(entry, "time")
		}
	}

	if levelStr, ok := entry["level"].(string); ok {
		record.SetSeverity(mapZerologLevelToOTEL(levelStr))
		record.SetSeverityText(levelStr)
		delete(entry, "level")
	}

	if message, ok := entry["message"].(string); ok {
		record.SetBody(log.StringValue(message))
		delete(entry, "message")
	}

	return record
}

func sanitizeLogEntry(entry map[string]interface{}) (map[string]string, []string) {
	sanitized := make(map[string]string, len(entry))
	truncated := make([]string, 0)

	for key, value := range entry {
		formatted, wasTruncated := formatAttributeValue(value)
		sanitized[key] = formatted

		if wasTruncated {
			truncated = append(truncated, key)
		}
	}

	sort.Strings(truncated)

	return sanitized, truncated
}

func formatAttributeValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "null", false
	case string:
		return truncateString(v, maxAttributeValueLength)
	case bool, float64, json.Number:
		return fmt.Sprintf("%v", v), false
	default:
		if marshaled, err := json.Marshal(value); err == nil {
			return truncateString(string(marshaled), maxAttributeValueLength)
		}

		return truncateString(fmt.Sprintf("%v", value), maxAttributeValueLength)
	}
}

func truncateString(value string, limit int) (string, bool) {
	if len(value) <= limit {
		return value, false
	}

	cut := limit
	suffix := ""

	if limit > 3 {
		cut = limit - 3
		suffix = "..."
	}

	truncated := value[:cut]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	return truncated + suffix, true
}

func mapZerologLevelToOTEL(level string) log.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return log.SeverityTrace
	case "debug":
		return log.SeverityDebug
	case "info":
		return log.SeverityInfo
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	case "fatal", "panic":
		return log.SeverityFatal
	default:
		return log.SeverityInfo
	}
}

func ShutdownOTEL() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error

	if otelProvider != nil {
		if err := otelProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}

		otelProvider = nil
	}

	if err := shutdownMeterProvider(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

func setupTLSConfig(tlsConfig *TLSConfig) (*tls.Config, error) {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	if tlsConfig.CAFile != "" {
		caCert, err := os.ReadFile(tlsConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, errFailedToParseCACert
		}

		config.RootCAs = caCertPool
	}

	return config, nil
}

// MultiWriter fans a log line out to every writer and fails on the first short write.
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (mw *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range mw.writers {
		n, err = w.Write(p)
		if err != nil {
			return n, err
		}

		if n != len(p) {
			return n, io.ErrShortWrite
		}
	}

	return len(p), nil
}
