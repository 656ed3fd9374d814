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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
)

// TracingConfig holds the configuration for OpenTelemetry tracing setup
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Logger         Logger
	OTel           *OTelConfig
}

// InitializeTracing installs the global TracerProvider. Spans are exported only
// when OTel is enabled with an endpoint; otherwise they stay in-process so trace
// ids still appear in logs. Callers must Shutdown the returned provider.
func InitializeTracing(ctx context.Context, config TracingConfig) (*trace.TracerProvider, error) {
	version := config.ServiceVersion
	if version == "" {
		version = serviceVersion
	}

	res, err := newResource(ctx, config.ServiceName, version)
	if err != nil {
		return nil, err
	}

	tpOptions := []trace.TracerProviderOption{trace.WithResource(res)}

	if config.OTel != nil && config.OTel.Enabled && config.OTel.Endpoint != "" {
		exporter, err := createTraceExporter(ctx, config.OTel)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		tpOptions = append(tpOptions, trace.WithSpanProcessor(trace.NewBatchSpanProcessor(exporter)))
	}

	tp := trace.NewTracerProvider(tpOptions...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.Logger != nil {
		config.Logger.Debug().
			Str("service", config.ServiceName).
			Bool("exporting", config.OTel != nil && config.OTel.Enabled).
			Msg("Initialized OpenTelemetry tracing")
	}

	return tp, nil
}

// GetTracer returns a tracer from the global provider.
func GetTracer(name string) otelTrace.Tracer {
	return otel.Tracer(name)
}

func createTraceExporter(ctx context.Context, config *OTelConfig) (trace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
	}

	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else if config.TLS != nil {
		tlsConfig, err := setupTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
		}

		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(config.Headers))
	}

	return otlptracegrpc.New(ctx, opts...)
}
