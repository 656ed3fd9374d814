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

package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwills/NetAlertX/pkg/logger"
)

// LoggerImpl implements logger.Logger without touching package-level state.
type LoggerImpl struct {
	logger zerolog.Logger
}

// NewLoggerImpl builds a zerolog logger from config, teeing into OTLP when enabled.
func NewLoggerImpl(ctx context.Context, config *logger.Config) (*LoggerImpl, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

	level, err := logger.ParseLevel(config)
	if err != nil {
		return nil, err
	}

	output, err := logger.Output(ctx, config)
	if err != nil {
		return nil, err
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	zerolog.TimeFieldFormat = timeFormat

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &LoggerImpl{logger: zlog}, nil
}

func (l *LoggerImpl) Trace() *zerolog.Event { return l.logger.Trace() }

func (l *LoggerImpl) Debug() *zerolog.Event { return l.logger.Debug() }

func (l *LoggerImpl) Info() *zerolog.Event { return l.logger.Info() }

func (l *LoggerImpl) Warn() *zerolog.Event { return l.logger.Warn() }

func (l *LoggerImpl) Error() *zerolog.Event { return l.logger.Error() }

func (l *LoggerImpl) Fatal() *zerolog.Event { return l.logger.Fatal() }

func (l *LoggerImpl) Panic() *zerolog.Event { return l.logger.Panic() }

func (l *LoggerImpl) With() zerolog.Context { return l.logger.With() }

func (l *LoggerImpl) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *LoggerImpl) WithFields(fields map[string]interface{}) zerolog.Logger {
	return l.logger.With().Fields(fields).Logger()
}

func (l *LoggerImpl) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *LoggerImpl) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}

// Wrap adapts an already configured zerolog.Logger, typically from WithComponent.
func Wrap(zl zerolog.Logger) logger.Logger {
	return &LoggerImpl{logger: zl}
}

// CreateComponentLogger creates a logger whose records carry the component field.
func CreateComponentLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, error) {
	impl, err := NewLoggerImpl(ctx, config)
	if err != nil {
		return nil, err
	}

	return Wrap(impl.logger.With().Str("component", component).Logger()), nil
}

// ShutdownLogger flushes OTLP log and metric exporters.
func ShutdownLogger() error {
	return logger.Shutdown()
}
