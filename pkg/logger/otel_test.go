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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	log "go.opentelemetry.io/otel/log"
)

func TestDefaultOTelConfig(t *testing.T) {
	config := DefaultOTelConfig()

	assert.NotEmpty(t, config.ServiceName)
	assert.Equal(t, Duration(5*time.Second), config.BatchTimeout)
}

func TestNewOTELWriter_Disabled(t *testing.T) {
	writer, err := NewOTELWriter(context.Background(), OTelConfig{Enabled: false})

	require.ErrorIs(t, err, ErrOTelLoggingDisabled)
	assert.Nil(t, writer)
}

func TestNewOTELWriter_NoEndpoint(t *testing.T) {
	writer, err := NewOTELWriter(context.Background(), OTelConfig{Enabled: true})

	require.ErrorIs(t, err, ErrOTelEndpointRequired)
	assert.Nil(t, writer)
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	provider, err := InitializeMetrics(context.Background(), MetricsConfig{OTel: &OTelConfig{}})

	require.ErrorIs(t, err, ErrOTelMetricsDisabled)
	assert.Nil(t, provider)
}

func TestInitWithOTelEnabledButNoEndpoint(t *testing.T) {
	config := &Config{
		Level:  "info",
		Output: "stdout",
		OTel:   OTelConfig{Enabled: true},
	}

	require.NoError(t, Init(context.Background(), config))
}

func TestMapZerologLevelToOTEL(t *testing.T) {
	tests := []struct {
		level    string
		expected log.Severity
	}{
		{"trace", log.SeverityTrace},
		{"debug", log.SeverityDebug},
		{"info", log.SeverityInfo},
		{"warn", log.SeverityWarn},
		{"warning", log.SeverityWarn},
		{"error", log.SeverityError},
		{"fatal", log.SeverityFatal},
		{"panic", log.SeverityFatal},
		{"unknown", log.SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, mapZerologLevelToOTEL(tt.level))
		})
	}
}

func TestSanitizeLogEntry(t *testing.T) {
	long := strings.Repeat("x", maxAttributeValueLength+10)

	sanitized, truncated := sanitizeLogEntry(map[string]interface{}{
		"mac":     "aa:bb:cc:dd:ee:ff",
		"count":   float64(3),
		"present": true,
		"nothing": nil,
		"sql":     long,
		"rows":    []interface{}{"a", "b"},
	})

	assert.Equal(t, "aa:bb:cc:dd:ee:ff", sanitized["mac"])
	assert.Equal(t, "3", sanitized["count"])
	assert.Equal(t, "true", sanitized["present"])
	assert.Equal(t, "null", sanitized["nothing"])
	assert.Equal(t, `["a","b"]`, sanitized["rows"])
	assert.Len(t, sanitized["sql"], maxAttributeValueLength)
	assert.True(t, strings.HasSuffix(sanitized["sql"], "..."))
	assert.Equal(t, []string{"sql"}, truncated)
}

func TestTruncateStringKeepsUTF8(t *testing.T) {
	value := strings.Repeat("é", 10)

	out, truncated := truncateString(value, 8)

	assert.True(t, truncated)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), 8)
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }

func TestMultiWriterShortWrite(t *testing.T) {
	var sb strings.Builder

	_, err := NewMultiWriter(&sb, shortWriter{}).Write([]byte("line"))

	require.Error(t, err)
	assert.Equal(t, "line", sb.String())
}
