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
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	config := &Config{
		Level:  "warn",
		Debug:  true,
		Output: "stdout",
	}

	require.NoError(t, Init(context.Background(), config))

	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	err := Init(context.Background(), &Config{Level: "chatty"})

	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected zerolog.Level
	}{
		{name: "empty defaults to info", config: Config{}, expected: zerolog.InfoLevel},
		{name: "explicit level", config: Config{Level: "error"}, expected: zerolog.ErrorLevel},
		{name: "debug overrides level", config: Config{Level: "error", Debug: true}, expected: zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(&tt.config)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestSetDebug(t *testing.T) {
	SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())

	SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, GetLogger().GetLevel())
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_OUTPUT", "")

	config := DefaultConfig()

	assert.Equal(t, "info", config.Level)
	assert.Equal(t, "stdout", config.Output)
}

func TestWriterLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer

	log := NewWriterLogger(&buf)
	component := log.WithComponent("presence")
	component.Info().Msg("cycle complete")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "presence", line["component"])
	assert.Equal(t, "cycle complete", line["message"])
}
