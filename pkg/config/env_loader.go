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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/bryanwills/NetAlertX/pkg/logger"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")
)

// EnvConfigLoader loads configuration from environment variables named after the
// JSON tags, joined with underscores: NETALERTX_DATABASE_HOST sets Database.Host.
// A variable <prefix>CONFIG_JSON holding a whole document takes precedence.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
}

// NewEnvConfigLoader creates a new environment variable config loader.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &EnvConfigLoader{
		logger: log,
		prefix: prefix,
	}
}

// Load implements ConfigLoader by reading from environment variables.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	if jsonConfig := os.Getenv(e.prefix + "CONFIG_JSON"); jsonConfig != "" {
		if err := json.Unmarshal([]byte(jsonConfig), dst); err != nil {
			return fmt.Errorf("failed to unmarshal CONFIG_JSON: %w", err)
		}

		e.logger.Info().Msg("Loaded configuration from CONFIG_JSON environment variable")

		return nil
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrDstMustBeNonNilPointer
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ErrDstMustBePointerToStruct
	}

	e.loadStruct(v, e.prefix)

	e.logger.Debug().Str("prefix", e.prefix).Msg("Loaded configuration from environment variables")

	return nil
}

// loadStruct fills v and reports whether any variable applied.
func (e *EnvConfigLoader) loadStruct(v reflect.Value, prefix string) bool {
	t := v.Type()
	touched := false

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		envName := prefix + strings.ToUpper(strings.Split(jsonTag, ",")[0])

		set, err := e.setFieldValue(field, envName)
		if err != nil {
			e.logger.Warn().Str("env", envName).Err(err).Msg("Ignoring invalid environment variable")
			continue
		}

		touched = touched || set
	}

	return touched
}

func (e *EnvConfigLoader) setFieldValue(field reflect.Value, envName string) (bool, error) {
	if isStructLike(field) {
		return e.loadNested(field, envName+"_"), nil
	}

	envValue, ok := os.LookupEnv(envName)
	if !ok || envValue == "" {
		return false, nil
	}

	if field.Kind() == reflect.Ptr {
		elem := reflect.New(field.Type().Elem())
		if err := setFieldByKind(elem.Elem(), envName, envValue); err != nil {
			return false, err
		}

		field.Set(elem)

		return true, nil
	}

	return true, setFieldByKind(field, envName, envValue)
}

func isStructLike(field reflect.Value) bool {
	if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
		return true
	}

	return field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct
}

// loadNested only allocates a nil struct pointer when one of its variables is set,
// so optional sections stay nil.
func (e *EnvConfigLoader) loadNested(field reflect.Value, prefix string) bool {
	if field.Kind() == reflect.Struct {
		return e.loadStruct(field, prefix)
	}

	if !field.IsNil() {
		return e.loadStruct(field.Elem(), prefix)
	}

	candidate := reflect.New(field.Type().Elem())
	if !e.loadStruct(candidate.Elem(), prefix) {
		return false
	}

	field.Set(candidate)

	return true
}

func setFieldByKind(field reflect.Value, envName, envValue string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Bool:
		b, err := strconv.ParseBool(envValue)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", envName, err)
		}

		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return setIntField(field, envName, envValue)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value for %s: %w", envName, err)
		}

		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(envValue, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", envName, err)
		}

		field.SetFloat(f)
	case reflect.Slice:
		return setSliceField(field, envName, envValue)
	default:
		if err := json.Unmarshal([]byte(envValue), field.Addr().Interface()); err != nil {
			return fmt.Errorf("unsupported value for %s: %w", envName, err)
		}
	}

	return nil
}

// setIntField treats any integer type named Duration as a Go duration string.
func setIntField(field reflect.Value, envName, envValue string) error {
	if field.Type().Name() == "Duration" {
		d, err := time.ParseDuration(envValue)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", envName, err)
		}

		field.SetInt(int64(d))

		return nil
	}

	i, err := strconv.ParseInt(envValue, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %w", envName, err)
	}

	field.SetInt(i)

	return nil
}

func setSliceField(field reflect.Value, envName, envValue string) error {
	if field.Type().Elem().Kind() != reflect.String {
		if err := json.Unmarshal([]byte(envValue), field.Addr().Interface()); err != nil {
			return fmt.Errorf("invalid slice value for %s: %w", envName, err)
		}

		return nil
	}

	values := strings.Split(envValue, ",")
	slice := reflect.MakeSlice(field.Type(), len(values), len(values))

	for i, v := range values {
		slice.Index(i).SetString(strings.TrimSpace(v))
	}

	field.Set(slice)

	return nil
}
