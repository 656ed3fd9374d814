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

// SecurityMode selects how a client authenticates to NATS or Postgres.
type SecurityMode string

const (
	SecurityModeNone SecurityMode = "none"
	SecurityModeTLS  SecurityMode = "tls"
	SecurityModeMTLS SecurityMode = "mtls"
)

// TLSConfig holds certificate paths, resolved relative to a cert dir when not absolute.
type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file"`
}

// SecurityConfig holds common security configuration.
type SecurityConfig struct {
	Mode       SecurityMode `json:"mode"`
	CertDir    string       `json:"cert_dir"`
	ServerName string       `json:"server_name,omitempty"`
	TLS        TLSConfig    `json:"tls"`
}
