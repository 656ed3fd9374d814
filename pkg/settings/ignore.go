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

package settings

import "strings"

// IgnoreList matches devices excluded from presence processing. A pattern
// ending in '*' matches by prefix; MACs compare case-insensitively.
type IgnoreList struct {
	macs []string
	ips  []string
}

// NewIgnoreList normalizes the MAC and IP patterns.
func NewIgnoreList(macs, ips []string) *IgnoreList {
	l := &IgnoreList{}

	for _, m := range macs {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			l.macs = append(l.macs, m)
		}
	}

	for _, ip := range ips {
		if ip = strings.TrimSpace(ip); ip != "" {
			l.ips = append(l.ips, ip)
		}
	}

	return l
}

// Empty reports whether nothing is ignored.
func (l *IgnoreList) Empty() bool {
	return l == nil || (len(l.macs) == 0 && len(l.ips) == 0)
}

// Match reports whether the MAC or the IP is ignored.
func (l *IgnoreList) Match(mac, ip string) bool {
	if l.Empty() {
		return false
	}

	mac = strings.ToLower(mac)

	for _, p := range l.macs {
		if matchPattern(p, mac) {
			return true
		}
	}

	if ip == "" {
		return false
	}

	for _, p := range l.ips {
		if matchPattern(p, ip) {
			return true
		}
	}

	return false
}

func matchPattern(pattern, value string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(value, prefix)
	}

	return pattern == value
}
