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
	"strings"
	"unicode"
)

// statementSplitter walks a migration file and cuts it into executable
// statements. Semicolons inside quotes, comments and dollar-quoted bodies do
// not terminate a statement.
type statementSplitter struct {
	content string
	current strings.Builder
	out     []string

	inSingleQuote  bool
	inDoubleQuote  bool
	inLineComment  bool
	inBlockComment bool
	dollarTag      string
}

func splitSQLStatements(content string) []string {
	s := &statementSplitter{content: content}

	return s.split()
}

func (s *statementSplitter) split() []string {
	for i := 0; i < len(s.content); i++ {
		i += s.step(i)
	}

	s.flush()

	return s.out
}

// step consumes the byte at i and returns how many extra bytes it swallowed.
func (s *statementSplitter) step(i int) int {
	ch := s.content[i]
	rest := s.content[i:]

	switch {
	case s.inLineComment:
		if ch == '\n' {
			s.inLineComment = false
			s.current.WriteByte(ch)
		}

		return 0
	case s.inBlockComment:
		if strings.HasPrefix(rest, "*/") {
			s.inBlockComment = false
			return 1
		}

		return 0
	case s.dollarTag != "":
		if strings.HasPrefix(rest, s.dollarTag) {
			s.current.WriteString(s.dollarTag)
			skip := len(s.dollarTag) - 1
			s.dollarTag = ""

			return skip
		}

		s.current.WriteByte(ch)

		return 0
	}

	if !s.inSingleQuote && !s.inDoubleQuote {
		if strings.HasPrefix(rest, "--") {
			s.inLineComment = true
			return 1
		}

		if strings.HasPrefix(rest, "/*") {
			s.inBlockComment = true
			return 1
		}

		if tag := parseDollarTag(rest); tag != "" {
			s.dollarTag = tag
			s.current.WriteString(tag)

			return len(tag) - 1
		}
	}

	switch {
	case ch == '\'' && !s.inDoubleQuote:
		s.inSingleQuote = !s.inSingleQuote
	case ch == '"' && !s.inSingleQuote:
		s.inDoubleQuote = !s.inDoubleQuote
	case ch == ';' && !s.inSingleQuote && !s.inDoubleQuote:
		s.flush()
		return 0
	}

	s.current.WriteByte(ch)

	return 0
}

func (s *statementSplitter) flush() {
	if stmt := strings.TrimSpace(s.current.String()); stmt != "" {
		s.out = append(s.out, stmt)
	}

	s.current.Reset()
}

// parseDollarTag returns the opening tag ($$ or $name$) at the start of content.
// Positional parameters such as $1 are not tags.
func parseDollarTag(content string) string {
	if len(content) < 2 || content[0] != '$' {
		return ""
	}

	if content[1] == '$' {
		return "$$"
	}

	if !isDollarTagStart(content[1]) {
		return ""
	}

	for i := 2; i < len(content); i++ {
		if content[i] == '$' {
			return content[:i+1]
		}

		if !isDollarTagChar(content[i]) {
			return ""
		}
	}

	return ""
}

func isDollarTagStart(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isDollarTagChar(ch byte) bool {
	return isDollarTagStart(ch) || unicode.IsDigit(rune(ch))
}

func extractVersion(filename string) string {
	version, _, _ := strings.Cut(filename, "_")

	return version
}
