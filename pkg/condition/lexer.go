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

package condition

import (
	"fmt"
	"strings"
)

// forbiddenSequences may only appear inside quoted literals.
var forbiddenSequences = []string{";", "--", "/*", "*/"}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOperator
	tokLParen
	tokRParen
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokOperator:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokComma:
		return "','"
	default:
		return "unknown"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keyword reports whether the token is the given keyword, case-insensitively.
func (t token) keyword(word string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func tokenize(input string) ([]token, error) {
	var tokens []token

	for i := 0; i < len(input); {
		ch := input[i]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case ch == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case ch == '\'' || ch == '"':
			text, next, err := lexQuoted(input, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, token{kind: tokString, text: text, pos: i})
			i = next
		case isDigit(ch) || (ch == '-' && i+1 < len(input) && isDigit(input[i+1])):
			next := lexNumber(input, i)
			tokens = append(tokens, token{kind: tokNumber, text: input[i:next], pos: i})
			i = next
		case isIdentStart(ch):
			next := i + 1
			for next < len(input) && isIdentChar(input[next]) {
				next++
			}

			tokens = append(tokens, token{kind: tokIdent, text: input[i:next], pos: i})
			i = next
		case strings.ContainsRune("=!<>", rune(ch)):
			op, next, err := lexOperator(input, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, token{kind: tokOperator, text: op, pos: i})
			i = next
		default:
			for _, seq := range forbiddenSequences {
				if strings.HasPrefix(input[i:], seq) {
					return nil, fmt.Errorf("%w %q at offset %d", ErrForbiddenSequence, seq, i)
				}
			}

			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidCharacter, ch, i)
		}
	}

	return append(tokens, token{kind: tokEOF, pos: len(input)}), nil
}

// lexQuoted reads a string opened by input[start]. A doubled quote is an escaped quote.
func lexQuoted(input string, start int) (string, int, error) {
	quote := input[start]

	var b strings.Builder

	for i := start + 1; i < len(input); i++ {
		if input[i] != quote {
			b.WriteByte(input[i])
			continue
		}

		if i+1 < len(input) && input[i+1] == quote {
			b.WriteByte(quote)
			i++

			continue
		}

		return b.String(), i + 1, nil
	}

	return "", 0, fmt.Errorf("%w starting at offset %d", ErrUnterminatedQuote, start)
}

func lexNumber(input string, start int) int {
	i := start
	if input[i] == '-' {
		i++
	}

	for i < len(input) && isDigit(input[i]) {
		i++
	}

	if i+1 < len(input) && input[i] == '.' && isDigit(input[i+1]) {
		i++
		for i < len(input) && isDigit(input[i]) {
			i++
		}
	}

	return i
}

func lexOperator(input string, start int) (string, int, error) {
	if start+1 < len(input) {
		switch two := input[start : start+2]; two {
		case "<=", ">=", "<>", "!=":
			return two, start + 2, nil
		}
	}

	switch ch := input[start]; ch {
	case '=', '<', '>':
		return string(ch), start + 1, nil
	default:
		return "", 0, fmt.Errorf("%w %q at offset %d", ErrInvalidCharacter, ch, start)
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
