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

import "errors"

var (
	ErrTooLong           = errors.New("condition exceeds maximum length")
	ErrForbiddenSequence = errors.New("condition contains a forbidden sequence")
	ErrUnterminatedQuote = errors.New("unterminated quoted string")
	ErrUnbalancedParens  = errors.New("unbalanced parentheses")
	ErrUnexpectedToken   = errors.New("unexpected token")
	ErrUnexpectedEnd     = errors.New("unexpected end of condition")
	ErrInvalidCharacter  = errors.New("invalid character")
	ErrExpectedValue     = errors.New("expected a literal value")
	ErrExpectedColumn    = errors.New("expected a column name")
)
