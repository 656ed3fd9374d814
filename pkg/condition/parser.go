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
	"strconv"
	"strings"
)

const maxNestingDepth = 16

// expr is a flat sequence of terms joined by AND/OR, left to right.
type expr struct {
	terms []term
}

// term is either a single comparison or a parenthesized group. The connective
// joins it to the previous term and is empty for the first one.
type term struct {
	connective string
	clause     *clause
	group      *expr
}

type clause struct {
	column string // canonical name, empty when the column is not allowed
	raw    string
	op     string
	values []interface{}
}

type parser struct {
	tokens  []token
	pos     int
	columns map[string]string
}

func parse(tokens []token, columns map[string]string) (*expr, error) {
	p := &parser{tokens: tokens, columns: columns}

	e, err := p.parseExpr(0, true)
	if err != nil {
		return nil, err
	}

	switch tok := p.peek(); tok.kind {
	case tokEOF:
		return e, nil
	case tokRParen:
		return nil, fmt.Errorf("%w: stray ')' at offset %d", ErrUnbalancedParens, tok.pos)
	default:
		return nil, unexpected(tok)
	}
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}

	return tok
}

func (p *parser) connective() (string, bool) {
	tok := p.peek()
	if tok.keyword("AND") || tok.keyword("OR") {
		p.next()
		return strings.ToUpper(tok.text), true
	}

	return "", false
}

func (p *parser) parseExpr(depth int, top bool) (*expr, error) {
	if depth > maxNestingDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrUnexpectedToken, maxNestingDepth)
	}

	e := &expr{}

	var conn string
	if top {
		// A legacy condition usually starts with AND; the connective is implied.
		p.connective()
	}

	for {
		t, err := p.parseTerm(depth)
		if err != nil {
			return nil, err
		}

		t.connective = conn
		e.terms = append(e.terms, t)

		next, ok := p.connective()
		if !ok {
			return e, nil
		}

		conn = next
	}
}

func (p *parser) parseTerm(depth int) (term, error) {
	if p.peek().kind == tokLParen {
		open := p.next()

		group, err := p.parseExpr(depth+1, false)
		if err != nil {
			return term{}, err
		}

		if p.peek().kind != tokRParen {
			if p.peek().kind == tokEOF {
				return term{}, fmt.Errorf("%w: '(' at offset %d is never closed", ErrUnbalancedParens, open.pos)
			}

			return term{}, unexpected(p.peek())
		}

		p.next()

		return term{group: group}, nil
	}

	c, err := p.parseClause()
	if err != nil {
		return term{}, err
	}

	return term{clause: c}, nil
}

func (p *parser) parseClause() (*clause, error) {
	tok := p.next()
	if tok.kind != tokIdent || isReserved(tok.text) {
		if tok.kind == tokEOF {
			return nil, ErrUnexpectedEnd
		}

		return nil, fmt.Errorf("%w: got %s %q at offset %d", ErrExpectedColumn, tok.kind, tok.text, tok.pos)
	}

	c := &clause{raw: tok.text, column: p.columns[strings.ToLower(tok.text)]}

	opTok := p.next()

	switch {
	case opTok.kind == tokOperator:
		c.op = opTok.text
		if c.op == "!=" {
			c.op = "<>"
		}

		return c, p.parseSingleValue(c)
	case opTok.keyword("LIKE"), opTok.keyword("ILIKE"):
		c.op = strings.ToUpper(opTok.text)
		return c, p.parseSingleValue(c)
	case opTok.keyword("IN"):
		c.op = "IN"
		return c, p.parseValueList(c)
	case opTok.keyword("NOT"):
		negated := p.next()

		switch {
		case negated.keyword("LIKE"), negated.keyword("ILIKE"):
			c.op = "NOT " + strings.ToUpper(negated.text)
			return c, p.parseSingleValue(c)
		case negated.keyword("IN"):
			c.op = "NOT IN"
			return c, p.parseValueList(c)
		default:
			return nil, unexpected(negated)
		}
	case opTok.keyword("IS"):
		c.op = "IS NULL"

		nextTok := p.next()
		if nextTok.keyword("NOT") {
			c.op = "IS NOT NULL"
			nextTok = p.next()
		}

		if !nextTok.keyword("NULL") {
			return nil, unexpected(nextTok)
		}

		return c, nil
	default:
		return nil, unexpected(opTok)
	}
}

func (p *parser) parseSingleValue(c *clause) error {
	v, err := p.parseValue()
	if err != nil {
		return err
	}

	c.values = []interface{}{v}

	return nil
}

func (p *parser) parseValueList(c *clause) error {
	open := p.next()
	if open.kind != tokLParen {
		return unexpected(open)
	}

	for {
		v, err := p.parseValue()
		if err != nil {
			return err
		}

		c.values = append(c.values, v)

		switch tok := p.next(); tok.kind {
		case tokComma:
			continue
		case tokRParen:
			return nil
		case tokEOF:
			return fmt.Errorf("%w: '(' at offset %d is never closed", ErrUnbalancedParens, open.pos)
		default:
			return unexpected(tok)
		}
	}
}

// parseValue returns a literal. Booleans bind as 0/1 to match the flag columns.
func (p *parser) parseValue() (interface{}, error) {
	tok := p.next()

	switch {
	case tok.kind == tokString:
		return tok.text, nil
	case tok.kind == tokNumber:
		if strings.Contains(tok.text, ".") {
			return strconv.ParseFloat(tok.text, 64)
		}

		return strconv.ParseInt(tok.text, 10, 64)
	case tok.keyword("TRUE"):
		return int64(1), nil
	case tok.keyword("FALSE"):
		return int64(0), nil
	case tok.kind == tokEOF:
		return nil, ErrUnexpectedEnd
	default:
		return nil, fmt.Errorf("%w: got %s %q at offset %d", ErrExpectedValue, tok.kind, tok.text, tok.pos)
	}
}

func unexpected(tok token) error {
	if tok.kind == tokEOF {
		return ErrUnexpectedEnd
	}

	return fmt.Errorf("%w: %s %q at offset %d", ErrUnexpectedToken, tok.kind, tok.text, tok.pos)
}

var reservedWords = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "like": {}, "ilike": {}, "in": {},
	"is": {}, "null": {}, "true": {}, "false": {}, "select": {}, "union": {},
}

func isReserved(word string) bool {
	_, ok := reservedWords[strings.ToLower(word)]
	return ok
}
