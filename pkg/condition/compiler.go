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

// Package condition compiles the free-text filter conditions operators store in
// settings into parameterized predicates for the notification section queries.
//
// A condition is a sequence of comparisons joined by AND/OR, optionally grouped
// with parentheses:
//
//	AND devVendor LIKE '%Apple%' AND (devName = 'phone' OR devFavorite = 1)
//
// Only whitelisted columns are emitted, always as quoted identifiers, and every
// literal becomes a pgx named parameter. Anything the grammar does not accept
// compiles to an empty condition.
package condition

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bryanwills/NetAlertX/pkg/logger"
)

const (
	// MaxLength bounds the accepted condition size in bytes.
	MaxLength = 4096

	// DefaultParamPrefix names the bound parameters cond_0, cond_1, ...
	DefaultParamPrefix = "cond_"
)

// DefaultColumns are the event and device columns a condition may reference.
var DefaultColumns = []string{
	"eve_MAC", "eve_IP", "eve_DateTime", "eve_EventType", "eve_AdditionalInfo",
	"devName", "devVendor", "devComments", "devLastIP", "devOwner", "devGroup",
	"devLocation", "devFavorite", "devIsNew", "devAlertEvents", "devAlertDown",
	"devType", "devSite", "devSSID", "devSyncHubNode",
}

// Compiled is a predicate fragment plus the parameters it binds. Fragment is
// empty or starts with "AND (" so it can be appended to any WHERE clause.
type Compiled struct {
	Fragment string
	Params   pgx.NamedArgs

	// Dropped lists referenced columns that are not whitelisted.
	Dropped []string
}

// IsEmpty reports whether the condition filters nothing.
func (c Compiled) IsEmpty() bool {
	return c.Fragment == ""
}

// Compiler turns condition strings into Compiled predicates.
type Compiler struct {
	columns map[string]string
	prefix  string
	logger  logger.Logger
}

// Option customizes a Compiler.
type Option func(*Compiler)

// WithColumns replaces the column whitelist.
func WithColumns(columns ...string) Option {
	return func(c *Compiler) {
		c.columns = make(map[string]string, len(columns))
		for _, col := range columns {
			c.columns[strings.ToLower(col)] = col
		}
	}
}

// WithParamPrefix changes the bound parameter prefix.
func WithParamPrefix(prefix string) Option {
	return func(c *Compiler) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// NewCompiler builds a compiler using DefaultColumns unless overridden.
func NewCompiler(log logger.Logger, opts ...Option) *Compiler {
	c := &Compiler{prefix: DefaultParamPrefix, logger: log}
	WithColumns(DefaultColumns...)(c)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compile never fails: malformed input yields an empty Compiled and a warning,
// so callers can run the section unfiltered.
func (c *Compiler) Compile(input string) Compiled {
	compiled, err := c.CompileStrict(input)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Int("length", len(input)).
			Msg("discarding invalid filter condition")

		return Compiled{Params: pgx.NamedArgs{}}
	}

	if len(compiled.Dropped) > 0 {
		c.logger.Warn().
			Strs("columns", compiled.Dropped).
			Msg("dropped filter clauses on columns that are not allowed")
	}

	return compiled
}

// CompileStrict is Compile with the failure reported instead of swallowed.
func (c *Compiler) CompileStrict(input string) (Compiled, error) {
	empty := Compiled{Params: pgx.NamedArgs{}}

	if len(input) > MaxLength {
		return empty, fmt.Errorf("%w: %d > %d bytes", ErrTooLong, len(input), MaxLength)
	}

	if strings.TrimSpace(input) == "" {
		return empty, nil
	}

	tokens, err := tokenize(input)
	if err != nil {
		return empty, err
	}

	tree, err := parse(tokens, c.columns)
	if err != nil {
		return empty, err
	}

	em := &emitter{prefix: c.prefix, params: pgx.NamedArgs{}}

	body := em.expr(tree)
	if body == "" {
		return Compiled{Params: pgx.NamedArgs{}, Dropped: em.dropped}, nil
	}

	return Compiled{
		Fragment: "AND (" + body + ")",
		Params:   em.params,
		Dropped:  em.dropped,
	}, nil
}

type emitter struct {
	prefix  string
	params  pgx.NamedArgs
	next    int
	dropped []string
}

// expr emits the terms as OR-joined conjunctions. A dropped term leaves its
// conjunction, and a conjunction with no terms left leaves the disjunction.
func (em *emitter) expr(e *expr) string {
	var (
		disjuncts   []string
		conjunction []string
	)

	flush := func() {
		if len(conjunction) > 0 {
			disjuncts = append(disjuncts, strings.Join(conjunction, " AND "))
		}

		conjunction = nil
	}

	for i, t := range e.terms {
		if i > 0 && t.connective == "OR" {
			flush()
		}

		if s := em.term(t); s != "" {
			conjunction = append(conjunction, s)
		}
	}

	flush()

	return strings.Join(disjuncts, " OR ")
}

func (em *emitter) term(t term) string {
	if t.group != nil {
		inner := em.expr(t.group)
		if inner == "" {
			return ""
		}

		return "(" + inner + ")"
	}

	return em.clause(t.clause)
}

func (em *emitter) clause(c *clause) string {
	if c.column == "" {
		em.dropped = append(em.dropped, c.raw)
		return ""
	}

	column := quoteIdent(c.column)

	switch c.op {
	case "IS NULL", "IS NOT NULL":
		return column + " " + c.op
	case "IN", "NOT IN":
		placeholders := make([]string, len(c.values))
		for i, v := range c.values {
			placeholders[i] = em.bind(v)
		}

		return column + " " + c.op + " (" + strings.Join(placeholders, ", ") + ")"
	default:
		return column + " " + c.op + " " + em.bind(c.values[0])
	}
}

func (em *emitter) bind(v interface{}) string {
	name := fmt.Sprintf("%s%d", em.prefix, em.next)
	em.next++
	em.params[name] = v

	return "@" + name
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
