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
	"testing"
)

func TestSplitSQLStatementsHandlesDollarQuotedBlocks(t *testing.T) {
	content := `
-- Presence schema
CREATE TABLE IF NOT EXISTS "Settings" ("setKey" TEXT PRIMARY KEY);

DO $$
BEGIN
    PERFORM set_config('search_path', 'public', false);
    PERFORM pg_sleep(0);
END $$;

SELECT 1;
`

	statements := splitSQLStatements(content)

	if len(statements) != 3 {
		t.Fatalf("expected 3 statements, got %d: %#v", len(statements), statements)
	}

	if !strings.HasPrefix(statements[1], "DO") {
		t.Fatalf("expected DO block as second statement, got %q", statements[1])
	}

	if statements[2] != "SELECT 1" {
		t.Fatalf("unexpected tail statement: %q", statements[2])
	}
}

func TestSplitSQLStatementsIgnoresSemicolonsInQuotes(t *testing.T) {
	content := `
INSERT INTO "Settings"("setKey", "setValue") VALUES('k', 'a;b');
CREATE VIEW "odd;name" AS SELECT 1;
DO $tag$
BEGIN
    PERFORM do_something('value;with;semicolons');
END $tag$;
`

	statements := splitSQLStatements(content)

	if len(statements) != 3 {
		t.Fatalf("expected 3 statements, got %d: %#v", len(statements), statements)
	}

	if !strings.HasPrefix(statements[0], "INSERT") {
		t.Fatalf("unexpected first statement: %q", statements[0])
	}

	if !strings.Contains(statements[1], `"odd;name"`) {
		t.Fatalf("quoted identifier was split: %q", statements[1])
	}

	if !strings.HasPrefix(statements[2], "DO") || !strings.HasSuffix(statements[2], "$tag$") {
		t.Fatalf("unexpected DO statement: %q", statements[2])
	}
}

func TestSplitSQLStatementsStripsComments(t *testing.T) {
	content := "/* header; with semicolon */ SELECT 1; -- trailing; comment\nSELECT $1::int;"

	statements := splitSQLStatements(content)

	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(statements), statements)
	}

	if statements[0] != "SELECT 1" {
		t.Fatalf("unexpected first statement: %q", statements[0])
	}

	if statements[1] != "SELECT $1::int" {
		t.Fatalf("positional parameter treated as dollar tag: %q", statements[1])
	}
}

func TestExtractVersion(t *testing.T) {
	if got := extractVersion("00001_presence_schema.up.sql"); got != "00001" {
		t.Fatalf("extractVersion=%q", got)
	}

	if got := extractVersion("plain.sql"); got != "plain.sql" {
		t.Fatalf("extractVersion=%q", got)
	}
}
