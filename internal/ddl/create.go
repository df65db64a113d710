// Package ddl renders CREATE TABLE statements for the SQL sinks. The table
// shape always comes from the canonical record schema; nothing is inferred
// from data.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders
//
//	CREATE TABLE IF NOT EXISTS "schema"."table" (
//	  "col1" TYPE [NOT NULL],
//	  ...
//	);
//
// with every identifier quoted.
func BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		col := Quote(name) + " " + typ
		if !c.Nullable {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		QuoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	), nil
}

// InsertSQL renders a single-row INSERT for columns with the given
// placeholder style: "?" for SQLite, "$" for Postgres ($1, $2, ...).
func InsertSQL(fqn string, columns []string, placeholder string) string {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = Quote(c)
		if placeholder == "$" {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = placeholder
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteFQN(fqn), strings.Join(names, ", "), strings.Join(marks, ", "))
}
