// Package query builds parameterized SQL over projection maps.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps record field names to qualified columns (alias.column)
// of a single table.
type ProjectionMap struct {
	schema  string
	table   string
	alias   string
	fields  map[string]string
	columns []string
}

// NewProjectionMap creates a ProjectionMap for the given schema, table, and alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		schema: schema,
		table:  table,
		alias:  alias,
		fields: make(map[string]string),
	}
}

// Project maps column to field. Columns are selected in projection order,
// which is the order scan functions must read them in.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	qualified := p.alias + "." + column
	p.fields[field] = qualified
	p.columns = append(p.columns, qualified)
	return p
}

// Alias returns the table alias.
func (p *ProjectionMap) Alias() string {
	return p.alias
}

// Table returns the qualified table with its alias (schema.table alias).
func (p *ProjectionMap) Table() string {
	return fmt.Sprintf("%s.%s %s", p.schema, p.table, p.alias)
}

// Column returns the qualified column for field, or field itself when unmapped.
func (p *ProjectionMap) Column(field string) string {
	if col, ok := p.fields[field]; ok {
		return col
	}
	return field
}

// Columns returns the projected columns as a select list.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.columns, ", ")
}

// Len returns the number of projected columns.
func (p *ProjectionMap) Len() int {
	return len(p.columns)
}
