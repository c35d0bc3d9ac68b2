package models

import "strings"

// Column represents a parsed table column with its constraints.
// Default holds the raw default literal with quotes stripped; an empty
// string means no default was declared.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	NotNull    bool   `json:"not_null"`
	PrimaryKey bool   `json:"primary_key"`
	Unique     bool   `json:"unique"`
	Default    string `json:"default,omitempty"`
}

// ForeignKey is a directed edge from the owning table's Column to
// ReferencedTable.ReferencedColumn.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Table represents a parsed CREATE TABLE statement. Column order matches
// declaration order and defines the output column order for generated data.
type Table struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	PrimaryKeys []string     `json:"primary_keys"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Column returns the column with the given name (case-insensitive),
// or nil if the table has no such column.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Row is one generated record, keyed by column name.
type Row map[string]any

// Dataset accumulates generated rows per table for one generation session.
// It is exclusively owned by the orchestrating call; concurrent sessions
// must use independent datasets.
type Dataset map[string][]Row

// Copy returns a shallow copy of the dataset. Row slices are shared, which
// is safe because committed rows are never mutated in place.
func (d Dataset) Copy() Dataset {
	out := make(Dataset, len(d))
	for name, rows := range d {
		out[name] = rows
	}
	return out
}

// Relationship is a rendered edge between two tables in an ER diagram.
type Relationship struct {
	FromTable string
	ToTable   string
	Type      string // "||--o{", "||--||", "}o--o{"
}
