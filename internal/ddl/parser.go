package ddl

import (
	"fmt"
	"regexp"
	"strings"

	"datakiln/internal/models"
)

// ParseResult holds the tables extracted from one DDL text, the table names
// in source order, and any notices about fragments that were skipped.
// Parsing never fails hard: malformed fragments degrade to partial results
// and callers decide success by checking table/column counts themselves.
type ParseResult struct {
	Tables   map[string]*models.Table
	Names    []string // table names in source order
	Warnings []string
}

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

	createTableRe = regexp.MustCompile("(?is)\\bCREATE\\s+TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?([\"`\\w.]+)")
	defaultRe     = regexp.MustCompile(`(?i)DEFAULT\s+([^\s,]+)`)
	primaryKeyRe  = regexp.MustCompile(`(?is)PRIMARY\s+KEY\s*\(([^)]+)\)`)
	foreignKeyRe  = regexp.MustCompile("(?is)FOREIGN\\s+KEY\\s*\\(([^)]+)\\)\\s*REFERENCES\\s+([\"`\\w.]+)\\s*\\(([^)]+)\\)")
)

var constraintKeywords = []string{
	"PRIMARY KEY",
	"FOREIGN KEY",
	"UNIQUE",
	"CHECK",
	"CONSTRAINT",
}

// Parse extracts table definitions from CREATE TABLE statements in the
// given DDL text. Non-CREATE-TABLE statements and comments are ignored.
func Parse(ddl string) *ParseResult {
	result := &ParseResult{Tables: make(map[string]*models.Table)}

	cleaned := blockCommentRe.ReplaceAllString(ddl, "")
	cleaned = lineCommentRe.ReplaceAllString(cleaned, "")

	for _, statement := range strings.Split(cleaned, ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		result.parseCreateTable(statement)
	}

	// Link table-level primary key names back onto columns.
	for _, name := range result.Names {
		table := result.Tables[name]
		for _, pk := range table.PrimaryKeys {
			if col := table.Column(pk); col != nil {
				col.PrimaryKey = true
			} else {
				result.warnf("table %s: primary key column %q not found among parsed columns", table.Name, pk)
			}
		}
	}

	return result
}

func (r *ParseResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ParseResult) parseCreateTable(statement string) {
	m := createTableRe.FindStringSubmatchIndex(statement)
	if m == nil {
		return
	}

	name := cleanIdentifier(statement[m[2]:m[3]])
	if name == "" {
		return
	}

	table := &models.Table{Name: name}

	// The parenthesized body is optional: a CREATE TABLE without one still
	// yields a zero-column table.
	if body, ok := tableBody(statement[m[3]:]); ok {
		r.parseDefinitions(body, table)
	} else {
		r.warnf("table %s: no column body found", name)
	}

	if _, exists := r.Tables[name]; !exists {
		r.Names = append(r.Names, name)
	}
	r.Tables[name] = table
}

// tableBody returns the contents of the first balanced parenthesis group.
func tableBody(s string) (string, bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return "", false
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[open+1 : i], true
			}
		}
	}
	// Unbalanced parentheses: take what is there.
	return s[open+1:], true
}

func (r *ParseResult) parseDefinitions(body string, table *models.Table) {
	for _, definition := range splitTopLevel(body) {
		definition = strings.TrimSpace(definition)
		if definition == "" {
			continue
		}

		if isConstraintDefinition(definition) {
			r.parseConstraint(definition, table)
			continue
		}

		if col, ok := parseColumn(definition); ok {
			table.Columns = append(table.Columns, col)
		} else {
			r.warnf("table %s: skipped unparseable definition %q", table.Name, definition)
		}
	}
}

// splitTopLevel splits by commas, ignoring commas nested inside
// parentheses such as DECIMAL(10,2) or FOREIGN KEY (a, b).
func splitTopLevel(s string) []string {
	var parts []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, current.String())
				current.Reset()
				continue
			}
		}
		current.WriteRune(ch)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isConstraintDefinition(definition string) bool {
	upper := strings.ToUpper(strings.TrimSpace(definition))
	for _, kw := range constraintKeywords {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

func parseColumn(definition string) (models.Column, bool) {
	parts := strings.Fields(definition)
	if len(parts) < 2 {
		return models.Column{}, false
	}

	upper := strings.ToUpper(definition)

	col := models.Column{
		Name:       cleanIdentifier(parts[0]),
		DataType:   strings.ToUpper(parts[1]),
		NotNull:    strings.Contains(upper, "NOT NULL"),
		PrimaryKey: strings.Contains(upper, "PRIMARY KEY"),
		Unique:     strings.Contains(upper, " UNIQUE") || strings.HasSuffix(upper, "UNIQUE"),
	}

	if m := defaultRe.FindStringSubmatch(definition); m != nil {
		col.Default = strings.Trim(m[1], `'"`)
	}

	return col, true
}

func (r *ParseResult) parseConstraint(definition string, table *models.Table) {
	upper := strings.ToUpper(definition)

	switch {
	case strings.Contains(upper, "FOREIGN KEY"):
		r.parseForeignKeyConstraint(definition, table)
	case strings.Contains(upper, "PRIMARY KEY"):
		parsePrimaryKeyConstraint(definition, table)
	}
}

func parsePrimaryKeyConstraint(definition string, table *models.Table) {
	m := primaryKeyRe.FindStringSubmatch(definition)
	if m == nil {
		return
	}
	for _, col := range strings.Split(m[1], ",") {
		table.PrimaryKeys = append(table.PrimaryKeys, cleanIdentifier(col))
	}
}

// parseForeignKeyConstraint handles FOREIGN KEY (col) REFERENCES table(col).
// Multi-column foreign keys are reduced to their first column on each side
// with a warning; composite FK constraints are otherwise out of scope.
func (r *ParseResult) parseForeignKeyConstraint(definition string, table *models.Table) {
	m := foreignKeyRe.FindStringSubmatch(definition)
	if m == nil {
		return
	}

	owningCols := strings.Split(m[1], ",")
	refCols := strings.Split(m[3], ",")
	if len(owningCols) > 1 || len(refCols) > 1 {
		r.warnf("table %s: multi-column foreign key not supported, using first column of %q", table.Name, strings.TrimSpace(m[1]))
	}

	table.ForeignKeys = append(table.ForeignKeys, models.ForeignKey{
		Column:           cleanIdentifier(owningCols[0]),
		ReferencedTable:  cleanIdentifier(m[2]),
		ReferencedColumn: cleanIdentifier(refCols[0]),
	})
}

// cleanIdentifier strips whitespace and quoting conventions (double quotes,
// single quotes, backticks) and drops any schema qualifier.
func cleanIdentifier(identifier string) string {
	s := strings.TrimSpace(identifier)
	s = strings.Trim(s, "\"'`")
	if dot := strings.LastIndexByte(s, '.'); dot >= 0 {
		s = s[dot+1:]
		s = strings.Trim(s, "\"'`")
	}
	return s
}
