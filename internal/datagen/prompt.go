package datagen

import (
	"encoding/json"
	"fmt"
	"strings"

	"datakiln/internal/models"
)

// fkValueLimit caps how many already-generated parent values are listed in
// a prompt before falling back to an "and more" notice.
const fkValueLimit = 50

// FieldShape describes one record field's primitive kind.
type FieldShape struct {
	Type string `json:"type"`
}

// ItemShape describes one generated record.
type ItemShape struct {
	Type       string                `json:"type"`
	Properties map[string]FieldShape `json:"properties"`
	Required   []string              `json:"required"`
}

// Shape is the structural descriptor the generation backend must conform
// to: an array of records whose fields are the table's columns. It
// marshals to a JSON Schema fragment, so it can be handed directly to a
// structured-output chat completion.
type Shape struct {
	Type  string     `json:"type"`
	Items *ItemShape `json:"items"`
}

// MarshalJSON lets *Shape satisfy json.Marshaler, which is what the OpenAI
// client expects for response-format schemas.
func (s *Shape) MarshalJSON() ([]byte, error) {
	type alias Shape
	return json.Marshal((*alias)(s))
}

// BuildShape derives the structural descriptor for a table. NOT NULL and
// primary-key columns are required; everything else may be omitted by the
// backend and is filled with NULL during reconciliation.
func BuildShape(table *models.Table) *Shape {
	properties := make(map[string]FieldShape, len(table.Columns))
	var required []string

	for _, col := range table.Columns {
		properties[col.Name] = FieldShape{Type: kindForType(col.DataType)}
		if col.NotNull || col.PrimaryKey {
			required = append(required, col.Name)
		}
	}

	return &Shape{
		Type: "array",
		Items: &ItemShape{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}
}

// kindForType maps a declared SQL type to a primitive JSON kind by
// substring classification.
func kindForType(sqlType string) string {
	upper := strings.ToUpper(sqlType)

	for _, t := range []string{"INT", "SERIAL", "BIGINT", "SMALLINT", "TINYINT"} {
		if strings.Contains(upper, t) {
			return "integer"
		}
	}
	for _, t := range []string{"DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "MONEY"} {
		if strings.Contains(upper, t) {
			return "number"
		}
	}
	if strings.Contains(upper, "BOOL") {
		return "boolean"
	}
	return "string"
}

// BuildPrompt renders the natural-language generation instruction for one
// table: its columns with constraint tags, foreign-key constraints with the
// values currently available in the dataset, user instructions, and the
// fixed generation rules.
func BuildPrompt(table *models.Table, rows int, instructions string, dataset models.Dataset) string {
	var b strings.Builder

	b.WriteString("You are generating realistic synthetic test data for a database table.\n")
	fmt.Fprintf(&b, "\n**Table**: %s\n", table.Name)
	fmt.Fprintf(&b, "**Rows to generate**: %d\n", rows)
	b.WriteString("\n**Schema**:\n")

	for _, col := range table.Columns {
		fmt.Fprintf(&b, "- %s (%s)", col.Name, col.DataType)
		if tags := constraintTags(col); len(tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(tags, ", "))
		}
		b.WriteByte('\n')
	}

	if len(table.ForeignKeys) > 0 {
		b.WriteString("\n**Foreign Key Constraints**:\n")
		for _, fk := range table.ForeignKeys {
			writeForeignKeySpec(&b, fk, dataset)
		}
	}

	if instructions != "" {
		fmt.Fprintf(&b, "\n**Additional Instructions**: %s\n", instructions)
	}

	b.WriteString("\n**Requirements**:\n")
	b.WriteString("- Generate exactly the requested number of rows\n")
	b.WriteString("- All foreign key values MUST exist in the referenced tables\n")
	b.WriteString("- Primary keys must be unique (use sequential integers starting from 1)\n")
	b.WriteString("- NOT NULL columns must have values\n")
	b.WriteString("- UNIQUE columns must have unique values\n")
	b.WriteString("- Make data realistic, diverse, and varied\n")
	b.WriteString("- Use appropriate data formats for each type\n")
	b.WriteString("- For TIMESTAMP/DATE fields, use ISO format (YYYY-MM-DD HH:MM:SS or YYYY-MM-DD)\n")
	fmt.Fprintf(&b, "\nGenerate %d rows now as a JSON array of row objects keyed by column name.\n", rows)

	return b.String()
}

func constraintTags(col models.Column) []string {
	var tags []string
	if col.PrimaryKey {
		tags = append(tags, "PRIMARY KEY")
	}
	if col.NotNull {
		tags = append(tags, "NOT NULL")
	}
	if col.Unique {
		tags = append(tags, "UNIQUE")
	}
	if col.Default != "" {
		tags = append(tags, "DEFAULT "+col.Default)
	}
	return tags
}

func writeForeignKeySpec(b *strings.Builder, fk models.ForeignKey, dataset models.Dataset) {
	fmt.Fprintf(b, "- %s must reference %s.%s\n", fk.Column, fk.ReferencedTable, fk.ReferencedColumn)

	parentRows, ok := dataset[fk.ReferencedTable]
	if !ok {
		return
	}

	values := distinctColumnValues(parentRows, fk.ReferencedColumn)
	truncated := false
	if len(values) > fkValueLimit {
		values = values[:fkValueLimit]
		truncated = true
	}

	encoded, err := json.Marshal(values)
	if err != nil {
		return
	}
	if truncated {
		fmt.Fprintf(b, "  Available values: %s (and more...)\n", encoded)
	} else {
		fmt.Fprintf(b, "  Available values: %s\n", encoded)
	}
}

// distinctColumnValues returns the distinct values of one column across the
// given rows, preserving first-seen order. NULLs are skipped since they
// cannot serve as FK targets.
func distinctColumnValues(rows []models.Row, column string) []any {
	var values []any
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		v, ok := row[column]
		if !ok || v == nil {
			continue
		}
		key := fmt.Sprintf("%T:%v", v, v)
		if seen[key] {
			continue
		}
		seen[key] = true
		values = append(values, v)
	}
	return values
}
