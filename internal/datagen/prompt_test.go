package datagen

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datakiln/internal/models"
)

func TestKindForType(t *testing.T) {
	cases := map[string]string{
		"INT":           "integer",
		"INTEGER":       "integer",
		"BIGINT":        "integer",
		"SMALLINT":      "integer",
		"SERIAL":        "integer",
		"DECIMAL(10,2)": "number",
		"NUMERIC":       "number",
		"FLOAT":         "number",
		"DOUBLE":        "number",
		"REAL":          "number",
		"MONEY":         "number",
		"BOOLEAN":       "boolean",
		"BOOL":          "boolean",
		"VARCHAR(100)":  "string",
		"TEXT":          "string",
		"DATE":          "string",
		"TIMESTAMP":     "string",
		"UUID":          "string",
	}

	for sqlType, want := range cases {
		assert.Equal(t, want, kindForType(sqlType), "type %s", sqlType)
	}
}

func TestBuildShape(t *testing.T) {
	table := &models.Table{
		Name: "products",
		Columns: []models.Column{
			{Name: "id", DataType: "SERIAL", PrimaryKey: true},
			{Name: "name", DataType: "VARCHAR(100)", NotNull: true},
			{Name: "price", DataType: "DECIMAL(10,2)"},
			{Name: "in_stock", DataType: "BOOLEAN"},
		},
	}

	shape := BuildShape(table)
	assert.Equal(t, "array", shape.Type)
	require.NotNil(t, shape.Items)
	assert.Equal(t, "object", shape.Items.Type)

	assert.Equal(t, "integer", shape.Items.Properties["id"].Type)
	assert.Equal(t, "string", shape.Items.Properties["name"].Type)
	assert.Equal(t, "number", shape.Items.Properties["price"].Type)
	assert.Equal(t, "boolean", shape.Items.Properties["in_stock"].Type)

	// Required = primary key or NOT NULL columns, in declaration order.
	assert.Equal(t, []string{"id", "name"}, shape.Items.Required)
}

func TestShapeMarshalsToJSONSchema(t *testing.T) {
	table := &models.Table{
		Name:    "t",
		Columns: []models.Column{{Name: "id", DataType: "INT", PrimaryKey: true}},
	}

	encoded, err := json.Marshal(BuildShape(table))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, "array", decoded["type"])
	items := decoded["items"].(map[string]any)
	assert.Equal(t, "object", items["type"])
}

func TestBuildPromptContents(t *testing.T) {
	table := &models.Table{
		Name: "orders",
		Columns: []models.Column{
			{Name: "id", DataType: "INT", PrimaryKey: true},
			{Name: "status", DataType: "VARCHAR(20)", NotNull: true, Default: "pending"},
			{Name: "code", DataType: "VARCHAR(10)", Unique: true},
			{Name: "user_id", DataType: "INT"},
		},
		ForeignKeys: []models.ForeignKey{
			{Column: "user_id", ReferencedTable: "users", ReferencedColumn: "id"},
		},
	}

	prompt := BuildPrompt(table, 15, "orders from 2024 only", models.Dataset{})

	assert.Contains(t, prompt, "**Table**: orders")
	assert.Contains(t, prompt, "**Rows to generate**: 15")
	assert.Contains(t, prompt, "id (INT) [PRIMARY KEY]")
	assert.Contains(t, prompt, "status (VARCHAR(20)) [NOT NULL, DEFAULT pending]")
	assert.Contains(t, prompt, "code (VARCHAR(10)) [UNIQUE]")
	assert.Contains(t, prompt, "user_id must reference users.id")
	assert.NotContains(t, prompt, "Available values")
	assert.Contains(t, prompt, "orders from 2024 only")
	assert.Contains(t, prompt, "Generate exactly the requested number of rows")
	assert.Contains(t, prompt, "ISO format")
}

func TestBuildPromptListsAvailableForeignKeyValues(t *testing.T) {
	table := &models.Table{
		Name:    "orders",
		Columns: []models.Column{{Name: "user_id", DataType: "INT"}},
		ForeignKeys: []models.ForeignKey{
			{Column: "user_id", ReferencedTable: "users", ReferencedColumn: "id"},
		},
	}

	dataset := models.Dataset{
		"users": {
			{"id": float64(1)},
			{"id": float64(2)},
			{"id": float64(2)}, // duplicate, must be deduplicated
		},
	}

	prompt := BuildPrompt(table, 5, "", dataset)
	assert.Contains(t, prompt, "Available values: [1,2]")
	assert.NotContains(t, prompt, "and more")
}

func TestBuildPromptCapsForeignKeyValuesAtFifty(t *testing.T) {
	rows := make([]models.Row, 80)
	for i := range rows {
		rows[i] = models.Row{"id": float64(i + 1)}
	}

	table := &models.Table{
		Name:    "orders",
		Columns: []models.Column{{Name: "user_id", DataType: "INT"}},
		ForeignKeys: []models.ForeignKey{
			{Column: "user_id", ReferencedTable: "users", ReferencedColumn: "id"},
		},
	}

	prompt := BuildPrompt(table, 5, "", models.Dataset{"users": rows})
	assert.Contains(t, prompt, "(and more...)")
	assert.Contains(t, prompt, fmt.Sprintf("%d", fkValueLimit))
	assert.NotContains(t, prompt, "51")
}

func TestDistinctColumnValuesSkipsNulls(t *testing.T) {
	rows := []models.Row{
		{"id": float64(1)},
		{"id": nil},
		{"other": float64(9)},
		{"id": float64(1)},
	}

	values := distinctColumnValues(rows, "id")
	assert.Equal(t, []any{float64(1)}, values)
}
