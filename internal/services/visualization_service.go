package services

import (
	"fmt"
	"strings"

	"datakiln/internal/ddl"
	"datakiln/internal/models"
	"datakiln/internal/utils"
)

const (
	maxJunctionTableColumns = 6
	minJunctionTableFKs     = 2
)

// VisualizationService renders a parsed schema as a Mermaid ER diagram.
type VisualizationService struct{}

func NewVisualizationService() *VisualizationService {
	return &VisualizationService{}
}

// MermaidDiagram builds the erDiagram text for a parse result: one block
// per table with simplified column types and PK/FK annotations, preceded
// by the deduplicated relationship edges.
func (s *VisualizationService) MermaidDiagram(result *ddl.ParseResult) string {
	tables := make([]*models.Table, 0, len(result.Names))
	for _, name := range result.Names {
		tables = append(tables, result.Tables[name])
	}

	relationships := buildRelationships(tables)

	var sb strings.Builder
	sb.WriteString("erDiagram\n")

	if len(relationships) > 0 {
		seen := make(map[string]bool)
		for _, rel := range relationships {
			key := fmt.Sprintf("%s:%s:%s", rel.FromTable, rel.Type, rel.ToTable)
			if seen[key] {
				continue
			}
			seen[key] = true

			// Mermaid requires a label even when it should be hidden.
			sb.WriteString(fmt.Sprintf("    %s %s %s : \"\"\n",
				strings.ToUpper(rel.FromTable),
				rel.Type,
				strings.ToUpper(rel.ToTable)))
		}
		sb.WriteString("\n")
	}

	for _, table := range tables {
		sb.WriteString(fmt.Sprintf("    %s {\n", strings.ToUpper(table.Name)))

		for _, col := range table.Columns {
			annotations := ""
			if col.PrimaryKey || utils.Contains(table.PrimaryKeys, col.Name) {
				annotations = " PK"
			}
			if isForeignKeyColumn(table.ForeignKeys, col.Name) {
				annotations += " FK"
			}

			sb.WriteString(fmt.Sprintf("        %s %s%s\n",
				simplifyDataType(col.DataType),
				col.Name,
				annotations))
		}

		sb.WriteString("    }\n\n")
	}

	return sb.String()
}

func buildRelationships(tables []*models.Table) []models.Relationship {
	var relationships []models.Relationship
	junctionTables := detectJunctionTables(tables)

	for _, table := range tables {
		// Junction tables render as many-to-many between the tables they
		// join instead of two one-to-many edges.
		if junctionTables[table.Name] {
			for i := 0; i < len(table.ForeignKeys); i++ {
				for j := i + 1; j < len(table.ForeignKeys); j++ {
					relationships = append(relationships, models.Relationship{
						FromTable: table.ForeignKeys[i].ReferencedTable,
						ToTable:   table.ForeignKeys[j].ReferencedTable,
						Type:      "}o--o{",
					})
				}
			}
			continue
		}

		for _, fk := range table.ForeignKeys {
			relType := "||--o{"
			if col := table.Column(fk.Column); col != nil && col.Unique {
				relType = "||--||"
			}
			relationships = append(relationships, models.Relationship{
				FromTable: table.Name,
				ToTable:   fk.ReferencedTable,
				Type:      relType,
			})
		}
	}

	return relationships
}

// detectJunctionTables flags small tables whose foreign keys all sit inside
// a composite primary key, the usual shape of a many-to-many link table.
func detectJunctionTables(tables []*models.Table) map[string]bool {
	junctionTables := make(map[string]bool)

	for _, table := range tables {
		if len(table.ForeignKeys) < minJunctionTableFKs ||
			len(table.PrimaryKeys) < minJunctionTableFKs ||
			len(table.Columns) > maxJunctionTableColumns {
			continue
		}

		allFKsInPK := true
		for _, fk := range table.ForeignKeys {
			if !utils.Contains(table.PrimaryKeys, fk.Column) {
				allFKsInPK = false
				break
			}
		}
		if allFKsInPK {
			junctionTables[table.Name] = true
		}
	}

	return junctionTables
}

func isForeignKeyColumn(fks []models.ForeignKey, colName string) bool {
	for _, fk := range fks {
		if fk.Column == colName {
			return true
		}
	}
	return false
}

// simplifyDataType maps declared SQL types onto the short names Mermaid
// diagrams conventionally use.
func simplifyDataType(dataType string) string {
	dt := strings.ToUpper(dataType)

	switch {
	case strings.HasPrefix(dt, "VARCHAR"), strings.HasPrefix(dt, "CHARACTER VARYING"):
		return "varchar"
	case strings.HasPrefix(dt, "CHAR"):
		return "char"
	case dt == "INT", dt == "INTEGER", dt == "SERIAL":
		return "int"
	case dt == "BIGINT", dt == "BIGSERIAL":
		return "bigint"
	case dt == "SMALLINT":
		return "smallint"
	case dt == "TEXT":
		return "text"
	case strings.HasPrefix(dt, "TIMESTAMPTZ"):
		return "timestamptz"
	case strings.HasPrefix(dt, "TIMESTAMP"):
		return "timestamp"
	case strings.HasPrefix(dt, "TIME"):
		return "time"
	case dt == "DATE":
		return "date"
	case strings.HasPrefix(dt, "BOOL"):
		return "boolean"
	case strings.HasPrefix(dt, "NUMERIC"):
		return "numeric"
	case strings.HasPrefix(dt, "DECIMAL"):
		return "decimal"
	case dt == "REAL":
		return "real"
	case strings.HasPrefix(dt, "DOUBLE"):
		return "double"
	case dt == "JSONB":
		return "jsonb"
	case dt == "JSON":
		return "json"
	case dt == "UUID":
		return "uuid"
	case dt == "BYTEA":
		return "bytea"
	default:
		return strings.ToLower(dataType)
	}
}
