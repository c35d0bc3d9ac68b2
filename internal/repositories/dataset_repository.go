package repositories

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"datakiln/internal/models"
)

// DatasetRepository persists generated datasets: it creates a dedicated
// schema per dataset, executes the source DDL inside it and bulk-loads the
// generated rows.
type DatasetRepository struct {
	pool *pgxpool.Pool
}

func NewDatasetRepository(pool *pgxpool.Pool) *DatasetRepository {
	return &DatasetRepository{pool: pool}
}

// ForeignKeyEdge is one introspected FK edge within a schema.
type ForeignKeyEdge struct {
	Table            string `json:"table"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// isValidIdentifier checks if a string is a valid PostgreSQL identifier.
func isValidIdentifier(name string) bool {
	return name != "" && len(name) <= 63 && identifierRe.MatchString(name)
}

func (r *DatasetRepository) CreateSchema(ctx context.Context, name string) error {
	if !isValidIdentifier(name) {
		return fmt.Errorf("invalid schema name %q", name)
	}
	query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{name}.Sanitize())
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", name, err)
	}
	return nil
}

func (r *DatasetRepository) DropSchema(ctx context.Context, name string) error {
	if !isValidIdentifier(name) {
		return fmt.Errorf("invalid schema name %q", name)
	}
	query := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pgx.Identifier{name}.Sanitize())
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", name, err)
	}
	return nil
}

// ExecuteDDLInSchema runs the statements of a DDL text inside the given
// schema. All statements run in one transaction so a failing statement
// leaves the schema empty rather than half-built.
func (r *DatasetRepository) ExecuteDDLInSchema(ctx context.Context, ddlText, schema string) error {
	if !isValidIdentifier(schema) {
		return fmt.Errorf("invalid schema name %q", schema)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// SET LOCAL scopes the search_path to this transaction.
	setPath := fmt.Sprintf("SET LOCAL search_path TO %s", pgx.Identifier{schema}.Sanitize())
	if _, err := tx.Exec(ctx, setPath); err != nil {
		return fmt.Errorf("failed to set search_path: %w", err)
	}

	for _, statement := range splitStatements(ddlText) {
		if _, err := tx.Exec(ctx, statement); err != nil {
			return fmt.Errorf("failed to execute DDL statement in %s: %w", schema, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit DDL transaction: %w", err)
	}
	return nil
}

// BulkInsert loads generated rows into schema.table with COPY. Identifiers
// are lowercased to match PostgreSQL's folding of the unquoted names the
// DDL created. Returns the number of rows written.
func (r *DatasetRepository) BulkInsert(ctx context.Context, schema, table string, columns []string, rows []models.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !isValidIdentifier(schema) {
		return 0, fmt.Errorf("invalid schema name %q", schema)
	}

	columnNames := make([]string, len(columns))
	for i, col := range columns {
		columnNames[i] = strings.ToLower(col)
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		record := make([]any, len(columns))
		for j, col := range columns {
			record[j] = row[col]
		}
		values[i] = record
	}

	count, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{schema, strings.ToLower(table)},
		columnNames,
		pgx.CopyFromRows(values),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert into %s.%s: %w", schema, table, err)
	}
	return count, nil
}

// ListTables returns all base table names in the schema.
func (r *DatasetRepository) ListTables(ctx context.Context, schema string) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := r.pool.Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// ListForeignKeys returns every FK edge declared in the schema.
func (r *DatasetRepository) ListForeignKeys(ctx context.Context, schema string) ([]ForeignKeyEdge, error) {
	query := `
		SELECT
			tc.table_name,
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.column_name
	`

	rows, err := r.pool.Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []ForeignKeyEdge
	for rows.Next() {
		var edge ForeignKeyEdge
		if err := rows.Scan(&edge.Table, &edge.Column, &edge.ReferencedTable, &edge.ReferencedColumn); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// ListDatasetSchemas returns the schemas created by SaveDataset, i.e. the
// ones matching the given name prefix.
func (r *DatasetRepository) ListDatasetSchemas(ctx context.Context, prefix string) ([]string, error) {
	query := `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name LIKE $1 || '%'
		ORDER BY schema_name
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

// splitStatements breaks a DDL text into individual statements on
// semicolons, dropping empty fragments.
func splitStatements(ddlText string) []string {
	var out []string
	for _, statement := range strings.Split(ddlText, ";") {
		statement = strings.TrimSpace(statement)
		if statement != "" {
			out = append(out, statement)
		}
	}
	return out
}
