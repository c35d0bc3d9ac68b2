package datagen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"datakiln/internal/ddl"
	"datakiln/internal/models"
)

// DefaultBatchSize bounds one generation call. Chosen to stay well under
// the backend's output-token ceiling for schemas with wide rows.
const DefaultBatchSize = 20

const defaultTemperature = 0.9

// ErrUnknownTable is returned when a regeneration names a table that is
// not part of the parsed schema.
var ErrUnknownTable = errors.New("unknown table")

// Backend produces structured rows for a prompt. Implementations may fail
// on quota, timeout or transport errors; the generator treats those as
// fatal for the current batch and performs no retries of its own.
type Backend interface {
	GenerateStructured(ctx context.Context, prompt string, shape *Shape, temperature float32) (json.RawMessage, error)
}

// ProgressFunc receives per-table status updates during a full-dataset
// generation run.
type ProgressFunc func(table, message string)

// Generator plans and executes dependency-ordered synthetic data
// generation against a structured backend.
type Generator struct {
	backend     Backend
	batchSize   int
	temperature float32
}

func NewGenerator(backend Backend) *Generator {
	return &Generator{
		backend:     backend,
		batchSize:   DefaultBatchSize,
		temperature: defaultTemperature,
	}
}

// GenerateAll generates rows for every table in the parse result, walking
// tables in dependency order so foreign keys can always sample from
// already-committed parent rows. Generation is strictly sequential: a
// table is committed to the dataset before the next one starts.
func (g *Generator) GenerateAll(ctx context.Context, schema *ddl.ParseResult, rowsPerTable int, instructions string, progress ProgressFunc) (models.Dataset, error) {
	dataset := make(models.Dataset, len(schema.Tables))

	for _, name := range schema.GenerationOrder() {
		if progress != nil {
			progress(name, fmt.Sprintf("generating %d rows", rowsPerTable))
		}

		rows, err := g.GenerateTable(ctx, schema.Tables[name], rowsPerTable, instructions, dataset)
		if err != nil {
			return nil, err
		}
		dataset[name] = rows

		if progress != nil {
			progress(name, fmt.Sprintf("generated %d rows", len(rows)))
		}
	}

	return dataset, nil
}

// GenerateTable produces rows for one table. Row counts up to the batch
// size are generated in a single call; larger counts are split into
// sequential batches and the primary keys of the concatenated result are
// renumbered to 1..N, discarding whatever the backend produced for them.
// A failing batch aborts the whole table: no partial result is returned.
func (g *Generator) GenerateTable(ctx context.Context, table *models.Table, rows int, instructions string, dataset models.Dataset) ([]models.Row, error) {
	if rows <= g.batchSize {
		out, err := g.generateBatch(ctx, table, rows, instructions, dataset)
		if err != nil {
			return nil, fmt.Errorf("table %s batch 0: %w", table.Name, err)
		}
		return out, nil
	}

	log.Printf("batching %d rows into chunks of %d for %s", rows, g.batchSize, table.Name)

	var out []models.Row
	batch := 0
	for remaining := rows; remaining > 0; batch++ {
		size := remaining
		if size > g.batchSize {
			size = g.batchSize
		}

		batchRows, err := g.generateBatch(ctx, table, size, instructions, dataset)
		if err != nil {
			return nil, fmt.Errorf("table %s batch %d: %w", table.Name, batch, err)
		}
		out = append(out, batchRows...)
		remaining -= size
	}

	renumberPrimaryKeys(table, out)
	log.Printf("completed %d total rows for %s in %d batches", len(out), table.Name, batch)
	return out, nil
}

// RegenerateTable replaces a single table's rows in the dataset, sampling
// foreign-key values from the dataset's current state. Sibling tables are
// untouched; the caller is responsible for cascading to dependents if
// referential drift matters (see ParseResult.Dependents).
func (g *Generator) RegenerateTable(ctx context.Context, name string, schema *ddl.ParseResult, rows int, instructions string, dataset models.Dataset) ([]models.Row, error) {
	table, ok := schema.Tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}

	out, err := g.GenerateTable(ctx, table, rows, instructions, dataset)
	if err != nil {
		return nil, err
	}
	dataset[name] = out
	return out, nil
}

func (g *Generator) generateBatch(ctx context.Context, table *models.Table, rows int, instructions string, dataset models.Dataset) ([]models.Row, error) {
	prompt := BuildPrompt(table, rows, instructions, dataset)
	shape := BuildShape(table)

	raw, err := g.backend.GenerateStructured(ctx, prompt, shape, g.temperature)
	if err != nil {
		return nil, err
	}

	out, warnings, err := Reconcile(raw, table)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Printf("table %s: %s", table.Name, w)
	}

	// The backend may return fewer or more rows than requested; accept
	// what came back, retries belong to the caller.
	if len(out) != rows {
		log.Printf("table %s: requested %d rows, backend returned %d", table.Name, rows, len(out))
	}

	return out, nil
}

// renumberPrimaryKeys overwrites every primary-key column present in the
// output with the sequential run 1..N, guaranteeing uniqueness across
// batch boundaries.
func renumberPrimaryKeys(table *models.Table, rows []models.Row) {
	for _, col := range table.Columns {
		if !col.PrimaryKey {
			continue
		}

		present := false
		for _, row := range rows {
			if _, ok := row[col.Name]; ok {
				present = true
				break
			}
		}
		if !present {
			continue
		}

		for i := range rows {
			rows[i][col.Name] = i + 1
		}
	}
}
