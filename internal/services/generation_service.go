package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"datakiln/internal/datagen"
	"datakiln/internal/ddl"
	"datakiln/internal/models"
	"datakiln/internal/repositories"
)

const datasetSchemaPrefix = "ds_"

// Session is one generation run: the parsed schema, the DDL it came from
// (post dialect conversion) and the accumulated dataset. gin serves requests
// for the same session concurrently, so the dataset map is only reachable
// through SnapshotDataset and the locked swap in replaceTable.
type Session struct {
	ID        uuid.UUID
	DDL       string
	Schema    *ddl.ParseResult
	CreatedAt time.Time

	mu      sync.RWMutex
	dataset models.Dataset
}

// SnapshotDataset returns a copy of the session's dataset that is safe to
// read and serialize while regenerations run. Row slices are shared with
// the session; committed rows are never mutated in place.
func (s *Session) SnapshotDataset() models.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset.Copy()
}

func (s *Session) replaceTable(name string, rows []models.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset[name] = rows
}

// GenerationService orchestrates the parse → order → generate → persist
// pipeline and keeps the in-memory sessions for interactive regeneration.
type GenerationService struct {
	generator   *datagen.Generator
	datasetRepo *repositories.DatasetRepository

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewGenerationService(generator *datagen.Generator, datasetRepo *repositories.DatasetRepository) *GenerationService {
	return &GenerationService{
		generator:   generator,
		datasetRepo: datasetRepo,
		sessions:    make(map[uuid.UUID]*Session),
	}
}

// ParseDDL converts MySQL syntax if detected, parses the text and verifies
// that at least one table with columns came out. The parser itself never
// fails; this is where the fail-soft result is judged.
func (s *GenerationService) ParseDDL(ddlText string) (string, *ddl.ParseResult, error) {
	if ddl.DetectMySQLSyntax(ddlText) {
		ddlText = ddl.MySQLToPostgres(ddlText)
	}

	result := ddl.Parse(ddlText)
	if len(result.Tables) == 0 {
		return "", nil, errors.New("no tables found in DDL")
	}
	for _, name := range result.Names {
		if len(result.Tables[name].Columns) == 0 {
			return "", nil, fmt.Errorf("table %s has no parseable columns", name)
		}
	}

	return ddlText, result, nil
}

// GenerateDataset runs the full pipeline for a DDL text and stores the
// outcome as a new session.
func (s *GenerationService) GenerateDataset(ctx context.Context, ddlText string, rowsPerTable int, instructions string, progress datagen.ProgressFunc) (*Session, error) {
	if rowsPerTable <= 0 {
		return nil, errors.New("rows per table must be positive")
	}

	converted, schema, err := s.ParseDDL(ddlText)
	if err != nil {
		return nil, err
	}

	dataset, err := s.generator.GenerateAll(ctx, schema, rowsPerTable, instructions, progress)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        uuid.New(),
		DDL:       converted,
		Schema:    schema,
		CreatedAt: time.Now().UTC(),
		dataset:   dataset,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// GetSession returns a stored session or an error if it does not exist.
func (s *GenerationService) GetSession(id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return session, nil
}

// RegenerateTable replaces one table's rows inside a session, sampling FK
// values from the dataset's current state. It returns the names of
// downstream tables whose foreign keys now possibly reference stale
// values; regeneration is allowed but the drift is surfaced to the caller
// so it can cascade.
func (s *GenerationService) RegenerateTable(ctx context.Context, sessionID uuid.UUID, table string, rows int, instructions string) ([]models.Row, []string, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if rows <= 0 {
		return nil, nil, errors.New("rows must be positive")
	}

	// Generation runs against a snapshot so concurrent readers never see the
	// dataset mid-write; the regenerated rows are swapped in under the
	// session lock afterwards.
	snapshot := session.SnapshotDataset()
	out, err := s.generator.RegenerateTable(ctx, table, session.Schema, rows, instructions, snapshot)
	if err != nil {
		return nil, nil, err
	}
	session.replaceTable(table, out)

	var stale []string
	for _, dependent := range session.Schema.Dependents(table) {
		if _, generated := snapshot[dependent]; generated {
			stale = append(stale, dependent)
		}
	}

	return out, stale, nil
}

// SaveDataset persists a session into a dedicated database schema named
// ds_<name>: creates the schema, replays the session DDL inside it and
// bulk-inserts the generated rows in dependency order so parents land
// before children.
func (s *GenerationService) SaveDataset(ctx context.Context, sessionID uuid.UUID, name string) (string, int64, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return "", 0, err
	}

	schemaName := datasetSchemaPrefix + strings.ToLower(strings.TrimSpace(name))
	if err := s.datasetRepo.CreateSchema(ctx, schemaName); err != nil {
		return "", 0, err
	}

	if err := s.datasetRepo.ExecuteDDLInSchema(ctx, session.DDL, schemaName); err != nil {
		s.dropSchemaQuietly(ctx, schemaName)
		return "", 0, err
	}

	dataset := session.SnapshotDataset()

	var total int64
	for _, tableName := range session.Schema.GenerationOrder() {
		rows, ok := dataset[tableName]
		if !ok {
			continue
		}
		table := session.Schema.Tables[tableName]

		count, err := s.datasetRepo.BulkInsert(ctx, schemaName, tableName, table.ColumnNames(), rows)
		if err != nil {
			s.dropSchemaQuietly(ctx, schemaName)
			return "", 0, fmt.Errorf("table %s: %w", tableName, err)
		}
		total += count
	}

	return schemaName, total, nil
}

// dropSchemaQuietly removes the schema left behind by a failed save so
// aborted saves do not accumulate orphans. Best-effort: a failing drop is
// logged and the original error stands.
func (s *GenerationService) dropSchemaQuietly(ctx context.Context, name string) {
	if err := s.datasetRepo.DropSchema(ctx, name); err != nil {
		log.Printf("failed to drop schema %s after failed save: %v", name, err)
	}
}

// ListSavedDatasets lists the schemas previously created by SaveDataset.
func (s *GenerationService) ListSavedDatasets(ctx context.Context) ([]string, error) {
	return s.datasetRepo.ListDatasetSchemas(ctx, datasetSchemaPrefix)
}

// ExportCSV writes one table of a session as CSV with a header row in
// schema column order.
func (s *GenerationService) ExportCSV(sessionID uuid.UUID, tableName string, w io.Writer) error {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}

	table, ok := session.Schema.Tables[tableName]
	if !ok {
		return fmt.Errorf("%w: %q", datagen.ErrUnknownTable, tableName)
	}
	rows, ok := session.SnapshotDataset()[tableName]
	if !ok {
		return fmt.Errorf("no data generated for table %q", tableName)
	}

	columns := table.ColumnNames()
	writer := csv.NewWriter(w)

	if err := writer.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = formatCSVValue(row[col])
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatCSVValue(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case float64:
		// JSON numbers decode as float64; keep integral values clean.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
