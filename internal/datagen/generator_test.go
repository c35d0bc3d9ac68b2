package datagen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datakiln/internal/ddl"
	"datakiln/internal/models"
)

var rowCountRe = regexp.MustCompile(`\*\*Rows to generate\*\*: (\d+)`)

// fakeBackend answers generation calls from a canned function and records
// the prompts it saw.
type fakeBackend struct {
	respond func(call int, prompt string, rows int) (json.RawMessage, error)
	prompts []string
}

func (f *fakeBackend) GenerateStructured(_ context.Context, prompt string, _ *Shape, _ float32) (json.RawMessage, error) {
	call := len(f.prompts)
	f.prompts = append(f.prompts, prompt)

	rows := 0
	if m := rowCountRe.FindStringSubmatch(prompt); m != nil {
		rows, _ = strconv.Atoi(m[1])
	}
	return f.respond(call, prompt, rows)
}

// respondWithRows returns the requested number of rows with repeating
// primary keys, simulating a backend that restarts numbering every batch.
func respondWithRows(_ int, _ string, rows int) (json.RawMessage, error) {
	records := make([]models.Row, rows)
	for i := range records {
		records[i] = models.Row{
			"id":   i + 1, // repeats across batches on purpose
			"name": fmt.Sprintf("name-%d", i),
		}
	}
	return json.Marshal(records)
}

func simpleSchema(t *testing.T) *ddl.ParseResult {
	t.Helper()
	result := ddl.Parse(`
		CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(100) NOT NULL);
		CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, name VARCHAR(100), FOREIGN KEY (user_id) REFERENCES users(id));
	`)
	require.Len(t, result.Tables, 2)
	return result
}

func newTestGenerator(backend Backend) *Generator {
	return &Generator{backend: backend, batchSize: DefaultBatchSize, temperature: defaultTemperature}
}

func TestGenerateTableSingleBatch(t *testing.T) {
	backend := &fakeBackend{respond: respondWithRows}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	rows, err := g.GenerateTable(context.Background(), schema.Tables["users"], 10, "", models.Dataset{})
	require.NoError(t, err)
	assert.Len(t, rows, 10)
	assert.Len(t, backend.prompts, 1)
}

func TestGenerateTableBatchingAndRenumbering(t *testing.T) {
	backend := &fakeBackend{respond: respondWithRows}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	rows, err := g.GenerateTable(context.Background(), schema.Tables["users"], 45, "", models.Dataset{})
	require.NoError(t, err)

	// 45 rows with a batch size of 20 means batches of 20, 20, 5.
	require.Len(t, backend.prompts, 3)
	require.Len(t, rows, 45)

	seen := make(map[int]bool, 45)
	for i, row := range rows {
		id, ok := row["id"].(int)
		require.True(t, ok)
		assert.Equal(t, i+1, id)
		assert.False(t, seen[id], "duplicate primary key %d", id)
		seen[id] = true
	}
}

func TestGenerateTableLargeRun(t *testing.T) {
	backend := &fakeBackend{respond: respondWithRows}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	rows, err := g.GenerateTable(context.Background(), schema.Tables["users"], 1000, "", models.Dataset{})
	require.NoError(t, err)

	assert.Len(t, backend.prompts, 50)
	require.Len(t, rows, 1000)
	assert.Equal(t, 1, rows[0]["id"])
	assert.Equal(t, 1000, rows[999]["id"])
}

func TestGenerateTableAcceptsShortBatches(t *testing.T) {
	backend := &fakeBackend{respond: func(call int, prompt string, rows int) (json.RawMessage, error) {
		return respondWithRows(call, prompt, rows-1) // always one row short
	}}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	rows, err := g.GenerateTable(context.Background(), schema.Tables["users"], 10, "", models.Dataset{})
	require.NoError(t, err)
	assert.Len(t, rows, 9)
}

func TestGenerateTableBatchFailureAbortsTable(t *testing.T) {
	backend := &fakeBackend{respond: func(call int, prompt string, rows int) (json.RawMessage, error) {
		if call == 1 {
			return nil, errors.New("quota exceeded")
		}
		return respondWithRows(call, prompt, rows)
	}}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	_, err := g.GenerateTable(context.Background(), schema.Tables["users"], 45, "", models.Dataset{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users")
	assert.Contains(t, err.Error(), "batch 1")
	// The failing batch stops the remaining ones.
	assert.Len(t, backend.prompts, 2)
}

func TestGenerateTableMalformedResponseIsHardFailure(t *testing.T) {
	backend := &fakeBackend{respond: func(int, string, int) (json.RawMessage, error) {
		return json.RawMessage(`"nonsense"`), nil
	}}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	_, err := g.GenerateTable(context.Background(), schema.Tables["users"], 5, "", models.Dataset{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGenerateAllWalksDependencyOrder(t *testing.T) {
	backend := &fakeBackend{respond: respondWithRows}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	var progressed []string
	dataset, err := g.GenerateAll(context.Background(), schema, 5, "", func(table, _ string) {
		progressed = append(progressed, table)
	})
	require.NoError(t, err)

	require.Len(t, dataset, 2)
	assert.Len(t, dataset["users"], 5)
	assert.Len(t, dataset["orders"], 5)

	// users is generated first, so the orders prompt can list its values.
	assert.Equal(t, "users", progressed[0])
	assert.Contains(t, backend.prompts[1], "user_id must reference users.id")
	assert.Contains(t, backend.prompts[1], "Available values")
}

func TestRegenerateTableReplacesOnlyNamedTable(t *testing.T) {
	backend := &fakeBackend{respond: respondWithRows}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	dataset, err := g.GenerateAll(context.Background(), schema, 5, "", nil)
	require.NoError(t, err)
	originalUsers := dataset["users"]

	rows, err := g.RegenerateTable(context.Background(), "orders", schema, 8, "new instructions", dataset)
	require.NoError(t, err)

	assert.Len(t, rows, 8)
	assert.Len(t, dataset["orders"], 8)
	assert.Equal(t, originalUsers, dataset["users"])
}

func TestRegenerateUnknownTableFailsFast(t *testing.T) {
	backend := &fakeBackend{respond: respondWithRows}
	g := newTestGenerator(backend)
	schema := simpleSchema(t)

	_, err := g.RegenerateTable(context.Background(), "missing", schema, 5, "", models.Dataset{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.Empty(t, backend.prompts)
}
