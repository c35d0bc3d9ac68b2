package datagen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datakiln/internal/models"
)

func usersTable() *models.Table {
	return &models.Table{
		Name: "users",
		Columns: []models.Column{
			{Name: "id", DataType: "INT", PrimaryKey: true},
			{Name: "name", DataType: "VARCHAR(100)", NotNull: true},
			{Name: "email", DataType: "VARCHAR(100)"},
		},
	}
}

func TestReconcileEnvelopeEquivalence(t *testing.T) {
	payloads := []string{
		`[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]`,
		`{"users":[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]}`,
		`{"data":[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]}`,
	}

	table := usersTable()
	var outputs [][]models.Row
	for _, payload := range payloads {
		rows, _, err := Reconcile(json.RawMessage(payload), table)
		require.NoError(t, err, "payload %s", payload)
		outputs = append(outputs, rows)
	}

	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}

func TestReconcileFillsMissingColumnsWithNull(t *testing.T) {
	payload := `[{"id":1,"name":"Ada"},{"id":2,"name":"Grace"}]`

	rows, warnings, err := Reconcile(json.RawMessage(payload), usersTable())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, row := range rows {
		v, ok := row["email"]
		assert.True(t, ok)
		assert.Nil(t, v)
	}
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "email")
}

func TestReconcileDropsUnknownFields(t *testing.T) {
	payload := `[{"id":1,"name":"Ada","email":"a@b.c","extra":"dropped"}]`

	rows, _, err := Reconcile(json.RawMessage(payload), usersTable())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotContains(t, rows[0], "extra")
	assert.Len(t, rows[0], 3)
}

func TestReconcileMalformedPayloads(t *testing.T) {
	table := usersTable()

	for _, payload := range []string{
		`"just a string"`,
		`42`,
		`null`,
		`{"something_else":[{"id":1}]}`,
		`{"data":"not an array"}`,
		`{"users":{"id":1}}`,
		``,
		`[{"id":1}`,
	} {
		_, _, err := Reconcile(json.RawMessage(payload), table)
		require.Error(t, err, "payload %q", payload)
		assert.ErrorIs(t, err, ErrMalformedResponse, "payload %q", payload)
	}
}

func TestReconcileEmptyArray(t *testing.T) {
	rows, warnings, err := Reconcile(json.RawMessage(`[]`), usersTable())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, warnings)
}

func TestReconcilePreservesRecordOrder(t *testing.T) {
	payload := `{"users":[{"id":3},{"id":1},{"id":2}]}`

	rows, _, err := Reconcile(json.RawMessage(payload), usersTable())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, float64(3), rows[0]["id"])
	assert.Equal(t, float64(1), rows[1]["id"])
	assert.Equal(t, float64(2), rows[2]["id"])
}
