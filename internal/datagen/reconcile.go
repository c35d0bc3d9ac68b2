package datagen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"datakiln/internal/models"
)

// ErrMalformedResponse signals a backend payload that cannot be unwrapped
// to an array of row records. It is a hard failure for the current batch.
var ErrMalformedResponse = errors.New("malformed generation response")

// Reconcile validates a raw backend payload against the table schema and
// normalizes it: the envelope is unwrapped, every output record carries
// exactly the table's columns in schema order, fields the schema does not
// know are dropped, and columns absent from every record are filled with
// NULL and reported as warnings.
func Reconcile(raw json.RawMessage, table *models.Table) ([]models.Row, []string, error) {
	records, err := unwrapEnvelope(raw, table.Name)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]models.Row, len(records))
	for i, record := range records {
		row := make(models.Row, len(table.Columns))
		for _, col := range table.Columns {
			value, ok := record[col.Name]
			if !ok {
				value = nil
			}
			row[col.Name] = value
		}
		rows[i] = row
	}

	var warnings []string
	for _, col := range table.Columns {
		if len(records) == 0 {
			break
		}
		found := false
		for _, record := range records {
			if _, ok := record[col.Name]; ok {
				found = true
				break
			}
		}
		if !found {
			warnings = append(warnings, fmt.Sprintf("column %q missing from generated rows, filled with NULL", col.Name))
		}
	}

	return rows, warnings, nil
}

// unwrapEnvelope accepts the three envelope shapes backends produce as
// equally valid: a bare array of records, an object keyed by the table
// name, or an object with a "data" key. Anything else is malformed.
func unwrapEnvelope(raw json.RawMessage, tableName string) ([]models.Row, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		var records []models.Row
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return records, nil

	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		for _, key := range []string{tableName, "data"} {
			inner, ok := envelope[key]
			if !ok {
				continue
			}
			var records []models.Row
			if err := json.Unmarshal(inner, &records); err != nil {
				return nil, fmt.Errorf("%w: %q is not an array of rows", ErrMalformedResponse, key)
			}
			return records, nil
		}
		return nil, fmt.Errorf("%w: expected an array or an object keyed by %q or \"data\"", ErrMalformedResponse, tableName)

	default:
		return nil, fmt.Errorf("%w: expected an array or an object, got %q", ErrMalformedResponse, trimmed[0])
	}
}
