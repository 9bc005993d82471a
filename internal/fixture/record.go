// Package fixture reads, writes and cleans Django fixture files.
package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Record is one serialised model instance. PK is never repeated in Fields.
type Record struct {
	Model  string         `json:"model"`
	PK     any            `json:"pk"`
	Fields map[string]any `json:"fields"`
}

// ModelLabel derives the "app.model" label from a table name by replacing
// the first underscore: classes_schoolclass becomes classes.schoolclass.
func ModelLabel(table string) string {
	return strings.Replace(table, "_", ".", 1)
}

// TableName is the inverse of ModelLabel.
func TableName(model string) string {
	return strings.Replace(strings.ToLower(model), ".", "_", 1)
}

// NewRecord builds a record from a table row. The primary key is the id
// column, or pk when there is no id.
func NewRecord(table string, row map[string]any) Record {
	pk, ok := row["id"]
	if !ok {
		pk = row["pk"]
	}

	fields := make(map[string]any, len(row))
	for k, v := range row {
		if k == "id" || k == "pk" {
			continue
		}
		fields[k] = v
	}

	return Record{
		Model:  ModelLabel(table),
		PK:     pk,
		Fields: fields,
	}
}

// WriteFile writes v as a UTF-8 JSON document with a 2-space indent,
// leaving non-ASCII and HTML characters unescaped.
func WriteFile(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode fixture: %w", err)
	}

	data := bytes.ToValidUTF8(buf.Bytes(), nil)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write fixture %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes a UTF-8 fixture file into records.
func ReadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return records, nil
}
