package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultEncodings = []string{"utf-8", "latin-1", "cp1252", "iso-8859-1"}

func newDefaultCleaner() *Cleaner {
	return NewCleaner(defaultEncodings, []string{"contenttypes.contenttype", "auth.permission"})
}

func TestModelLabel(t *testing.T) {
	assert.Equal(t, "students.student", ModelLabel("students_student"))
	assert.Equal(t, "subjects.subject_program", ModelLabel("subjects_subject_program"))
	assert.Equal(t, "subjects_subject_program", TableName("subjects.subject_program"))
	assert.Equal(t, "auth_permission", TableName("auth.Permission"))
}

func TestNewRecordKeysAreDisjoint(t *testing.T) {
	rec := NewRecord("students_student", map[string]any{"id": int64(7), "first_name": "Awa", "class_id": int64(2)})
	assert.Equal(t, "students.student", rec.Model)
	assert.Equal(t, int64(7), rec.PK)
	assert.NotContains(t, rec.Fields, "id")
	assert.Equal(t, map[string]any{"first_name": "Awa", "class_id": int64(2)}, rec.Fields)

	rec = NewRecord("django_session", map[string]any{"pk": "abc", "data": "x"})
	assert.Equal(t, "abc", rec.PK)
	assert.NotContains(t, rec.Fields, "pk")
}

func writeRecords(t *testing.T, path string, models []string) {
	t.Helper()
	var records []Record
	for i, m := range models {
		records = append(records, Record{Model: m, PK: i + 1, Fields: map[string]any{"n": i}})
	}
	require.NoError(t, WriteFile(path, records))
}

func TestCleanRemovesRegeneratedModels(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "temp_data.json")
	out := filepath.Join(dir, "temp_data_cleaned.json")

	models := []string{
		"students.student", "contenttypes.contenttype", "classes.schoolclass",
		"subjects.subject", "teachers.teacher", "authentication.user",
		"contenttypes.contenttype", "notes.trimester", "notes.evaluation", "finances.feestructure",
	}
	writeRecords(t, in, models)

	result, err := newDefaultCleaner().Clean(in, out)
	require.NoError(t, err)
	assert.Equal(t, CleanResult{Encoding: "utf-8", Total: 10, Kept: 8, Removed: 2}, result)

	cleaned, err := ReadFile(out)
	require.NoError(t, err)
	require.Len(t, cleaned, 8)
	for _, r := range cleaned {
		assert.NotEqual(t, "contenttypes.contenttype", r.Model)
	}
}

func TestFilterPreservesOrderAndBytes(t *testing.T) {
	items := []json.RawMessage{
		json.RawMessage(`{"model":"classes.schoolclass","pk":1,"fields":{"name":"6e M1"}}`),
		json.RawMessage(`{"model":"auth.permission","pk":1,"fields":{"codename":"add_user"}}`),
		json.RawMessage(`{"model":"students.student","pk":3,"fields":{"score":12.50}}`),
		json.RawMessage(`{"model":"auth.permission","pk":2,"fields":{"codename":"change_user"}}`),
		json.RawMessage(`{"model":"auth.group","pk":1,"fields":{"name":"Direction"}}`),
	}

	kept, err := newDefaultCleaner().Filter(items)
	require.NoError(t, err)
	require.Len(t, kept, 3)
	assert.Equal(t, items[0], kept[0])
	assert.Equal(t, items[2], kept[1])
	assert.Equal(t, items[4], kept[2])
}

func TestCleanFallsBackToLatin1(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "temp_data.json")
	out := filepath.Join(dir, "temp_data_cleaned.json")

	// "Élodie" in ISO-8859-1: 0xC9 is not valid UTF-8 on its own.
	raw := []byte("[{\"model\": \"students.student\", \"pk\": 1, \"fields\": {\"first_name\": \"\xc9lodie\"}}]")
	require.NoError(t, os.WriteFile(in, raw, 0644))

	result, err := newDefaultCleaner().Clean(in, out)
	require.NoError(t, err)
	assert.Equal(t, "latin-1", result.Encoding)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Élodie")
}

func TestCleanUsesWindows1252WhenFirst(t *testing.T) {
	// 0x80 is the euro sign in cp1252.
	raw := []byte("[{\"model\": \"finances.extrafee\", \"pk\": 1, \"fields\": {\"label\": \"\x80 frais\"}}]")
	items, enc, err := Decode(raw, []string{"utf-8", "cp1252"})
	require.NoError(t, err)
	assert.Equal(t, "cp1252", enc)
	assert.Contains(t, string(items[0]), "€ frais")
}

func TestCleanErrors(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.json")

	notJSON := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(notJSON, []byte("<html>erreur</html>"), 0644))
	_, err := newDefaultCleaner().Clean(notJSON, out)
	assert.ErrorIs(t, err, ErrNoEncoding)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0644))
	_, err = newDefaultCleaner().Clean(empty, out)
	assert.ErrorIs(t, err, ErrEmptyExport)

	_, err = newDefaultCleaner().Clean(filepath.Join(dir, "missing.json"), out)
	assert.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestDecodeSkipsUnknownEncodingAndBOM(t *testing.T) {
	raw := []byte("\xef\xbb\xbf[{\"model\": \"a.b\", \"pk\": 1, \"fields\": {}}]")
	items, enc, err := Decode(raw, []string{"ebcdic", "UTF8"})
	require.NoError(t, err)
	assert.Equal(t, "UTF8", enc)
	assert.Len(t, items, 1)
}

func TestWriteFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteFile(path, []Record{{Model: "students.student", PK: 1, Fields: map[string]any{"note": "<b>Très bien</b>"}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "[\n  {\n    \"model\": \"students.student\""), fmt.Sprintf("unexpected layout: %q", text))
	assert.Contains(t, text, "<b>Très bien</b>")
}
