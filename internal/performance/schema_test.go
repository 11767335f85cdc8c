package performance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchema(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const testSchemaBody = `{
  "type": "object",
  "required": ["window", "trade_count"],
  "properties": {
    "window": {"type": "string", "enum": ["daily", "weekly", "monthly"]},
    "trade_count": {"type": "integer"},
    "partial_data": {"type": "boolean"}
  }
}`

func TestSchemaValidateAcceptsConformingDocument(t *testing.T) {
	path := writeSchema(t, testSchemaBody)
	schema, err := LoadSchema(path)
	require.NoError(t, err)

	doc := []byte(`{"window": "daily", "trade_count": 5, "partial_data": false}`)
	assert.NoError(t, schema.Validate(doc))
}

func TestSchemaValidateRejectsMissingRequiredField(t *testing.T) {
	path := writeSchema(t, testSchemaBody)
	schema, err := LoadSchema(path)
	require.NoError(t, err)

	doc := []byte(`{"window": "daily"}`)
	assert.Error(t, schema.Validate(doc))
}

func TestSchemaValidateRejectsWrongType(t *testing.T) {
	path := writeSchema(t, testSchemaBody)
	schema, err := LoadSchema(path)
	require.NoError(t, err)

	doc := []byte(`{"window": "daily", "trade_count": "not a number"}`)
	assert.Error(t, schema.Validate(doc))
}

func TestSchemaValidateRejectsValueOutsideEnum(t *testing.T) {
	path := writeSchema(t, testSchemaBody)
	schema, err := LoadSchema(path)
	require.NoError(t, err)

	doc := []byte(`{"window": "yearly", "trade_count": 1}`)
	assert.Error(t, schema.Validate(doc))
}

func TestLoadSchemaRejectsMissingFile(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}
