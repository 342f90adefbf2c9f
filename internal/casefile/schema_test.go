package casefile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, schemaID, schema["$id"])
	assert.Contains(t, string(data), "test_case")
	assert.Contains(t, string(data), "teardown")
}

func TestValidateSchema(t *testing.T) {
	violations, err := ValidateSchema([]byte(validCase))
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = ValidateSchema([]byte("test_case:\n  id: A\n  steps:\n    - action: a\n      extra: 1\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, violations)

	violations, err = ValidateSchema([]byte("test_case:\n  name: no id or steps\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, violations)

	violations, err = ValidateSchema([]byte("test_case: [unclosed\n"))
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0].String(), "parse document")
}
