package agentconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterEditing(t *testing.T) {
	b, agentID, taskID := newTeam(t)

	first, err := b.AddParameter(agentID, taskID)
	require.NoError(t, err)
	assert.Equal(t, "param1", first)
	second, err := b.AddParameter(agentID, taskID)
	require.NoError(t, err)
	assert.Equal(t, "param2", second)

	require.NoError(t, b.SetParameterRequired(agentID, taskID, "param1", true))
	require.NoError(t, b.SetParameterRequired(agentID, taskID, "param1", true))
	require.NoError(t, b.SetParameterDescription(agentID, taskID, "param1", "search keyword"))
	require.NoError(t, b.RenameParameter(agentID, taskID, "param1", "keyword"))

	params, err := b.Parameters(agentID, taskID)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, Parameter{Name: "param2", Type: "string"}, params[0])
	assert.Equal(t, Parameter{Name: "keyword", Type: "string", Description: "search keyword", Required: true}, params[1])

	require.NoError(t, b.RemoveParameter(agentID, taskID, "keyword"))
	params, err = b.Parameters(agentID, taskID)
	require.NoError(t, err)
	require.Len(t, params, 1)

	// adding after a removal does not reuse a live name
	name, err := b.AddParameter(agentID, taskID)
	require.NoError(t, err)
	assert.Equal(t, "param3", name)

	require.NoError(t, b.Validate())
}

func TestSetParameterRequiredOff(t *testing.T) {
	b, agentID, taskID := newTeam(t)
	name, err := b.AddParameter(agentID, taskID)
	require.NoError(t, err)

	require.NoError(t, b.SetParameterRequired(agentID, taskID, name, true))
	require.NoError(t, b.SetParameterRequired(agentID, taskID, name, false))

	params, err := b.Parameters(agentID, taskID)
	require.NoError(t, err)
	assert.False(t, params[0].Required)
}

func TestParameterErrors(t *testing.T) {
	b, agentID, taskID := newTeam(t)
	_, err := b.AddParameter(agentID, taskID)
	require.NoError(t, err)
	_, err = b.AddParameter(agentID, taskID)
	require.NoError(t, err)

	assert.ErrorIs(t, b.RemoveParameter(agentID, taskID, "missing"), ErrNotFound)
	assert.ErrorIs(t, b.SetParameterRequired(agentID, taskID, "missing", true), ErrNotFound)

	_, isValidation := IsValidationError(b.RenameParameter(agentID, taskID, "param1", "param2"))
	assert.True(t, isValidation, "rename onto an existing name")
	_, isValidation = IsValidationError(b.RenameParameter(agentID, taskID, "param1", " "))
	assert.True(t, isValidation, "blank name")
}

func TestParameterEditsFailOnBrokenSchema(t *testing.T) {
	b, agentID, taskID := newTeam(t)
	require.NoError(t, b.UpdateTask(agentID, taskID, "params_schema", "{invalid json"))

	_, err := b.AddParameter(agentID, taskID)
	_, ok := IsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, "{invalid json", b.Agents()[0].Tasks[0].ParamsSchema, "text kept for fixing")
}

func TestParameterEditsKeepUnknownKeys(t *testing.T) {
	b, agentID, taskID := newTeam(t)
	require.NoError(t, b.UpdateTask(agentID, taskID, "params_schema",
		`{"type":"object","properties":{"q":{"type":["string","null"],"x-unit":"km"}},"required":[],"strict":true}`))

	params, err := b.Parameters(agentID, taskID)
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "string|null", params[0].Type)

	name, err := b.AddParameter(agentID, taskID)
	require.NoError(t, err)
	require.NoError(t, b.SetParameterDescription(agentID, taskID, "q", "distance"))
	require.NoError(t, b.SetParameterRequired(agentID, taskID, name, true))

	assert.JSONEq(t, `{
		"type": "object",
		"properties": {
			"q": {"type": ["string", "null"], "x-unit": "km", "description": "distance"},
			"param2": {"type": "string", "description": ""}
		},
		"required": ["param2"],
		"strict": true
	}`, b.Agents()[0].Tasks[0].ParamsSchema)
	require.NoError(t, b.Validate())
}

func TestParameterOrderSurvivesEdits(t *testing.T) {
	b, agentID, taskID := newTeam(t)
	require.NoError(t, b.UpdateTask(agentID, taskID, "params_schema",
		`{"type":"object","properties":{"b":{"type":"string"},"a":{"type":"integer"}}}`))

	require.NoError(t, b.SetParameterDescription(agentID, taskID, "a", "count"))

	params, err := b.Parameters(agentID, taskID)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "b", params[0].Name)
	assert.Equal(t, Parameter{Name: "a", Type: "integer", Description: "count"}, params[1])
	assert.NotContains(t, b.Agents()[0].Tasks[0].ParamsSchema, "required", "no required list added")
}
