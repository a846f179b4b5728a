package agentconfig

import (
	"encoding/json"
	"testing"

	"AgentChat/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTeam(t *testing.T) (*Builder, string, string) {
	t.Helper()
	b := NewBuilder(0)
	agentID := b.Agents()[0].ID
	require.NoError(t, b.UpdateAgent(agentID, "name", "Searcher"))
	require.NoError(t, b.UpdateAgent(agentID, "system_message", "You search."))
	taskID, err := b.AddTask(agentID)
	require.NoError(t, err)
	require.NoError(t, b.UpdateTask(agentID, taskID, "name", "search_apis"))
	require.NoError(t, b.UpdateTask(agentID, taskID, "endpoint", "https://example.com/search"))
	require.NoError(t, b.SetProfile("prompt", "find animal APIs"))
	return b, agentID, taskID
}

func TestNewBuilderStartsWithOneAgent(t *testing.T) {
	b := NewBuilder(0)
	require.Len(t, b.Agents(), 1)
	assert.Equal(t, DefaultMaxTurns, b.Profile().MaxTurns)
}

func TestRemoveLastAgentIsNoop(t *testing.T) {
	b := NewBuilder(8)
	id := b.Agents()[0].ID

	require.NoError(t, b.RemoveAgent(id))
	assert.Len(t, b.Agents(), 1)

	second := b.AddAgent()
	require.NoError(t, b.RemoveAgent(id))
	agents := b.Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, second, agents[0].ID)
}

func TestRemoveUnknownAgent(t *testing.T) {
	b := NewBuilder(8)
	assert.ErrorIs(t, b.RemoveAgent("nope"), ErrNotFound)
}

func TestTaskLifecycle(t *testing.T) {
	b, agentID, taskID := newTeam(t)

	task := b.Agents()[0].Tasks[0]
	assert.Equal(t, DefaultParamsSchema, task.ParamsSchema)
	assert.Equal(t, "search_apis", task.Name)

	require.NoError(t, b.RemoveTask(agentID, taskID))
	assert.Empty(t, b.Agents()[0].Tasks, "agents may have no tasks")
	assert.ErrorIs(t, b.RemoveTask(agentID, taskID), ErrNotFound)
}

func TestUpdateUnknownField(t *testing.T) {
	b, agentID, taskID := newTeam(t)

	err := b.UpdateAgent(agentID, "colour", "blue")
	_, ok := IsValidationError(err)
	assert.True(t, ok)

	err = b.UpdateTask(agentID, taskID, "colour", "blue")
	_, ok = IsValidationError(err)
	assert.True(t, ok)
}

func TestInvalidSchemaFailsValidationWithoutMutation(t *testing.T) {
	b, agentID, taskID := newTeam(t)
	require.NoError(t, b.UpdateTask(agentID, taskID, "params_schema", "{invalid json"))
	before := b.Agents()

	err := b.Validate()
	v, ok := IsValidationError(err)
	require.True(t, ok)
	require.Len(t, v.Errors, 1)
	assert.Equal(t, "params_schema", v.Errors[0].Field)
	assert.Contains(t, v.Errors[0].Path, "search_apis")
	assert.Equal(t, before, b.Agents())

	_, err = b.TeamConfig()
	assert.Error(t, err)
}

func TestTeamConfigRequiresPrompt(t *testing.T) {
	b, _, _ := newTeam(t)
	require.NoError(t, b.SetProfile("prompt", "  "))

	_, err := b.TeamConfig()
	v, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "prompt", v.Errors[0].Field)
}

func TestTeamConfigDropsIncompleteAgents(t *testing.T) {
	b, _, _ := newTeam(t)
	blank := b.AddAgent()
	require.NoError(t, b.UpdateAgent(blank, "name", "NoInstructions"))

	cfg, err := b.TeamConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Assistants, 1)
	assert.Equal(t, "Searcher", cfg.Assistants[0].Name)
	assert.Equal(t, DefaultMaxTurns, cfg.MaxTurns)

	tool := cfg.Assistants[0].Tasks[0]
	assert.JSONEq(t, DefaultParamsSchema, string(tool.ParamsSchema))

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"object"`)
}

func TestSetProfileMaxTurns(t *testing.T) {
	b := NewBuilder(0)
	require.NoError(t, b.SetProfile("max_turns", "4"))
	assert.Equal(t, 4, b.Profile().MaxTurns)
	assert.Error(t, b.SetProfile("max_turns", "zero"))
	assert.Error(t, b.SetProfile("max_turns", "-1"))
}

func TestReplaceAssignsFreshIDs(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"prompt": "p",
		"assistants": [
			{"name": "A", "system_message": "a", "tasks": [
				{"name": "t", "endpoint": "e", "description": "d",
				 "params_schema": {"type": "object", "properties": {"q": {"type": "string"}}, "required": ["q"]}}
			]},
			{"name": "B", "system_message": "b"}
		]
	}`), ".json")
	require.NoError(t, err)

	b := NewBuilder(0)
	old := b.Agents()[0].ID
	require.NoError(t, b.Replace(cfg))

	agents := b.Agents()
	require.Len(t, agents, 2)
	assert.NotEqual(t, old, agents[0].ID)
	assert.NotEqual(t, agents[0].ID, agents[1].ID)
	assert.NotEmpty(t, agents[0].Tasks[0].ID)
	assert.Equal(t, DefaultMaxTurns, b.Profile().MaxTurns, "missing max_turns falls back")

	params, err := b.Parameters(agents[0].ID, agents[0].Tasks[0].ID)
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, Parameter{Name: "q", Type: "string", Required: true}, params[0])
}

func TestReplaceWithoutAssistantsKeepsOneAgent(t *testing.T) {
	b := NewBuilder(0)
	require.NoError(t, b.Replace(backend.TeamConfig{Prompt: "p", MaxTurns: 3}))
	assert.Len(t, b.Agents(), 1)
	assert.Equal(t, 3, b.Profile().MaxTurns)
}

func TestTeamConfigForwardsSchemaVerbatim(t *testing.T) {
	b, agentID, taskID := newTeam(t)
	schema := `{"type":"object","properties":{"q":{"type":["string","null"],"x-unit":"km"}},"required":[],"strict":true}`
	require.NoError(t, b.UpdateTask(agentID, taskID, "params_schema", schema))

	cfg, err := b.TeamConfig()
	require.NoError(t, err)
	assert.JSONEq(t, schema, string(cfg.Assistants[0].Tasks[0].ParamsSchema))

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"x-unit":"km"`)
	assert.Contains(t, string(data), `"strict":true`)
	assert.Contains(t, string(data), `"required":[]`)
}

func TestValidateRejectsNonObjectSchema(t *testing.T) {
	for _, text := range []string{"null", "[]", `"object"`, "42"} {
		t.Run(text, func(t *testing.T) {
			b, agentID, taskID := newTeam(t)
			require.NoError(t, b.UpdateTask(agentID, taskID, "params_schema", text))
			_, ok := IsValidationError(b.Validate())
			assert.True(t, ok)
		})
	}
}

func TestReplaceKeepsSchemaKeys(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"prompt": "p",
		"assistants": [
			{"name": "A", "system_message": "a", "tasks": [
				{"name": "t", "endpoint": "e", "description": "d",
				 "params_schema": {"type": "object", "additionalProperties": false, "properties": {}}}
			]}
		]
	}`), ".json")
	require.NoError(t, err)

	b := NewBuilder(0)
	require.NoError(t, b.Replace(cfg))
	text := b.Agents()[0].Tasks[0].ParamsSchema
	assert.JSONEq(t, `{"type":"object","additionalProperties":false,"properties":{}}`, text)
}
