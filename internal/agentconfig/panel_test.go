package agentconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillQuickTask(t *testing.T, p *TaskPanel, params string) string {
	t.Helper()
	id := p.Add()
	require.NoError(t, p.Update(id, "name", "weather"))
	require.NoError(t, p.Update(id, "endpoint", "https://example.com/weather"))
	require.NoError(t, p.Update(id, "description", "current weather"))
	require.NoError(t, p.Update(id, "params", params))
	return id
}

func TestResolveEmptyPanel(t *testing.T) {
	_, err := NewTaskPanel().Resolve()
	v, ok := IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "tasks", v.Errors[0].Field)
}

func TestResolveRequiresFields(t *testing.T) {
	p := NewTaskPanel()
	p.Add()

	_, err := p.Resolve()
	v, ok := IsValidationError(err)
	require.True(t, ok)
	fields := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		fields[i] = fe.Field
	}
	assert.Equal(t, []string{"name", "endpoint", "description"}, fields)
}

func TestResolveParams(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		want    map[string]any
		wantErr bool
	}{
		{name: "blank is empty object", params: "  ", want: map[string]any{}},
		{name: "object", params: `{"city": "Oslo", "days": 2}`, want: map[string]any{"city": "Oslo", "days": float64(2)}},
		{name: "invalid json", params: "{invalid json", wantErr: true},
		{name: "array", params: `[1, 2]`, wantErr: true},
		{name: "null", params: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTaskPanel()
			fillQuickTask(t, p, tt.params)

			tasks, err := p.Resolve()
			if tt.wantErr {
				_, ok := IsValidationError(err)
				assert.True(t, ok)
				return
			}
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, tt.want, tasks[0].Params)
			assert.Equal(t, "weather", tasks[0].Name)
		})
	}
}

func TestPanelRemove(t *testing.T) {
	p := NewTaskPanel()
	id := p.Add()
	require.NoError(t, p.Remove(id))
	assert.Empty(t, p.Tasks())
	assert.ErrorIs(t, p.Remove(id), ErrNotFound)
	assert.ErrorIs(t, p.Update(id, "name", "x"), ErrNotFound)
}
