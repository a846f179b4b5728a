package render

import (
	"encoding/json"
	"testing"

	"AgentChat/internal/events"
	"AgentChat/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func content(t *testing.T, raw string) session.Content {
	t.Helper()
	var c session.Content
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	return c
}

func TestDispatchTableFlattensSources(t *testing.T) {
	c := content(t, `{"type":"table","data":[
		{"Name":"Intro","Hours":"10","Source":"a.com, b.com"},
		{"Name":"Advanced","Level":"2","Source":" ,c.com"}
	]}`)

	v, ok := Dispatch(c).(TableView)
	require.True(t, ok)

	assert.Equal(t, []string{"Name", "Hours", "Level"}, v.Headers)
	assert.Equal(t, [][]string{
		{"Intro", "10", ""},
		{"Advanced", "", "2"},
	}, v.Rows)
	assert.Equal(t, []session.Citation{{URL: "a.com"}, {URL: "b.com"}, {URL: "c.com"}}, v.Citations)
}

func TestDispatchTableTwoCitations(t *testing.T) {
	c := content(t, `{"type":"table","data":[{"Source":"a.com, b.com"}]}`)
	v := Dispatch(c).(TableView)
	assert.Equal(t, []session.Citation{{URL: "a.com"}, {URL: "b.com"}}, v.Citations)
	assert.Empty(t, v.Headers)
}

func TestDispatchTableCellTypes(t *testing.T) {
	c := content(t, `{"type":"table","data":[{"n":3.5,"b":true,"z":null,"o":{"k":1}}]}`)
	v := Dispatch(c).(TableView)
	assert.Equal(t, [][]string{{"3.5", "true", "", `{"k":1}`}}, v.Rows)
}

func TestDispatchPricing(t *testing.T) {
	c := content(t, `{"type":"pricing","data":[
		{"Course":"Math","10 Hours":"$100","Hours/Week":"2","Price/Hour":"$10","Level":"GCSE"}
	]}`)

	v, ok := Dispatch(c).(PricingView)
	require.True(t, ok)
	require.Len(t, v.Plans, 1)

	p := v.Plans[0]
	assert.Equal(t, "Math", p.Course)
	assert.Equal(t, []Field{{Key: "10 Hours", Value: "$100"}}, p.Prices)
	assert.Equal(t, "$10", p.PricePerHour)
	assert.Equal(t, []Field{{Key: "Hours/Week", Value: "2"}, {Key: "Level", Value: "GCSE"}}, p.Details)
}

func TestDispatchCardSelection(t *testing.T) {
	c := content(t, `{"type":"card_selection","text":"Pick one","data":[
		{"title":"Sales","description":"Talk to sales"},
		{"text":"Support"},
		"Billing",
		{"id":7}
	]}`)

	v, ok := Dispatch(c).(CardSelectionView)
	require.True(t, ok)
	assert.Equal(t, "Pick one", v.Text)
	assert.Equal(t, []string{"Sales", "Support", "Billing", `{"id":7}`}, Choices(v))
}

func TestDispatchAnswer(t *testing.T) {
	c := content(t, `{"type":"answer","text":"42","citations":[{"source":"x.org"}],"follow_ups":["why?"]}`)
	v, ok := Dispatch(c).(AnswerView)
	require.True(t, ok)
	assert.Equal(t, "42", v.Text)
	assert.Equal(t, []session.Citation{{URL: "x.org"}}, v.Citations)
	assert.Equal(t, []string{"why?"}, Choices(v))
}

func TestDispatchFallbacks(t *testing.T) {
	tests := []struct {
		name string
		c    session.Content
		want string
	}{
		{"unknown tag keeps text", session.Content{Type: "foo", Text: "hi"}, "hi"},
		{"unknown tag without text", session.Content{Type: "foo"}, FallbackText},
		{"missing tag", session.Content{Text: "plain"}, "plain"},
		{"table without data", session.Content{Type: session.TypeTable}, FallbackText},
		{"table with scalar data", session.Content{Type: session.TypeTable, Data: json.RawMessage(`"nope"`)}, FallbackText},
		{"table with null rows", session.Content{Type: session.TypeTable, Data: json.RawMessage(`[null]`), Text: "t"}, "t"},
		{"pricing with object data", session.Content{Type: session.TypePricing, Data: json.RawMessage(`{"a":1}`)}, FallbackText},
		{"cards without data", session.Content{Type: session.TypeCardSelection, Text: "c"}, "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v View
			require.NotPanics(t, func() { v = Dispatch(tt.c) })
			assert.Equal(t, PlainView{Text: tt.want}, v)
		})
	}
}

func TestRendererPublishesSources(t *testing.T) {
	bus := events.NewBus()
	var got []session.Citation
	bus.Subscribe(func(e events.Event) {
		if s, ok := e.(events.SourcesUpdated); ok {
			got = append(got, s.Citations...)
		}
	})
	r := NewRenderer(bus)

	r.Render(content(t, `{"type":"table","data":[{"A":"1"}]}`))
	assert.Empty(t, got, "no sources, no notification")

	r.Render(content(t, `{"type":"table","data":[{"A":"1","Source":"a.com"}]}`))
	assert.Equal(t, []session.Citation{{URL: "a.com"}}, got)
}

func TestRenderMessageNonAssistantIsPlain(t *testing.T) {
	r := NewRenderer(nil)
	msg := session.NewMessage(session.RoleUser, session.Content{Type: session.TypeTable, Text: "raw"})
	assert.Equal(t, PlainView{Text: "raw"}, r.RenderMessage(msg))
}
