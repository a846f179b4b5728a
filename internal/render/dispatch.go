package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"AgentChat/internal/events"
	"AgentChat/internal/session"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	sourceKey       = "Source"
	courseKey       = "Course"
	pricePerHourKey = "Price/Hour"
	hoursPerWeekKey = "Hours/Week"
)

var errNoData = errors.New("content has no data")

// record is a backend row with its key order preserved
type record = orderedmap.OrderedMap[string, any]

// Renderer dispatches content to views and reports derived sources on the
// notification bus
type Renderer struct {
	bus *events.Bus
}

// NewRenderer creates a renderer. bus may be nil.
func NewRenderer(bus *events.Bus) *Renderer {
	return &Renderer{bus: bus}
}

// Render dispatches content and publishes SourcesUpdated when a table
// yields at least one citation
func (r *Renderer) Render(c session.Content) View {
	v := Dispatch(c)
	if tv, ok := v.(TableView); ok && len(tv.Citations) > 0 {
		r.bus.Publish(events.SourcesUpdated{Citations: tv.Citations})
	}
	return v
}

// RenderMessage renders assistant messages by content type. User and
// system messages are always plain text.
func (r *Renderer) RenderMessage(msg session.Message) View {
	if msg.Role != session.RoleAssistant {
		return PlainView{Text: msg.Content.Text}
	}
	return r.Render(msg.Content)
}

// Dispatch picks the view for a content tag. It never panics: unknown tags
// and malformed payloads fall back to plain text.
func Dispatch(c session.Content) View {
	var (
		v   View
		err error
	)

	switch c.Type {
	case session.TypeTable:
		v, err = tableView(c.Data)
	case session.TypePricing:
		v, err = pricingView(c.Data)
	case session.TypeCardSelection:
		v, err = cardSelectionView(c.Text, c.Data)
	case session.TypeAnswer:
		v = AnswerView{
			Text:      c.Text,
			Citations: c.Citations,
			FollowUps: c.FollowUps,
		}
	default:
		return plain(c)
	}

	if err != nil {
		return plain(c)
	}
	return v
}

func plain(c session.Content) PlainView {
	if c.Text == "" {
		return PlainView{Text: FallbackText}
	}
	return PlainView{Text: c.Text}
}

func tableView(data json.RawMessage) (TableView, error) {
	records, err := decodeRecords(data)
	if err != nil {
		return TableView{}, err
	}

	var headers []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
			if pair.Key == sourceKey || seen[pair.Key] {
				continue
			}
			seen[pair.Key] = true
			headers = append(headers, pair.Key)
		}
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(headers))
		for j, h := range headers {
			if val, ok := rec.Get(h); ok {
				row[j] = cellString(val)
			}
		}
		rows[i] = row
	}

	return TableView{
		Headers:   headers,
		Rows:      rows,
		Citations: citationsFrom(records),
	}, nil
}

// citationsFrom flattens the comma separated Source column of every record
func citationsFrom(records []*record) []session.Citation {
	var out []session.Citation
	for _, rec := range records {
		val, ok := rec.Get(sourceKey)
		if !ok {
			continue
		}
		src, ok := val.(string)
		if !ok {
			continue
		}
		for _, part := range strings.Split(src, ",") {
			if url := strings.TrimSpace(part); url != "" {
				out = append(out, session.Citation{URL: url})
			}
		}
	}
	return out
}

func pricingView(data json.RawMessage) (PricingView, error) {
	records, err := decodeRecords(data)
	if err != nil {
		return PricingView{}, err
	}

	plans := make([]PricingPlan, 0, len(records))
	for _, rec := range records {
		var plan PricingPlan
		for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
			key := pair.Key
			lower := strings.ToLower(key)
			value := cellString(pair.Value)

			switch {
			case strings.Contains(lower, "hours") && key != hoursPerWeekKey:
				plan.Prices = append(plan.Prices, Field{Key: key, Value: value})
			case key == courseKey:
				plan.Course = value
			case key == pricePerHourKey:
				plan.PricePerHour = value
			case lower == "course" || lower == "price/hour":
			default:
				plan.Details = append(plan.Details, Field{Key: key, Value: value})
			}
		}
		plans = append(plans, plan)
	}
	return PricingView{Plans: plans}, nil
}

func cardSelectionView(text string, data json.RawMessage) (CardSelectionView, error) {
	if len(data) == 0 {
		return CardSelectionView{}, errNoData
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return CardSelectionView{}, fmt.Errorf("card data is not a list: %w", err)
	}

	cards := make([]Card, 0, len(items))
	for _, item := range items {
		cards = append(cards, decodeCard(item))
	}
	return CardSelectionView{Text: text, Cards: cards}, nil
}

func decodeCard(item json.RawMessage) Card {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return Card{Raw: s}
	}

	var obj struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Text        string `json:"text"`
	}
	// non-object items keep only their raw form
	_ = json.Unmarshal(item, &obj)
	return Card{
		Title:       obj.Title,
		Description: obj.Description,
		Text:        obj.Text,
		Raw:         compact(item),
	}
}

func decodeRecords(data json.RawMessage) ([]*record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errNoData
	}
	var records []*record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("data is not a list of records: %w", err)
	}
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("record %d is null", i)
		}
	}
	return records, nil
}

func cellString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
