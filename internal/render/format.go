package render

import (
	"fmt"
	"strings"

	"AgentChat/internal/session"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// maxInlineCitations is how many sources an answer lists before summarizing the rest
const maxInlineCitations = 3

var (
	labelStyle  = lipgloss.NewStyle().Bold(true)
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	systemStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Label names the author of a message the way the chat shows it
func Label(msg session.Message) string {
	switch {
	case msg.Role == session.RoleUser:
		return "You"
	case msg.Sender != "":
		return msg.Sender
	case msg.Role == session.RoleSystem:
		return "System"
	default:
		return "Assistant"
	}
}

// FormatMessage renders a message with its author label for the terminal
func FormatMessage(msg session.Message, v View) string {
	label := Label(msg)
	switch {
	case msg.Role == session.RoleUser:
		label = userStyle.Render(label)
	case msg.Role == session.RoleSystem:
		return systemStyle.Render(fmt.Sprintf("[%s] %s", label, Format(v)))
	case msg.Sender != "":
		label = agentStyle.Render(label + " (agent)")
	default:
		label = labelStyle.Render(label)
	}
	return fmt.Sprintf("%s: %s", label, Format(v))
}

// Format renders a view as terminal text
func Format(v View) string {
	switch v := v.(type) {
	case AnswerView:
		return formatAnswer(v)
	case TableView:
		return formatTable(v)
	case PricingView:
		return formatPricing(v)
	case CardSelectionView:
		return formatCards(v)
	case PlainView:
		return v.Text
	default:
		return FallbackText
	}
}

func formatAnswer(v AnswerView) string {
	var b strings.Builder
	b.WriteString(v.Text)

	if n := len(v.Citations); n > 0 {
		fmt.Fprintf(&b, "\n%s", mutedStyle.Render(fmt.Sprintf("Sources (%d)", n)))
		for i, c := range v.Citations {
			if i == maxInlineCitations {
				fmt.Fprintf(&b, "\n  +%d more (see /sources)", n-maxInlineCitations)
				break
			}
			fmt.Fprintf(&b, "\n  [%d] %s", i+1, c.URL)
		}
	}

	if len(v.FollowUps) > 0 {
		fmt.Fprintf(&b, "\n%s", mutedStyle.Render("Related questions (/pick <n>)"))
		for i, f := range v.FollowUps {
			fmt.Fprintf(&b, "\n  %d. %s", i+1, f)
		}
	}
	return b.String()
}

func formatTable(v TableView) string {
	if len(v.Headers) == 0 {
		return mutedStyle.Render("No table data available")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(v.Headers...).
		Rows(v.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	out := "\n" + t.String()
	if len(v.Citations) > 0 {
		out += "\n" + mutedStyle.Render(fmt.Sprintf("%d sources available (/sources)", len(v.Citations)))
	}
	return out
}

func formatPricing(v PricingView) string {
	if len(v.Plans) == 0 {
		return mutedStyle.Render("No pricing data available")
	}
	var b strings.Builder
	for _, p := range v.Plans {
		fmt.Fprintf(&b, "\n%s", labelStyle.Render(p.Course))
		for _, f := range p.Prices {
			fmt.Fprintf(&b, "\n  %s: %s", f.Key, f.Value)
		}
		if p.PricePerHour != "" {
			fmt.Fprintf(&b, "\n  %s", mutedStyle.Render(p.PricePerHour+" per hour"))
		}
		for _, f := range p.Details {
			fmt.Fprintf(&b, "\n  - %s: %s", f.Key, f.Value)
		}
	}
	return b.String()
}

func formatCards(v CardSelectionView) string {
	var b strings.Builder
	b.WriteString(v.Text)
	if len(v.Cards) == 0 {
		b.WriteString("\n" + mutedStyle.Render("No options available"))
		return b.String()
	}
	for i, c := range v.Cards {
		switch {
		case c.Title != "" && c.Description != "":
			fmt.Fprintf(&b, "\n  %d. %s - %s", i+1, c.Title, c.Description)
		case c.Title != "":
			fmt.Fprintf(&b, "\n  %d. %s", i+1, c.Title)
		case c.Description != "":
			fmt.Fprintf(&b, "\n  %d. %s", i+1, c.Description)
		default:
			fmt.Fprintf(&b, "\n  %d. %s", i+1, c.Raw)
		}
	}
	b.WriteString("\n" + mutedStyle.Render("Choose with /pick <n>"))
	return b.String()
}
