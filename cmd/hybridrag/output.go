package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/poiesic/hybridrag/core"
)

const snippetLength = 60

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	userPrompt = lipgloss.NewStyle().Bold(true).Render("You>") + " "
	botPrompt  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render("Bot>") + " "
)

// renderCandidates formats the scored candidates of one query as a table.
func renderCandidates(query string, candidates []*core.ScoredCandidate, verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q (%d results)\n", titleStyle.Render("Query:"), query, len(candidates))
	if len(candidates) == 0 {
		return b.String()
	}

	rows := make([][]string, len(candidates))
	for i, c := range candidates {
		text := c.Unit.Text
		if !verbose {
			text = snippet(text, snippetLength)
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%.3f", c.NormScore),
			fmt.Sprintf("%.3f", c.RawScore),
			fmt.Sprintf("%.2f", c.TierBoost),
			fmt.Sprintf("%.2f", c.KeywordBoost),
			c.Unit.Metadata.Tier.String(),
			c.Unit.Metadata.Category,
			text,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("#", "SCORE", "RAW", "TIER+", "KW+", "TIER", "CATEGORY", "TEXT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	b.WriteString(t.String())
	return b.String()
}

// snippet collapses whitespace and cuts s to at most n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
