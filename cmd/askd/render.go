package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/askd/internal/engine"
	"github.com/fyrsmithlabs/askd/internal/memory"
)

// Lipgloss styles. Colours degrade to plain text when output is not a
// terminal.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("46"))
)

const sensitiveNotice = "Sensitive data was detected and redacted before processing."

// renderResponse writes an answer, preceded by a notice when the input was
// redacted.
func renderResponse(w io.Writer, resp engine.Response) {
	if resp.Sensitive {
		fmt.Fprintln(w, warningStyle.Render("! "+sensitiveNotice))
	}
	fmt.Fprintln(w, resp.Answer)
}

// renderStatus writes the engine configuration as aligned label/value rows.
func renderStatus(w io.Writer, st engine.Status) {
	session := st.SessionID
	if session == "" {
		session = "none"
	}
	filter := "off"
	if st.FilterEnabled {
		filter = "on"
	}
	rows := [][2]string{
		{"answer mode", string(st.AnswerMode)},
		{"memory mode", string(st.MemoryMode)},
		{"model", fmt.Sprintf("%s (%s)", st.ModelProvider, st.Model)},
		{"embeddings", string(st.EmbeddingProvider)},
		{"privacy filter", filter},
		{"session", session},
		{"buffered messages", fmt.Sprintf("%d", st.BufferLen)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", r[0])), valueStyle.Render(r[1]))
	}
}

// renderSessions writes a session table, most recent first.
func renderSessions(w io.Writer, sessions []memory.Summary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No sessions found"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			s.ID,
			truncate(s.Title, 30),
			s.MessageCount,
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
}

// renderHits writes semantic history search results.
func renderHits(w io.Writer, hits []memory.HistoryHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No matching messages"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tSESSION\tROLE\tMESSAGE")
	for _, h := range hits {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", h.Score, h.SessionID, h.Role, truncate(h.Content, 60))
	}
	tw.Flush()
}

// truncate shortens s to maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
