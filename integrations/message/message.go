// Package message renders leaderboard reports as chat text.
package message

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"leaderbot/core"
	"leaderbot/leaderboard"
)

const (
	// StarsHeader titles the stars column.
	StarsHeader = "Stars ⭐"
	// NewMemberMarker flags members who joined since the last snapshot.
	NewMemberMarker = "👋"
	// NewStarsMarker flags members who got stars since the last snapshot.
	NewStarsMarker = "🎉"

	columnWidth = 12
	pad         = '\u2007' // figure space
)

// Style adapts the markup to a chat flavour.
type Style struct {
	Bold func(string) string
	Link func(text, url string) string
}

// Plain renders without markup, for terminals.
var Plain = Style{
	Bold: func(s string) string { return s },
	Link: func(text, url string) string { return text + " (" + url + ")" },
}

// Slack renders mrkdwn.
var Slack = Style{
	Bold: func(s string) string { return "*" + s + "*" },
	Link: func(text, url string) string { return "<" + url + "|" + text + ">" },
}

// Discord renders Discord markdown.
var Discord = Style{
	Bold: func(s string) string { return "**" + s + "**" },
	Link: func(text, url string) string { return "[" + text + "](" + url + ")" },
}

// Title names the leaderboard and links to it.
func Title(r core.Report, st Style) string {
	return st.Link(fmt.Sprintf("Leaderboard %d (year %d)", r.LeaderboardID, r.Year), r.URL())
}

// Changes renders the current standings, marking new members and members
// with new stars.
func Changes(r core.Report, order leaderboard.SortOrder, st Style) string {
	var b strings.Builder
	b.WriteString(RightPad(StarsHeader, columnWidth))
	b.WriteString(Title(r, st))
	for _, e := range leaderboard.Standings(r.Current, order) {
		b.WriteByte('\n')
		b.WriteString(Row(e, r.Changes, st))
	}
	return b.String()
}

// Row renders one standings line.
func Row(e leaderboard.Entry, cs core.ChangeSet, st Style) string {
	row := RightPad(strconv.Itoa(e.Stars), columnWidth) + e.Name
	if cs.IsNew(e.MemberID) {
		return st.Bold(row + " " + NewMemberMarker)
	}
	if _, ok := cs.Update(e.MemberID); ok {
		return st.Bold(row + " " + NewStarsMarker)
	}
	return row
}

// Error renders a failed cycle.
func Error(r core.ErrorReport, st Style) string {
	title := st.Link(fmt.Sprintf("Leaderboard %d (year %d)", r.LeaderboardID, r.Year),
		core.LeaderboardURL(r.Year, r.LeaderboardID, ""))
	msg := fmt.Sprintf("An error occurred for %s (stage %s)", title, r.Stage)
	if r.Kind != "" {
		msg += " [" + r.Kind + "]"
	}
	if text := r.Message(); text != "" {
		msg += ": " + text
	}
	return msg
}

// RightPad pads s with figure spaces up to width runes.
func RightPad(s string, width int) string {
	missing := width - utf8.RuneCountInString(s)
	if missing <= 0 {
		return s
	}
	return s + strings.Repeat(string(pad), missing)
}

// Truncate cuts s to at most n runes, ending with an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
