// Package console prints a board to a terminal for one-shot runs.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"shulscreen/internal/model"
)

var (
	titleColor   = color.New(color.FgHiWhite, color.Bold)
	headingColor = color.New(color.FgYellow, color.Bold)
	timeColor    = color.New(color.FgGreen)
	missingColor = color.New(color.FgRed)
	mutedColor   = color.New(color.FgHiBlack)
)

// labelWidth pads labels so the times line up in a column.
const labelWidth = 28

// Render formats the board as plain lines with ANSI colors (unless
// color.NoColor is set).
func Render(b *model.Board) string {
	var out strings.Builder
	if b == nil {
		out.WriteString(mutedColor.Sprint("No board yet.") + "\n")
		return out.String()
	}

	out.WriteString(titleColor.Sprint(b.Header.Name) + "\n")
	for _, line := range []string{b.Header.LocationLabel, b.Header.DateLine, b.Header.JewishDate} {
		if line != "" {
			out.WriteString(mutedColor.Sprint(line) + "\n")
		}
	}
	out.WriteString("\n")

	badge := b.Badge.Text
	if b.Badge.Available {
		out.WriteString(headingColor.Sprint(badge) + "\n")
	} else {
		out.WriteString(missingColor.Sprint(badge) + "\n")
	}
	if b.Badge.Justification != "" {
		out.WriteString(mutedColor.Sprint("  "+b.Badge.Justification) + "\n")
	}

	section(&out, "Zmanim", b.Zmanim)
	section(&out, "Shacharis", b.Lists.Shacharis)
	section(&out, "Mincha", b.Lists.Mincha)
	section(&out, "Maariv", b.Lists.Maariv)

	out.WriteString("\n" + mutedColor.Sprint(b.Status) + "\n")
	if b.Missing > 0 {
		out.WriteString(missingColor.Sprintf("%d time(s) unavailable", b.Missing) + "\n")
	}
	return out.String()
}

func section(out *strings.Builder, title string, rows []model.Row) {
	out.WriteString("\n" + headingColor.Sprint(title) + "\n")
	if len(rows) == 0 {
		out.WriteString(mutedColor.Sprint("  "+model.Unavailable) + "\n")
		return
	}
	for _, r := range rows {
		label := fmt.Sprintf("  %-*s", labelWidth, r.Label)
		switch {
		case !r.Available:
			out.WriteString(label + missingColor.Sprint(r.Display) + "\n")
		case r.Minutes == nil:
			// Notes carry free text rather than a time.
			out.WriteString(label + mutedColor.Sprint(r.Display) + "\n")
		default:
			out.WriteString(label + timeColor.Sprint(r.Display) + "\n")
		}
	}
}

// Print writes Render(b) to w.
func Print(w io.Writer, b *model.Board) error {
	_, err := io.WriteString(w, Render(b))
	return err
}
