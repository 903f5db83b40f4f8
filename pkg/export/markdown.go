package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/jakechorley/shiftplanner/pkg/core/assembler"
	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

// Markdown renders the schedule as one table per day
func Markdown(schedule assembler.Schedule, title string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "# %s\n\n", title)
	}
	if len(schedule.Slots) == 0 {
		b.WriteString("No schedule generated.\n")
		return b.String()
	}

	for _, day := range model.HorizonDays(schedule.WeekStart) {
		slots := schedule.Day(day)
		if len(slots) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s\n\n", day)
		b.WriteString("| Period | Staff | Needed |\n")
		b.WriteString("|---|---|---|\n")
		for _, sa := range slots {
			needed := fmt.Sprintf("%d", sa.Headcount)
			if sa.Understaffed() {
				needed = fmt.Sprintf("**%d (short %d)**", sa.Headcount, sa.Headcount-len(sa.Employees))
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeMarkdown(sa.Slot.Period), formatStaff(sa, escapeMarkdown), needed)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// escapeMarkdown backslash-escapes every character markdown gives a meaning
// to, so names render as plain text and cannot split a table row
func escapeMarkdown(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if bytes.IndexByte(parser.EscapeChars, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// HTML renders the Markdown roster to an HTML fragment. Raw HTML in the
// source is dropped and text is entity-escaped.
func HTML(schedule assembler.Schedule, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML})
	return markdown.ToHTML([]byte(Markdown(schedule, title)), p, renderer)
}
