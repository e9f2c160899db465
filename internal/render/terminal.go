package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/redreader/internal/source"
)

// TerminalFormatter formats items for terminal output.
type TerminalFormatter struct {
	color bool
}

// NewTerminal creates a terminal formatter. Set color=true for ANSI colors.
func NewTerminal(color bool) *TerminalFormatter {
	return &TerminalFormatter{color: color}
}

// Format writes the items to w grouped by kind.
func (f *TerminalFormatter) Format(w io.Writer, input Input) error {
	images, videos, embeds := groupByKind(input.Items)

	header := fmt.Sprintf("redreader — %s, %d items", input.Title, len(input.Items))
	fmt.Fprintln(w, f.bold(header))
	fmt.Fprintln(w)

	if len(input.Items) == 0 {
		fmt.Fprintln(w, "No items found.")
		f.writeFooter(w, input)
		return nil
	}

	f.writeSection(w, input, "Images", images, f.green)
	f.writeSection(w, input, "Videos", videos, f.yellow)
	f.writeSection(w, input, "Embeds", embeds, f.yellow)

	f.writeFooter(w, input)
	return nil
}

func (f *TerminalFormatter) writeSection(w io.Writer, input Input, name string, items []source.Item, paint func(string) string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, paint(f.bold(fmt.Sprintf("--- %s (%d) ---", name, len(items)))))
	fmt.Fprintln(w)
	for _, it := range items {
		f.writeItem(w, input, it)
	}
	fmt.Fprintln(w)
}

func (f *TerminalFormatter) writeItem(w io.Writer, input Input, it source.Item) {
	marker := " "
	if isSaved(input, it.ID) {
		marker = "*"
	}

	var meta []string
	if d := dimensions(it); d != "" {
		meta = append(meta, d)
	}
	if it.Kind == source.KindVideo && !it.Playable() {
		meta = append(meta, "no playable stream")
	}
	extra := ""
	if len(meta) > 0 {
		extra = " " + f.dim("("+strings.Join(meta, ", ")+")")
	}

	fmt.Fprintf(w, " %s %s %s%s\n", marker, f.bold(it.ID), it.Title, extra)
	fmt.Fprintf(w, "      %s\n", f.dim(mediaURL(it)))
	if it.Permalink != "" {
		fmt.Fprintf(w, "      %s\n", f.dim(it.Permalink))
	}
}

func (f *TerminalFormatter) writeFooter(w io.Writer, input Input) {
	if input.Skipped > 0 {
		fmt.Fprintln(w, f.dim(fmt.Sprintf("Skipped: %d non-media posts", input.Skipped)))
	}
	switch {
	case input.Next != "":
		fmt.Fprintln(w, f.dim("More available after "+input.Next))
	case input.Exhausted:
		fmt.Fprintln(w, f.dim("End of listing."))
	}
}

// ANSI helpers, no-op when color=false.

func (f *TerminalFormatter) bold(s string) string {
	if !f.color {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func (f *TerminalFormatter) green(s string) string {
	if !f.color {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func (f *TerminalFormatter) yellow(s string) string {
	if !f.color {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func (f *TerminalFormatter) dim(s string) string {
	if !f.color {
		return s
	}
	return "\033[2m" + s + "\033[0m"
}
