package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/redreader/internal/source"
)

// MarkdownFormatter formats items as Markdown.
type MarkdownFormatter struct{}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format writes the items as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, input Input) error {
	fmt.Fprintf(w, "# %s\n\n", input.Title)
	fmt.Fprintf(w, "%d items\n\n", len(input.Items))

	if len(input.Items) == 0 {
		fmt.Fprintln(w, "No items found.")
		return nil
	}

	images, videos, embeds := groupByKind(input.Items)
	f.writeSection(w, input, "Images", images)
	f.writeSection(w, input, "Videos", videos)
	f.writeSection(w, input, "Embeds", embeds)

	if input.Next != "" {
		fmt.Fprintf(w, "*More available after `%s`*\n", input.Next)
	}
	return nil
}

func (f *MarkdownFormatter) writeSection(w io.Writer, input Input, name string, items []source.Item) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "## %s (%d)\n\n", name, len(items))
	for _, it := range items {
		line := fmt.Sprintf("- [%s](%s)", escapeLinkText(it.Title), mediaURL(it))
		if d := dimensions(it); d != "" {
			line += " `" + d + "`"
		}
		if isSaved(input, it.ID) {
			line += " **saved**"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

func escapeLinkText(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}
