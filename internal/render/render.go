// Package render writes item lists for the command line.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/redreader/internal/source"
	"github.com/samber/lo"
)

// Input is one list of items to render.
type Input struct {
	Title     string               // e.g. "r/pics/top?t=week" or "saved (anonymous)"
	Items     []source.Item        // in display order
	Saved     func(id string) bool // marks saved items; may be nil
	Next      string               // continuation cursor, empty when none
	Exhausted bool                 // no further pages exist
	Skipped   int                  // entries that were not displayable media
}

// Formatter writes an item list to w.
type Formatter interface {
	Format(w io.Writer, input Input) error
}

// New returns the formatter for format (terminal, json or markdown).
func New(format string, color bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "terminal":
		return NewTerminal(color), nil
	case "json":
		return NewJSON(), nil
	case "markdown", "md":
		return NewMarkdown(), nil
	}
	return nil, fmt.Errorf("unknown format %q (want terminal, json or markdown)", format)
}

// groupByKind keeps the input order inside each group.
func groupByKind(items []source.Item) (images, videos, embeds []source.Item) {
	groups := lo.GroupBy(items, func(it source.Item) source.Kind { return it.Kind })
	return groups[source.KindImage], groups[source.KindVideo], groups[source.KindEmbed]
}

// mediaURL is the URL a viewer should open for the item.
func mediaURL(it source.Item) string {
	switch {
	case it.Kind == source.KindEmbed && it.EmbedURL != "":
		return it.EmbedURL
	case it.Kind == source.KindVideo && it.VideoURL != "":
		return it.VideoURL
	}
	return it.SourceURL
}

func dimensions(it source.Item) string {
	if it.Width > 0 && it.Height > 0 {
		return fmt.Sprintf("%dx%d", it.Width, it.Height)
	}
	return ""
}

func isSaved(in Input, id string) bool {
	return in.Saved != nil && in.Saved(id)
}
