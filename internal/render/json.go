package render

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/redreader/internal/source"
)

type jsonList struct {
	Meta  jsonMeta   `json:"meta"`
	Items []jsonItem `json:"items"`
}

type jsonMeta struct {
	Title     string `json:"title"`
	Count     int    `json:"count"`
	Next      string `json:"next,omitempty"`
	Exhausted bool   `json:"exhausted"`
	Skipped   int    `json:"skipped,omitempty"`
}

type jsonItem struct {
	source.Item
	AspectRatio float64 `json:"aspectRatio"`
	Saved       bool    `json:"saved"`
}

// JSONFormatter formats items as JSON.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes the items as JSON to w.
func (f *JSONFormatter) Format(w io.Writer, input Input) error {
	out := jsonList{
		Meta: jsonMeta{
			Title:     input.Title,
			Count:     len(input.Items),
			Next:      input.Next,
			Exhausted: input.Exhausted,
			Skipped:   input.Skipped,
		},
		Items: make([]jsonItem, 0, len(input.Items)),
	}
	for _, it := range input.Items {
		out.Items = append(out.Items, jsonItem{
			Item:        it,
			AspectRatio: it.AspectRatio(),
			Saved:       isSaved(input, it.ID),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
