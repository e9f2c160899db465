package privacy

import (
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
)

// Hook redacts log messages and field values before they are formatted.
type Hook struct {
	patterns []*regexp.Regexp
}

// NewHook returns a hook applying the builtin credential patterns followed
// by the extra patterns.
func NewHook(extra []string) (*Hook, error) {
	compiled, err := Compile(extra)
	if err != nil {
		return nil, err
	}
	return &Hook{patterns: append(Builtin(), compiled...)}, nil
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	entry.Message = Apply(entry.Message, h.patterns)
	for k, v := range entry.Data {
		switch val := v.(type) {
		case string:
			entry.Data[k] = Apply(val, h.patterns)
		case error:
			if msg := val.Error(); msg != Apply(msg, h.patterns) {
				entry.Data[k] = Apply(msg, h.patterns)
			}
		case fmt.Stringer:
			if s := val.String(); s != Apply(s, h.patterns) {
				entry.Data[k] = Apply(s, h.patterns)
			}
		}
	}
	return nil
}
