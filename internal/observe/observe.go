// Package observe carries data-quality events out of the aggregation core.
// Components emit events through a Sink; they never log directly.
package observe

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

type Kind string

const (
	KindDateParseError  Kind = "date_parse_error"
	KindDataQualitySkip Kind = "data_quality_skip"
	KindDefaultApplied  Kind = "missing_field_default"
	KindUnmatched       Kind = "unmatched_reactivation"
)

type Event struct {
	Kind      Kind
	Component string
	Field     string
	Value     string
	Row       int
	Detail    string
}

type Sink interface {
	Record(event Event)
}

type discard struct{}

func (discard) Record(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

// Recorder counts events by kind and mirrors them to a logger. Parse errors
// and data-quality skips are logged at WARN, defaults and unmatched rows at
// DEBUG.
type Recorder struct {
	logger *slog.Logger

	mu     sync.Mutex
	counts map[Kind]int
	fields map[string]int
}

func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		logger: logger,
		counts: map[Kind]int{},
		fields: map[string]int{},
	}
}

func (r *Recorder) Record(event Event) {
	r.mu.Lock()
	r.counts[event.Kind]++
	if event.Field != "" {
		r.fields[string(event.Kind)+":"+event.Field]++
	}
	r.mu.Unlock()

	level := slog.LevelDebug
	switch event.Kind {
	case KindDateParseError, KindDataQualitySkip:
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "data quality event",
		"kind", string(event.Kind),
		"component", event.Component,
		"field", event.Field,
		"value", event.Value,
		"row", event.Row,
		"detail", event.Detail,
	)
}

func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

type Summary struct {
	DateParseErrors  int            `json:"dateParseErrors"`
	DataQualitySkips int            `json:"dataQualitySkips"`
	DefaultsApplied  int            `json:"defaultsApplied"`
	Unmatched        int            `json:"unmatchedReactivations"`
	ByField          []FieldCount   `json:"byField"`
	Raw              map[string]int `json:"-"`
}

type FieldCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary := Summary{
		DateParseErrors:  r.counts[KindDateParseError],
		DataQualitySkips: r.counts[KindDataQualitySkip],
		DefaultsApplied:  r.counts[KindDefaultApplied],
		Unmatched:        r.counts[KindUnmatched],
		ByField:          make([]FieldCount, 0, len(r.fields)),
		Raw:              make(map[string]int, len(r.counts)),
	}
	for key, count := range r.fields {
		summary.ByField = append(summary.ByField, FieldCount{Key: key, Count: count})
	}
	sort.Slice(summary.ByField, func(i, j int) bool {
		if summary.ByField[i].Count != summary.ByField[j].Count {
			return summary.ByField[i].Count > summary.ByField[j].Count
		}
		return summary.ByField[i].Key < summary.ByField[j].Key
	})
	for kind, count := range r.counts {
		summary.Raw[string(kind)] = count
	}
	return summary
}
