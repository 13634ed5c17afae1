// Package matching pairs reactivation records with the churn records they
// close out.
//
// The reactivations sheet records its own churn date for every returning
// customer, and that date is the one latency is measured from. The churn
// sheet is only consulted for the churn category: by id first, then by
// normalized client name.
package matching

import (
	"sort"

	"churn-insights/internal/dates"
	"churn-insights/internal/observe"
	"churn-insights/internal/records"
)

const component = "matcher"

const (
	MatchedByID   = "id"
	MatchedByName = "name"
	MatchedByNone = "none"
)

type MatchedPair struct {
	ClientName         string  `json:"clientName"`
	ChurnID            string  `json:"churnId,omitempty"`
	ChurnDate          string  `json:"churnDate"`
	ReactivationDate   string  `json:"reactivationDate"`
	DaysToReactivate   int     `json:"daysToReactivate"`
	ChurnCategory      string  `json:"churnCategory"`
	ReactivationReason string  `json:"reactivationReason"`
	MRRRecovered       float64 `json:"mrrRecovered"`
	MatchedBy          string  `json:"matchedBy"`
}

type index struct {
	byID   map[string]records.ChurnRecord
	byName map[string]records.ChurnRecord
}

func buildIndex(churns []records.ChurnRecord) index {
	idx := index{
		byID:   make(map[string]records.ChurnRecord, len(churns)),
		byName: make(map[string]records.ChurnRecord, len(churns)),
	}
	for _, churn := range churns {
		if !churn.Synthetic && churn.ID != "" {
			if _, exists := idx.byID[churn.ID]; !exists {
				idx.byID[churn.ID] = churn
			}
		}
		if key := nameKey(churn.ClientName); key != "" {
			if _, exists := idx.byName[key]; !exists {
				idx.byName[key] = churn
			}
		}
	}
	return idx
}

func (idx index) lookup(reactivation records.ReactivationRecord) (records.ChurnRecord, string) {
	if key := reactivation.MatchKey(); key != "" {
		if churn, ok := idx.byID[key]; ok {
			return churn, MatchedByID
		}
	}
	if key := nameKey(reactivation.AccountName); key != "" {
		if churn, ok := idx.byName[key]; ok {
			return churn, MatchedByName
		}
	}
	return records.ChurnRecord{}, MatchedByNone
}

func nameKey(name string) string {
	if name == "" || name == records.Unknown {
		return ""
	}
	return records.NormalizeName(name)
}

// Match returns one pair per reactivation whose own churn and reactivation
// dates both parse and are more than zero days apart, in reactivation order.
// Inputs are not modified.
func Match(churns []records.ChurnRecord, reactivations []records.ReactivationRecord, sink observe.Sink) []MatchedPair {
	if sink == nil {
		sink = observe.Discard
	}
	idx := buildIndex(churns)
	pairs := make([]MatchedPair, 0, len(reactivations))

	for row, reactivation := range reactivations {
		if reactivation.ChurnDate == "" || reactivation.ReactivationDate == "" {
			continue
		}
		churnedAt, err := dates.Parse(reactivation.ChurnDate)
		if err != nil {
			sink.Record(parseEvent(records.FieldChurnDate, reactivation.ChurnDate, row, err))
			continue
		}
		returnedAt, err := dates.Parse(reactivation.ReactivationDate)
		if err != nil {
			sink.Record(parseEvent(records.FieldReactivationDate, reactivation.ReactivationDate, row, err))
			continue
		}
		days := dates.DaysBetween(churnedAt, returnedAt)
		if days <= 0 {
			sink.Record(observe.Event{
				Kind:      observe.KindDataQualitySkip,
				Component: component,
				Field:     "daysToReactivate",
				Value:     reactivation.ID,
				Row:       row,
				Detail:    "reactivation not after churn",
			})
			continue
		}

		churn, matchedBy := idx.lookup(reactivation)
		pair := MatchedPair{
			ClientName:         reactivation.AccountName,
			ChurnDate:          dates.FormatISO(churnedAt),
			ReactivationDate:   dates.FormatISO(returnedAt),
			DaysToReactivate:   days,
			ChurnCategory:      records.Unknown,
			ReactivationReason: reactivation.ReactivationReason,
			MRRRecovered:       reactivation.MRR,
			MatchedBy:          matchedBy,
		}
		if matchedBy == MatchedByNone {
			sink.Record(observe.Event{
				Kind:      observe.KindUnmatched,
				Component: component,
				Field:     string(records.FieldAccountName),
				Value:     reactivation.AccountName,
				Row:       row,
			})
		} else {
			pair.ChurnID = churn.ID
			pair.ChurnCategory = churn.ChurnCategory
			if pair.ClientName == records.Unknown {
				pair.ClientName = churn.ClientName
			}
		}
		pairs = append(pairs, pair)
	}
	return pairs
}

// SortByElapsed returns a copy ordered by days to reactivate, fastest first.
func SortByElapsed(pairs []MatchedPair) []MatchedPair {
	out := append([]MatchedPair(nil), pairs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysToReactivate != out[j].DaysToReactivate {
			return out[i].DaysToReactivate < out[j].DaysToReactivate
		}
		return out[i].ClientName < out[j].ClientName
	})
	return out
}

func parseEvent(field records.Field, value string, row int, err error) observe.Event {
	return observe.Event{
		Kind:      observe.KindDateParseError,
		Component: component,
		Field:     string(field),
		Value:     value,
		Row:       row,
		Detail:    err.Error(),
	}
}
