package records

import (
	"fmt"
	"strings"

	"churn-insights/internal/dates"
	"churn-insights/internal/observe"
)

const (
	DefaultCategory = "Uncategorized"
	Unknown         = "Unknown"
)

const component = "normalizer"

type Normalizer struct {
	churnColumns        ColumnMap
	reactivationColumns ColumnMap
	sink                observe.Sink
}

// NewNormalizer falls back to the default layouts for nil maps.
func NewNormalizer(churnColumns, reactivationColumns ColumnMap, sink observe.Sink) *Normalizer {
	if churnColumns == nil {
		churnColumns = DefaultChurnColumns()
	}
	if reactivationColumns == nil {
		reactivationColumns = DefaultReactivationColumns()
	}
	if sink == nil {
		sink = observe.Discard
	}
	return &Normalizer{
		churnColumns:        churnColumns,
		reactivationColumns: reactivationColumns,
		sink:                sink,
	}
}

func (n *Normalizer) Churn(row []string, index int) ChurnRecord {
	cols := n.churnColumns
	record := ChurnRecord{
		ClientName:         n.withDefault(row, cols, FieldClientName, Unknown, index),
		ChurnDate:          canonicalDate(getValue(row, cols[FieldChurnDate])),
		DeactivationDate:   canonicalDate(getValue(row, cols[FieldDeactivationDate])),
		EstimatedChurnDate: canonicalDate(getValue(row, cols[FieldEstimatedChurnDate])),
		CreatedDate:        canonicalDate(getValue(row, cols[FieldCreatedDate])),
		ChurnCategory:      n.withDefault(row, cols, FieldChurnCategory, DefaultCategory, index),
		ServiceCategory:    n.withDefault(row, cols, FieldServiceCategory, Unknown, index),
		Competitor:         getValue(row, cols[FieldCompetitor]),
		Feedback:           getValue(row, cols[FieldFeedback]),
		MRR:                n.money(row, cols, FieldMRR, index),
		Price:              n.money(row, cols, FieldPrice, index),
	}

	record.ID = getValue(row, cols[FieldID])
	if record.ID == "" {
		record.ID = fmt.Sprintf("record-%d", index)
		record.Synthetic = true
	}

	record.PrimaryChurnDate = firstNonEmpty(record.DeactivationDate, record.ChurnDate, record.EstimatedChurnDate)
	record.MonthsBeforeChurn = n.lifetimeMonths(record, index)
	return record
}

func (n *Normalizer) Reactivation(row []string, index int) ReactivationRecord {
	cols := n.reactivationColumns
	record := ReactivationRecord{
		PlatformClientID:    getValue(row, cols[FieldPlatformClientID]),
		AccountName:         n.withDefault(row, cols, FieldAccountName, Unknown, index),
		ReactivationDate:    canonicalDate(getValue(row, cols[FieldReactivationDate])),
		ChurnDate:           canonicalDate(getValue(row, cols[FieldChurnDate])),
		ReactivationReason:  n.withDefault(row, cols, FieldReactivationReason, Unknown, index),
		CustomerSuccessPath: n.withDefault(row, cols, FieldCustomerSuccessPath, Unknown, index),
	}
	if mrr := n.money(row, cols, FieldMRR, index); mrr != nil {
		record.MRR = *mrr
	}

	record.ID = firstNonEmpty(getValue(row, cols[FieldID]), record.PlatformClientID)
	if record.ID == "" {
		record.ID = fmt.Sprintf("record-%d", index)
		record.Synthetic = true
	}
	return record
}

// ChurnRows normalizes data rows (header already removed), skipping rows with
// no content. The row index used for synthetic ids is the position in rows.
func (n *Normalizer) ChurnRows(rows [][]string) []ChurnRecord {
	out := make([]ChurnRecord, 0, len(rows))
	for idx, row := range rows {
		if blankRow(row) {
			continue
		}
		out = append(out, n.Churn(row, idx))
	}
	return out
}

func (n *Normalizer) ReactivationRows(rows [][]string) []ReactivationRecord {
	out := make([]ReactivationRecord, 0, len(rows))
	for idx, row := range rows {
		if blankRow(row) {
			continue
		}
		out = append(out, n.Reactivation(row, idx))
	}
	return out
}

func (n *Normalizer) withDefault(row []string, cols ColumnMap, field Field, fallback string, index int) string {
	if value := getValue(row, cols[field]); value != "" {
		return value
	}
	n.sink.Record(observe.Event{
		Kind:      observe.KindDefaultApplied,
		Component: component,
		Field:     string(field),
		Row:       index,
		Detail:    fallback,
	})
	return fallback
}

func (n *Normalizer) money(row []string, cols ColumnMap, field Field, index int) *float64 {
	raw := getValue(row, cols[field])
	if raw == "" {
		return nil
	}
	value, ok, clamped := ParseMoney(raw)
	if !ok {
		n.sink.Record(observe.Event{
			Kind:      observe.KindDataQualitySkip,
			Component: component,
			Field:     string(field),
			Value:     raw,
			Row:       index,
			Detail:    "unparsable amount treated as absent",
		})
		return nil
	}
	if clamped {
		n.sink.Record(observe.Event{
			Kind:      observe.KindDataQualitySkip,
			Component: component,
			Field:     string(field),
			Value:     raw,
			Row:       index,
			Detail:    "negative amount clamped to 0",
		})
	}
	return &value
}

func (n *Normalizer) lifetimeMonths(record ChurnRecord, index int) *int {
	if record.CreatedDate == "" || record.PrimaryChurnDate == "" {
		return nil
	}
	created, err := dates.Parse(record.CreatedDate)
	if err != nil {
		n.sink.Record(observe.Event{
			Kind:      observe.KindDateParseError,
			Component: component,
			Field:     string(FieldCreatedDate),
			Value:     record.CreatedDate,
			Row:       index,
			Detail:    err.Error(),
		})
		return nil
	}
	churned, err := dates.Parse(record.PrimaryChurnDate)
	if err != nil {
		return nil
	}
	months := dates.MonthsBetween(created, churned)
	return &months
}

// canonicalDate rewrites parseable values in a single UTC form, keeping the
// time of day when there is one, and leaves anything else untouched so the
// failure surfaces where the date is used.
func canonicalDate(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := dates.Parse(raw)
	if err != nil {
		return raw
	}
	return dates.FormatInstant(parsed)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
