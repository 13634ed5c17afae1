package analytics

import (
	"math"
	"sort"
)

const (
	topCategoryLimit = 10
	chartCategories  = 5
)

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func average(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

// tally keeps first-seen order so ties sort deterministically.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally {
	return &tally{counts: map[string]int{}}
}

func (t *tally) add(key string) {
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key]++
}

// distribution sorts descending by count; ties fall back to category name.
func (t *tally) distribution(total int) []CategoryCount {
	out := make([]CategoryCount, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, CategoryCount{
			Category:   key,
			Count:      t.counts[key],
			Percentage: percentage(t.counts[key], total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func top(counts []CategoryCount, n int) []CategoryCount {
	if len(counts) <= n {
		return counts
	}
	return counts[:n]
}

// CategoryShare tallies labels against their own count, e.g. the share of
// matched pairs per churn category.
func CategoryShare(labels []string) []CategoryCount {
	t := newTally()
	for _, label := range labels {
		t.add(label)
	}
	return t.distribution(len(labels))
}
