package analytics

import (
	"strings"
)

const OtherFeedback = "Other Feedback"

type feedbackTheme struct {
	name     string
	keywords []string
}

// Order matters: the first theme with a matching keyword wins.
var feedbackThemes = []feedbackTheme{
	{name: "Payment/Billing Issues", keywords: []string{"payment", "billing", "invoice", "charge"}},
	{name: "Communication Problems", keywords: []string{"communication", "response", "support", "contact"}},
	{name: "Pricing Concerns", keywords: []string{"fee", "price", "cost", "expensive"}},
	{name: "Reliability/Technical Issues", keywords: []string{"reliability", "downtime", "error", "bug", "issue"}},
	{name: "Feature Gaps", keywords: []string{"feature", "functionality", "missing", "need"}},
	{name: "Competitor", keywords: []string{"competitor", "alternative", "switched"}},
	{name: "Speed/Performance", keywords: []string{"slow", "late", "delay"}},
	{name: "Contractor Management", keywords: []string{"contractor", "worker", "employee"}},
}

// ClassifyFeedback returns the theme for a non-empty feedback string, or ""
// when there is no feedback at all.
func ClassifyFeedback(feedback string) string {
	text := strings.ToLower(strings.TrimSpace(feedback))
	if text == "" {
		return ""
	}
	for _, theme := range feedbackThemes {
		for _, keyword := range theme.keywords {
			if strings.Contains(text, keyword) {
				return theme.name
			}
		}
	}
	return OtherFeedback
}
