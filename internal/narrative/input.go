package narrative

import (
	"bytes"
	"fmt"
	"text/template"

	"churn-insights/internal/analytics"
)

// Input is the aggregate shape handed to the text generator. Field names are
// part of the prompt contract and only grow.
type Input struct {
	TotalChurns               int                                 `json:"totalChurns"`
	AverageDaysToReactivation int                                 `json:"averageDaysToReactivation"`
	ReactivationRate          float64                             `json:"reactivationRate"`
	TopChurnCategories        []analytics.CategoryCount           `json:"topChurnCategories"`
	TopServiceCategories      []analytics.CategoryCount           `json:"topServiceCategories"`
	CompetitorAnalysis        []analytics.CompetitorData          `json:"competitorAnalysis"`
	ReactivationCorrelations  []analytics.ReactivationCorrelation `json:"reactivationByChurnCategory"`
}

type FeedbackLine struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

const NoFeedbackMessage = "No product feedback available in the churn data."

var churnTemplate = template.Must(template.New("churn").Parse(`You are a business analyst specializing in customer churn analysis. Analyze the following churn data and provide actionable insights:

Total Churns: {{.TotalChurns}}
Average Reactivation Time: {{.AverageDaysToReactivation}} days
Reactivation Rate: {{printf "%.1f" .ReactivationRate}}%

Top Churn Categories:
{{range .TopChurnCategories}}- {{.Category}}: {{.Count}} ({{printf "%.1f" .Percentage}}%)
{{end}}
Top Service Categories:
{{range .TopServiceCategories}}- {{.Category}}: {{.Count}} ({{printf "%.1f" .Percentage}}%)
{{end}}
Competitor Analysis:
{{range .CompetitorAnalysis}}- {{.Competitor}}: {{.Count}} churns, ${{printf "%.0f" .TotalMRR}} total MRR, ${{printf "%.0f" .AveragePrice}} avg price
{{end}}
Reactivation Correlation:
{{range .ReactivationCorrelations}}- {{.ChurnCategory}}: {{printf "%.1f" .ReactivationRate}}% reactivation rate, {{printf "%.0f" .AverageDaysToReactivation}} days avg
{{end}}
Please provide:
1. Key insights about churn patterns
2. Analysis of which churn categories are most likely to return
3. Competitor threat assessment
4. Recommendations to reduce churn
5. Strategies to improve reactivation rates

Format your response in clear sections with bullet points for easy reading.`))

var feedbackTemplate = template.Must(template.New("feedback").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(`Analyze the following customer feedback from churned clients and provide actionable product improvement recommendations:

Feedback Data:
{{range $i, $line := .}}{{inc $i}}. [{{$line.Category}}] {{$line.Text}}

{{end}}Please provide:
1. Common themes in the feedback
2. Most critical product issues mentioned
3. Feature requests or gaps identified
4. Prioritized recommendations for the product team
5. Quick wins vs long-term improvements

Format your response with clear sections and bullet points.`))

func ChurnPrompt(input Input) (string, error) {
	var buf bytes.Buffer
	if err := churnTemplate.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("render churn prompt: %w", err)
	}
	return buf.String(), nil
}

func FeedbackPrompt(lines []FeedbackLine) (string, error) {
	var buf bytes.Buffer
	if err := feedbackTemplate.Execute(&buf, lines); err != nil {
		return "", fmt.Errorf("render feedback prompt: %w", err)
	}
	return buf.String(), nil
}
