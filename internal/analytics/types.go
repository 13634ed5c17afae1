package analytics

type CategoryCount struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type CompetitorData struct {
	Competitor   string  `json:"competitor"`
	Count        int     `json:"count"`
	TotalMRR     float64 `json:"totalMRR"`
	AveragePrice float64 `json:"averagePrice"`
}

type ReactivationCorrelation struct {
	ChurnCategory             string  `json:"churnCategory"`
	ReactivationRate          float64 `json:"reactivationRate"`
	AverageDaysToReactivation float64 `json:"averageDaysToReactivation"`
	TotalCount                int     `json:"totalCount"`
}

type MonthlyTrendData struct {
	Month         string `json:"month"`
	Churns        int    `json:"churns"`
	Reactivations int    `json:"reactivations"`
}

// MonthlyCategoryRow breaks one month down across the global top churn
// categories. Other holds the remaining categories and is omitted when zero.
type MonthlyCategoryRow struct {
	Month  string         `json:"month"`
	Counts map[string]int `json:"counts"`
	Other  int            `json:"other,omitempty"`
}

type ChurnAnalysis struct {
	TotalChurns              int                  `json:"totalChurns"`
	TotalMRRLost             float64              `json:"totalMRRLost"`
	AverageMRRPerChurn       float64              `json:"averageMRRPerChurn"`
	AverageMonthsBeforeChurn float64              `json:"averageMonthsBeforeChurn"`
	TopChurnCategories       []CategoryCount      `json:"topChurnCategories"`
	ChurnCategories          []CategoryCount      `json:"churnCategories"`
	TopServiceCategories     []CategoryCount      `json:"topServiceCategories"`
	ClientFeedbackCategories []CategoryCount      `json:"clientFeedbackCategories"`
	FeedbackCount            int                  `json:"feedbackCount"`
	CompetitorAnalysis       []CompetitorData     `json:"competitorAnalysis"`
	MonthlyTrend             []MonthlyTrendData   `json:"monthlyTrend"`
	ChartCategories          []string             `json:"chartCategories"`
	MonthlyChurnByCategory   []MonthlyCategoryRow `json:"monthlyChurnByCategory"`
	UndatedRecords           int                  `json:"undatedRecords"`
}

type MonthlyReactivations struct {
	Month string  `json:"month"`
	Count int     `json:"count"`
	MRR   float64 `json:"mrr"`
}

type ReactivationAnalysis struct {
	TotalReactivations     int                    `json:"totalReactivations"`
	TotalMRRRecovered      float64                `json:"totalMRRRecovered"`
	AverageMRR             float64                `json:"averageMRR"`
	TopReactivationReasons []CategoryCount        `json:"topReactivationReasons"`
	ReactivationsByCSPath  []CategoryCount        `json:"reactivationsByCSPath"`
	MonthlyReactivations   []MonthlyReactivations `json:"monthlyReactivations"`
}
