package report

import (
	"context"

	"churn-insights/internal/analytics"
	"churn-insights/internal/observe"
)

const diagnosticSamples = 3

type ChurnSample struct {
	ID               string `json:"id"`
	ClientName       string `json:"clientName"`
	PrimaryChurnDate string `json:"primaryChurnDate"`
}

type ReactivationSample struct {
	AccountName      string `json:"accountName"`
	ChurnDate        string `json:"churnDate"`
	ReactivationDate string `json:"reactivationDate"`
}

type Diagnostics struct {
	ChurnRecords struct {
		Total  int          `json:"total"`
		Sample *ChurnSample `json:"sample"`
	} `json:"churnRecords"`
	ReactivationRecords struct {
		Total                int                  `json:"total"`
		WithChurnDate        int                  `json:"withChurnDate"`
		WithReactivationDate int                  `json:"withReactivationDate"`
		WithBothDates        int                  `json:"withBothDates"`
		Samples              []ReactivationSample `json:"samples"`
	} `json:"reactivationRecords"`
	Metrics     analytics.ReactivationMetrics `json:"metrics"`
	DataQuality observe.Summary               `json:"dataQuality"`
	Diagnosis   string                        `json:"diagnosis"`
}

// Diagnostics explains where the reactivation metrics come from: how many rows
// carry each date and how many were dropped and why.
func (s *Service) Diagnostics(ctx context.Context) (Diagnostics, error) {
	data, err := s.load(ctx)
	if err != nil {
		return Diagnostics{}, err
	}
	var diag Diagnostics
	diag.ChurnRecords.Total = len(data.churns)
	if len(data.churns) > 0 {
		first := data.churns[0]
		diag.ChurnRecords.Sample = &ChurnSample{ID: first.ID, ClientName: first.ClientName, PrimaryChurnDate: first.PrimaryChurnDate}
	}

	diag.ReactivationRecords.Total = len(data.reactivations)
	diag.ReactivationRecords.Samples = []ReactivationSample{}
	for _, reactivation := range data.reactivations {
		hasChurn := reactivation.ChurnDate != ""
		hasReactivation := reactivation.ReactivationDate != ""
		if hasChurn {
			diag.ReactivationRecords.WithChurnDate++
		}
		if hasReactivation {
			diag.ReactivationRecords.WithReactivationDate++
		}
		if hasChurn && hasReactivation {
			diag.ReactivationRecords.WithBothDates++
			if len(diag.ReactivationRecords.Samples) < diagnosticSamples {
				diag.ReactivationRecords.Samples = append(diag.ReactivationRecords.Samples, ReactivationSample{
					AccountName:      reactivation.AccountName,
					ChurnDate:        reactivation.ChurnDate,
					ReactivationDate: reactivation.ReactivationDate,
				})
			}
		}
	}

	diag.Metrics = analytics.CalculateReactivationMetrics(data.reactivations, len(data.churns), data.quality)
	s.logMetrics(ctx, "diagnostics", diag.Metrics, data.quality)
	diag.DataQuality = data.quality.Summary()
	diag.Diagnosis = diagnose(diag)
	return diag, nil
}

func diagnose(diag Diagnostics) string {
	switch {
	case diag.ReactivationRecords.Total == 0:
		return "no reactivation rows were read; check the reactivation sheet source"
	case diag.ReactivationRecords.WithChurnDate == 0:
		return "no reactivation row carries a churn date; check the churnDate column mapping of the reactivation sheet"
	case diag.Metrics.ValidCount == 0:
		return "no reactivation has a positive latency; check date formats and the data quality counters"
	default:
		return "ok"
	}
}
