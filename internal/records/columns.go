package records

import (
	"strings"
)

type Field string

const (
	FieldID                  Field = "id"
	FieldPlatformClientID    Field = "platformClientId"
	FieldClientName          Field = "clientName"
	FieldAccountName         Field = "accountName"
	FieldChurnDate           Field = "churnDate"
	FieldDeactivationDate    Field = "deactivationDate"
	FieldEstimatedChurnDate  Field = "estimatedChurnDate"
	FieldCreatedDate         Field = "createdDate"
	FieldChurnCategory       Field = "churnCategory"
	FieldServiceCategory     Field = "serviceCategory"
	FieldCompetitor          Field = "competitor"
	FieldMRR                 Field = "mrr"
	FieldPrice               Field = "price"
	FieldFeedback            Field = "feedback"
	FieldReactivationDate    Field = "reactivationDate"
	FieldReactivationReason  Field = "reactivationReason"
	FieldCustomerSuccessPath Field = "customerSuccessPath"
)

// ColumnMap maps a field to its fallback chain of 0-based column indexes.
// The first non-empty cell along the chain wins.
type ColumnMap map[Field][]int

func (m ColumnMap) Clone() ColumnMap {
	out := make(ColumnMap, len(m))
	for field, chain := range m {
		out[field] = append([]int(nil), chain...)
	}
	return out
}

// Merge returns a copy of m with every field in override replacing its chain.
func (m ColumnMap) Merge(override ColumnMap) ColumnMap {
	out := m.Clone()
	for field, chain := range override {
		if len(chain) == 0 {
			continue
		}
		out[field] = append([]int(nil), chain...)
	}
	return out
}

// DefaultChurnColumns is the churn sheet layout (A:P) as of the last remap.
func DefaultChurnColumns() ColumnMap {
	return ColumnMap{
		FieldID:                 {0, 13},
		FieldClientName:         {1},
		FieldChurnDate:          {2},
		FieldChurnCategory:      {4},
		FieldServiceCategory:    {5},
		FieldCompetitor:         {6},
		FieldMRR:                {7, 14},
		FieldPrice:              {8, 15},
		FieldFeedback:           {9},
		FieldDeactivationDate:   {10},
		FieldEstimatedChurnDate: {11},
		FieldCreatedDate:        {12},
	}
}

// DefaultReactivationColumns is the reactivations sheet layout (A:J). Column
// J carries the churn date as recorded on the reactivation row.
func DefaultReactivationColumns() ColumnMap {
	return ColumnMap{
		FieldID:                  {0},
		FieldAccountName:         {1},
		FieldReactivationDate:    {2},
		FieldMRR:                 {3},
		FieldReactivationReason:  {4},
		FieldCustomerSuccessPath: {5},
		FieldPlatformClientID:    {6},
		FieldChurnDate:           {9},
	}
}

type HeaderAliases map[Field][]string

func DefaultChurnAliases() HeaderAliases {
	return HeaderAliases{
		FieldID:                 {"platform_client_id", "client_id", "account_id"},
		FieldClientName:         {"client_name", "client", "company"},
		FieldChurnDate:          {"churn_date"},
		FieldDeactivationDate:   {"deactivation_date", "deactivated_at"},
		FieldEstimatedChurnDate: {"estimated_churn_date"},
		FieldCreatedDate:        {"created_date", "created_at", "account_created"},
		FieldChurnCategory:      {"churn_category", "churn_reason"},
		FieldServiceCategory:    {"service_category", "service"},
		FieldCompetitor:         {"competitor"},
		FieldMRR:                {"mrr", "average_mrr", "avg_mrr"},
		FieldPrice:              {"price", "tpv"},
		FieldFeedback:           {"feedback", "client_feedback"},
	}
}

func DefaultReactivationAliases() HeaderAliases {
	return HeaderAliases{
		FieldID:                  {"account_id", "id"},
		FieldPlatformClientID:    {"platform_client_id", "client_id"},
		FieldAccountName:         {"account_name", "client_name", "account"},
		FieldReactivationDate:    {"reactivation_date", "reactivated_at"},
		FieldChurnDate:           {"churn_date"},
		FieldMRR:                 {"mrr"},
		FieldReactivationReason:  {"reactivation_reason", "reason"},
		FieldCustomerSuccessPath: {"customer_success_path", "cs_path"},
	}
}

// ResolveHeaders overrides the chains in base with the columns whose header
// matches an alias. Fields with no matching header keep their base chain.
func ResolveHeaders(header []string, aliases HeaderAliases, base ColumnMap) ColumnMap {
	out := base.Clone()
	if len(header) == 0 {
		return out
	}
	index := normalizeHeaders(header)
	for field, names := range aliases {
		var chain []int
		seen := map[int]bool{}
		for _, name := range names {
			if idx, ok := index[normalizeHeader(name)]; ok && !seen[idx] {
				chain = append(chain, idx)
				seen[idx] = true
			}
		}
		if len(chain) > 0 {
			out[field] = chain
		}
	}
	return out
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if normalized == "" {
			continue
		}
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func getValue(row []string, chain []int) string {
	for _, idx := range chain {
		if idx < 0 || idx >= len(row) {
			continue
		}
		if value := strings.TrimSpace(row[idx]); value != "" {
			return value
		}
	}
	return ""
}
