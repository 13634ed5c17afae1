package records

type ChurnRecord struct {
	ID                 string   `json:"id"`
	Synthetic          bool     `json:"syntheticId,omitempty"`
	ClientName         string   `json:"clientName"`
	ChurnDate          string   `json:"churnDate,omitempty"`
	DeactivationDate   string   `json:"deactivationDate,omitempty"`
	EstimatedChurnDate string   `json:"estimatedChurnDate,omitempty"`
	PrimaryChurnDate   string   `json:"primaryChurnDate,omitempty"`
	CreatedDate        string   `json:"createdDate,omitempty"`
	MonthsBeforeChurn  *int     `json:"monthsBeforeChurn,omitempty"`
	ChurnCategory      string   `json:"churnCategory"`
	ServiceCategory    string   `json:"serviceCategory"`
	Competitor         string   `json:"competitor,omitempty"`
	MRR                *float64 `json:"mrr,omitempty"`
	Price              *float64 `json:"price,omitempty"`
	Feedback           string   `json:"feedback,omitempty"`
}

func (r ChurnRecord) MRRValue() float64 {
	if r.MRR == nil {
		return 0
	}
	return *r.MRR
}

func (r ChurnRecord) PriceValue() float64 {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}

type ReactivationRecord struct {
	ID                  string  `json:"id"`
	Synthetic           bool    `json:"syntheticId,omitempty"`
	PlatformClientID    string  `json:"platformClientId,omitempty"`
	AccountName         string  `json:"accountName"`
	ReactivationDate    string  `json:"reactivationDate,omitempty"`
	ChurnDate           string  `json:"churnDate,omitempty"`
	MRR                 float64 `json:"mrr"`
	ReactivationReason  string  `json:"reactivationReason"`
	CustomerSuccessPath string  `json:"customerSuccessPath"`
}

// MatchKey is the identifier used against ChurnRecord.ID. Synthetic row ids
// never match anything, so they yield "".
func (r ReactivationRecord) MatchKey() string {
	if r.PlatformClientID != "" {
		return r.PlatformClientID
	}
	if r.Synthetic {
		return ""
	}
	return r.ID
}
