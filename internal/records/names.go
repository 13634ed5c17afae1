package records

import (
	"strings"
)

var namePunctuation = strings.NewReplacer(
	".", " ",
	",", " ",
	"-", " ",
	"(", " ",
	")", " ",
)

var legalSuffixes = map[string]bool{
	"inc":         true,
	"llc":         true,
	"ltd":         true,
	"corp":        true,
	"corporation": true,
	"sa":          true,
	"sas":         true,
	"spa":         true,
}

// NormalizeName produces the secondary matching key shared by churn client
// names and reactivation account names. Trailing legal-entity words are
// dropped one at a time, but a name is never reduced to nothing.
func NormalizeName(name string) string {
	value := strings.ToLower(strings.TrimSpace(name))
	value = namePunctuation.Replace(value)
	words := strings.Fields(value)
	for len(words) > 1 && legalSuffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
