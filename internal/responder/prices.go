package responder

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PriceTable maps a lower-cased service name to its starting price in dollars.
type PriceTable map[string]float64

// DefaultPrices is used when PRICE_TABLE_JSON is not set.
func DefaultPrices() PriceTable {
	return PriceTable{
		"botox":       12,
		"filler":      650,
		"hydrafacial": 199,
	}
}

// ParsePriceTable decodes a JSON object of service to price. An empty string yields DefaultPrices.
func ParsePriceTable(raw string) (PriceTable, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultPrices(), nil
	}
	var parsed map[string]float64
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("responder: parse price table: %w", err)
	}
	out := make(PriceTable, len(parsed))
	for k, v := range parsed {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out, nil
}

// Lookup matches the service name case-insensitively.
func (p PriceTable) Lookup(service string) (float64, bool) {
	price, ok := p[strings.ToLower(strings.TrimSpace(service))]
	return price, ok
}
