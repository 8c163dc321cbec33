package gateway

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// Response is a decoded JSON object returned by the ledger. Numbers are kept
// as json.Number so balances convert to decimal without float rounding.
type Response map[string]any

// Has reports whether the ledger returned the field at all.
func (r Response) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Bool reads a boolean field, accepting "true"/"false" strings.
func (r Response) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case json.Number:
		n, _ := v.Int64()
		return n != 0
	}
	return false
}

// String reads a field as text; numbers and booleans are formatted.
func (r Response) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// Decimal reads a numeric field; missing or malformed values are zero.
func (r Response) Decimal(key string) decimal.Decimal {
	switch v := r[key].(type) {
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err == nil {
			return d
		}
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	}
	return decimal.Zero
}

// Success is the ledger's "success" flag.
func (r Response) Success() bool {
	return r.Bool("success")
}

// Reason is the ledger's failure "reason".
func (r Response) Reason() string {
	return r.String("reason")
}

// Status is the ledger's "status" classification.
func (r Response) Status() string {
	return r.String("status")
}
