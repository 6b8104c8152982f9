package model

import "github.com/shopspring/decimal"

// PricePoint is one sample of a historical price series.
type PricePoint struct {
	Timestamp int64           `json:"timestamp"`
	Date      string          `json:"date"`
	Price     decimal.Decimal `json:"price"`
}
