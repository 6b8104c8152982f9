package bot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Strategy names, used in logs, metrics and the journal.
const (
	NamePriceThreshold         = "price_threshold"
	NameDollarCostAverage      = "dca"
	NameMovingAverageCrossover = "moving_average"
)

// Defaults applied by the strategies when a field is left zero.
const (
	DefaultTradingHour = 12
	DefaultShortPeriod = 7
	DefaultLongPeriod  = 25
	DefaultCurrency    = "usd"
)

// DefaultTradingDays are the days of month a DollarCostAverage trades on.
var DefaultTradingDays = []int{1, 15}

// Strategy is one of PriceThreshold, DollarCostAverage or MovingAverageCrossover.
type Strategy interface {
	Name() string
	Validate() error
	strategy()
}

// PriceThreshold sells Base when 1 Base quotes at or above MinPrice and buys
// Base when it quotes at or below MaxPrice. Sell is checked first.
type PriceThreshold struct {
	Base           common.Address
	Quote          common.Address
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	AmountPerTrade decimal.Decimal
}

func (PriceThreshold) Name() string { return NamePriceThreshold }
func (PriceThreshold) strategy()    {}

func (s PriceThreshold) Validate() error {
	if s.Base == s.Quote {
		return fmt.Errorf("%s: base and quote tokens must differ", s.Name())
	}
	if s.MinPrice == nil && s.MaxPrice == nil {
		return fmt.Errorf("%s: min price or max price is required", s.Name())
	}
	return validateAmount(s.Name(), s.AmountPerTrade)
}

// DollarCostAverage trades a fixed amount at TradingHour (UTC) on each of TradingDays.
type DollarCostAverage struct {
	From           common.Address
	To             common.Address
	AmountPerTrade decimal.Decimal
	TradingDays    []int
	// TradingHour is the UTC hour to trade in; nil means DefaultTradingHour.
	TradingHour *int
}

func (DollarCostAverage) Name() string { return NameDollarCostAverage }
func (DollarCostAverage) strategy()    {}

func (s DollarCostAverage) Validate() error {
	if s.From == s.To {
		return fmt.Errorf("%s: from and to tokens must differ", s.Name())
	}
	for _, day := range s.TradingDays {
		if day < 1 || day > 31 {
			return fmt.Errorf("%s: trading day %d out of range", s.Name(), day)
		}
	}
	if s.TradingHour != nil && (*s.TradingHour < 0 || *s.TradingHour > 23) {
		return fmt.Errorf("%s: trading hour %d out of range", s.Name(), *s.TradingHour)
	}
	return validateAmount(s.Name(), s.AmountPerTrade)
}

func (s DollarCostAverage) days() []int {
	if len(s.TradingDays) == 0 {
		return DefaultTradingDays
	}
	return s.TradingDays
}

func (s DollarCostAverage) hour() int {
	if s.TradingHour == nil {
		return DefaultTradingHour
	}
	return *s.TradingHour
}

// MovingAverageCrossover buys Base on a bullish short/long SMA crossover of
// AssetID's daily price and sells on a bearish one.
type MovingAverageCrossover struct {
	AssetID        string
	Currency       string
	ShortPeriod    int
	LongPeriod     int
	Base           common.Address
	Quote          common.Address
	AmountPerTrade decimal.Decimal
}

func (MovingAverageCrossover) Name() string { return NameMovingAverageCrossover }
func (MovingAverageCrossover) strategy()    {}

func (s MovingAverageCrossover) Validate() error {
	if s.AssetID == "" {
		return fmt.Errorf("%s: asset id is required", s.Name())
	}
	if s.Base == s.Quote {
		return fmt.Errorf("%s: base and quote tokens must differ", s.Name())
	}
	short, long := s.periods()
	if short <= 0 || long <= short {
		return fmt.Errorf("%s: need 0 < short period (%d) < long period (%d)", s.Name(), short, long)
	}
	return validateAmount(s.Name(), s.AmountPerTrade)
}

func (s MovingAverageCrossover) periods() (int, int) {
	short, long := s.ShortPeriod, s.LongPeriod
	if short == 0 {
		short = DefaultShortPeriod
	}
	if long == 0 {
		long = DefaultLongPeriod
	}
	return short, long
}

func (s MovingAverageCrossover) currency() string {
	if s.Currency == "" {
		return DefaultCurrency
	}
	return s.Currency
}

func validateAmount(name string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%s: amount per trade must be positive", name)
	}
	return nil
}
