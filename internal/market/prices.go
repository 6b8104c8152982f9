package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"swapEngine/internal/model"
)

// DefaultPriceBaseURL is the public CoinGecko API.
const DefaultPriceBaseURL = "https://api.coingecko.com/api/v3"

// PriceClient fetches daily price history from a CoinGecko-compatible API.
type PriceClient struct {
	upstream
	baseURL string
	apiKey  string
}

type marketChartResponse struct {
	Prices [][]json.Number `json:"prices"`
}

// GetHistoricalPrices returns daily prices for assetID in currency over the last days, oldest first.
func (c *PriceClient) GetHistoricalPrices(ctx context.Context, assetID, currency string, days int) ([]model.PricePoint, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, fmt.Errorf("%w: asset id is required", model.ErrPriceHistoryUnavailable)
	}
	if currency == "" {
		currency = "usd"
	}
	if days <= 0 {
		days = 30
	}

	query := url.Values{}
	query.Set("vs_currency", strings.ToLower(currency))
	query.Set("days", strconv.Itoa(days))
	query.Set("interval", "daily")
	requestURL := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.baseURL, url.PathEscape(assetID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", model.ErrPriceHistoryUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrPriceHistoryUnavailable, assetID, err)
	}

	points, err := parseMarketChart(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrPriceHistoryUnavailable, assetID, err)
	}
	return points, nil
}

func parseMarketChart(body []byte) ([]model.PricePoint, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var chart marketChartResponse
	if err := dec.Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if chart.Prices == nil {
		return nil, fmt.Errorf("response has no prices")
	}

	points := make([]model.PricePoint, 0, len(chart.Prices))
	for i, pair := range chart.Prices {
		if len(pair) < 2 {
			return nil, fmt.Errorf("price %d: expected [timestamp, price]", i)
		}
		ts, err := decimal.NewFromString(pair[0].String())
		if err != nil {
			return nil, fmt.Errorf("price %d timestamp: %w", i, err)
		}
		price, err := decimal.NewFromString(pair[1].String())
		if err != nil {
			return nil, fmt.Errorf("price %d value: %w", i, err)
		}
		ms := ts.IntPart()
		points = append(points, model.PricePoint{
			Timestamp: ms,
			Date:      time.UnixMilli(ms).UTC().Format(time.DateOnly),
			Price:     price,
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points, nil
}
