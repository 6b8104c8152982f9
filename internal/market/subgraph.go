package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"swapEngine/internal/model"
)

// DefaultSubgraphURL is the hosted Uniswap V3 subgraph.
const DefaultSubgraphURL = "https://api.thegraph.com/subgraphs/name/uniswap/uniswap-v3"

// DefaultTopPools is the page size used when GetTopPools receives no count.
const DefaultTopPools = 10

// maxTopPools is the subgraph's page size limit.
const maxTopPools = 1000

// ErrUnsupportedOrderField rejects top-pool orderings outside the whitelist.
var ErrUnsupportedOrderField = errors.New("unsupported order field")

var topPoolOrderFields = map[string]struct{}{
	"volumeUSD":           {},
	"totalValueLockedUSD": {},
	"feesUSD":             {},
	"txCount":             {},
	"liquidity":           {},
}

const poolAnalyticsQuery = `query PoolAnalytics($id: ID!) {
  pool(id: $id) {
    totalValueLockedUSD
    volumeUSD
    feesUSD
    poolDayData(first: 1, orderBy: date, orderDirection: desc) {
      date
      volumeUSD
      feesUSD
    }
  }
}`

const topPoolsQuery = `query TopPools($first: Int!, $orderBy: Pool_orderBy!) {
  pools(first: $first, orderBy: $orderBy, orderDirection: desc) {
    id
    token0 { id symbol decimals }
    token1 { id symbol decimals }
    feeTier
    liquidity
    volumeUSD
    feesUSD
    txCount
    totalValueLockedUSD
    token0Price
    token1Price
  }
}`

// PoolAnalytics is the indexer's view of a pool.
type PoolAnalytics struct {
	TotalValueLockedUSD string
	Volume24hUSD        string
	Fees24hUSD          string
}

// SubgraphClient queries a Uniswap V3 subgraph over GraphQL.
type SubgraphClient struct {
	upstream
	endpoint string
	apiKey   string
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// ValidOrderField reports whether field may be used to order top pools.
func ValidOrderField(field string) bool {
	_, ok := topPoolOrderFields[field]
	return ok
}

// PoolAnalytics returns TVL plus the most recent day's volume and fees for pool.
func (c *SubgraphClient) PoolAnalytics(ctx context.Context, pool common.Address) (PoolAnalytics, error) {
	var data struct {
		Pool *struct {
			TotalValueLockedUSD string `json:"totalValueLockedUSD"`
			VolumeUSD           string `json:"volumeUSD"`
			FeesUSD             string `json:"feesUSD"`
			PoolDayData         []struct {
				Date      int64  `json:"date"`
				VolumeUSD string `json:"volumeUSD"`
				FeesUSD   string `json:"feesUSD"`
			} `json:"poolDayData"`
		} `json:"pool"`
	}
	id := strings.ToLower(pool.Hex())
	if err := c.query(ctx, poolAnalyticsQuery, map[string]interface{}{"id": id}, &data); err != nil {
		return PoolAnalytics{}, err
	}
	if data.Pool == nil {
		return PoolAnalytics{}, fmt.Errorf("%w: pool %s not indexed", model.ErrIndexerUnavailable, id)
	}

	out := PoolAnalytics{
		TotalValueLockedUSD: orUnknown(data.Pool.TotalValueLockedUSD),
		Volume24hUSD:        model.Unknown,
		Fees24hUSD:          model.Unknown,
	}
	if len(data.Pool.PoolDayData) > 0 {
		day := data.Pool.PoolDayData[0]
		out.Volume24hUSD = orUnknown(day.VolumeUSD)
		out.Fees24hUSD = orUnknown(day.FeesUSD)
	}
	return out, nil
}

// TopPools returns up to count pools ordered descending by orderBy.
func (c *SubgraphClient) TopPools(ctx context.Context, count int, orderBy string) ([]model.TopPool, error) {
	if orderBy == "" {
		orderBy = "volumeUSD"
	}
	if !ValidOrderField(orderBy) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrderField, orderBy)
	}
	if count <= 0 {
		count = DefaultTopPools
	}
	if count > maxTopPools {
		count = maxTopPools
	}

	var data struct {
		Pools []model.TopPool `json:"pools"`
	}
	vars := map[string]interface{}{"first": count, "orderBy": orderBy}
	if err := c.query(ctx, topPoolsQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Pools == nil {
		return []model.TopPool{}, nil
	}
	return data.Pools, nil
}

func (c *SubgraphClient) query(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("%w: encode query: %w", model.ErrIndexerUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", model.ErrIndexerUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrIndexerUnavailable, err)
	}

	var resp graphqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: failed to parse response: %w", model.ErrIndexerUnavailable, err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("%w: graphql: %s", model.ErrIndexerUnavailable, strings.Join(msgs, "; "))
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("%w: empty data", model.ErrIndexerUnavailable)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%w: failed to parse data: %w", model.ErrIndexerUnavailable, err)
	}
	return nil
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return model.Unknown
	}
	return value
}
