// Package routing finds the best exact-input route for a trade and builds its calldata.
package routing

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"swapEngine/internal/model"
)

// Request describes an exact-input trade to route.
type Request struct {
	TokenIn     model.TokenDescriptor
	TokenOut    model.TokenDescriptor
	AmountIn    *big.Int
	SlippageBps uint32
	Deadline    time.Time
	// Recipient receives the output. Zero means the transaction sender.
	Recipient common.Address
}

// Route is the best route found for a Request.
type Route struct {
	AmountOut          *big.Int
	MinimumOut         *big.Int
	Legs               []model.RouteLeg
	GasEstimate        uint64
	GasPrice           *big.Int
	PriceImpactPercent string
	Payload            model.ExecutionPayload
}

// Router routes exact-input trades. Implementations return model.ErrNoRouteFound
// when no path can fill the trade.
type Router interface {
	Route(ctx context.Context, req Request) (*Route, error)
}

// TokenResolver resolves token metadata for route legs.
type TokenResolver interface {
	Resolve(ctx context.Context, address common.Address) model.TokenDescriptor
}
