package chain

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func newRPCServer(t *testing.T, handle func(method string) interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}
		var req rpcRequest
		if !assert.NoError(t, json.Unmarshal(body, &req)) {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req.Method),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

var minedReceipt = `{
	"type": "0x0",
	"status": "0x1",
	"cumulativeGasUsed": "0x5208",
	"logsBloom": "0x` + zeroBloom + `",
	"logs": [],
	"transactionHash": "0x00000000000000000000000000000000000000000000000000000000000000aa",
	"contractAddress": null,
	"gasUsed": "0x5208",
	"effectiveGasPrice": "0x3b9aca00",
	"blockHash": "0x00000000000000000000000000000000000000000000000000000000000000bb",
	"blockNumber": "0x10",
	"transactionIndex": "0x0"
}`


var zeroBloom = strings.Repeat("0", 512)

func TestClientBasics(t *testing.T) {
	srv := newRPCServer(t, func(method string) interface{} {
		switch method {
		case "eth_chainId":
			return "0x1"
		case "eth_blockNumber":
			return "0x2a"
		case "eth_gasPrice":
			return "0x3b9aca00"
		default:
			return nil
		}
	})

	ctx := context.Background()
	client, err := NewClient(ctx, srv.URL)
	require.NoError(t, err)
	defer client.Close()

	chainID, err := client.GetChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), chainID.Int64())

	block, err := client.LatestBlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), block)

	gasPrice, err := client.SuggestGasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), gasPrice.Int64())
}

func TestWaitReceiptPollsUntilMined(t *testing.T) {
	var polls atomic.Int32
	srv := newRPCServer(t, func(method string) interface{} {
		if method != "eth_getTransactionReceipt" {
			return nil
		}
		if polls.Add(1) < 3 {
			return nil
		}
		return json.RawMessage(minedReceipt)
	})

	ctx := context.Background()
	client, err := NewClient(ctx, srv.URL)
	require.NoError(t, err)
	defer client.Close()
	client.pollInterval = 5 * time.Millisecond

	receipt, err := client.WaitReceipt(ctx, common.HexToHash("0xaa"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Status)
	assert.Equal(t, uint64(21000), receipt.GasUsed)
	assert.Equal(t, int64(16), receipt.BlockNumber.Int64())
	assert.Equal(t, int32(3), polls.Load())
}

func TestWaitReceiptHonorsContext(t *testing.T) {
	srv := newRPCServer(t, func(string) interface{} { return nil })

	client, err := NewClient(context.Background(), srv.URL)
	require.NoError(t, err)
	defer client.Close()
	client.pollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = client.WaitReceipt(ctx, common.HexToHash("0xaa"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
