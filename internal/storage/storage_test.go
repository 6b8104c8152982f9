package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapEngine/internal/model"
)

func testReceipt(hash string, at time.Time) model.SwapReceipt {
	return model.SwapReceipt{
		TransactionID:      hash,
		BlockNumber:        42,
		GasUsed:            120000,
		EffectiveGasPrice:  "1000000000",
		FromToken:          common.HexToAddress("0x01"),
		ToToken:            common.HexToAddress("0x02"),
		AmountIn:           "1000",
		EstimatedAmountOut: "990",
		ExecutedAt:         at,
	}
}

func TestJsonlJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	journal := NewJsonlJournal(path)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, journal.PutReceipt(ctx, testReceipt("0x1", base)))
	require.NoError(t, journal.PutTick(ctx, model.TickRecord{Strategy: "dca", StartedAt: base, Decision: model.DecisionSkip}))
	require.NoError(t, journal.PutReceipt(ctx, testReceipt("0x2", base.Add(time.Hour))))
	require.NoError(t, journal.PutReceipt(ctx, testReceipt("0x3", base.Add(2*time.Hour))))
	traded := testReceipt("0x4", base.Add(3*time.Hour))
	require.NoError(t, journal.PutTick(ctx, model.TickRecord{Strategy: "dca", StartedAt: base, Decision: model.DecisionBuy, Receipt: &traded}))

	all, err := journal.Receipts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "0x4", all[0].TransactionID)
	assert.Equal(t, "0x3", all[1].TransactionID)
	assert.Equal(t, testReceipt("0x1", base), all[3])

	limited, err := journal.Receipts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "0x3", limited[1].TransactionID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"tick"`)
}

func TestJsonlJournalMissingFile(t *testing.T) {
	journal := NewJsonlJournal(filepath.Join(t.TempDir(), "absent.jsonl"))
	receipts, err := journal.Receipts(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestJsonlJournalCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))
	_, err := NewJsonlJournal(path).Receipts(context.Background(), 0)
	require.ErrorContains(t, err, "journal line 1")
}

func TestStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state := NewStateFile(path)
	ctx := context.Background()

	_, ok, err := state.LoadState(ctx, "dca")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, state.SaveState(ctx, "dca", "19800"))
	require.NoError(t, state.SaveState(ctx, "other", "x"))

	reopened := NewStateFile(path)
	value, ok, err := reopened.LoadState(ctx, "dca")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "19800", value)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	require.Error(t, state.SaveState(ctx, "", "x"))
}

func TestStateFileRejectsDirectory(t *testing.T) {
	_, _, err := NewStateFile(t.TempDir()).LoadState(context.Background(), "dca")
	require.ErrorContains(t, err, "directory")
}

type failingJournal struct{ err error }

func (f failingJournal) PutReceipt(context.Context, model.SwapReceipt) error { return f.err }
func (f failingJournal) PutTick(context.Context, model.TickRecord) error     { return f.err }

func TestMultiJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	file := NewJsonlJournal(path)
	boom := errors.New("boom")
	journal := Multi(nil, failingJournal{err: boom}, file)
	ctx := context.Background()

	err := journal.PutReceipt(ctx, testReceipt("0x9", time.Unix(0, 0).UTC()))
	require.ErrorIs(t, err, boom)

	// The healthy journal still received the write.
	receipts, err := file.Receipts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	require.ErrorIs(t, journal.PutTick(ctx, model.TickRecord{Strategy: "dca"}), boom)
}
