package tradelog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "trades.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLogTradeAndRecent(t *testing.T) {
	l := openTestLog(t)

	entries := []domain.TradeLogEntry{
		{TsMs: 1000, Symbol: "AAA", Side: domain.TradeBuy, Qty: 10, Score: 80, PriceEst: 50, Reason: "entry", Broker: "alpaca", Mode: "running"},
		{TsMs: 2000, Symbol: "BBB", Side: domain.TradeSell, Qty: 5, Score: 40, PriceEst: 60, Reason: "score_exit", Broker: "alpaca", Mode: "running"},
	}
	for _, e := range entries {
		require.NoError(t, l.LogTrade(e))
	}

	recent, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// newest first
	assert.Equal(t, "BBB", recent[0].Symbol)
	assert.Equal(t, domain.TradeSell, recent[0].Side)
	assert.Equal(t, "AAA", recent[1].Symbol)
	assert.Equal(t, domain.TradeBuy, recent[1].Side)
}

func TestRecentRespectsLimit(t *testing.T) {
	l := openTestLog(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.LogTrade(domain.TradeLogEntry{
			TsMs: int64(1000 + i), Symbol: "AAA", Side: domain.TradeBuy, Qty: 1, Score: 80,
		}))
	}

	recent, err := l.Recent(2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestRecentEmptyDB(t *testing.T) {
	l := openTestLog(t)

	recent, err := l.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
