package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorDailyLimit(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(BudgetConfig{DailyAnalyses: 20})
	g.now = clock.Now

	for i := 1; i <= 20; i++ {
		n, err := g.ReserveUserDailyAnalysis("user-7")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	_, err := g.ReserveUserDailyAnalysis("user-7")
	require.ErrorIs(t, err, ErrDailyLimitExceeded)

	_, err = g.ReserveUserDailyAnalysis("user-8")
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	n, err := g.ReserveUserDailyAnalysis("user-7")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGovernorAnalysisCaps(t *testing.T) {
	g := NewGovernor(BudgetConfig{MaxTokens: 1000, MaxQueries: 2, MaxOCRPages: 10})

	used, err := g.RegisterAnalysisUsage("rfp-1", Usage{Tokens: 600, Queries: 1})
	require.NoError(t, err)
	assert.Equal(t, Usage{Tokens: 600, Queries: 1}, used)

	_, err = g.RegisterAnalysisUsage("rfp-1", Usage{Tokens: 500, Queries: 1})
	require.ErrorIs(t, err, ErrBudgetExceeded)

	var budgetErr *BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "tokens", budgetErr.Resource)
	assert.Equal(t, 1100, budgetErr.Used)

	assert.Equal(t, Usage{Tokens: 600, Queries: 1}, g.AnalysisUsage("rfp-1"))

	used, err = g.RegisterAnalysisUsage("rfp-1", Usage{Tokens: 400, Queries: 1})
	require.NoError(t, err)
	assert.Equal(t, Usage{Tokens: 1000, Queries: 2}, used)

	used, err = g.RegisterAnalysisUsage("rfp-1", Usage{Queries: 1})
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "queries", budgetErr.Resource)
	assert.Equal(t, Usage{Tokens: 1000, Queries: 2}, used)
	assert.Equal(t, Usage{Tokens: 1000, Queries: 2}, g.AnalysisUsage("rfp-1"))

	_, err = g.RegisterAnalysisUsage("rfp-2", Usage{OCRPages: 11})
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "ocr_pages", budgetErr.Resource)

	g.Release("rfp-1")
	assert.Equal(t, Usage{}, g.AnalysisUsage("rfp-1"))
}

func TestGovernorReleaseDailyAnalysis(t *testing.T) {
	clock := newFakeClock()
	g := NewGovernor(BudgetConfig{DailyAnalyses: 1})
	g.now = clock.Now

	_, err := g.ReserveUserDailyAnalysis("user-7")
	require.NoError(t, err)
	_, err = g.ReserveUserDailyAnalysis("user-7")
	require.ErrorIs(t, err, ErrDailyLimitExceeded)

	g.ReleaseUserDailyAnalysis("user-7")
	n, err := g.ReserveUserDailyAnalysis("user-7")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// releasing more than was reserved never goes below zero
	g.ReleaseUserDailyAnalysis("user-7")
	g.ReleaseUserDailyAnalysis("user-7")
	n, err = g.ReserveUserDailyAnalysis("user-7")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	clock.Advance(24 * time.Hour)
	g.ReleaseUserDailyAnalysis("user-7")
	n, err = g.ReserveUserDailyAnalysis("user-7")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGovernorRejectsBadInput(t *testing.T) {
	g := NewGovernor(DefaultBudgetConfig())

	_, err := g.RegisterAnalysisUsage("rfp-1", Usage{Tokens: -1})
	require.Error(t, err)

	_, err = g.ReserveUserDailyAnalysis("  ")
	require.Error(t, err)
}

func TestGovernorZeroCapIsUnlimited(t *testing.T) {
	g := NewGovernor(BudgetConfig{})

	_, err := g.RegisterAnalysisUsage("rfp-1", Usage{Tokens: 1 << 30, Queries: 5000})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		_, err := g.ReserveUserDailyAnalysis("user")
		require.NoError(t, err)
	}
}
