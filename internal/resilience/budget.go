package resilience

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// BudgetConfig caps usage. A zero cap disables that check.
type BudgetConfig struct {
	MaxTokens     int `mapstructure:"max-tokens"`
	MaxOCRPages   int `mapstructure:"max-ocr-pages"`
	MaxQueries    int `mapstructure:"max-queries"`
	DailyAnalyses int `mapstructure:"daily-analyses"`
}

// DefaultBudgetConfig returns the production caps.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		MaxTokens:     200_000,
		MaxOCRPages:   300,
		MaxQueries:    40,
		DailyAnalyses: 20,
	}
}

// Usage is an amount of consumed resources.
type Usage struct {
	Tokens   int `json:"tokensUsed"`
	OCRPages int `json:"ocrPagesUsed"`
	Queries  int `json:"queriesUsed"`
}

func (u Usage) add(o Usage) Usage {
	return Usage{Tokens: u.Tokens + o.Tokens, OCRPages: u.OCRPages + o.OCRPages, Queries: u.Queries + o.Queries}
}

type ledger struct {
	mu   sync.Mutex
	used Usage
}

// Governor tracks per-analysis ledgers and per-user daily counters.
type Governor struct {
	cfg BudgetConfig
	now func() time.Time

	mu      sync.Mutex
	ledgers map[string]*ledger
	day     string
	daily   map[string]int
}

// NewGovernor creates a governor with the given caps.
func NewGovernor(cfg BudgetConfig) *Governor {
	return &Governor{
		cfg:     cfg,
		now:     time.Now,
		ledgers: make(map[string]*ledger),
		daily:   make(map[string]int),
	}
}

// RegisterAnalysisUsage adds u to the ledger of analysisID and returns the new
// totals. When any total would go over its cap nothing is recorded, the
// current totals are returned with a *BudgetError and the caller must abort
// the analysis.
func (g *Governor) RegisterAnalysisUsage(analysisID string, u Usage) (Usage, error) {
	if u.Tokens < 0 || u.OCRPages < 0 || u.Queries < 0 {
		return Usage{}, fmt.Errorf("negative usage for analysis %q: %+v", analysisID, u)
	}

	l := g.ledger(analysisID)

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.used.add(u)

	switch {
	case exceeds(next.Tokens, g.cfg.MaxTokens):
		return l.used, &BudgetError{Resource: "tokens", Used: next.Tokens, Cap: g.cfg.MaxTokens}
	case exceeds(next.OCRPages, g.cfg.MaxOCRPages):
		return l.used, &BudgetError{Resource: "ocr_pages", Used: next.OCRPages, Cap: g.cfg.MaxOCRPages}
	case exceeds(next.Queries, g.cfg.MaxQueries):
		return l.used, &BudgetError{Resource: "queries", Used: next.Queries, Cap: g.cfg.MaxQueries}
	}

	l.used = next
	return l.used, nil
}

// AnalysisUsage returns the totals recorded for analysisID.
func (g *Governor) AnalysisUsage(analysisID string) Usage {
	g.mu.Lock()
	l, ok := g.ledgers[analysisID]
	g.mu.Unlock()
	if !ok {
		return Usage{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// Release drops the ledger of a finished analysis.
func (g *Governor) Release(analysisID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.ledgers, analysisID)
}

// ReserveUserDailyAnalysis counts one analysis against the user's allowance
// for the current UTC day. Once the allowance is spent the reservation is
// refused and the counter stays put.
func (g *Governor) ReserveUserDailyAnalysis(userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}

	today := g.now().UTC().Format(time.DateOnly)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.day != today {
		g.day = today
		g.daily = make(map[string]int)
	}

	next := g.daily[userID] + 1
	if exceeds(next, g.cfg.DailyAnalyses) {
		return g.daily[userID], fmt.Errorf("%w: user %q reached %d analyses on %s", ErrDailyLimitExceeded, userID, g.cfg.DailyAnalyses, today)
	}
	g.daily[userID] = next
	return next, nil
}

// ReleaseUserDailyAnalysis gives back one reservation made today by
// ReserveUserDailyAnalysis. Reservations from an earlier day are already gone.
func (g *Governor) ReleaseUserDailyAnalysis(userID string) {
	userID = strings.TrimSpace(userID)
	today := g.now().UTC().Format(time.DateOnly)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.day != today || g.daily[userID] == 0 {
		return
	}
	g.daily[userID]--
}

// Reset clears every ledger and daily counter.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ledgers = make(map[string]*ledger)
	g.daily = make(map[string]int)
	g.day = ""
}

func (g *Governor) ledger(analysisID string) *ledger {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.ledgers[analysisID]
	if !ok {
		l = &ledger{}
		g.ledgers[analysisID] = l
	}
	return l
}

func exceeds(used, limit int) bool {
	return limit > 0 && used > limit
}
