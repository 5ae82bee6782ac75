package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/apierr"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/matching"
	"github.com/spigell/rfp-evaluator/internal/resilience"
	"github.com/spigell/rfp-evaluator/internal/scope"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

// SchemaVersion stamps every envelope and result.
const SchemaVersion = "1.0"

const anonymousCaller = "anonymous"

// Config groups the tunables of a Service.
type Config struct {
	Matching          matching.Config
	RateLimit         resilience.RateLimitConfig
	ProviderRateLimit resilience.RateLimitConfig
	Circuit           resilience.CircuitConfig
	Budget            resilience.BudgetConfig
	MinSegmentLength  int
	MaxLogLength      int
}

// Caller identifies who issued a request.
type Caller struct {
	// ID keys the per-caller rate limiter.
	ID string
	// UserID, when set, is charged one analysis against the daily allowance.
	UserID    string
	RequestID string
	TraceID   string
}

// Envelope wraps every operation result.
type Envelope struct {
	RequestID     string        `json:"requestId"`
	TraceID       string        `json:"traceId"`
	SchemaVersion string        `json:"schemaVersion"`
	DurationMs    int64         `json:"durationMs"`
	Warnings      []string      `json:"warnings"`
	PartialResult bool          `json:"partialResult"`
	Data          any           `json:"data"`
	Error         *apierr.Error `json:"error"`
}

// Service owns the state shared by concurrent analyses: the taxonomy cache,
// both rate limiters, the provider circuits and the budget ledgers.
type Service struct {
	taxonomy        *taxonomy.Loader
	limiter         *resilience.Limiter
	providerLimiter *resilience.Limiter
	breakers        *resilience.Breakers
	governor        *resilience.Governor
	segmenter       *scope.Segmenter
	matcher         *matching.Matcher
	logger          *zap.Logger

	now   func() time.Time
	newID func() string
}

// New builds a service. A nil generator makes matching fully deterministic.
func New(cfg Config, loader *taxonomy.Loader, generator ai.Generator, l *zap.Logger) *Service {
	l = logger.OrNop(l)
	if loader == nil {
		loader = taxonomy.NewLoader("", 0, l)
	}

	providerCfg := cfg.ProviderRateLimit
	if providerCfg.Capacity <= 0 {
		providerCfg = resilience.RateLimitConfig{Capacity: 30, RefillPerSecond: 2}
	}

	s := &Service{
		taxonomy:        loader,
		limiter:         resilience.NewLimiter(cfg.RateLimit),
		providerLimiter: resilience.NewLimiter(providerCfg),
		breakers:        resilience.NewBreakers(cfg.Circuit, l),
		governor:        resilience.NewGovernor(cfg.Budget),
		segmenter:       scope.NewSegmenter(cfg.MinSegmentLength, l),
		logger:          l,
		now:             time.Now,
		newID:           uuid.NewString,
	}

	semantic := matching.NewSemantic(generator, matching.Guards{
		Limiter:  s.providerLimiter,
		Breakers: s.breakers,
		Governor: s.governor,
	}, l, cfg.MaxLogLength)
	s.matcher = matching.NewMatcher(cfg.Matching, semantic, l)

	return s
}

// Reset clears every piece of shared state.
func (s *Service) Reset() {
	s.taxonomy.Reset()
	s.limiter.Reset()
	s.providerLimiter.Reset()
	s.breakers.Reset()
	s.governor.Reset()
}

// Release discards the budget ledger of a finished analysis.
func (s *Service) Release(analysisID string) {
	s.governor.Release(analysisID)
}

// Usage returns what an analysis consumed so far.
func (s *Service) Usage(analysisID string) resilience.Usage {
	return s.governor.AnalysisUsage(analysisID)
}

// Taxonomy returns the loaded catalog and its fingerprint.
func (s *Service) Taxonomy() ([]taxonomy.Entry, string, error) {
	entries, err := s.taxonomy.Load()
	if err != nil {
		return nil, "", err
	}
	version, err := s.taxonomy.Version()
	if err != nil {
		return nil, "", err
	}
	return entries, version, nil
}

// call carries one request through envelope bookkeeping.
type call struct {
	svc      *Service
	started  time.Time
	envelope Envelope
	logger   *zap.Logger
}

func (s *Service) begin(caller Caller, analysisID string) *call {
	requestID := strings.TrimSpace(caller.RequestID)
	if requestID == "" {
		requestID = s.newID()
	}
	traceID := strings.TrimSpace(caller.TraceID)
	if traceID == "" {
		traceID = s.newID()
	}

	return &call{
		svc:     s,
		started: s.now(),
		envelope: Envelope{
			RequestID:     requestID,
			TraceID:       traceID,
			SchemaVersion: SchemaVersion,
			Warnings:      []string{},
		},
		logger: logger.WithFields(s.logger, logger.AnalysisFields(analysisID, requestID, traceID)...),
	}
}

func (c *call) admit(caller Caller) error {
	key := strings.TrimSpace(caller.ID)
	if key == "" {
		key = anonymousCaller
	}
	return c.svc.limiter.Allow("caller:" + key)
}

func (c *call) fail(err error, stage apierr.Stage) Envelope {
	e := apierr.From(err, stage)
	c.logger.Warn("request failed",
		zap.String("code", string(e.Code)),
		zap.String("stage", string(e.Stage)),
		zap.Bool("retryable", e.Retryable),
		zap.Error(err),
	)
	c.envelope.Error = e
	c.envelope.Data = nil
	c.envelope.PartialResult = false
	return c.finish()
}

func (c *call) succeed(data any, warnings []string, partial bool) Envelope {
	c.envelope.Data = data
	c.envelope.Warnings = append(c.envelope.Warnings, warnings...)
	c.envelope.PartialResult = partial
	return c.finish()
}

func (c *call) finish() Envelope {
	c.envelope.DurationMs = c.svc.now().Sub(c.started).Milliseconds()
	return c.envelope
}

// timeoutOr maps a cancelled context to a timeout, keeping err otherwise.
func timeoutOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
