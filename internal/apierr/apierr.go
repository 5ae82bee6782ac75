package apierr

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/rfp-evaluator/internal/resilience"
	"github.com/spigell/rfp-evaluator/internal/taxonomy"
)

// Code is a canonical error code.
type Code string

const (
	CodeValidation             Code = "validation_error"
	CodeInternal               Code = "internal_error"
	CodeRateLimited            Code = "rate_limited"
	CodeTimeout                Code = "timeout"
	CodeUpstreamRateLimited    Code = "upstream_rate_limited"
	CodeUpstreamUnavailable    Code = "upstream_unavailable"
	CodeSchemaValidationFailed Code = "schema_validation_failed"
	CodeBudgetExceeded         Code = "budget_exceeded"
	CodeDailyLimitExceeded     Code = "daily_limit_exceeded"
)

// Stage names where a request failed.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageTaxonomy  Stage = "taxonomy"
	StageAdmission Stage = "admission"
	StageBudget    Stage = "budget"
	StageMatching  Stage = "matching"
	StageScoring   Stage = "scoring"
)

// Error is the error shape returned to callers.
type Error struct {
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Stage     Stage          `json:"stage"`
	Details   map[string]any `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error without a cause.
func New(code Code, stage Stage, retryable bool, format string, args ...any) *Error {
	return &Error{Code: code, Stage: stage, Retryable: retryable, Message: fmt.Sprintf(format, args...)}
}

// Validation is a shorthand for rejected input.
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, StageValidate, false, format, args...)
}

// WithDetail returns e with one more detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// From maps err to the canonical shape. Errors that already are *Error are
// returned as they are; stage is used for anything unrecognised.
func From(err error, stage Stage) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	e := &Error{Message: err.Error(), Stage: stage, cause: err}

	var budget *resilience.BudgetError
	var status *resilience.StatusError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Code, e.Retryable = CodeTimeout, true
	case errors.Is(err, context.Canceled):
		e.Code, e.Retryable = CodeTimeout, false
	case errors.Is(err, taxonomy.ErrCatalogTooSmall):
		e.Code, e.Retryable, e.Stage = CodeInternal, true, StageTaxonomy
	case errors.Is(err, resilience.ErrRateLimited):
		e.Code, e.Retryable, e.Stage = CodeRateLimited, true, StageAdmission
	case errors.Is(err, resilience.ErrDailyLimitExceeded):
		e.Code, e.Retryable, e.Stage = CodeDailyLimitExceeded, true, StageAdmission
	case errors.As(err, &budget):
		e.Code, e.Retryable, e.Stage = CodeBudgetExceeded, false, StageBudget
		e.Details = map[string]any{"resource": budget.Resource, "used": budget.Used, "cap": budget.Cap}
	case errors.Is(err, resilience.ErrBudgetExceeded):
		e.Code, e.Retryable, e.Stage = CodeBudgetExceeded, false, StageBudget
	case errors.Is(err, resilience.ErrCircuitOpen):
		e.Code, e.Retryable = CodeUpstreamUnavailable, true
	case errors.As(err, &status) && status.StatusCode == 429:
		e.Code, e.Retryable = CodeUpstreamRateLimited, true
	case errors.As(err, &status) || errors.Is(err, resilience.ErrMaxAttempts):
		e.Code, e.Retryable = CodeUpstreamUnavailable, true
	default:
		e.Code, e.Retryable = CodeInternal, false
	}

	return e
}
