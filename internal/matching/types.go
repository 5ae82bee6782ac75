package matching

// MatchClass is how well a scope item lines up with an offered service.
type MatchClass string

const (
	ClassFull    MatchClass = "full"
	ClassPartial MatchClass = "partial"
	ClassNone    MatchClass = "none"
)

// ParseMatchClass accepts the three known classes, case-insensitively.
func ParseMatchClass(s string) (MatchClass, bool) {
	switch MatchClass(lower(s)) {
	case ClassFull:
		return ClassFull, true
	case ClassPartial:
		return ClassPartial, true
	case ClassNone:
		return ClassNone, true
	default:
		return "", false
	}
}

// Source tells which path produced a match.
type Source string

const (
	SourceSemantic      Source = "semantic"
	SourceDeterministic Source = "deterministic"
)

// FallbackReason explains why a batch was matched deterministically.
type FallbackReason string

const (
	ReasonNone                FallbackReason = ""
	ReasonDisabled            FallbackReason = "disabled"
	ReasonProviderRateLimited FallbackReason = "provider_rate_limited"
	ReasonCircuitOpen         FallbackReason = "circuit_open"
	ReasonProviderError       FallbackReason = "provider_error"
	ReasonParseFailed         FallbackReason = "parse_failed"
	ReasonValidationFailed    FallbackReason = "validation_failed"
)

// ScopeMatch is the classification of one scope item.
type ScopeMatch struct {
	ScopeItem      string     `json:"scopeItem" mapstructure:"scopeItem"`
	MatchedService *string    `json:"matchedService" mapstructure:"matchedService"`
	MatchClass     MatchClass `json:"matchClass" mapstructure:"matchClass"`
	Confidence     float64    `json:"confidence" mapstructure:"confidence"`
	Reasoning      *string    `json:"reasoning,omitempty" mapstructure:"reasoning"`
	Source         Source     `json:"source,omitempty" mapstructure:"source"`
}

func strPtr(s string) *string {
	return &s
}
