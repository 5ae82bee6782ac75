package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared by every component.
const (
	FieldProvider   = "ai_provider"
	FieldModel      = "ai_model"
	FieldAnalysisID = "analysis_id"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
)

// StringField is one key/value pair for StringFields.
type StringField struct {
	Key   string
	Value string
}

// StringFields turns pairs into zap.String fields. Keys and values are
// trimmed and pairs left blank on either side are skipped.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields returns a child of logger carrying fields, or logger itself when
// there is nothing to add. A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields names the provider and model behind a generator. Blank values
// produce no field.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields is WithFields with CommonFields.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// AnalysisFields describes one engine request.
func AnalysisFields(analysisID, requestID, traceID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldAnalysisID, Value: analysisID},
		StringField{Key: FieldRequestID, Value: requestID},
		StringField{Key: FieldTraceID, Value: traceID},
	)
}
