package events

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"

	"verifid/internal/platform/config"
	"verifid/internal/results"
)

type recordingValidator struct {
	keys []string
	err  error
}

func (v *recordingValidator) ValidateStoredSubject(_ context.Context, subjectKey string) (results.ComparisonResult, error) {
	v.keys = append(v.keys, subjectKey)
	return results.ComparisonResult{SubjectImageKey: subjectKey}, v.err
}

func newTestConsumer(validator Validator) *Consumer {
	return &Consumer{
		validator: validator,
		logger:    slog.New(slog.DiscardHandler),
		topic:     "subject-photo-uploads",
	}
}

func TestHandle_DispatchesValidation(t *testing.T) {
	validator := &recordingValidator{}
	consumer := newTestConsumer(validator)

	consumer.handle(context.Background(), &kgo.Record{
		Value: []byte(`{"bucket":"subject-photos","key":"DNI-12345678-user-20250101120000-attempt-1.jpg"}`),
	})

	assert.Equal(t, []string{"DNI-12345678-user-20250101120000-attempt-1.jpg"}, validator.keys)
}

func TestHandle_DiscardsMalformedEvent(t *testing.T) {
	validator := &recordingValidator{}
	consumer := newTestConsumer(validator)

	consumer.handle(context.Background(), &kgo.Record{Value: []byte(`not json`)})
	consumer.handle(context.Background(), &kgo.Record{Value: []byte(`{"bucket":"subject-photos"}`)})

	assert.Empty(t, validator.keys)
}

func TestHandle_ValidationErrorDoesNotPanic(t *testing.T) {
	validator := &recordingValidator{err: context.DeadlineExceeded}
	consumer := newTestConsumer(validator)

	consumer.handle(context.Background(), &kgo.Record{
		Value: []byte(`{"key":"DNI-12345678-user-20250101120000-attempt-1.jpg"}`),
	})

	assert.Len(t, validator.keys, 1)
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	_, err := NewConsumer(config.KafkaConfig{Topic: "subject-photo-uploads"}, &recordingValidator{}, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
