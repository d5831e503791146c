package kafka

import (
	"context"
	"errors"
	"io"
	"testing"

	"ms-registration/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

func TestProducer_PublishCarriesTopicAndKey(t *testing.T) {
	w := new(MockWriter)
	p := &Producer{Writer: w, Logger: logger.NewConsoleLogger(io.Discard)}

	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 &&
			msgs[0].Topic == "registration.recorded" &&
			string(msgs[0].Key) == "ann@example.com" &&
			string(msgs[0].Value) == `{"ok":true}`
	})).Return(nil).Once()

	require.NoError(t, p.Publish(context.Background(), "registration.recorded", "ann@example.com", []byte(`{"ok":true}`)))
	w.AssertExpectations(t)
}

func TestProducer_PublishWrapsWriterError(t *testing.T) {
	w := new(MockWriter)
	p := &Producer{Writer: w, Logger: logger.NewConsoleLogger(io.Discard)}
	boom := errors.New("broker down")
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(boom)

	err := p.Publish(context.Background(), "event.reminder", "k", []byte("v"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "event.reminder")
}

func TestProducer_Close(t *testing.T) {
	w := new(MockWriter)
	w.On("Close").Return(nil).Once()
	p := &Producer{Writer: w}

	require.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestEnsureTopicsExist_RequiresBrokers(t *testing.T) {
	err := EnsureTopicsExist(context.Background(), nil, []string{"x"}, logger.NewConsoleLogger(io.Discard))
	assert.Error(t, err)
}
