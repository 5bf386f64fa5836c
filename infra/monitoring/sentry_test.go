package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pailas/config"
	coremon "github.com/kilianp07/pailas/core/monitoring"
)

type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *captureTransport) Configure(sentry.ClientOptions) {}
func (t *captureTransport) Flush(time.Duration) bool       { return true }
func (t *captureTransport) Close()                         {}
func (t *captureTransport) SendEvent(e *sentry.Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestSentryMonitorCapturesWithTags(t *testing.T) {
	tr := &captureTransport{}
	m, err := newSentryMonitor(config.SentryConfig{DSN: "https://public@example.com/1", Environment: "test"}, tr)
	require.NoError(t, err)

	m.CaptureException(errors.New("store down"), map[string]string{"operation": "assign"})
	m.CaptureException(nil, nil)
	m.Flush(time.Second)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.events, 1)
	ev := tr.events[0]
	assert.Equal(t, "assign", ev.Tags["operation"])
	assert.Equal(t, "pailas", ev.Tags["service"])
	assert.Equal(t, "test", ev.Environment)
	require.NotEmpty(t, ev.Exception)
	assert.Equal(t, "store down", ev.Exception[0].Value)
}

func TestSentryMonitorRecoverRepanics(t *testing.T) {
	tr := &captureTransport{}
	m, err := newSentryMonitor(config.SentryConfig{DSN: "https://public@example.com/1"}, tr)
	require.NoError(t, err)

	assert.Panics(t, func() {
		defer m.Recover()
		panic("boom")
	})
	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Len(t, tr.events, 1)
}
