package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRetryHook(t *testing.T) {
	m := New(prometheus.NewRegistry())

	hook := m.RetryHook("elevation")
	hook(1, errors.New("timeout"))
	hook(2, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RemoteRetries.WithLabelValues("elevation")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RemoteRetries.WithLabelValues("ways")))
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
