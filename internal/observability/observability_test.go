package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/couchcryptid/glof-monitor/internal/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		level string
		debug bool
		warn  bool
	}{
		{level: "debug", debug: true, warn: true},
		{level: "info", debug: false, warn: true},
		{level: "error", debug: false, warn: false},
		{level: "bogus", debug: false, warn: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: "text"})
			ctx := context.Background()
			assert.Equal(t, tt.debug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.warn, logger.Enabled(ctx, slog.LevelWarn))
			assert.Same(t, logger, slog.Default())
		})
	}
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.GagePolls.WithLabelValues("15052500", "online").Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.GagePolls.WithLabelValues("15052500", "online")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.GagePolls.WithLabelValues("15052500", "online")), 0)
}
