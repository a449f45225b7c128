package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), logs
}

func TestNewGormLoggerDefaults(t *testing.T) {
	l := NewGormLogger(zap.NewNop(), gormlogger.Warn)

	assert.Equal(t, gormlogger.Warn, l.level)
	assert.Equal(t, 200*time.Millisecond, l.slowThreshold)
	assert.True(t, l.skipRecordNotFound)
}

func TestNewGormLoggerOptions(t *testing.T) {
	l := NewGormLogger(zap.NewNop(), gormlogger.Info,
		WithSlowThreshold(time.Second),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, time.Second, l.slowThreshold)
	assert.False(t, l.skipRecordNotFound)
}

func TestGormLoggerLogMode(t *testing.T) {
	l := NewGormLogger(zap.NewNop(), gormlogger.Warn)

	clone, ok := l.LogMode(gormlogger.Silent).(*GormLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Silent, clone.level)
	assert.Equal(t, gormlogger.Warn, l.level)
}

func TestGormLoggerLevelGating(t *testing.T) {
	l, logs := newObservedGormLogger(gormlogger.Error)
	ctx := context.Background()

	l.Info(ctx, "ignored")
	l.Warn(ctx, "ignored")
	l.Error(ctx, "kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestGormLoggerTrace(t *testing.T) {
	query := func() (string, int64) { return "SELECT * FROM sync_logs", 3 }

	t.Run("silent logs nothing", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Silent)
		l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("error is logged with fields", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Error)
		l.Trace(context.Background(), time.Now(), query, errors.New("boom"))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "query failed", entry.Message)
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		fields := entry.ContextMap()
		assert.Equal(t, "SELECT * FROM sync_logs", fields["sql"])
		assert.Equal(t, int64(3), fields["rows"])
	})

	t.Run("record not found is skipped by default", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Error)
		l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("record not found is logged when configured", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))
		l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("slow query is warned", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))
		l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "slow query", entry.Message)
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
	})

	t.Run("info level traces every query", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Info)
		l.Trace(context.Background(), time.Now(), query, nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "query", logs.All()[0].Message)
	})

	t.Run("request id from context is attached", func(t *testing.T) {
		l, logs := newObservedGormLogger(gormlogger.Info)
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
		l.Trace(ctx, time.Now(), query, nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "req-42", logs.All()[0].ContextMap()["request_id"])
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"bogus", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, MapGormLogLevel(tt.input))
		})
	}
}
