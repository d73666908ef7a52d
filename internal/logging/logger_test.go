package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer Sync(logger)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel), "development logger should emit debug")
	logger.Named("crawl").Debug("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer Sync(logger)
	require.False(t, logger.Core().Enabled(zapcore.DebugLevel), "production logger should drop debug")
	logger.Info("production logger ready")
}

func TestSyncNil(t *testing.T) {
	t.Parallel()
	Sync(nil)
}
