package util

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.uber.org/zap"
)

// TestInitLoggerReplacesGlobals 通过 zap.L() 打的日志必须落到同一个 Logger 上
func TestInitLoggerReplacesGlobals(t *testing.T) {
	InitLogger("info")

	assert.NotNil(t, Logger)
	assert.Same(t, Logger, zap.L())
	assert.True(t, Logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, Logger.Core().Enabled(zap.DebugLevel))
}

func TestInitLoggerBadLevelFallsBack(t *testing.T) {
	InitLogger("not-a-level")

	assert.NotNil(t, Logger)
	// 无法解析的级别退回 info
	assert.True(t, Logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, Logger.Core().Enabled(zap.DebugLevel))
}
