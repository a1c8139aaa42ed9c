package log_test

import (
	"context"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/effects/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLogEff_WritesLevelAndFields(t *testing.T) {
	ctx, end, logs := log.WithObservedEffectHandler(context.Background())
	defer end()

	log.LogEff(ctx, log.LogWarn, "retrain failed", map[string]interface{}{"training_size": 3})
	log.LogEff(ctx, log.LogDebug, "hit", nil)
	log.LogEff(ctx, "unknown", "defaults to info", nil)

	require.Eventually(t, func() bool { return logs.Len() == 3 }, time.Second, 5*time.Millisecond)

	entries := logs.AllUntimed()
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "retrain failed", entries[0].Message)
	assert.EqualValues(t, 3, entries[0].ContextMap()["training_size"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
}

func TestLogEff_PanicsWithoutHandler(t *testing.T) {
	assert.Panics(t, func() {
		log.LogEff(context.Background(), log.LogInfo, "nobody listens", nil)
	})
}

func TestTryLogEff(t *testing.T) {
	assert.False(t, log.TryLogEff(context.Background(), log.LogInfo, "dropped", nil))

	ctx, end, logs := log.WithObservedEffectHandler(context.Background())
	defer end()
	assert.True(t, log.TryLogEff(ctx, log.LogInfo, "kept", nil))
	require.Eventually(t, func() bool { return logs.FilterMessage("kept").Len() == 1 }, time.Second, 5*time.Millisecond)
}
