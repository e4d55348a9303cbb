package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	l, err := New("debug", "development")
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))

	l, err = New("warn", "production")
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.WarnLevel))

	l, err = New("not-a-level", "development")
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestGet_Fallback(t *testing.T) {
	globalLogger = nil
	assert.NotNil(t, Get())

	require.NoError(t, Init("info", "development"))
	assert.Same(t, globalLogger, Get())
}

func TestGet_ConcurrentFallbackBuildsOneLogger(t *testing.T) {
	globalMu.Lock()
	globalLogger = nil
	globalMu.Unlock()

	const n = 16
	got := make([]*Logger, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = Get()
		}(i)
	}
	wg.Wait()

	for _, l := range got {
		assert.Same(t, got[0], l)
	}
}

func TestWithAndNamed(t *testing.T) {
	l := Nop().With("mint", "abc").Named("whale")
	assert.NotNil(t, l.SugaredLogger)
	l.Infow("discarded", "k", "v")
}
