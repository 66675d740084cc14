package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFastHasNoDelayAndRewritesTimestamp(t *testing.T) {
	p := Fast{}
	base := time.Unix(0, 0)
	assert.Equal(t, time.Duration(0), p.Delay(base, base.Add(time.Second), false))
	assert.True(t, p.RewritesTimestamp())
}

func TestOriginalReproducesDeltasAndPreservesTimestamp(t *testing.T) {
	p := Original{}
	prev := time.Unix(10, 0)
	cur := prev.Add(250 * time.Millisecond)
	assert.Equal(t, time.Duration(0), p.Delay(prev, cur, true))
	assert.Equal(t, 250*time.Millisecond, p.Delay(prev, cur, false))
	assert.False(t, p.RewritesTimestamp())
}

func TestOriginalClampsNegativeDelta(t *testing.T) {
	p := Original{}
	prev := time.Unix(10, 0)
	cur := prev.Add(-time.Second)
	assert.Equal(t, time.Duration(0), p.Delay(prev, cur, false))
}

func TestFixedRateIgnoresTimestampsAndRewrites(t *testing.T) {
	p := FixedRate{PacketsPerSecond: 1000}
	base := time.Unix(0, 0)
	assert.Equal(t, time.Millisecond, p.Delay(base, base.Add(time.Hour), false))
	assert.True(t, p.RewritesTimestamp())
}

func TestSpeedMultiplierScalesDeltaAndPreservesTimestamp(t *testing.T) {
	p := SpeedMultiplier{Multiplier: 2}
	prev := time.Unix(10, 0)
	cur := prev.Add(200 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, p.Delay(prev, cur, false))
	assert.False(t, p.RewritesTimestamp())
}
