package ratelimit

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindow_SlidingLimit(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	w := NewWindow(2, 10*time.Second)

	assert.True(t, w.Allow(base))
	assert.True(t, w.Allow(base.Add(time.Second)))

	ok, retry := w.Reserve(base.Add(2 * time.Second))
	assert.False(t, ok)
	assert.Equal(t, 8*time.Second, retry)

	assert.True(t, w.Allow(base.Add(10*time.Second+time.Millisecond)), "first event left the window")
}

func TestWindow_Defaults(t *testing.T) {
	w := NewWindow(0, 0)
	now := time.Now()
	assert.True(t, w.Allow(now))
	assert.False(t, w.Allow(now))
}

func TestKeyed_PerKey(t *testing.T) {
	now := time.Now()
	k := NewKeyed(1, time.Minute)

	ok, _ := k.Allow("10.0.0.1", now)
	assert.True(t, ok)
	ok, retry := k.Allow("10.0.0.1", now)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = k.Allow("10.0.0.2", now)
	assert.True(t, ok, "keys are independent")

	ok, _ = k.Allow("", now)
	assert.True(t, ok)
}

func TestKeyed_Disabled(t *testing.T) {
	var nilK *Keyed
	assert.False(t, nilK.Enabled())
	ok, _ := nilK.Allow("x", time.Now())
	assert.True(t, ok)

	k := NewKeyed(0, time.Minute)
	for i := 0; i < 10; i++ {
		ok, _ := k.Allow("x", time.Now())
		assert.True(t, ok)
	}
}

func TestKeyed_DropsIdleKeys(t *testing.T) {
	now := time.Now()
	k := NewKeyed(5, time.Second)

	for i := 0; i < gcEvery-1; i++ {
		k.Allow("ip-"+strconv.Itoa(i), now)
	}
	assert.Equal(t, gcEvery-1, k.Len())

	k.Allow("late", now.Add(time.Hour))
	assert.Equal(t, 1, k.Len())
}
