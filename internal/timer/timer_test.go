package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleTimerAccuracy(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	var mu sync.Mutex
	var fireTimes []time.Time
	h := m.CreateTimer(10*time.Millisecond, func(uint32, any) {
		mu.Lock()
		fireTimes = append(fireTimes, time.Now())
		mu.Unlock()
	}, nil, StateActive, true)
	require.NotEqual(t, InvalidHandle, h)

	time.Sleep(250 * time.Millisecond)
	require.NoError(t, m.StopTimer(h, false))

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(fireTimes), 15)
	within := 0
	for i := 1; i < len(fireTimes); i++ {
		d := fireTimes[i].Sub(fireTimes[i-1])
		if d >= 5*time.Millisecond && d <= 25*time.Millisecond {
			within++
		}
	}
	require.GreaterOrEqual(t, within, len(fireTimes)-2)
}

func TestMultiTimerIndependence(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	intervals := []time.Duration{10, 20, 40, 80} // ms
	var counts [4]int32
	for i, iv := range intervals {
		i := i
		m.CreateTimer(iv*time.Millisecond, func(uint32, any) {
			atomic.AddInt32(&counts[i], 1)
		}, nil, StateActive, true)
	}

	time.Sleep(500 * time.Millisecond)

	for i, iv := range intervals {
		got := atomic.LoadInt32(&counts[i])
		expected := int32(500 / int(iv))
		require.InDelta(t, expected, got, float64(expected)/3+2, "interval %dms", iv)
	}
}

func TestLateCreationShortFiresFirst(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	order := make(chan string, 2)
	m.CreateTimer(500*time.Millisecond, func(uint32, any) { order <- "long" }, nil, StateActive, false)
	time.Sleep(10 * time.Millisecond)
	m.CreateTimer(20*time.Millisecond, func(uint32, any) { order <- "short" }, nil, StateActive, false)

	first := <-order
	require.Equal(t, "short", first)
}

func TestOneShotFiresOnceThenInactive(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	fired := make(chan struct{}, 2)
	h := m.CreateTimer(15*time.Millisecond, func(uint32, any) { fired <- struct{}{} }, nil, StateActive, false)

	<-fired
	time.Sleep(50 * time.Millisecond)
	require.Len(t, fired, 0)
	require.False(t, m.IsTimerActive(h))
}

func TestRestartOneShotFiresAgain(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	fired := make(chan struct{}, 2)
	h := m.CreateTimer(15*time.Millisecond, func(uint32, any) { fired <- struct{}{} }, nil, StateActive, false)
	<-fired
	require.False(t, m.IsTimerActive(h))

	require.NoError(t, m.RestartTimer(h, false))
	require.True(t, m.IsTimerActive(h))
	<-fired
}

func TestDeleteBeforeExpirationNeverFires(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	fired := make(chan struct{}, 1)
	h := m.CreateTimer(200*time.Millisecond, func(uint32, any) { fired <- struct{}{} }, nil, StateActive, false)
	require.NoError(t, m.DeleteTimer(h))

	select {
	case <-fired:
		t.Fatal("deleted timer fired")
	case <-time.After(300 * time.Millisecond):
	}
	require.False(t, m.IsTimerActive(h))
}

func TestStopPreventsAutoResetFiring(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	fired := make(chan struct{}, 10)
	h := m.CreateTimer(15*time.Millisecond, func(uint32, any) { fired <- struct{}{} }, nil, StateActive, true)
	<-fired
	require.NoError(t, m.StopTimer(h, false))
	require.False(t, m.IsTimerActive(h))

	// drain anything already in flight, then assert no further fires.
	time.Sleep(10 * time.Millisecond)
	for len(fired) > 0 {
		<-fired
	}
	select {
	case <-fired:
		t.Fatal("stopped timer fired again")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestInvalidHandleOperationsAreNoops(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	require.Error(t, m.StopTimer(InvalidHandle, false))
	require.Error(t, m.RestartTimer(InvalidHandle, false))
	require.Error(t, m.DeleteTimer(InvalidHandle))
	require.False(t, m.IsTimerActive(InvalidHandle))
}

func TestHandlePoolExhaustion(t *testing.T) {
	m := NewManager(Config{Capacity: 2})
	defer m.Close()

	h1 := m.CreateTimer(time.Second, func(uint32, any) {}, nil, StateSuspended, false)
	h2 := m.CreateTimer(time.Second, func(uint32, any) {}, nil, StateSuspended, false)
	require.NotEqual(t, InvalidHandle, h1)
	require.NotEqual(t, InvalidHandle, h2)

	h3 := m.CreateTimer(time.Second, func(uint32, any) {}, nil, StateSuspended, false)
	require.Equal(t, InvalidHandle, h3)
}

func TestIntervalExceedingMaxRejected(t *testing.T) {
	m := NewManager(Config{MaxInterval: 100 * time.Millisecond})
	defer m.Close()

	h := m.CreateTimer(time.Second, func(uint32, any) {}, nil, StateActive, false)
	require.Equal(t, InvalidHandle, h)
}

func TestHandleRecycling(t *testing.T) {
	m := NewManager(Config{Capacity: 1})
	defer m.Close()

	h1 := m.CreateTimer(time.Second, func(uint32, any) {}, nil, StateSuspended, false)
	require.NotEqual(t, InvalidHandle, h1)
	require.NoError(t, m.DeleteTimer(h1))

	h2 := m.CreateTimer(time.Second, func(uint32, any) {}, nil, StateSuspended, false)
	require.NotEqual(t, InvalidHandle, h2)
}

func TestDumpActiveReportsLiveTimers(t *testing.T) {
	m := NewManager(Config{})
	defer m.Close()

	h := m.CreateTimer(time.Second, func(uint32, any) {}, nil, StateActive, true)
	snaps := m.DumpActive()
	require.Len(t, snaps, 1)
	require.Equal(t, h, snaps[0].Handle)
}
