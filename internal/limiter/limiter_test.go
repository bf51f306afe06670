package limiter

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlidingWindow_AdmitsUpToLimit(t *testing.T) {
	l := NewSlidingWindow(5, time.Second)
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.True(t, l.Admit("client", now.Add(time.Duration(i)*time.Millisecond)), "admission %d", i)
	}
	require.False(t, l.Admit("client", now.Add(6*time.Millisecond)))
}

func TestSlidingWindow_WindowSlides(t *testing.T) {
	l := NewSlidingWindow(5, time.Second)
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.True(t, l.Admit("client", base))
	}
	// Just inside the window: still blocked.
	require.False(t, l.Admit("client", base.Add(999*time.Millisecond)))
	// One full window after the burst the slots free up again.
	require.True(t, l.Admit("client", base.Add(1001*time.Millisecond)))
}

func TestSlidingWindow_HoldsForEveryPlacement(t *testing.T) {
	// Admissions spread across window boundaries must never exceed the
	// limit for any trailing interval, not just aligned ones.
	l := NewSlidingWindow(3, time.Second)
	base := time.Now()

	var admitted []time.Time
	for i := 0; i < 40; i++ {
		at := base.Add(time.Duration(i) * 130 * time.Millisecond)
		if l.Admit("client", at) {
			admitted = append(admitted, at)
		}
	}
	require.NotEmpty(t, admitted)

	for i := range admitted {
		count := 1
		for j := i + 1; j < len(admitted); j++ {
			if admitted[j].Sub(admitted[i]) < time.Second {
				count++
			}
		}
		require.LessOrEqual(t, count, 3, "window starting at admission %d", i)
	}
}

func TestSlidingWindow_RejectionNotRecorded(t *testing.T) {
	l := NewSlidingWindow(1, time.Second)
	base := time.Now()

	require.True(t, l.Admit("client", base))
	// A stream of rejected calls must not keep pushing the window out.
	for i := 1; i <= 9; i++ {
		l.Admit("client", base.Add(time.Duration(i)*100*time.Millisecond))
	}
	require.True(t, l.Admit("client", base.Add(1100*time.Millisecond)))
}

func TestSlidingWindow_IdentitiesIndependent(t *testing.T) {
	l := NewSlidingWindow(1, time.Second)
	now := time.Now()

	require.True(t, l.Admit("a", now))
	require.False(t, l.Admit("a", now))
	require.True(t, l.Admit("b", now))
}

func TestSlidingWindow_ForgetReleasesState(t *testing.T) {
	l := NewSlidingWindow(1, time.Second)
	now := time.Now()

	require.True(t, l.Admit("client", now))
	require.Equal(t, 1, l.Tracked())

	l.Forget("client")
	require.Equal(t, 0, l.Tracked())

	// Fresh state after forget: the previous admission is gone.
	require.True(t, l.Admit("client", now))
}

func TestSlidingWindow_ForgetUnknownIdentity(t *testing.T) {
	l := NewSlidingWindow(1, time.Second)
	l.Forget("never-seen")
	require.Equal(t, 0, l.Tracked())
}

func TestSlidingWindow_ConcurrentIdentities(t *testing.T) {
	l := NewSlidingWindow(5, time.Second)
	now := time.Now()

	var wg sync.WaitGroup
	results := make([]int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			identity := fmt.Sprintf("client-%d", n)
			for j := 0; j < 10; j++ {
				if l.Admit(identity, now.Add(time.Duration(j)*time.Millisecond)) {
					results[n]++
				}
			}
			l.Forget(identity)
		}(i)
	}
	wg.Wait()

	// Each identity gets exactly its own allowance regardless of the others.
	for n, admitted := range results {
		require.Equal(t, 5, admitted, "client-%d", n)
	}
	require.Equal(t, 0, l.Tracked())
}
