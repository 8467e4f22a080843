package scaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/migalsp/workschedule-operator/internal/schedule"
)

func utcAt(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func window(t *testing.T, start, end string) *schedule.Window {
	t.Helper()
	w, err := schedule.NewWindow(start, end, "UTC")
	require.NoError(t, err)
	return w
}

func TestDecideScenarios(t *testing.T) {
	office := window(t, "09:00", "17:00")

	tests := []struct {
		name     string
		policy   *schedule.Window
		now      time.Time
		current  int32
		saved    *int32
		expected Decision
	}{
		{"before window, running", office, utcAt(8, 59), 3, nil, Sleep(3)},
		{"window opens, asleep", office, utcAt(9, 0), 0, ptr.To[int32](3), Wake(3)},
		{"window closes, asleep", office, utcAt(17, 0), 0, ptr.To[int32](3), Wake(3)},
		{"in window, running", office, utcAt(12, 0), 3, ptr.To[int32](3), NoOp()},
		{"after window, running, stale save", office, utcAt(17, 1), 5, ptr.To[int32](2), Sleep(5)},
		{"outside window, asleep, never saved", office, utcAt(22, 0), 0, nil, NoOp()},
		{"outside window, asleep, saved", office, utcAt(22, 0), 0, ptr.To[int32](3), NoOp()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Decide(tt.policy, tt.now, tt.current, tt.saved))
		})
	}
}

func TestDecideRejects(t *testing.T) {
	t.Run("missing policy", func(t *testing.T) {
		d := Decide(nil, utcAt(10, 0), 3, nil)
		require.Equal(t, ActionReject, d.Action)
		require.ErrorIs(t, d.Reason, ErrPolicyNotFound)
	})

	t.Run("asleep in window without saved count", func(t *testing.T) {
		d := Decide(window(t, "09:00", "17:00"), utcAt(10, 0), 0, nil)
		require.Equal(t, ActionReject, d.Action)
		require.ErrorIs(t, d.Reason, ErrMissingSavedState)
	})

	t.Run("stored zero is not absence", func(t *testing.T) {
		d := Decide(window(t, "09:00", "17:00"), utcAt(10, 0), 0, ptr.To[int32](0))
		require.Equal(t, ActionReject, d.Action)
		require.ErrorIs(t, d.Reason, ErrInvalidSavedState)
		require.NotErrorIs(t, d.Reason, ErrMissingSavedState)
	})
}

func TestDecideInvalidWindowAlwaysRejects(t *testing.T) {
	for _, bounds := range [][2]string{{"17:00", "09:00"}, {"09:00", "09:00"}, {"23:00", "01:00"}} {
		policy := window(t, bounds[0], bounds[1])
		for minute := 0; minute < 24*60; minute += 7 {
			now := utcAt(minute/60, minute%60)
			for _, current := range []int32{0, 1, 4} {
				for _, saved := range []*int32{nil, ptr.To[int32](2)} {
					d := Decide(policy, now, current, saved)
					require.Equal(t, ActionReject, d.Action, "%v at %s", bounds, now.Format("15:04"))
					require.ErrorIs(t, d.Reason, ErrPolicyInvalid)
					require.ErrorIs(t, d.Reason, schedule.ErrInvalidWindow)
					require.False(t, d.Mutates())
				}
			}
		}
	}
}

func TestDecideProperties(t *testing.T) {
	policy := window(t, "09:00", "17:00")

	for minute := 0; minute < 24*60; minute++ {
		now := utcAt(minute/60, minute%60)
		inWindow := minute >= 9*60 && minute <= 17*60

		asleep := Decide(policy, now, 0, ptr.To[int32](4))
		awake := Decide(policy, now, 4, nil)

		if inWindow {
			require.Equal(t, Wake(4), asleep, now.Format("15:04"))
			require.Equal(t, NoOp(), awake, now.Format("15:04"))
		} else {
			require.Equal(t, NoOp(), asleep, now.Format("15:04"))
			require.Equal(t, Sleep(4), awake, now.Format("15:04"))
		}
	}
}

// apply mimics the mutation executor on an in-memory snapshot.
func apply(d Decision, current int32, saved *int32) (int32, *int32) {
	switch d.Action {
	case ActionSleep:
		return 0, ptr.To(d.Replicas)
	case ActionWake:
		return d.Replicas, saved
	}
	return current, saved
}

func TestDecideIdempotence(t *testing.T) {
	policy := window(t, "09:00", "17:00")
	starts := []struct {
		current int32
		saved   *int32
	}{
		{3, nil}, {3, ptr.To[int32](1)}, {0, ptr.To[int32](3)},
	}

	for minute := 0; minute < 24*60; minute += 13 {
		now := utcAt(minute/60, minute%60)
		for _, s := range starts {
			d := Decide(policy, now, s.current, s.saved)
			current, saved := apply(d, s.current, s.saved)
			again := Decide(policy, now, current, saved)
			require.Equal(t, NoOp(), again, "%s after %v", now.Format("15:04"), d)
		}
	}
}

func TestDecideUsesPolicyTimeZone(t *testing.T) {
	policy, err := schedule.NewWindow("09:00", "17:00", "America/New_York")
	require.NoError(t, err)

	// 13:30 UTC in March 2026 (after DST start on 8 March) is 09:30 in New York.
	now := time.Date(2026, 3, 10, 13, 30, 0, 0, time.UTC)
	require.Equal(t, Wake(2), Decide(policy, now, 0, ptr.To[int32](2)))

	// 12:30 UTC is 08:30 in New York.
	now = time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	require.Equal(t, Sleep(2), Decide(policy, now, 2, nil))
}

func TestDecisionString(t *testing.T) {
	require.Equal(t, "Sleep(3)", Sleep(3).String())
	require.Equal(t, "Wake(2)", Wake(2).String())
	require.Equal(t, "NoOp", NoOp().String())
	require.Equal(t, "Reject(policy not found)", Reject(ErrPolicyNotFound).String())
}
