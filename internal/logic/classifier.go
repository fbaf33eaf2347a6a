package logic

import "time"

// Classifier turns the sampled level of one channel into gestures.
// It is not safe for concurrent use; the poll loop owns it.
type Classifier struct {
	th     Thresholds
	st     ChannelState
	counts GestureCounts
}

// NewClassifier creates a classifier in the Idle state with cleared timers.
func NewClassifier(th Thresholds) *Classifier {
	return &Classifier{th: th}
}

// Step advances the state machine with the level sampled at now and returns
// the gestures resolved on this tick. At poll intervals below LongMin-DoubleGap
// at most one gesture is returned.
func (c *Classifier) Step(level bool, now time.Time) []Press {
	var out []Press

	// Flush an expired pending short before looking at the edge, so a release
	// on the first tick past the window cannot overwrite it.
	if p, ok := c.expire(now); ok {
		out = append(out, p)
	}

	if p, ok := c.edge(level, now); ok {
		out = append(out, p)
	}

	for _, p := range out {
		c.counts.Add(p.Gesture)
	}
	return out
}

func (c *Classifier) edge(level bool, now time.Time) (Press, bool) {
	prev := c.st.Level
	c.st.Level = level

	switch {
	case level && !prev && !c.st.Pressing:
		c.st.Pressing = true
		c.st.PressStart = now
		return Press{}, false

	case !level && c.st.Pressing:
		c.st.Pressing = false
		d := now.Sub(c.st.PressStart)
		return c.release(d, now)
	}
	return Press{}, false
}

func (c *Classifier) release(d time.Duration, now time.Time) (Press, bool) {
	switch {
	case d >= c.th.LongMin:
		c.st.DoublePending = false
		return Press{Gesture: GestureLong, Duration: d}, true

	case d <= c.th.ShortMax:
		if c.st.DoublePending && now.Sub(c.st.LastShortEnd) <= c.th.DoubleGap {
			c.st.DoublePending = false
			return Press{Gesture: GestureDouble, Duration: d}, true
		}
		c.st.DoublePending = true
		c.st.LastShortEnd = now
		c.st.LastShortDuration = d
		return Press{}, false
	}

	// Dead zone: neither short nor long.
	c.counts.Discarded++
	return Press{}, false
}

func (c *Classifier) expire(now time.Time) (Press, bool) {
	if !c.st.DoublePending || now.Sub(c.st.LastShortEnd) <= c.th.DoubleGap {
		return Press{}, false
	}
	c.st.DoublePending = false
	return Press{Gesture: GestureShort, Duration: c.st.LastShortDuration}, true
}

// State returns the observable classifier state.
func (c *Classifier) State() PressState {
	switch {
	case c.st.Pressing:
		return StatePressing
	case c.st.DoublePending:
		return StateAwaiting
	default:
		return StateIdle
	}
}

// Snapshot returns a copy of the channel's timing state.
func (c *Classifier) Snapshot() ChannelState {
	return c.st
}

// Counts returns the gestures resolved so far.
func (c *Classifier) Counts() GestureCounts {
	return c.counts
}
