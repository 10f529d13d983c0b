package scope

// Tracker is the push/pop stack threaded through a single tree walk.
// It is owned by one walker and is not safe for concurrent use.
type Tracker struct {
	frames []Frame
}

func NewTracker() *Tracker {
	return &Tracker{frames: make([]Frame, 0, 8)}
}

// Push enters the body of a scope-introducing construct.
func (t *Tracker) Push(f Frame) {
	t.frames = append(t.frames, f)
}

// Pop leaves the innermost scope. Popping an empty tracker is a walker
// bug and panics.
func (t *Tracker) Pop() Frame {
	if len(t.frames) == 0 {
		panic("scope: pop on empty tracker")
	}
	f := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	return f
}

// Current returns a copy of the current path.
func (t *Tracker) Current() Path {
	return Path(t.frames).Clone()
}

func (t *Tracker) Depth() int { return len(t.frames) }
