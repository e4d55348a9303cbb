// Package whale detects single-transaction and windowed cumulative whale
// activity over a time-ordered stream of flows.
package whale

// entry is one flow inside a window.
type entry struct {
	time   int64
	amount int64
	ref    string
}

// SlidingWindow is a fixed-duration rolling accumulator (sum + count) over
// time-ordered entries. Entries are kept in a growable ring buffer: head is
// the oldest live entry, size the number of live entries.
//
// Entries must be added in non-decreasing time order; Expire only ever
// drops from the front.
type SlidingWindow struct {
	duration int64
	buf      []entry
	head     int
	size     int
	sum      int64
}

// Crossing describes the entry at which the oldest-first prefix sum of a
// window first reaches a threshold.
type Crossing struct {
	Ref   string // reference id of the crossing entry
	Time  int64  // time of the crossing entry
	Sum   int64  // prefix sum including the crossing entry
	Count int    // number of entries in the prefix
}

// NewSlidingWindow creates an empty window covering [now-duration, now].
func NewSlidingWindow(duration int64) *SlidingWindow {
	return &SlidingWindow{duration: duration}
}

// Duration returns the window length in seconds.
func (w *SlidingWindow) Duration() int64 {
	return w.duration
}

// Sum returns the running sum of live entries.
func (w *SlidingWindow) Sum() int64 {
	return w.sum
}

// Len returns the number of live entries.
func (w *SlidingWindow) Len() int {
	return w.size
}

// Expire removes all entries with time < now - duration.
func (w *SlidingWindow) Expire(now int64) {
	cutoff := now - w.duration
	for w.size > 0 {
		e := &w.buf[w.head]
		if e.time >= cutoff {
			break
		}
		w.sum -= e.amount
		*e = entry{}
		w.head = (w.head + 1) % len(w.buf)
		w.size--
	}
	if w.size == 0 {
		w.head = 0
	}
}

// Add appends an entry at the back of the window.
func (w *SlidingWindow) Add(time, amount int64, ref string) {
	if w.size == len(w.buf) {
		w.grow()
	}
	w.buf[(w.head+w.size)%len(w.buf)] = entry{time: time, amount: amount, ref: ref}
	w.size++
	w.sum += amount
}

// Crosses reports whether the running sum has reached threshold.
func (w *SlidingWindow) Crosses(threshold int64) bool {
	return w.sum >= threshold
}

// CrossingPoint replays entries oldest first and returns the first entry at
// which the prefix sum reaches threshold. Returns false when the window never
// reaches it.
func (w *SlidingWindow) CrossingPoint(threshold int64) (Crossing, bool) {
	var sum int64
	for i := 0; i < w.size; i++ {
		e := w.buf[(w.head+i)%len(w.buf)]
		sum += e.amount
		if sum >= threshold {
			return Crossing{Ref: e.ref, Time: e.time, Sum: sum, Count: i + 1}, true
		}
	}
	return Crossing{}, false
}

// grow doubles the backing buffer and unwraps the ring so head is zero.
func (w *SlidingWindow) grow() {
	n := len(w.buf) * 2
	if n == 0 {
		n = 4
	}
	buf := make([]entry, n)
	for i := 0; i < w.size; i++ {
		buf[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	w.buf = buf
	w.head = 0
}
