package core

// Timer is a scheduled callback. The scheduler runs only from the main
// loop (RunTasks), never from an interrupt, so handlers may send responses.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var timerList *Timer

// timerBefore compares clock values across a wrap.
func timerBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ScheduleTimer queues t at t.WakeTime. A timer already queued is moved.
func ScheduleTimer(t *Timer) {
	CancelTimer(t)
	insertTimer(t)
}

// CancelTimer removes t if it is queued.
func CancelTimer(t *Timer) {
	for p := &timerList; *p != nil; p = &(*p).Next {
		if *p == t {
			*p = t.Next
			t.Next = nil
			return
		}
	}
}

func insertTimer(t *Timer) {
	p := &timerList
	for *p != nil && !timerBefore(t.WakeTime, (*p).WakeTime) {
		p = &(*p).Next
	}
	t.Next = *p
	*p = t
}

// ProcessTimers runs every timer due at now. A handler that returns
// SF_RESCHEDULE has set its next WakeTime.
func ProcessTimers(now uint32) {
	for timerList != nil && !timerBefore(now, timerList.WakeTime) {
		t := timerList
		timerList = t.Next
		t.Next = nil
		if t.Handler(t) == SF_RESCHEDULE {
			insertTimer(t)
		}
	}
}

func resetTimers() {
	for timerList != nil {
		t := timerList
		timerList = t.Next
		t.Next = nil
	}
}
