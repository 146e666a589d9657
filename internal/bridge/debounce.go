package bridge

import "time"

// subject identifies one independently debounced concern. Each subject
// owns its own timer; re-arming one never affects another.
type subject string

const (
	// subjectChangeNotify coalesces inbound content-change events before
	// they reach the host's OnChange callback. Guards against flooding the
	// caller on every keystroke-equivalent guest event.
	subjectChangeNotify subject = "change-notify"

	// subjectReload coalesces outbound full-content reloads. Guards
	// against re-executing the guest's interpreter on every host-side
	// content edit.
	subjectReload subject = "reload"

	// subjectVariableUpdate coalesces outbound incremental variable
	// updates. Faster than reload: latency matters more than batching for
	// live-tunable parameters.
	subjectVariableUpdate subject = "variable-update"
)

const (
	changeNotifyDelay   = 500 * time.Millisecond
	reloadDelay         = 1000 * time.Millisecond
	variableUpdateDelay = 200 * time.Millisecond
)

// debounce arms the timer for a subject, cancelling any outstanding fire
// for the same subject. fn runs on the timer goroutine after the delay,
// unless the timer is re-armed or the session is disposed first. fn is
// responsible for its own session-state locking.
func (s *session) debounce(subj subject, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if prev, ok := s.timers[subj]; ok {
		prev.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A fire that lost the race against re-arm or dispose is stale.
		if s.disposed || s.timers[subj] != t {
			s.mu.Unlock()
			return
		}
		delete(s.timers, subj)
		s.mu.Unlock()
		fn()
	})
	s.timers[subj] = t
}

// cancelTimers stops every outstanding timer. Caller must hold s.mu.
func (s *session) cancelTimers() {
	for subj, t := range s.timers {
		t.Stop()
		delete(s.timers, subj)
	}
}
