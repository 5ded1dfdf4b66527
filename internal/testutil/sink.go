// Package testutil provides shared helpers for closure tests:
// a recording progress sink and small fixture algebras.
package testutil

import (
	"sync"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/closure"
)

// RecordingSink collects pass reports for later assertions.
//
// Thread-safety: all methods are safe for concurrent use. The engine
// delivers reports from a single goroutine, but tests may read while a
// run is in flight.
type RecordingSink struct {
	mu      sync.Mutex
	reports []closure.Report
}

// PassComplete implements closure.Sink.
func (s *RecordingSink) PassComplete(rep closure.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, rep)
}

// Reports returns a copy of the collected reports in delivery order.
func (s *RecordingSink) Reports() []closure.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]closure.Report(nil), s.reports...)
}

// Last returns the most recent report. The second return is false if
// no report has arrived yet.
func (s *RecordingSink) Last() (closure.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return closure.Report{}, false
	}
	return s.reports[len(s.reports)-1], true
}

// Reset discards collected reports for test reuse.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = nil
}
