/*
sweep.go - Overdue sweep

PURPOSE:
  The recurring pass that keeps stored status consistent with wall-clock time:
  every loan with status Active and dueDate < now transitions to Overdue.

IDEMPOTENCE CONTRACT:
  Running the sweep twice in succession transitions zero loans the second
  time. A loan's status after the sweep is Overdue iff it was Active
  beforehand and its due date has passed; Returned loans are untouched, which
  is what makes the sweep safe to race against a concurrent Return.

  The sweep is an explicit, separately invokable operation rather than a
  side effect of rendering listings; queries call it first instead of
  mutating as they read.

INVOCATION:
  - Service operations that read status run it inline (see service.go)
  - api.Sweeper runs it on a timer
  - POST /api/loans/sweep triggers it by hand
*/
package circulation

import (
	"context"
	"time"
)

// RunOverdueSweep reclassifies every stale Active loan as Overdue and returns
// the number of loans transitioned.
func (s *Service) RunOverdueSweep(ctx context.Context) (int, error) {
	return s.Loans.MarkOverdueDue(ctx, time.Now())
}
