/*
loan.go - Loan state machine

PURPOSE:
  Owns the lifecycle of a single loan record and the transition rules:

      Active ──(sweep: now > due)──▶ Overdue
      Active ──(renew)──▶ Active (due date extended)
      Active | Overdue ──(return)──▶ Returned (terminal)

  No transition leads out of Returned. Callers never assign Status directly;
  these functions are the only mutators.

RENEWAL RULES:
  A renewal extends DueDate from its current value (not from now), so renewing
  early does not shorten the loan. An Overdue loan may not be renewed - the
  borrower must return it first. The peer-overdue rule (the same borrower
  holding a different Overdue loan) needs the loan collection and is enforced
  by the Service, not here.

SEE ALSO:
  - sweep.go: Bulk Active -> Overdue reclassification
  - service.go: Orchestration, peer checks, persistence
*/
package circulation

import (
	"fmt"
	"time"
)

// Default loan terms, in days.
const (
	DefaultLoanDays    = 15
	DefaultRenewalDays = 15
)

// NewLoan constructs a loan in the Active state. loanDate is immutable from
// here on. A zero dueDate defaults to loanDate + DefaultLoanDays.
func NewLoan(bookID BookID, borrowerID BorrowerID, loanDate time.Time, dueDate time.Time) *Loan {
	if dueDate.IsZero() {
		dueDate = loanDate.AddDate(0, 0, DefaultLoanDays)
	}
	return &Loan{
		ID:         NewLoanID(),
		BookID:     bookID,
		BorrowerID: borrowerID,
		LoanDate:   loanDate,
		DueDate:    dueDate,
		Status:     StatusActive,
		CreatedAt:  loanDate,
		UpdatedAt:  loanDate,
	}
}

// MarkOverdue transitions Active -> Overdue when the due date has passed.
// It returns true if the transition fired. Calling it on a loan that is not
// Active, or not yet due, is a no-op; the sweep relies on that idempotence.
func (l *Loan) MarkOverdue(now time.Time) bool {
	if l.Status != StatusActive || !now.After(l.DueDate) {
		return false
	}
	l.Status = StatusOverdue
	l.UpdatedAt = now
	return true
}

// Return transitions Active|Overdue -> Returned. ReturnDate is set exactly
// once; a second call fails with InvalidTransition. A non-empty note is
// appended to the annotation log.
func (l *Loan) Return(now time.Time, note string) error {
	if l.Status != StatusActive && l.Status != StatusOverdue {
		return &TransitionError{LoanID: l.ID, From: l.Status, To: StatusReturned}
	}
	t := now
	l.ReturnDate = &t
	l.Status = StatusReturned
	l.UpdatedAt = now
	if note != "" {
		l.AppendNote(now, "returned: "+note)
	} else {
		l.AppendNote(now, "returned")
	}
	return nil
}

// Renew extends the due date of an Active loan by extraDays (default
// DefaultRenewalDays when <= 0) and records a renewal annotation. An Overdue
// loan is rejected with RenewalBlocked; the borrower must return it first.
func (l *Loan) Renew(now time.Time, extraDays int) error {
	if l.Status == StatusOverdue {
		return &RenewalBlockedError{LoanID: l.ID, Reason: ReasonLoanOverdue}
	}
	if l.Status != StatusActive {
		return &TransitionError{LoanID: l.ID, From: l.Status, To: StatusActive}
	}
	if extraDays <= 0 {
		extraDays = DefaultRenewalDays
	}
	l.DueDate = l.DueDate.AddDate(0, 0, extraDays)
	l.UpdatedAt = now
	l.AppendNote(now, fmt.Sprintf("renewed for %d days, due %s", extraDays, l.DueDate.Format("2006-01-02")))
	return nil
}

// IsOverdue reports whether the loan should be reclassified by the sweep.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == StatusActive && now.After(l.DueDate)
}

// Deletable reports whether catalog collaborators may delete the loan record.
// Active loans must be returned first; Overdue and Returned loans may go.
func (l *Loan) Deletable() bool { return l.Status != StatusActive }
