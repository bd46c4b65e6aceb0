/*
errors.go - Centralized error types for the circulation engine

PURPOSE:
  All error kinds in one place for consistency and discoverability. Every
  error here is recoverable and reported to the caller with its reason; none
  is fatal to the process.

ERROR CATEGORIES:
  1. Not-found errors - an id does not resolve
  2. Policy errors - eligibility, capacity, renewal rules
  3. Transition errors - illegal state changes (double return etc.)

USAGE:
  Callers branch with errors.Is / errors.As:

    if errors.Is(err, circulation.ErrCapacityExceeded) { ... }

    var ie *circulation.IneligibleError
    if errors.As(err, &ie) { log.Println(ie.Reason) }

SEE ALSO:
  - service.go: Produces these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package circulation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBookNotFound is returned when a book id does not resolve.
	ErrBookNotFound = errors.New("book not found")

	// ErrBorrowerNotFound is returned when a borrower id does not resolve.
	ErrBorrowerNotFound = errors.New("borrower not found")

	// ErrLoanNotFound is returned when a loan id does not resolve.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrCapacityExceeded is returned when a book has no free copies left.
	ErrCapacityExceeded = errors.New("no available copies")

	// ErrBorrowerIneligible is returned when the eligibility policy rejects
	// a new loan for the borrower.
	ErrBorrowerIneligible = errors.New("borrower ineligible")

	// ErrInvalidTransition is returned on an illegal state change, such as
	// returning a loan that is already Returned.
	ErrInvalidTransition = errors.New("invalid loan transition")

	// ErrRenewalBlocked is returned when a renewal is rejected by policy.
	ErrRenewalBlocked = errors.New("renewal blocked")

	// ErrLoanActive is returned when deleting a loan that is still Active.
	ErrLoanActive = errors.New("loan is active; return it first")

	// ErrValidation is returned on malformed input (ISBN, email, dates).
	// Input binding handles these before the engine is reached.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// POLICY REASONS
// =============================================================================

const (
	// ReasonOverdueLoans: borrower holds at least one Overdue loan.
	ReasonOverdueLoans = "borrower has overdue loans"

	// ReasonLoanLimit: borrower already holds the maximum number of Active loans.
	ReasonLoanLimit = "active loan limit reached"

	// ReasonLoanOverdue: the loan being renewed is itself Overdue.
	ReasonLoanOverdue = "loan is overdue"

	// ReasonPeerOverdue: the borrower holds a different Overdue loan.
	ReasonPeerOverdue = "borrower has other overdue loans"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CapacityError reports a create attempt against a book with no free copies.
type CapacityError struct {
	BookID      BookID
	Stock       int
	ActiveLoans int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("no available copies of book %s: stock %d, active loans %d",
		e.BookID, e.Stock, e.ActiveLoans)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// IneligibleError reports why a borrower may not open a new loan.
type IneligibleError struct {
	BorrowerID BorrowerID
	Reason     string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("borrower %s ineligible: %s", e.BorrowerID, e.Reason)
}

func (e *IneligibleError) Unwrap() error { return ErrBorrowerIneligible }

// RenewalBlockedError reports why a renewal was rejected.
type RenewalBlockedError struct {
	LoanID LoanID
	Reason string
}

func (e *RenewalBlockedError) Error() string {
	return fmt.Sprintf("renewal blocked for loan %s: %s", e.LoanID, e.Reason)
}

func (e *RenewalBlockedError) Unwrap() error { return ErrRenewalBlocked }

// TransitionError reports an illegal state change with both endpoints.
type TransitionError struct {
	LoanID LoanID
	From   LoanStatus
	To     LoanStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("loan %s: cannot transition %s -> %s", e.LoanID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrBorrowerNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}

// IsClientError returns true if the error is a policy or input rejection the
// caller can act on, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrBorrowerIneligible) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrRenewalBlocked) ||
		errors.Is(err, ErrLoanActive) ||
		errors.Is(err, ErrValidation)
}
