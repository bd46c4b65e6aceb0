/*
service.go - Circulation operations exposed to the CRUD/report layer

PURPOSE:
  Orchestrates the engine's pieces into the operations external collaborators
  call:

    CreateLoan    eligibility -> availability -> construct Active loan
    ReturnLoan    Active|Overdue -> Returned
    RenewLoan     extend due date, peer-overdue check
    RunOverdueSweep  reclassify stale Active loans
    ListLoans / AvailableCopies / CanBorrow / delete gates

CONCURRENCY:
  The check-then-act sequence in CreateLoan (read free copies, read
  eligibility, insert) is a classic race: two concurrent requests for the last
  copy of a book must not both succeed. The service holds a per-book mutex
  across that whole sequence. Return and Renew serialize per loan the same
  way. The sweep needs no lock here: stores transition Active -> Overdue
  atomically per loan, so a sweep racing a Return is a no-op on the returned
  loan.

SWEEP DISCIPLINE:
  Every operation that depends on current status (availability, eligibility,
  filtered listings, renewal) runs the sweep first, so decisions never rest on
  stale Active rows. The sweep is idempotent, so running it eagerly is safe.

SEE ALSO:
  - loan.go: The transition rules this service drives
  - availability.go, eligibility.go: The policy reads
*/
package circulation

import (
	"context"
	"sync"
	"time"
)

// Service wires the engine's policies to a pair of stores. Create with
// NewService; the zero value is not usable.
type Service struct {
	Loans   LoanStore
	Catalog CatalogStore

	avail *Availability
	elig  *Eligibility

	bookLocks lockTable
	loanLocks lockTable
}

// NewService creates a circulation service over the given stores.
func NewService(loans LoanStore, catalog CatalogStore) *Service {
	return &Service{
		Loans:   loans,
		Catalog: catalog,
		avail:   &Availability{Loans: loans, Catalog: catalog},
		elig:    &Eligibility{Loans: loans, Catalog: catalog},
	}
}

// =============================================================================
// LOAN LIFECYCLE
// =============================================================================

// CreateLoan opens a new Active loan of bookID to borrowerID. A zero dueDate
// defaults to now + DefaultLoanDays. Fails with ErrBookNotFound,
// ErrBorrowerNotFound, BorrowerIneligible (carrying the reason), or
// CapacityExceeded. On failure no state is mutated.
func (s *Service) CreateLoan(ctx context.Context, bookID BookID, borrowerID BorrowerID, dueDate time.Time) (*Loan, error) {
	now := time.Now()
	if _, err := s.Loans.MarkOverdueDue(ctx, now); err != nil {
		return nil, err
	}

	// Serialize check-then-act per book so the last copy is never sold twice.
	unlock := s.bookLocks.lock(string(bookID))
	defer unlock()

	ok, reason, err := s.elig.CanBorrow(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &IneligibleError{BorrowerID: borrowerID, Reason: reason}
	}

	book, err := s.Catalog.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	active, err := s.Loans.CountActiveByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if active >= book.Stock {
		return nil, &CapacityError{BookID: bookID, Stock: book.Stock, ActiveLoans: active}
	}

	loan := NewLoan(bookID, borrowerID, now, dueDate)
	if err := s.Loans.Insert(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// ReturnLoan transitions a loan to Returned, setting ReturnDate and appending
// the note if provided. Fails with ErrLoanNotFound or InvalidTransition when
// the loan is already Returned.
func (s *Service) ReturnLoan(ctx context.Context, loanID LoanID, note string) (*Loan, error) {
	unlock := s.loanLocks.lock(string(loanID))
	defer unlock()

	loan, err := s.Loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := loan.Return(time.Now(), note); err != nil {
		return nil, err
	}
	if err := s.Loans.Update(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// RenewLoan extends an Active loan's due date by extraDays (default
// DefaultRenewalDays). Rejected with RenewalBlocked when the loan is Overdue
// or the borrower holds any other Overdue loan.
func (s *Service) RenewLoan(ctx context.Context, loanID LoanID, extraDays int) (*Loan, error) {
	now := time.Now()
	if _, err := s.Loans.MarkOverdueDue(ctx, now); err != nil {
		return nil, err
	}

	unlock := s.loanLocks.lock(string(loanID))
	defer unlock()

	loan, err := s.Loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}

	peerOverdue, err := s.Loans.HasOverdueByBorrower(ctx, loan.BorrowerID, loanID)
	if err != nil {
		return nil, err
	}
	if peerOverdue {
		return nil, &RenewalBlockedError{LoanID: loanID, Reason: ReasonPeerOverdue}
	}

	if err := loan.Renew(now, extraDays); err != nil {
		return nil, err
	}
	if err := s.Loans.Update(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// DeleteLoan removes a Returned (or Overdue) loan record. An Active loan must
// be returned first; deleting it fails with ErrLoanActive.
func (s *Service) DeleteLoan(ctx context.Context, loanID LoanID) error {
	unlock := s.loanLocks.lock(string(loanID))
	defer unlock()

	loan, err := s.Loans.Get(ctx, loanID)
	if err != nil {
		return err
	}
	if !loan.Deletable() {
		return ErrLoanActive
	}
	return s.Loans.Delete(ctx, loanID)
}

// GetLoan returns a loan by id.
func (s *Service) GetLoan(ctx context.Context, loanID LoanID) (*Loan, error) {
	return s.Loans.Get(ctx, loanID)
}

// =============================================================================
// READS
// =============================================================================

// AvailableCopies returns the number of free copies of a book.
func (s *Service) AvailableCopies(ctx context.Context, bookID BookID) (int, error) {
	if _, err := s.Loans.MarkOverdueDue(ctx, time.Now()); err != nil {
		return 0, err
	}
	return s.avail.AvailableCopies(ctx, bookID)
}

// IsAvailable reports whether at least one copy of the book is free.
func (s *Service) IsAvailable(ctx context.Context, bookID BookID) (bool, error) {
	free, err := s.AvailableCopies(ctx, bookID)
	if err != nil {
		return false, err
	}
	return free > 0, nil
}

// CanBorrow reports whether the borrower may open a new loan, and why not.
func (s *Service) CanBorrow(ctx context.Context, borrowerID BorrowerID) (bool, string, error) {
	if _, err := s.Loans.MarkOverdueDue(ctx, time.Now()); err != nil {
		return false, "", err
	}
	return s.elig.CanBorrow(ctx, borrowerID)
}

// ListLoans returns loans matching the filter, most recent loan date first.
// The sweep runs first so the Overdue and Active slices are current.
func (s *Service) ListLoans(ctx context.Context, filter LoanFilter) ([]*Loan, error) {
	if _, err := s.Loans.MarkOverdueDue(ctx, time.Now()); err != nil {
		return nil, err
	}
	return s.Loans.List(ctx, filter)
}

// LoanCounts returns the per-status summary after a sweep.
func (s *Service) LoanCounts(ctx context.Context) (LoanCounts, error) {
	if _, err := s.Loans.MarkOverdueDue(ctx, time.Now()); err != nil {
		return LoanCounts{}, err
	}
	return s.Loans.Counts(ctx)
}

// =============================================================================
// DELETE GATES - consumed by catalog collaborators
// =============================================================================

// BookHasActiveLoans gates catalog deletion of a book.
func (s *Service) BookHasActiveLoans(ctx context.Context, bookID BookID) (bool, error) {
	if _, err := s.Catalog.GetBook(ctx, bookID); err != nil {
		return false, err
	}
	n, err := s.Loans.CountActiveByBook(ctx, bookID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BorrowerHasActiveLoans gates catalog deletion of a borrower.
func (s *Service) BorrowerHasActiveLoans(ctx context.Context, borrowerID BorrowerID) (bool, error) {
	if _, err := s.Catalog.GetBorrower(ctx, borrowerID); err != nil {
		return false, err
	}
	n, err := s.Loans.CountActiveByBorrower(ctx, borrowerID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// KEYED LOCKS
// =============================================================================

// lockTable hands out one mutex per key. Mutexes are never evicted; the key
// space here (book and loan ids actually contended) stays small.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (lt *lockTable) lock(key string) (unlock func()) {
	lt.mu.Lock()
	if lt.locks == nil {
		lt.locks = make(map[string]*sync.Mutex)
	}
	m, ok := lt.locks[key]
	if !ok {
		m = &sync.Mutex{}
		lt.locks[key] = m
	}
	lt.mu.Unlock()

	m.Lock()
	return m.Unlock
}
