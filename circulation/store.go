/*
store.go - Persistence interfaces for loans and catalog records

PURPOSE:
  Defines the interface between the engine and the database. Implementations
  exist for SQLite (store/sqlite) and memory (circulation/store).

DERIVED AVAILABILITY:
  There is deliberately no "available copies" column anywhere. CountActiveByBook
  is the single source of truth the availability computation subtracts from
  stock, so the figure can never go stale.

CONDITIONAL SWEEP:
  MarkOverdueDue transitions every Active loan whose due date has passed, and
  only those. The status check and the write happen atomically inside the
  store (a conditional UPDATE in SQLite, a check under the store lock in
  memory), so a sweep racing a concurrent Return on the same loan is a no-op
  on the returned loan.

SEE ALSO:
  - store/memory.go: In-memory implementation for tests
  - ../store/sqlite/sqlite.go: Production implementation
*/
package circulation

import (
	"context"
	"time"
)

// =============================================================================
// LOAN STORE
// =============================================================================

// LoanStore persists loans and answers the aggregate questions the engine's
// policy checks are built on. Implementations must be safe for concurrent use.
type LoanStore interface {
	// Insert persists a new loan.
	Insert(ctx context.Context, loan *Loan) error

	// Get returns the loan or ErrLoanNotFound.
	Get(ctx context.Context, id LoanID) (*Loan, error)

	// Update persists the current state of an existing loan.
	Update(ctx context.Context, loan *Loan) error

	// Delete removes a loan record. The caller is responsible for the
	// no-deleting-Active-loans rule.
	Delete(ctx context.Context, id LoanID) error

	// List returns loans matching the filter, most recent loan date first.
	List(ctx context.Context, filter LoanFilter) ([]*Loan, error)

	// CountActiveByBook returns the number of Active loans for a book.
	CountActiveByBook(ctx context.Context, bookID BookID) (int, error)

	// CountActiveByBorrower returns the number of Active loans a borrower holds.
	CountActiveByBorrower(ctx context.Context, borrowerID BorrowerID) (int, error)

	// HasOverdueByBorrower reports whether the borrower holds any Overdue
	// loan other than exclude (pass "" to consider all loans).
	HasOverdueByBorrower(ctx context.Context, borrowerID BorrowerID, exclude LoanID) (bool, error)

	// MarkOverdueDue transitions every loan with status Active and
	// dueDate < now to Overdue, atomically per loan, and returns how many
	// transitioned. Re-running it when nothing changed returns 0.
	MarkOverdueDue(ctx context.Context, now time.Time) (int, error)

	// Counts returns the per-status loan summary.
	Counts(ctx context.Context) (LoanCounts, error)
}

// =============================================================================
// CATALOG STORE
// =============================================================================

// CatalogStore is the lookup surface the engine consumes from the catalog and
// user collaborators.
type CatalogStore interface {
	// GetBook returns the book or ErrBookNotFound.
	GetBook(ctx context.Context, id BookID) (*Book, error)

	// GetBorrower returns the borrower or ErrBorrowerNotFound.
	GetBorrower(ctx context.Context, id BorrowerID) (*Borrower, error)
}
