/*
eligibility.go - Per-borrower eligibility policy

PURPOSE:
  Decides whether a borrower may open a new loan:
    - not while holding any Overdue loan (clear those first)
    - not while holding MaxActiveLoans Active loans (fixed concurrent cap)

  CreateLoan consults this before constructing a loan and fails with
  BorrowerIneligible, carrying the specific reason, when it says no.
*/
package circulation

import "context"

// MaxActiveLoans is the fixed cap on concurrent Active loans per borrower.
const MaxActiveLoans = 3

// Eligibility evaluates the borrowing policy against current loan state.
type Eligibility struct {
	Loans   LoanStore
	Catalog CatalogStore
}

// CanBorrow reports whether the borrower may open a new loan. When the answer
// is no, reason carries which rule tripped. Fails with ErrBorrowerNotFound if
// the id does not resolve.
func (e *Eligibility) CanBorrow(ctx context.Context, borrowerID BorrowerID) (ok bool, reason string, err error) {
	if _, err := e.Catalog.GetBorrower(ctx, borrowerID); err != nil {
		return false, "", err
	}
	overdue, err := e.Loans.HasOverdueByBorrower(ctx, borrowerID, "")
	if err != nil {
		return false, "", err
	}
	if overdue {
		return false, ReasonOverdueLoans, nil
	}
	active, err := e.Loans.CountActiveByBorrower(ctx, borrowerID)
	if err != nil {
		return false, "", err
	}
	if active >= MaxActiveLoans {
		return false, ReasonLoanLimit, nil
	}
	return true, "", nil
}
