/*
availability.go - Inventory availability computation

PURPOSE:
  Computes, for a given book, how many physical copies are currently free:

      available = book.Stock - count(loans where book = this AND status = Active)

  The figure is derived from live loan state on every query. It is never
  cached or persisted, so it cannot go stale. Overselling is prevented by the
  Service serializing the check-then-act sequence per book, not here; this is
  a pure read.
*/
package circulation

import "context"

// Availability answers free-copy questions over the current loan state.
type Availability struct {
	Loans   LoanStore
	Catalog CatalogStore
}

// AvailableCopies returns the number of free copies of a book, never
// negative. Fails with ErrBookNotFound if the id does not resolve.
func (a *Availability) AvailableCopies(ctx context.Context, bookID BookID) (int, error) {
	book, err := a.Catalog.GetBook(ctx, bookID)
	if err != nil {
		return 0, err
	}
	active, err := a.Loans.CountActiveByBook(ctx, bookID)
	if err != nil {
		return 0, err
	}
	free := book.Stock - active
	if free < 0 {
		// More active loans than stock means the creation guard was violated
		// somewhere; treat it as empty rather than reporting a negative count.
		free = 0
	}
	return free, nil
}

// IsAvailable reports whether at least one copy of the book is free.
func (a *Availability) IsAvailable(ctx context.Context, bookID BookID) (bool, error) {
	free, err := a.AvailableCopies(ctx, bookID)
	if err != nil {
		return false, err
	}
	return free > 0, nil
}
