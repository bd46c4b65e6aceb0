package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacks/circulation-engine/circulation"
	"github.com/stacks/circulation-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testLoan(id string, due time.Time) *circulation.Loan {
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	return &circulation.Loan{
		ID:         circulation.LoanID(id),
		BookID:     "book-1",
		BorrowerID: "bor-1",
		LoanDate:   now,
		DueDate:    due,
		Status:     circulation.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func saveTestBook(t *testing.T, store *sqlite.Store, id, isbn string, stock int) {
	t.Helper()
	err := store.SaveBook(context.Background(), circulation.Book{
		ID:         circulation.BookID(id),
		Title:      "Book " + id,
		ISBN:       isbn,
		Stock:      stock,
		AuthorID:   "author-1",
		CategoryID: "cat-1",
	})
	require.NoError(t, err)
}

func saveTestBorrower(t *testing.T, store *sqlite.Store, id, email string) {
	t.Helper()
	err := store.SaveBorrower(context.Background(), circulation.Borrower{
		ID:    circulation.BorrowerID(id),
		Name:  "Borrower " + id,
		Email: email,
	})
	require.NoError(t, err)
}

// =============================================================================
// LOAN PERSISTENCE
// =============================================================================

func TestLoan_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2025, time.June, 16, 12, 0, 0, 0, time.UTC)
	loan := testLoan("loan-1", due)
	loan.AppendNote(loan.LoanDate, "first edition copy")

	require.NoError(t, store.Insert(ctx, loan))

	got, err := store.Get(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, loan.ID, got.ID)
	assert.Equal(t, loan.BookID, got.BookID)
	assert.Equal(t, loan.BorrowerID, got.BorrowerID)
	assert.True(t, got.DueDate.Equal(due))
	assert.Equal(t, circulation.StatusActive, got.Status)
	assert.Nil(t, got.ReturnDate)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "first edition copy", got.Notes[0].Text)
}

func TestLoan_Get_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, circulation.ErrLoanNotFound)
}

func TestLoan_Update_PersistsReturn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	loan := testLoan("loan-1", time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, loan))

	returnedAt := time.Date(2025, time.June, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, loan.Return(returnedAt, "on time"))
	require.NoError(t, store.Update(ctx, loan))

	got, err := store.Get(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	assert.True(t, got.ReturnDate.Equal(returnedAt))
}

func TestLoan_Update_NotFound(t *testing.T) {
	store := newTestStore(t)
	loan := testLoan("ghost", time.Now())
	assert.ErrorIs(t, store.Update(context.Background(), loan), circulation.ErrLoanNotFound)
}

func TestLoan_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testLoan("loan-1", time.Now())))
	require.NoError(t, store.Delete(ctx, "loan-1"))

	_, err := store.Get(ctx, "loan-1")
	assert.ErrorIs(t, err, circulation.ErrLoanNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "loan-1"), circulation.ErrLoanNotFound)
}

func TestLoan_List_FilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testLoan("loan-old", time.Date(2025, time.May, 16, 0, 0, 0, 0, time.UTC))
	older.LoanDate = time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	newer := testLoan("loan-new", time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC))

	require.NoError(t, store.Insert(ctx, older))
	require.NoError(t, store.Insert(ctx, newer))

	require.NoError(t, newer.Return(time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC), ""))
	require.NoError(t, store.Update(ctx, newer))

	all, err := store.List(ctx, circulation.FilterAll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, circulation.LoanID("loan-new"), all[0].ID, "most recent loan date first")

	active, err := store.List(ctx, circulation.FilterActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, circulation.LoanID("loan-old"), active[0].ID)

	returned, err := store.List(ctx, circulation.FilterReturned)
	require.NoError(t, err)
	require.Len(t, returned, 1)
	assert.Equal(t, circulation.LoanID("loan-new"), returned[0].ID)
}

// =============================================================================
// COUNTS AND POLICY QUERIES
// =============================================================================

func TestCountActive_ByBookAndBorrower(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := testLoan("loan-a", time.Now().AddDate(0, 0, 15))
	b := testLoan("loan-b", time.Now().AddDate(0, 0, 15))
	b.BookID = "book-2"
	c := testLoan("loan-c", time.Now().AddDate(0, 0, 15))
	c.BorrowerID = "bor-2"
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Insert(ctx, b))
	require.NoError(t, store.Insert(ctx, c))

	n, err := store.CountActiveByBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.CountActiveByBorrower(ctx, "bor-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHasOverdueByBorrower_ExcludesTheLoanItself(t *testing.T) {
	// The renewing loan's own overdue state is judged separately; only
	// OTHER overdue loans of the same borrower count here.
	store := newTestStore(t)
	ctx := context.Background()

	overdue := testLoan("loan-1", time.Now().AddDate(0, 0, -5))
	overdue.Status = circulation.StatusOverdue
	require.NoError(t, store.Insert(ctx, overdue))

	has, err := store.HasOverdueByBorrower(ctx, "bor-1", "loan-1")
	require.NoError(t, err)
	assert.False(t, has, "the excluded loan must not count")

	has, err = store.HasOverdueByBorrower(ctx, "bor-1", "other-loan")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestMarkOverdueDue_OnlyStaleActiveRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	stale := testLoan("loan-stale", now.AddDate(0, 0, -3))
	current := testLoan("loan-current", now.AddDate(0, 0, 10))
	returned := testLoan("loan-returned", now.AddDate(0, 0, -3))
	require.NoError(t, returned.Return(now.AddDate(0, 0, -4), ""))

	require.NoError(t, store.Insert(ctx, stale))
	require.NoError(t, store.Insert(ctx, current))
	require.NoError(t, store.Insert(ctx, returned))

	n, err := store.MarkOverdueDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Idempotent: nothing left to reclassify
	n, err = store.MarkOverdueDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanCounts{Total: 3, Active: 1, Overdue: 1, Returned: 1}, counts)
}

// =============================================================================
// CATALOG CRUD
// =============================================================================

func TestBook_SaveGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveTestBook(t, store, "book-1", "978-0-13-468599-1", 3)

	got, err := store.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, "978-0-13-468599-1", got.ISBN)
	assert.Equal(t, 3, got.Stock)

	// Upsert updates in place
	got.Stock = 5
	require.NoError(t, store.SaveBook(ctx, *got))
	got, err = store.GetBook(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	require.NoError(t, store.DeleteBook(ctx, "book-1"))
	_, err = store.GetBook(ctx, "book-1")
	assert.ErrorIs(t, err, circulation.ErrBookNotFound)
}

func TestBook_DuplicateISBN_Rejected(t *testing.T) {
	store := newTestStore(t)

	saveTestBook(t, store, "book-1", "978-0-13-468599-1", 1)

	err := store.SaveBook(context.Background(), circulation.Book{
		ID:         "book-2",
		Title:      "Different Title",
		ISBN:       "978-0-13-468599-1",
		Stock:      1,
		AuthorID:   "author-1",
		CategoryID: "cat-1",
	})
	assert.ErrorIs(t, err, circulation.ErrValidation)
}

func TestBorrower_DuplicateEmail_Rejected(t *testing.T) {
	store := newTestStore(t)

	saveTestBorrower(t, store, "bor-1", "ana@example.com")

	err := store.SaveBorrower(context.Background(), circulation.Borrower{
		ID:    "bor-2",
		Name:  "Someone Else",
		Email: "ana@example.com",
	})
	assert.ErrorIs(t, err, circulation.ErrValidation)
}

func TestBorrower_RegisteredAtSurvivesUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveTestBorrower(t, store, "bor-1", "ana@example.com")
	first, err := store.GetBorrower(ctx, "bor-1")
	require.NoError(t, err)

	updated := *first
	updated.Phone = "555-0199"
	require.NoError(t, store.SaveBorrower(ctx, updated))

	got, err := store.GetBorrower(ctx, "bor-1")
	require.NoError(t, err)
	assert.Equal(t, "555-0199", got.Phone)
	assert.True(t, got.RegisteredAt.Equal(first.RegisteredAt))
}

func TestAuthorAndCategory_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	birth := time.Date(1920, time.August, 22, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveAuthor(ctx, circulation.Author{
		ID:        "author-1",
		Name:      "Ray Bradbury",
		BirthDate: &birth,
		Country:   "USA",
	}))
	require.NoError(t, store.SaveCategory(ctx, circulation.Category{
		ID:   "cat-1",
		Name: "Science Fiction",
	}))

	authors, err := store.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	require.NotNil(t, authors[0].BirthDate)
	assert.True(t, authors[0].BirthDate.Equal(birth))

	categories, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Science Fiction", categories[0].Name)
}

// =============================================================================
// REPORT QUERIES
// =============================================================================

func TestReports_RankingAndTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveTestBook(t, store, "book-popular", "978-1", 2)
	saveTestBook(t, store, "book-quiet", "978-2", 1)
	saveTestBorrower(t, store, "bor-1", "one@example.com")
	saveTestBorrower(t, store, "bor-2", "two@example.com")

	// Two loans of the popular book (one returned), none of the quiet one
	first := testLoan("loan-1", time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC))
	first.BookID = "book-popular"
	require.NoError(t, first.Return(time.Date(2025, time.June, 11, 12, 0, 0, 0, time.UTC), ""))
	second := testLoan("loan-2", time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC))
	second.BookID = "book-popular"
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))

	total, err := store.TotalBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	total, err = store.TotalBorrowers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	ranked, err := store.MostBorrowedBooks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, circulation.BookID("book-popular"), ranked[0].BookID)
	assert.Equal(t, 2, ranked[0].TotalLoans)
	assert.Equal(t, 1, ranked[0].ActiveLoans)
	assert.Equal(t, 0, ranked[1].TotalLoans)

	spans, err := store.CompletedLoanSpans(ctx)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 10, int(spans[0].ReturnDate.Sub(spans[0].LoanDate).Hours()/24))
}

func TestReset_ClearsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saveTestBook(t, store, "book-1", "978-1", 1)
	require.NoError(t, store.Insert(ctx, testLoan("loan-1", time.Now())))

	require.NoError(t, store.Reset(ctx))

	total, err := store.TotalBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
}
