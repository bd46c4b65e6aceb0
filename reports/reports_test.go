package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacks/circulation-engine/circulation"
	"github.com/stacks/circulation-engine/reports"
	"github.com/stacks/circulation-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestReports(t *testing.T) (*reports.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	circ := circulation.NewService(store, store)
	return reports.NewService(store, circ), store
}

func seedCatalog(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveBook(ctx, circulation.Book{
		ID: "book-1", Title: "Fahrenheit 451", ISBN: "978-1", Stock: 2,
		AuthorID: "author-1", CategoryID: "cat-1",
	}))
	require.NoError(t, store.SaveBook(ctx, circulation.Book{
		ID: "book-2", Title: "The Martian Chronicles", ISBN: "978-2", Stock: 1,
		AuthorID: "author-1", CategoryID: "cat-1",
	}))
	require.NoError(t, store.SaveBorrower(ctx, circulation.Borrower{
		ID: "bor-1", Name: "Ana", Email: "ana@example.com",
	}))
}

// insertLoan writes a loan directly so tests control dates and status.
func insertLoan(t *testing.T, store *sqlite.Store, id string, book circulation.BookID, loanDate, dueDate time.Time) *circulation.Loan {
	t.Helper()
	loan := &circulation.Loan{
		ID:         circulation.LoanID(id),
		BookID:     book,
		BorrowerID: "bor-1",
		LoanDate:   loanDate,
		DueDate:    dueDate,
		Status:     circulation.StatusActive,
		CreatedAt:  loanDate,
		UpdatedAt:  loanDate,
	}
	require.NoError(t, store.Insert(context.Background(), loan))
	return loan
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummary_AggregatesAfterSweep(t *testing.T) {
	// GIVEN: One current loan and one loan past due, still recorded Active
	// WHEN: Building the summary
	// THEN: The stale loan is counted Overdue, not Active

	svc, store := newTestReports(t)
	seedCatalog(t, store)

	now := time.Now()
	insertLoan(t, store, "loan-1", "book-1", now.AddDate(0, 0, -20), now.AddDate(0, 0, -5))
	insertLoan(t, store, "loan-2", "book-2", now.AddDate(0, 0, -2), now.AddDate(0, 0, 13))

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.TotalBooks)
	assert.Equal(t, 1, sum.TotalBorrowers)
	assert.Equal(t, 1, sum.Loans.Active)
	assert.Equal(t, 1, sum.Loans.Overdue)
	assert.Equal(t, 0, sum.Loans.Returned)
	assert.True(t, sum.AvgLoanDays.IsZero(), "no returned loans yet")
	require.NotEmpty(t, sum.TopBooks)
}

func TestAverageLoanDays_MeanOfCompletedSpans(t *testing.T) {
	// GIVEN: Two returned loans held 4 and 8 days
	// THEN: The average is exactly 6 days

	svc, store := newTestReports(t)
	seedCatalog(t, store)
	ctx := context.Background()

	base := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	for i, days := range []int{4, 8} {
		loan := insertLoan(t, store, "loan-"+string(rune('a'+i)), "book-1", base, base.AddDate(0, 0, 15))
		require.NoError(t, loan.Return(base.AddDate(0, 0, days), ""))
		require.NoError(t, store.Update(ctx, loan))
	}

	avg, err := svc.AverageLoanDays(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6", avg.String())
}

// =============================================================================
// UTILIZATION
// =============================================================================

func TestUtilization_ShareOfStockOnLoan(t *testing.T) {
	svc, store := newTestReports(t)
	seedCatalog(t, store)

	now := time.Now()
	insertLoan(t, store, "loan-1", "book-1", now, now.AddDate(0, 0, 15))

	rates, err := svc.Utilization(context.Background())
	require.NoError(t, err)

	// book-1: 1 of 2 copies out; book-2: idle
	assert.Equal(t, "0.5", rates["book-1"].String())
	assert.True(t, rates["book-2"].IsZero())
}

func TestUtilization_ZeroStockReportsZero(t *testing.T) {
	svc, store := newTestReports(t)
	require.NoError(t, store.SaveBook(context.Background(), circulation.Book{
		ID: "book-empty", Title: "Ghost", ISBN: "978-9", Stock: 0,
		AuthorID: "author-1", CategoryID: "cat-1",
	}))

	rates, err := svc.Utilization(context.Background())
	require.NoError(t, err)
	assert.True(t, rates["book-empty"].IsZero())
}

// =============================================================================
// OVERDUE REPORT
// =============================================================================

func TestOverdueLoans_DaysPastDue(t *testing.T) {
	svc, store := newTestReports(t)
	seedCatalog(t, store)

	now := time.Now()
	insertLoan(t, store, "loan-late", "book-1", now.AddDate(0, 0, -20), now.AddDate(0, 0, -5))
	insertLoan(t, store, "loan-fine", "book-2", now, now.AddDate(0, 0, 15))

	rows, err := svc.OverdueLoans(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, circulation.LoanID("loan-late"), rows[0].Loan.ID)
	assert.GreaterOrEqual(t, rows[0].DaysOverdue, 4)
	assert.LessOrEqual(t, rows[0].DaysOverdue, 5)
}

// =============================================================================
// TEXT RENDERING
// =============================================================================

func TestRenderText_StatsBlock(t *testing.T) {
	svc, store := newTestReports(t)
	seedCatalog(t, store)

	now := time.Now()
	insertLoan(t, store, "loan-1", "book-1", now, now.AddDate(0, 0, 15))

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)

	text := sum.RenderText()
	assert.Contains(t, text, "=== LIBRARY STATISTICS REPORT ===")
	assert.Contains(t, text, "- Total books: 2")
	assert.Contains(t, text, "- Active loans: 1")
	assert.Contains(t, text, "MOST BORROWED BOOKS:")
	assert.Contains(t, text, "1. Fahrenheit 451 (978-1) - 1 loans")
}
