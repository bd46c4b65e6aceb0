/*
Package reports provides the cross-cutting report queries layered on top of
the circulation engine: library-wide stats, most-borrowed books, most-active
borrowers, and loan-duration / utilization figures.

PURPOSE:
  Everything here is a read. Reports never mutate loan state; they ask the
  circulation service to run the overdue sweep first so the Active/Overdue
  split they show is current, then aggregate.

PRECISION:
  Averages and rates use decimal.Decimal rather than float64 so a report run
  twice over the same data prints the same digits.

SEE ALSO:
  - ../store/sqlite/sqlite.go: Implements the Store interface
  - ../circulation/service.go: Source of the status counts
*/
package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stacks/circulation-engine/circulation"
)

// DefaultTopN is the ranking size used when a caller does not supply one.
const DefaultTopN = 10

// =============================================================================
// STORE INTERFACE - implemented by store/sqlite
// =============================================================================

// BookActivity is a per-book loan tally.
type BookActivity struct {
	BookID      circulation.BookID
	Title       string
	ISBN        string
	Stock       int
	TotalLoans  int
	ActiveLoans int
}

// BorrowerActivity is a per-borrower loan tally.
type BorrowerActivity struct {
	BorrowerID  circulation.BorrowerID
	Name        string
	Email       string
	TotalLoans  int
	ActiveLoans int
}

// LoanSpan is the lifetime of a completed loan.
type LoanSpan struct {
	LoanDate   time.Time
	ReturnDate time.Time
}

// Store is the aggregate query surface reports need from the datastore.
type Store interface {
	TotalBooks(ctx context.Context) (int, error)
	TotalBorrowers(ctx context.Context) (int, error)
	MostBorrowedBooks(ctx context.Context, limit int) ([]BookActivity, error)
	MostActiveBorrowers(ctx context.Context, limit int) ([]BorrowerActivity, error)
	CompletedLoanSpans(ctx context.Context) ([]LoanSpan, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service aggregates report figures over the store and the circulation engine.
type Service struct {
	Store       Store
	Circulation *circulation.Service
}

// NewService creates a report service.
func NewService(store Store, circ *circulation.Service) *Service {
	return &Service{Store: store, Circulation: circ}
}

// Summary is the library-wide stats block.
type Summary struct {
	GeneratedAt    time.Time
	TotalBooks     int
	TotalBorrowers int
	Loans          circulation.LoanCounts
	AvgLoanDays    decimal.Decimal
	TopBooks       []BookActivity
	TopBorrowers   []BorrowerActivity
}

// Summary computes the stats block. The circulation service sweeps before
// counting, so the Active/Overdue split is current.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	counts, err := s.Circulation.LoanCounts(ctx)
	if err != nil {
		return nil, err
	}

	totalBooks, err := s.Store.TotalBooks(ctx)
	if err != nil {
		return nil, err
	}
	totalBorrowers, err := s.Store.TotalBorrowers(ctx)
	if err != nil {
		return nil, err
	}
	avg, err := s.AverageLoanDays(ctx)
	if err != nil {
		return nil, err
	}
	topBooks, err := s.Store.MostBorrowedBooks(ctx, DefaultTopN)
	if err != nil {
		return nil, err
	}
	topBorrowers, err := s.Store.MostActiveBorrowers(ctx, DefaultTopN)
	if err != nil {
		return nil, err
	}

	return &Summary{
		GeneratedAt:    time.Now(),
		TotalBooks:     totalBooks,
		TotalBorrowers: totalBorrowers,
		Loans:          counts,
		AvgLoanDays:    avg,
		TopBooks:       topBooks,
		TopBorrowers:   topBorrowers,
	}, nil
}

// AverageLoanDays returns the mean time-to-return across all Returned loans,
// in days, rounded to two places. Zero when nothing has been returned yet.
func (s *Service) AverageLoanDays(ctx context.Context) (decimal.Decimal, error) {
	spans, err := s.Store.CompletedLoanSpans(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if len(spans) == 0 {
		return decimal.Zero, nil
	}

	total := decimal.Zero
	for _, span := range spans {
		hours := decimal.NewFromFloat(span.ReturnDate.Sub(span.LoanDate).Hours())
		total = total.Add(hours.Div(decimal.NewFromInt(24)))
	}
	return total.Div(decimal.NewFromInt(int64(len(spans)))).Round(2), nil
}

// Utilization returns, per book, the share of stock currently on loan as a
// rate in [0, 1] with two decimal places. Books with zero stock report zero.
func (s *Service) Utilization(ctx context.Context) (map[circulation.BookID]decimal.Decimal, error) {
	// Sweep first: utilization counts Active loans only.
	if _, err := s.Circulation.RunOverdueSweep(ctx); err != nil {
		return nil, err
	}

	activity, err := s.Store.MostBorrowedBooks(ctx, 1<<31-1)
	if err != nil {
		return nil, err
	}

	result := make(map[circulation.BookID]decimal.Decimal, len(activity))
	for _, a := range activity {
		if a.Stock <= 0 {
			result[a.BookID] = decimal.Zero
			continue
		}
		rate := decimal.NewFromInt(int64(a.ActiveLoans)).
			Div(decimal.NewFromInt(int64(a.Stock))).
			Round(2)
		result[a.BookID] = rate
	}
	return result, nil
}

// =============================================================================
// OVERDUE REPORT
// =============================================================================

// OverdueLoan is one row of the overdue report.
type OverdueLoan struct {
	Loan        *circulation.Loan
	DaysOverdue int
}

// OverdueLoans lists every currently Overdue loan with how many days it is
// past due, most recent loan first.
func (s *Service) OverdueLoans(ctx context.Context) ([]OverdueLoan, error) {
	loans, err := s.Circulation.ListLoans(ctx, circulation.FilterOverdue)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := make([]OverdueLoan, 0, len(loans))
	for _, loan := range loans {
		days := int(now.Sub(loan.DueDate).Hours() / 24)
		if days < 0 {
			days = 0
		}
		result = append(result, OverdueLoan{Loan: loan, DaysOverdue: days})
	}
	return result, nil
}

// =============================================================================
// TEXT RENDERING
// =============================================================================

// RenderText renders the summary as the plain-text stats report.
func (sum *Summary) RenderText() string {
	var sb strings.Builder

	sb.WriteString("=== LIBRARY STATISTICS REPORT ===\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", sum.GeneratedAt.Format("2006-01-02 15:04")))

	sb.WriteString("GENERAL:\n")
	sb.WriteString(fmt.Sprintf("- Total books: %d\n", sum.TotalBooks))
	sb.WriteString(fmt.Sprintf("- Total borrowers: %d\n", sum.TotalBorrowers))
	sb.WriteString(fmt.Sprintf("- Active loans: %d\n", sum.Loans.Active))
	sb.WriteString(fmt.Sprintf("- Overdue loans: %d\n", sum.Loans.Overdue))
	sb.WriteString(fmt.Sprintf("- Returned loans: %d\n", sum.Loans.Returned))
	sb.WriteString(fmt.Sprintf("- Average loan duration: %s days\n\n", sum.AvgLoanDays.String()))

	sb.WriteString("MOST BORROWED BOOKS:\n")
	for i, b := range sum.TopBooks {
		sb.WriteString(fmt.Sprintf("%d. %s (%s) - %d loans\n", i+1, b.Title, b.ISBN, b.TotalLoans))
	}
	sb.WriteString("\nMOST ACTIVE BORROWERS:\n")
	for i, b := range sum.TopBorrowers {
		sb.WriteString(fmt.Sprintf("%d. %s - %d loans\n", i+1, b.Name, b.TotalLoans))
	}

	return sb.String()
}
