// Package store provides in-memory implementations of the circulation
// storage interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stacks/circulation-engine/circulation"
)

// =============================================================================
// MEMORY STORE - implements circulation.LoanStore and circulation.CatalogStore
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	loans     map[circulation.LoanID]*circulation.Loan
	books     map[circulation.BookID]*circulation.Book
	borrowers map[circulation.BorrowerID]*circulation.Borrower
}

func NewMemory() *Memory {
	return &Memory{
		loans:     make(map[circulation.LoanID]*circulation.Loan),
		books:     make(map[circulation.BookID]*circulation.Book),
		borrowers: make(map[circulation.BorrowerID]*circulation.Borrower),
	}
}

// =============================================================================
// LOAN STORE
// =============================================================================

func (m *Memory) Insert(_ context.Context, loan *circulation.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (m *Memory) Get(_ context.Context, id circulation.LoanID) (*circulation.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loan, ok := m.loans[id]
	if !ok {
		return nil, circulation.ErrLoanNotFound
	}
	return copyLoan(loan), nil
}

func (m *Memory) Update(_ context.Context, loan *circulation.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[loan.ID]; !ok {
		return circulation.ErrLoanNotFound
	}
	m.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (m *Memory) Delete(_ context.Context, id circulation.LoanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.loans[id]; !ok {
		return circulation.ErrLoanNotFound
	}
	delete(m.loans, id)
	return nil
}

func (m *Memory) List(_ context.Context, filter circulation.LoanFilter) ([]*circulation.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*circulation.Loan
	for _, loan := range m.loans {
		if matches(loan, filter) {
			result = append(result, copyLoan(loan))
		}
	}
	// Most recent loan date first; id as tie-break for stable output.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LoanDate.Equal(result[j].LoanDate) {
			return result[i].LoanDate.After(result[j].LoanDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) CountActiveByBook(_ context.Context, bookID circulation.BookID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, loan := range m.loans {
		if loan.BookID == bookID && loan.Status == circulation.StatusActive {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountActiveByBorrower(_ context.Context, borrowerID circulation.BorrowerID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, loan := range m.loans {
		if loan.BorrowerID == borrowerID && loan.Status == circulation.StatusActive {
			n++
		}
	}
	return n, nil
}

func (m *Memory) HasOverdueByBorrower(_ context.Context, borrowerID circulation.BorrowerID, exclude circulation.LoanID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loan := range m.loans {
		if loan.BorrowerID == borrowerID && loan.ID != exclude && loan.Status == circulation.StatusOverdue {
			return true, nil
		}
	}
	return false, nil
}

// MarkOverdueDue transitions stale Active loans under the store lock, so the
// status check and the write are atomic with respect to concurrent Returns.
func (m *Memory) MarkOverdueDue(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, loan := range m.loans {
		if loan.MarkOverdue(now) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Counts(_ context.Context) (circulation.LoanCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c circulation.LoanCounts
	for _, loan := range m.loans {
		c.Total++
		switch loan.Status {
		case circulation.StatusActive:
			c.Active++
		case circulation.StatusOverdue:
			c.Overdue++
		case circulation.StatusReturned:
			c.Returned++
		}
	}
	return c, nil
}

// =============================================================================
// CATALOG STORE
// =============================================================================

func (m *Memory) GetBook(_ context.Context, id circulation.BookID) (*circulation.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[id]
	if !ok {
		return nil, circulation.ErrBookNotFound
	}
	b := *book
	return &b, nil
}

func (m *Memory) GetBorrower(_ context.Context, id circulation.BorrowerID) (*circulation.Borrower, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	borrower, ok := m.borrowers[id]
	if !ok {
		return nil, circulation.ErrBorrowerNotFound
	}
	b := *borrower
	return &b, nil
}

// PutBook and PutBorrower seed catalog records for tests.

func (m *Memory) PutBook(book circulation.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[book.ID] = &book
}

func (m *Memory) PutBorrower(borrower circulation.Borrower) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.borrowers[borrower.ID] = &borrower
}

// =============================================================================
// HELPERS
// =============================================================================

func copyLoan(l *circulation.Loan) *circulation.Loan {
	c := *l
	if l.ReturnDate != nil {
		t := *l.ReturnDate
		c.ReturnDate = &t
	}
	c.Notes = append([]circulation.Annotation(nil), l.Notes...)
	return &c
}

func matches(l *circulation.Loan, filter circulation.LoanFilter) bool {
	switch filter {
	case circulation.FilterActive:
		return l.Status == circulation.StatusActive
	case circulation.FilterOverdue:
		return l.Status == circulation.StatusOverdue
	case circulation.FilterReturned:
		return l.Status == circulation.StatusReturned
	default:
		return true
	}
}
