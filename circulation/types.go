/*
Package circulation provides the core loan lifecycle and availability engine.

PURPOSE:
  This package contains the types and rules that decide whether a loan may be
  created, how many physical copies of a book are free at any instant, and how
  a loan moves between Active, Overdue, and Returned. The surrounding CRUD and
  report layers are thin I/O wrappers; everything with a real invariant lives
  here.

KEY CONCEPTS IN THIS FILE (types.go):
  - Loan: A single borrowing of one book by one borrower
  - LoanStatus: Closed enumeration {Active, Overdue, Returned}
  - Annotation: An append-only note attached to a loan (renewals, returns)
  - Book/Borrower: Catalog records the engine reads but never owns

DESIGN PRINCIPLES:
  1. Id-based references: Loan holds BookID/BorrowerID, never live objects
  2. Closed status enum: transitions in loan.go are the ONLY status mutators
  3. Derived availability: free copies are recomputed from live loan state,
     never cached or persisted as a column

SEE ALSO:
  - loan.go: State machine transitions
  - availability.go: Free-copy computation
  - eligibility.go: Borrowing eligibility policy
  - service.go: The operations exposed to the CRUD/report layer
*/
package circulation

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LoanID string
type BookID string
type BorrowerID string
type AuthorID string
type CategoryID string

// NewLoanID mints a unique loan identifier.
func NewLoanID() LoanID { return LoanID("loan-" + uuid.NewString()) }

// =============================================================================
// LOAN STATUS - Closed enumeration
// =============================================================================

// LoanStatus is the lifecycle state of a loan. It is never set directly by a
// caller; the transition functions in loan.go are the only mutators.
type LoanStatus string

const (
	StatusActive   LoanStatus = "active"
	StatusOverdue  LoanStatus = "overdue"
	StatusReturned LoanStatus = "returned"
)

// Valid reports whether s is one of the three known states.
func (s LoanStatus) Valid() bool {
	return s == StatusActive || s == StatusOverdue || s == StatusReturned
}

// Terminal reports whether no transition leads out of s.
func (s LoanStatus) Terminal() bool { return s == StatusReturned }

// =============================================================================
// LOAN
// =============================================================================

// Annotation is an append-only note on a loan's history.
type Annotation struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Loan records one borrowing of one book by one borrower.
//
// LoanDate is set at creation and immutable. ReturnDate is nil until the loan
// is returned and is set exactly once. Notes only ever grows.
type Loan struct {
	ID         LoanID
	BookID     BookID
	BorrowerID BorrowerID

	LoanDate   time.Time
	DueDate    time.Time
	ReturnDate *time.Time

	Status LoanStatus
	Notes  []Annotation

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppendNote adds an annotation to the loan's note log.
func (l *Loan) AppendNote(at time.Time, text string) {
	l.Notes = append(l.Notes, Annotation{At: at, Text: text})
}

// =============================================================================
// CATALOG RECORDS - Read by the engine, owned by catalog collaborators
// =============================================================================

// Book is a catalog record. Stock is the total number of physical copies
// owned; it is never decremented by the engine. Free copies are derived.
type Book struct {
	ID              BookID
	Title           string
	ISBN            string
	Stock           int
	AuthorID        AuthorID
	CategoryID      CategoryID
	PublicationYear int
	Pages           int
	Description     string
	CoverImage      string
	CreatedAt       time.Time
}

// Borrower is a registered user allowed to open loans.
// RegisteredAt is set once at creation and never altered.
type Borrower struct {
	ID           BorrowerID
	Name         string
	Email        string
	Phone        string
	Address      string
	RegisteredAt time.Time
}

// Author and Category exist so the catalog layer can resolve the references a
// Book carries. The engine itself never reads them.

type Author struct {
	ID        AuthorID
	Name      string
	BirthDate *time.Time
	Biography string
	Country   string
}

type Category struct {
	ID          CategoryID
	Name        string
	Description string
}

// =============================================================================
// LISTING FILTER
// =============================================================================

// LoanFilter selects a slice of the loan collection.
type LoanFilter string

const (
	FilterAll      LoanFilter = "all"
	FilterActive   LoanFilter = "active"
	FilterOverdue  LoanFilter = "overdue"
	FilterReturned LoanFilter = "returned"
)

// ParseLoanFilter maps a query-string value to a filter, defaulting to All.
func ParseLoanFilter(s string) LoanFilter {
	switch LoanFilter(s) {
	case FilterActive, FilterOverdue, FilterReturned:
		return LoanFilter(s)
	default:
		return FilterAll
	}
}

// LoanCounts is the per-status summary shown alongside listings.
type LoanCounts struct {
	Total    int
	Active   int
	Overdue  int
	Returned int
}
