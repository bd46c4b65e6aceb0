/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple the
  internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Input binding in handlers.go validates these (ISBN format, email, dates)
  before anything reaches the engine. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/stacks/circulation-engine/circulation"
	"github.com/stacks/circulation-engine/reports"
)

// =============================================================================
// LOANS
// =============================================================================

// LoanDTO represents a loan in API responses.
type LoanDTO struct {
	ID         string          `json:"id"`
	BookID     string          `json:"book_id"`
	BorrowerID string          `json:"borrower_id"`
	LoanDate   string          `json:"loan_date"`
	DueDate    string          `json:"due_date"`
	ReturnDate *string         `json:"return_date,omitempty"`
	Status     string          `json:"status"`
	Notes      []AnnotationDTO `json:"notes,omitempty"`
}

// AnnotationDTO is one entry of a loan's note log.
type AnnotationDTO struct {
	At   string `json:"at"`
	Text string `json:"text"`
}

// CreateLoanRequest is the request to open a loan.
type CreateLoanRequest struct {
	BookID     string `json:"book_id"`
	BorrowerID string `json:"borrower_id"`
	DueDate    string `json:"due_date,omitempty"` // YYYY-MM-DD, defaults to +15 days
}

// ReturnLoanRequest carries the optional return note.
type ReturnLoanRequest struct {
	Notes string `json:"notes,omitempty"`
}

// RenewLoanRequest carries the extension length.
type RenewLoanRequest struct {
	ExtraDays int `json:"extra_days,omitempty"` // defaults to 15
}

// ListLoansResponse is the filtered listing plus the per-status summary.
type ListLoansResponse struct {
	Loans  []LoanDTO     `json:"loans"`
	Counts LoanCountsDTO `json:"counts"`
}

// LoanCountsDTO is the per-status summary block.
type LoanCountsDTO struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Overdue  int `json:"overdue"`
	Returned int `json:"returned"`
}

// SweepResponse reports how many loans the sweep transitioned.
type SweepResponse struct {
	Transitioned int `json:"transitioned"`
}

// =============================================================================
// AVAILABILITY AND ELIGIBILITY
// =============================================================================

// AvailabilityDTO is the availability probe for one book.
type AvailabilityDTO struct {
	BookID          string `json:"book_id"`
	Available       bool   `json:"available"`
	AvailableCopies int    `json:"available_copies"`
	Stock           int    `json:"stock"`
	ActiveLoans     int    `json:"active_loans"`
}

// EligibilityDTO is the borrowing eligibility answer for one borrower.
type EligibilityDTO struct {
	BorrowerID string `json:"borrower_id"`
	CanBorrow  bool   `json:"can_borrow"`
	Reason     string `json:"reason,omitempty"`
}

// =============================================================================
// CATALOG
// =============================================================================

// BookDTO represents a book in API responses.
type BookDTO struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ISBN            string `json:"isbn"`
	Stock           int    `json:"stock"`
	AuthorID        string `json:"author_id"`
	CategoryID      string `json:"category_id"`
	PublicationYear int    `json:"publication_year,omitempty"`
	Pages           int    `json:"pages,omitempty"`
	Description     string `json:"description,omitempty"`
	CoverImage      string `json:"cover_image,omitempty"`
}

// SaveBookRequest creates or updates a book.
type SaveBookRequest struct {
	ID              string `json:"id,omitempty"`
	Title           string `json:"title"`
	ISBN            string `json:"isbn"`
	Stock           int    `json:"stock"`
	AuthorID        string `json:"author_id"`
	CategoryID      string `json:"category_id"`
	PublicationYear int    `json:"publication_year,omitempty"`
	Pages           int    `json:"pages,omitempty"`
	Description     string `json:"description,omitempty"`
	CoverImage      string `json:"cover_image,omitempty"`
}

// BorrowerDTO represents a borrower in API responses.
type BorrowerDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
	RegisteredAt string `json:"registered_at"`
}

// SaveBorrowerRequest creates or updates a borrower.
type SaveBorrowerRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// AuthorDTO represents an author in API responses.
type AuthorDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	Biography string `json:"biography,omitempty"`
	Country   string `json:"country,omitempty"`
}

// CategoryDTO represents a category in API responses.
type CategoryDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

// SummaryDTO is the library-wide stats block.
type SummaryDTO struct {
	GeneratedAt    string                `json:"generated_at"`
	TotalBooks     int                   `json:"total_books"`
	TotalBorrowers int                   `json:"total_borrowers"`
	Loans          LoanCountsDTO         `json:"loans"`
	AvgLoanDays    string                `json:"avg_loan_days"`
	TopBooks       []BookActivityDTO     `json:"top_books"`
	TopBorrowers   []BorrowerActivityDTO `json:"top_borrowers"`
}

// BookActivityDTO is one row of the most-borrowed ranking.
type BookActivityDTO struct {
	BookID      string `json:"book_id"`
	Title       string `json:"title"`
	ISBN        string `json:"isbn"`
	TotalLoans  int    `json:"total_loans"`
	ActiveLoans int    `json:"active_loans"`
}

// BorrowerActivityDTO is one row of the most-active ranking.
type BorrowerActivityDTO struct {
	BorrowerID  string `json:"borrower_id"`
	Name        string `json:"name"`
	TotalLoans  int    `json:"total_loans"`
	ActiveLoans int    `json:"active_loans"`
}

// OverdueLoanDTO is one row of the overdue report.
type OverdueLoanDTO struct {
	Loan        LoanDTO `json:"loan"`
	DaysOverdue int     `json:"days_overdue"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toLoanDTO(l *circulation.Loan) LoanDTO {
	dto := LoanDTO{
		ID:         string(l.ID),
		BookID:     string(l.BookID),
		BorrowerID: string(l.BorrowerID),
		LoanDate:   l.LoanDate.Format(time.RFC3339),
		DueDate:    l.DueDate.Format(time.RFC3339),
		Status:     string(l.Status),
	}
	if l.ReturnDate != nil {
		s := l.ReturnDate.Format(time.RFC3339)
		dto.ReturnDate = &s
	}
	for _, note := range l.Notes {
		dto.Notes = append(dto.Notes, AnnotationDTO{
			At:   note.At.Format(time.RFC3339),
			Text: note.Text,
		})
	}
	return dto
}

func toLoanDTOs(loans []*circulation.Loan) []LoanDTO {
	dtos := make([]LoanDTO, len(loans))
	for i, l := range loans {
		dtos[i] = toLoanDTO(l)
	}
	return dtos
}

func toCountsDTO(c circulation.LoanCounts) LoanCountsDTO {
	return LoanCountsDTO{Total: c.Total, Active: c.Active, Overdue: c.Overdue, Returned: c.Returned}
}

func toBookDTO(b circulation.Book) BookDTO {
	return BookDTO{
		ID:              string(b.ID),
		Title:           b.Title,
		ISBN:            b.ISBN,
		Stock:           b.Stock,
		AuthorID:        string(b.AuthorID),
		CategoryID:      string(b.CategoryID),
		PublicationYear: b.PublicationYear,
		Pages:           b.Pages,
		Description:     b.Description,
		CoverImage:      b.CoverImage,
	}
}

func toBorrowerDTO(b circulation.Borrower) BorrowerDTO {
	return BorrowerDTO{
		ID:           string(b.ID),
		Name:         b.Name,
		Email:        b.Email,
		Phone:        b.Phone,
		Address:      b.Address,
		RegisteredAt: b.RegisteredAt.Format(time.RFC3339),
	}
}

func toSummaryDTO(sum *reports.Summary) SummaryDTO {
	dto := SummaryDTO{
		GeneratedAt:    sum.GeneratedAt.Format(time.RFC3339),
		TotalBooks:     sum.TotalBooks,
		TotalBorrowers: sum.TotalBorrowers,
		Loans:          toCountsDTO(sum.Loans),
		AvgLoanDays:    sum.AvgLoanDays.String(),
	}
	for _, b := range sum.TopBooks {
		dto.TopBooks = append(dto.TopBooks, BookActivityDTO{
			BookID:      string(b.BookID),
			Title:       b.Title,
			ISBN:        b.ISBN,
			TotalLoans:  b.TotalLoans,
			ActiveLoans: b.ActiveLoans,
		})
	}
	for _, b := range sum.TopBorrowers {
		dto.TopBorrowers = append(dto.TopBorrowers, BorrowerActivityDTO{
			BorrowerID:  string(b.BorrowerID),
			Name:        b.Name,
			TotalLoans:  b.TotalLoans,
			ActiveLoans: b.ActiveLoans,
		})
	}
	return dto
}
