/*
handlers.go - HTTP API handlers for the circulation system

PURPOSE:
  Exposes the circulation engine via REST API. Handles HTTP request/response,
  JSON serialization, and input binding; everything with an invariant is
  delegated to the circulation service.

ENDPOINTS:
  Loans:
    GET    /api/loans                  List loans (?filter=active|overdue|returned)
    POST   /api/loans                  Create loan
    GET    /api/loans/{id}             Get loan details
    POST   /api/loans/{id}/return      Return a loan
    POST   /api/loans/{id}/renew       Renew a loan
    DELETE /api/loans/{id}             Delete a non-active loan
    POST   /api/loans/sweep            Run the overdue sweep

  Catalog:
    GET/POST   /api/books              List / create
    GET/PUT    /api/books/{id}         Get / update
    DELETE     /api/books/{id}         Delete (refused while active loans exist)
    GET        /api/books/{id}/availability
    GET/POST   /api/borrowers          List / create
    GET/PUT    /api/borrowers/{id}     Get / update
    DELETE     /api/borrowers/{id}     Delete (refused while active loans exist)
    GET        /api/borrowers/{id}/eligibility
    GET/POST   /api/authors, /api/categories; DELETE /{id}

  Reports:
    GET /api/reports/summary           Stats block (?format=text for plain text)
    GET /api/reports/overdue           Overdue loans with days past due
    GET /api/reports/utilization       Per-book share of stock on loan

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Book/borrower/loan not found
  - 409: Capacity, eligibility, transition, renewal, delete-gate conflicts
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/stacks/circulation-engine/circulation"
	"github.com/stacks/circulation-engine/reports"
	"github.com/stacks/circulation-engine/store/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Circ    *circulation.Service
	Reports *reports.Service
}

// NewHandler creates a handler with the circulation and report services wired
// over the given store.
func NewHandler(store *sqlite.Store) *Handler {
	circ := circulation.NewService(store, store)
	return &Handler{
		Store:   store,
		Circ:    circ,
		Reports: reports.NewService(store, circ),
	}
}

// =============================================================================
// INPUT BINDING
// =============================================================================

var (
	isbnPattern  = regexp.MustCompile(`^[0-9\-]+$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// parseDate accepts YYYY-MM-DD or RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns loans matching ?filter=, most recent first, with the
// per-status summary.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter := circulation.ParseLoanFilter(r.URL.Query().Get("filter"))

	loans, err := h.Circ.ListLoans(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to list loans", err)
		return
	}
	counts, err := h.Circ.LoanCounts(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to count loans", err)
		return
	}

	writeJSON(w, http.StatusOK, ListLoansResponse{
		Loans:  toLoanDTOs(loans),
		Counts: toCountsDTO(counts),
	})
}

// CreateLoan opens a new loan.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BookID == "" || req.BorrowerID == "" {
		writeError(w, http.StatusBadRequest, "book_id and borrower_id are required", nil)
		return
	}

	var dueDate time.Time
	if req.DueDate != "" {
		t, err := parseDate(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due_date format (use YYYY-MM-DD)", err)
			return
		}
		dueDate = t
	}

	loan, err := h.Circ.CreateLoan(r.Context(),
		circulation.BookID(req.BookID),
		circulation.BorrowerID(req.BorrowerID),
		dueDate,
	)
	if err != nil {
		writeDomainError(w, "Failed to create loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(loan))
}

// GetLoan returns a single loan.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id := circulation.LoanID(chi.URLParam(r, "id"))
	loan, err := h.Circ.GetLoan(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// ReturnLoan transitions a loan to Returned.
func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	id := circulation.LoanID(chi.URLParam(r, "id"))

	var req ReturnLoanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	loan, err := h.Circ.ReturnLoan(r.Context(), id, req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to return loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// RenewLoan extends a loan's due date.
func (h *Handler) RenewLoan(w http.ResponseWriter, r *http.Request) {
	id := circulation.LoanID(chi.URLParam(r, "id"))

	var req RenewLoanRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	loan, err := h.Circ.RenewLoan(r.Context(), id, req.ExtraDays)
	if err != nil {
		writeDomainError(w, "Failed to renew loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

// DeleteLoan removes a non-active loan record.
func (h *Handler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	id := circulation.LoanID(chi.URLParam(r, "id"))
	if err := h.Circ.DeleteLoan(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete loan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunSweep triggers the overdue sweep by hand.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.Circ.RunOverdueSweep(r.Context())
	if err != nil {
		writeDomainError(w, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Transitioned: n})
}

// =============================================================================
// BOOK HANDLERS
// =============================================================================

// ListBooks returns all books.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.Store.ListBooks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list books", err)
		return
	}
	dtos := make([]BookDTO, len(books))
	for i, b := range books {
		dtos[i] = toBookDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBook creates a book; UpdateBook updates one.
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	h.saveBook(w, r, "")
}

func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	h.saveBook(w, r, circulation.BookID(chi.URLParam(r, "id")))
}

func (h *Handler) saveBook(w http.ResponseWriter, r *http.Request, id circulation.BookID) {
	var req SaveBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required", nil)
		return
	}
	if !isbnPattern.MatchString(req.ISBN) {
		writeError(w, http.StatusBadRequest, "ISBN may contain only digits and hyphens", nil)
		return
	}
	if req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "stock must be >= 0", nil)
		return
	}

	if id == "" {
		id = circulation.BookID(req.ID)
	}
	status := http.StatusOK
	if id == "" {
		id = circulation.BookID("book-" + newID())
		status = http.StatusCreated
	}

	book := circulation.Book{
		ID:              id,
		Title:           req.Title,
		ISBN:            req.ISBN,
		Stock:           req.Stock,
		AuthorID:        circulation.AuthorID(req.AuthorID),
		CategoryID:      circulation.CategoryID(req.CategoryID),
		PublicationYear: req.PublicationYear,
		Pages:           req.Pages,
		Description:     req.Description,
		CoverImage:      req.CoverImage,
	}
	if err := h.Store.SaveBook(r.Context(), book); err != nil {
		writeDomainError(w, "Failed to save book", err)
		return
	}
	writeJSON(w, status, toBookDTO(book))
}

// GetBook returns a single book.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id := circulation.BookID(chi.URLParam(r, "id"))
	book, err := h.Store.GetBook(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get book", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

// DeleteBook removes a book unless it has active loans.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id := circulation.BookID(chi.URLParam(r, "id"))

	busy, err := h.Circ.BookHasActiveLoans(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to check book loans", err)
		return
	}
	if busy {
		writeError(w, http.StatusConflict, "Book has active loans and cannot be deleted", nil)
		return
	}
	if err := h.Store.DeleteBook(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BookAvailability is the availability probe for one book.
func (h *Handler) BookAvailability(w http.ResponseWriter, r *http.Request) {
	id := circulation.BookID(chi.URLParam(r, "id"))

	book, err := h.Store.GetBook(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get book", err)
		return
	}
	free, err := h.Circ.AvailableCopies(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute availability", err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityDTO{
		BookID:          string(id),
		Available:       free > 0,
		AvailableCopies: free,
		Stock:           book.Stock,
		ActiveLoans:     book.Stock - free,
	})
}

// =============================================================================
// BORROWER HANDLERS
// =============================================================================

// ListBorrowers returns all borrowers.
func (h *Handler) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	borrowers, err := h.Store.ListBorrowers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list borrowers", err)
		return
	}
	dtos := make([]BorrowerDTO, len(borrowers))
	for i, b := range borrowers {
		dtos[i] = toBorrowerDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBorrower creates a borrower; UpdateBorrower updates one.
func (h *Handler) CreateBorrower(w http.ResponseWriter, r *http.Request) {
	h.saveBorrower(w, r, "")
}

func (h *Handler) UpdateBorrower(w http.ResponseWriter, r *http.Request) {
	h.saveBorrower(w, r, circulation.BorrowerID(chi.URLParam(r, "id")))
}

func (h *Handler) saveBorrower(w http.ResponseWriter, r *http.Request, id circulation.BorrowerID) {
	var req SaveBorrowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email format", nil)
		return
	}

	if id == "" {
		id = circulation.BorrowerID(req.ID)
	}
	status := http.StatusOK
	registeredAt := time.Time{}
	if id == "" {
		id = circulation.BorrowerID("borrower-" + newID())
		status = http.StatusCreated
	} else if existing, err := h.Store.GetBorrower(r.Context(), id); err == nil {
		// Registration timestamp is set once and never altered.
		registeredAt = existing.RegisteredAt
	}

	borrower := circulation.Borrower{
		ID:           id,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Address:      req.Address,
		RegisteredAt: registeredAt,
	}
	if err := h.Store.SaveBorrower(r.Context(), borrower); err != nil {
		writeDomainError(w, "Failed to save borrower", err)
		return
	}

	saved, err := h.Store.GetBorrower(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load borrower", err)
		return
	}
	writeJSON(w, status, toBorrowerDTO(*saved))
}

// GetBorrower returns a single borrower.
func (h *Handler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	id := circulation.BorrowerID(chi.URLParam(r, "id"))
	borrower, err := h.Store.GetBorrower(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get borrower", err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowerDTO(*borrower))
}

// DeleteBorrower removes a borrower unless they hold active loans.
func (h *Handler) DeleteBorrower(w http.ResponseWriter, r *http.Request) {
	id := circulation.BorrowerID(chi.URLParam(r, "id"))

	busy, err := h.Circ.BorrowerHasActiveLoans(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to check borrower loans", err)
		return
	}
	if busy {
		writeError(w, http.StatusConflict, "Borrower has active loans and cannot be deleted", nil)
		return
	}
	if err := h.Store.DeleteBorrower(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete borrower", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BorrowerEligibility answers whether the borrower may open a new loan.
func (h *Handler) BorrowerEligibility(w http.ResponseWriter, r *http.Request) {
	id := circulation.BorrowerID(chi.URLParam(r, "id"))

	ok, reason, err := h.Circ.CanBorrow(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to check eligibility", err)
		return
	}
	writeJSON(w, http.StatusOK, EligibilityDTO{
		BorrowerID: string(id),
		CanBorrow:  ok,
		Reason:     reason,
	})
}

// =============================================================================
// AUTHOR AND CATEGORY HANDLERS
// =============================================================================

func (h *Handler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.Store.ListAuthors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list authors", err)
		return
	}
	dtos := make([]AuthorDTO, len(authors))
	for i, a := range authors {
		dtos[i] = AuthorDTO{
			ID:        string(a.ID),
			Name:      a.Name,
			Biography: a.Biography,
			Country:   a.Country,
		}
		if a.BirthDate != nil {
			dtos[i].BirthDate = a.BirthDate.Format("2006-01-02")
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req AuthorDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = "author-" + newID()
	}

	author := circulation.Author{
		ID:        circulation.AuthorID(req.ID),
		Name:      req.Name,
		Biography: req.Biography,
		Country:   req.Country,
	}
	if req.BirthDate != "" {
		t, err := parseDate(req.BirthDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid birth_date format (use YYYY-MM-DD)", err)
			return
		}
		author.BirthDate = &t
	}
	if err := h.Store.SaveAuthor(r.Context(), author); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save author", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) DeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id := circulation.AuthorID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteAuthor(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete author", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list categories", err)
		return
	}
	dtos := make([]CategoryDTO, len(categories))
	for i, c := range categories {
		dtos[i] = CategoryDTO{ID: string(c.ID), Name: c.Name, Description: c.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = "category-" + newID()
	}

	category := circulation.Category{
		ID:          circulation.CategoryID(req.ID),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.Store.SaveCategory(r.Context(), category); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save category", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := circulation.CategoryID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ReportSummary returns the library-wide stats block. ?format=text renders
// the plain-text report instead of JSON.
func (h *Handler) ReportSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Reports.Summary(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to build report", err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(sum.RenderText()))
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// ReportOverdue lists overdue loans with days past due.
func (h *Handler) ReportOverdue(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Reports.OverdueLoans(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to build overdue report", err)
		return
	}

	dtos := make([]OverdueLoanDTO, len(rows))
	for i, row := range rows {
		dtos[i] = OverdueLoanDTO{Loan: toLoanDTO(row.Loan), DaysOverdue: row.DaysOverdue}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReportUtilization returns per-book utilization rates.
func (h *Handler) ReportUtilization(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Reports.Utilization(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to build utilization report", err)
		return
	}

	out := make(map[string]string, len(rates))
	for id, rate := range rates {
		out[string(id)] = rate.String()
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case circulation.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, circulation.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	case circulation.IsClientError(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func newID() string {
	return uuid.NewString()
}
