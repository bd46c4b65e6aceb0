/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements circulation.LoanStore and circulation.CatalogStore plus the full
  catalog persistence (books, borrowers, authors, categories) and the report
  queries. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  loans:       Loan records with status, due/return dates, note log
  books:       Catalog records; stock is total copies owned, never decremented
  borrowers:   Registered users
  authors, categories: Referenced by books

DERIVED AVAILABILITY:
  There is no available_copies column. Free copies are always computed as
  stock minus the live count of Active loans, so the figure cannot go stale.

CONDITIONAL SWEEP:
  MarkOverdueDue is a single UPDATE guarded by status = 'active', so the
  status check and the write are atomic per row. A sweep racing a concurrent
  Return never resurrects a returned loan.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/library.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := circulation.NewService(store, store)

SEE ALSO:
  - circulation/store.go: Interface definitions
  - circulation/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stacks/circulation-engine/circulation"
	"github.com/stacks/circulation-engine/reports"
)

// Store implements the circulation storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS authors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		birth_date TEXT,
		biography TEXT,
		country TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		isbn TEXT NOT NULL UNIQUE,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		author_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		publication_year INTEGER,
		pages INTEGER,
		description TEXT,
		cover_image TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_books_author ON books(author_id);
	CREATE INDEX IF NOT EXISTS idx_books_category ON books(category_id);

	CREATE TABLE IF NOT EXISTS borrowers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		address TEXT,
		registered_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL,
		borrower_id TEXT NOT NULL,
		loan_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		return_date TEXT,
		status TEXT NOT NULL CHECK (status IN ('active', 'overdue', 'returned')),
		notes_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot paths: availability counts and eligibility checks
	CREATE INDEX IF NOT EXISTS idx_loans_book_status ON loans(book_id, status);
	CREATE INDEX IF NOT EXISTS idx_loans_borrower_status ON loans(borrower_id, status);
	-- Sweep and filtered listings
	CREATE INDEX IF NOT EXISTS idx_loans_status_due ON loans(status, due_date);
	CREATE INDEX IF NOT EXISTS idx_loans_loan_date ON loans(loan_date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOAN STORE (circulation.LoanStore interface)
// =============================================================================

// Insert persists a new loan.
func (s *Store) Insert(ctx context.Context, loan *circulation.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notesJSON, _ := json.Marshal(loan.Notes)

	query := `
		INSERT INTO loans
		(id, book_id, borrower_id, loan_date, due_date, return_date, status, notes_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		loan.ID,
		loan.BookID,
		loan.BorrowerID,
		loan.LoanDate.UTC().Format(time.RFC3339),
		loan.DueDate.UTC().Format(time.RFC3339),
		nullTime(loan.ReturnDate),
		loan.Status,
		string(notesJSON),
		loan.CreatedAt.UTC().Format(time.RFC3339),
		loan.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}
	return nil
}

// Get returns a loan by id.
func (s *Store) Get(ctx context.Context, id circulation.LoanID) (*circulation.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, book_id, borrower_id, loan_date, due_date, return_date, status, notes_json, created_at, updated_at
		FROM loans WHERE id = ?
	`, id)

	loan, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, circulation.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Update persists the current state of an existing loan.
func (s *Store) Update(ctx context.Context, loan *circulation.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notesJSON, _ := json.Marshal(loan.Notes)

	res, err := s.db.ExecContext(ctx, `
		UPDATE loans
		SET due_date = ?, return_date = ?, status = ?, notes_json = ?, updated_at = ?
		WHERE id = ?
	`,
		loan.DueDate.UTC().Format(time.RFC3339),
		nullTime(loan.ReturnDate),
		loan.Status,
		string(notesJSON),
		loan.UpdatedAt.UTC().Format(time.RFC3339),
		loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return circulation.ErrLoanNotFound
	}
	return nil
}

// Delete removes a loan record.
func (s *Store) Delete(ctx context.Context, id circulation.LoanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM loans WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return circulation.ErrLoanNotFound
	}
	return nil
}

// List returns loans matching the filter, most recent loan date first.
func (s *Store) List(ctx context.Context, filter circulation.LoanFilter) ([]*circulation.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, book_id, borrower_id, loan_date, due_date, return_date, status, notes_json, created_at, updated_at
		FROM loans
	`
	var args []any
	if filter != circulation.FilterAll && filter != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter))
	}
	query += " ORDER BY loan_date DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []*circulation.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, rows.Err()
}

// CountActiveByBook returns the number of Active loans for a book.
func (s *Store) CountActiveByBook(ctx context.Context, bookID circulation.BookID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM loans WHERE book_id = ? AND status = 'active'", bookID,
	).Scan(&n)
	return n, err
}

// CountActiveByBorrower returns the number of Active loans a borrower holds.
func (s *Store) CountActiveByBorrower(ctx context.Context, borrowerID circulation.BorrowerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM loans WHERE borrower_id = ? AND status = 'active'", borrowerID,
	).Scan(&n)
	return n, err
}

// HasOverdueByBorrower reports whether the borrower holds any Overdue loan
// other than exclude.
func (s *Store) HasOverdueByBorrower(ctx context.Context, borrowerID circulation.BorrowerID, exclude circulation.LoanID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM loans WHERE borrower_id = ? AND id != ? AND status = 'overdue'",
		borrowerID, exclude,
	).Scan(&n)
	return n > 0, err
}

// MarkOverdueDue transitions every stale Active loan to Overdue. The status
// guard in the WHERE clause makes the transition atomic per row.
func (s *Store) MarkOverdueDue(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE loans
		SET status = 'overdue', updated_at = ?
		WHERE status = 'active' AND due_date < ?
	`,
		now.UTC().Format(time.RFC3339),
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep overdue loans: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Counts returns the per-status loan summary.
func (s *Store) Counts(ctx context.Context) (circulation.LoanCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c circulation.LoanCounts
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM loans GROUP BY status")
	if err != nil {
		return c, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return c, err
		}
		c.Total += n
		switch circulation.LoanStatus(status) {
		case circulation.StatusActive:
			c.Active = n
		case circulation.StatusOverdue:
			c.Overdue = n
		case circulation.StatusReturned:
			c.Returned = n
		}
	}
	return c, rows.Err()
}

func scanLoan(row interface{ Scan(dest ...any) error }) (*circulation.Loan, error) {
	var (
		loan       circulation.Loan
		loanDate   string
		dueDate    string
		returnDate sql.NullString
		status     string
		notesJSON  sql.NullString
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(
		&loan.ID, &loan.BookID, &loan.BorrowerID,
		&loanDate, &dueDate, &returnDate, &status, &notesJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	loan.LoanDate, _ = time.Parse(time.RFC3339, loanDate)
	loan.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	if returnDate.Valid {
		t, _ := time.Parse(time.RFC3339, returnDate.String)
		loan.ReturnDate = &t
	}
	loan.Status = circulation.LoanStatus(status)
	if notesJSON.Valid && notesJSON.String != "" {
		json.Unmarshal([]byte(notesJSON.String), &loan.Notes)
	}
	loan.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	loan.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &loan, nil
}

// =============================================================================
// CATALOG STORE (circulation.CatalogStore interface + CRUD)
// =============================================================================

// SaveBook inserts or updates a book. Stock edits go through here; the loan
// table is untouched.
func (s *Store) SaveBook(ctx context.Context, b circulation.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO books (id, title, isbn, stock, author_id, category_id, publication_year, pages, description, cover_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			isbn = excluded.isbn,
			stock = excluded.stock,
			author_id = excluded.author_id,
			category_id = excluded.category_id,
			publication_year = excluded.publication_year,
			pages = excluded.pages,
			description = excluded.description,
			cover_image = excluded.cover_image
	`

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Title, b.ISBN, b.Stock, b.AuthorID, b.CategoryID,
		b.PublicationYear, b.Pages, b.Description, b.CoverImage,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: ISBN already in use", circulation.ErrValidation)
		}
		return fmt.Errorf("failed to save book: %w", err)
	}
	return nil
}

// GetBook returns a book by id.
func (s *Store) GetBook(ctx context.Context, id circulation.BookID) (*circulation.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		b         circulation.Book
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, isbn, stock, author_id, category_id, publication_year, pages, description, cover_image, created_at
		FROM books WHERE id = ?
	`, id).Scan(&b.ID, &b.Title, &b.ISBN, &b.Stock, &b.AuthorID, &b.CategoryID,
		&b.PublicationYear, &b.Pages, &b.Description, &b.CoverImage, &createdAt)

	if err == sql.ErrNoRows {
		return nil, circulation.ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &b, nil
}

// ListBooks returns all books ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]circulation.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, isbn, stock, author_id, category_id, publication_year, pages, description, cover_image, created_at
		FROM books ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []circulation.Book
	for rows.Next() {
		var (
			b         circulation.Book
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.Title, &b.ISBN, &b.Stock, &b.AuthorID, &b.CategoryID,
			&b.PublicationYear, &b.Pages, &b.Description, &b.CoverImage, &createdAt); err != nil {
			return nil, err
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		books = append(books, b)
	}
	return books, rows.Err()
}

// DeleteBook removes a book. The active-loan gate lives in the service; the
// API layer checks it before calling here.
func (s *Store) DeleteBook(ctx context.Context, id circulation.BookID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return circulation.ErrBookNotFound
	}
	return nil
}

// SaveBorrower inserts or updates a borrower. RegisteredAt is written only on
// insert and never altered afterwards.
func (s *Store) SaveBorrower(ctx context.Context, b circulation.Borrower) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	registeredAt := b.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now()
	}

	query := `
		INSERT INTO borrowers (id, name, email, phone, address, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			address = excluded.address
	`

	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Email, b.Phone, b.Address,
		registeredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email already in use", circulation.ErrValidation)
		}
		return fmt.Errorf("failed to save borrower: %w", err)
	}
	return nil
}

// GetBorrower returns a borrower by id.
func (s *Store) GetBorrower(ctx context.Context, id circulation.BorrowerID) (*circulation.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		b            circulation.Borrower
		registeredAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, registered_at
		FROM borrowers WHERE id = ?
	`, id).Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.Address, &registeredAt)

	if err == sql.ErrNoRows {
		return nil, circulation.ErrBorrowerNotFound
	}
	if err != nil {
		return nil, err
	}
	b.RegisteredAt, _ = time.Parse(time.RFC3339, registeredAt)
	return &b, nil
}

// ListBorrowers returns all borrowers ordered by name.
func (s *Store) ListBorrowers(ctx context.Context) ([]circulation.Borrower, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, phone, address, registered_at FROM borrowers ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var borrowers []circulation.Borrower
	for rows.Next() {
		var (
			b            circulation.Borrower
			registeredAt string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.Address, &registeredAt); err != nil {
			return nil, err
		}
		b.RegisteredAt, _ = time.Parse(time.RFC3339, registeredAt)
		borrowers = append(borrowers, b)
	}
	return borrowers, rows.Err()
}

// DeleteBorrower removes a borrower. Gated by the service's active-loan check.
func (s *Store) DeleteBorrower(ctx context.Context, id circulation.BorrowerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM borrowers WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return circulation.ErrBorrowerNotFound
	}
	return nil
}

// =============================================================================
// AUTHORS AND CATEGORIES
// =============================================================================

// SaveAuthor inserts or updates an author.
func (s *Store) SaveAuthor(ctx context.Context, a circulation.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var birthDate *string
	if a.BirthDate != nil {
		t := a.BirthDate.Format("2006-01-02")
		birthDate = &t
	}

	query := `
		INSERT INTO authors (id, name, birth_date, biography, country, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			birth_date = excluded.birth_date,
			biography = excluded.biography,
			country = excluded.country
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Name, birthDate, a.Biography, a.Country,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetAuthor returns an author by id, or nil when absent.
func (s *Store) GetAuthor(ctx context.Context, id circulation.AuthorID) (*circulation.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		a         circulation.Author
		birthDate sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, birth_date, biography, country FROM authors WHERE id = ?", id,
	).Scan(&a.ID, &a.Name, &birthDate, &a.Biography, &a.Country)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if birthDate.Valid {
		t, _ := time.Parse("2006-01-02", birthDate.String)
		a.BirthDate = &t
	}
	return &a, nil
}

// ListAuthors returns all authors ordered by name.
func (s *Store) ListAuthors(ctx context.Context) ([]circulation.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, birth_date, biography, country FROM authors ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authors []circulation.Author
	for rows.Next() {
		var (
			a         circulation.Author
			birthDate sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Name, &birthDate, &a.Biography, &a.Country); err != nil {
			return nil, err
		}
		if birthDate.Valid {
			t, _ := time.Parse("2006-01-02", birthDate.String)
			a.BirthDate = &t
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// DeleteAuthor removes an author.
func (s *Store) DeleteAuthor(ctx context.Context, id circulation.AuthorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM authors WHERE id = ?", id)
	return err
}

// SaveCategory inserts or updates a category.
func (s *Store) SaveCategory(ctx context.Context, c circulation.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO categories (id, name, description, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Description, time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetCategory returns a category by id, or nil when absent.
func (s *Store) GetCategory(ctx context.Context, id circulation.CategoryID) (*circulation.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c circulation.Category
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM categories WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Description)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]circulation.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []circulation.Category
	for rows.Next() {
		var c circulation.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes a category.
func (s *Store) DeleteCategory(ctx context.Context, id circulation.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	return err
}

// =============================================================================
// REPORT QUERIES (reports.Store interface)
// =============================================================================

// TotalBooks returns the number of catalog books.
func (s *Store) TotalBooks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books").Scan(&n)
	return n, err
}

// TotalBorrowers returns the number of registered borrowers.
func (s *Store) TotalBorrowers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM borrowers").Scan(&n)
	return n, err
}

// MostBorrowedBooks returns books ranked by all-time loan count.
func (s *Store) MostBorrowedBooks(ctx context.Context, limit int) ([]reports.BookActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.isbn, b.stock,
		       COUNT(l.id) AS total_loans,
		       COALESCE(SUM(CASE WHEN l.status = 'active' THEN 1 ELSE 0 END), 0) AS active_loans
		FROM books b
		LEFT JOIN loans l ON l.book_id = b.id
		GROUP BY b.id
		ORDER BY total_loans DESC, b.title ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reports.BookActivity
	for rows.Next() {
		var a reports.BookActivity
		if err := rows.Scan(&a.BookID, &a.Title, &a.ISBN, &a.Stock, &a.TotalLoans, &a.ActiveLoans); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// MostActiveBorrowers returns borrowers ranked by all-time loan count.
func (s *Store) MostActiveBorrowers(ctx context.Context, limit int) ([]reports.BorrowerActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email,
		       COUNT(l.id) AS total_loans,
		       COALESCE(SUM(CASE WHEN l.status = 'active' THEN 1 ELSE 0 END), 0) AS active_loans
		FROM borrowers u
		LEFT JOIN loans l ON l.borrower_id = u.id
		GROUP BY u.id
		ORDER BY total_loans DESC, u.name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reports.BorrowerActivity
	for rows.Next() {
		var a reports.BorrowerActivity
		if err := rows.Scan(&a.BorrowerID, &a.Name, &a.Email, &a.TotalLoans, &a.ActiveLoans); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// CompletedLoanSpans returns the loan and return dates of every Returned loan.
func (s *Store) CompletedLoanSpans(ctx context.Context) ([]reports.LoanSpan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT loan_date, return_date FROM loans
		WHERE status = 'returned' AND return_date IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spans []reports.LoanSpan
	for rows.Next() {
		var loanDate, returnDate string
		if err := rows.Scan(&loanDate, &returnDate); err != nil {
			return nil, err
		}
		var span reports.LoanSpan
		span.LoanDate, _ = time.Parse(time.RFC3339, loanDate)
		span.ReturnDate, _ = time.Parse(time.RFC3339, returnDate)
		spans = append(spans, span)
	}
	return spans, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"loans", "books", "borrowers", "authors", "categories"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
