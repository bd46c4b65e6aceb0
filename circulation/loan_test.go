package circulation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacks/circulation-engine/circulation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	jan1  = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	jan16 = time.Date(2025, time.January, 16, 0, 0, 0, 0, time.UTC)
	feb1  = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
)

func activeLoan() *circulation.Loan {
	return circulation.NewLoan("book-1", "borrower-1", jan1, time.Time{})
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNewLoan_DefaultsDueDate(t *testing.T) {
	// GIVEN: No explicit due date
	// WHEN: Creating a loan on January 1
	// THEN: Due date defaults to loan date + 15 days

	loan := activeLoan()

	assert.Equal(t, circulation.StatusActive, loan.Status)
	assert.Equal(t, jan16, loan.DueDate)
	assert.Nil(t, loan.ReturnDate)
	assert.NotEmpty(t, loan.ID)
}

func TestNewLoan_ExplicitDueDate(t *testing.T) {
	due := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	loan := circulation.NewLoan("book-1", "borrower-1", jan1, due)
	assert.Equal(t, due, loan.DueDate)
}

// =============================================================================
// OVERDUE TRANSITION
// =============================================================================

func TestMarkOverdue_FiresOncePastDueDate(t *testing.T) {
	// GIVEN: An active loan due January 16
	// WHEN: Marking overdue on February 1
	// THEN: The transition fires exactly once

	loan := activeLoan()

	assert.True(t, loan.MarkOverdue(feb1))
	assert.Equal(t, circulation.StatusOverdue, loan.Status)

	// Second call is a no-op
	assert.False(t, loan.MarkOverdue(feb1))
	assert.Equal(t, circulation.StatusOverdue, loan.Status)
}

func TestMarkOverdue_NoOpBeforeDueDate(t *testing.T) {
	loan := activeLoan()
	assert.False(t, loan.MarkOverdue(jan1.AddDate(0, 0, 5)))
	assert.Equal(t, circulation.StatusActive, loan.Status)
}

func TestMarkOverdue_DueDateItselfIsNotOverdue(t *testing.T) {
	// Overdue means strictly past the due date, not on it.
	loan := activeLoan()
	assert.False(t, loan.MarkOverdue(loan.DueDate))
}

func TestMarkOverdue_ReturnedLoanUntouched(t *testing.T) {
	loan := activeLoan()
	require.NoError(t, loan.Return(jan16, ""))
	assert.False(t, loan.MarkOverdue(feb1))
	assert.Equal(t, circulation.StatusReturned, loan.Status)
}

// =============================================================================
// RETURN
// =============================================================================

func TestReturn_SetsReturnDateOnce(t *testing.T) {
	// GIVEN: An active loan
	// WHEN: Returning it twice
	// THEN: The second return fails and the first return date survives

	loan := activeLoan()

	require.NoError(t, loan.Return(jan16, "good condition"))
	require.NotNil(t, loan.ReturnDate)
	assert.Equal(t, jan16, *loan.ReturnDate)
	assert.Equal(t, circulation.StatusReturned, loan.Status)

	err := loan.Return(feb1, "")
	assert.ErrorIs(t, err, circulation.ErrInvalidTransition)
	assert.Equal(t, jan16, *loan.ReturnDate, "first return date must survive")
}

func TestReturn_OverdueLoanCanBeReturned(t *testing.T) {
	loan := activeLoan()
	require.True(t, loan.MarkOverdue(feb1))

	assert.NoError(t, loan.Return(feb1, ""))
	assert.Equal(t, circulation.StatusReturned, loan.Status)
}

func TestReturn_AppendsNote(t *testing.T) {
	loan := activeLoan()
	require.NoError(t, loan.Return(jan16, "slightly damaged"))

	require.Len(t, loan.Notes, 1)
	assert.Equal(t, "returned: slightly damaged", loan.Notes[0].Text)
}

// =============================================================================
// RENEWAL
// =============================================================================

func TestRenew_ExtendsFromCurrentDueDate(t *testing.T) {
	// GIVEN: An active loan due January 16
	// WHEN: Renewing on January 10 for the default term
	// THEN: Due date becomes January 31 (extends the due date, not "now")

	loan := activeLoan()
	renewedAt := jan1.AddDate(0, 0, 9)

	require.NoError(t, loan.Renew(renewedAt, 0))
	assert.Equal(t, jan16.AddDate(0, 0, circulation.DefaultRenewalDays), loan.DueDate)
	require.Len(t, loan.Notes, 1)
	assert.Contains(t, loan.Notes[0].Text, "renewed for 15 days")
}

func TestRenew_ExplicitDays(t *testing.T) {
	loan := activeLoan()
	require.NoError(t, loan.Renew(jan1, 7))
	assert.Equal(t, jan16.AddDate(0, 0, 7), loan.DueDate)
}

func TestRenew_OverdueLoanBlocked(t *testing.T) {
	// GIVEN: A loan that went overdue
	// WHEN: Renewing it
	// THEN: The renewal is blocked; return it first

	loan := activeLoan()
	require.True(t, loan.MarkOverdue(feb1))

	err := loan.Renew(feb1, 0)
	assert.ErrorIs(t, err, circulation.ErrRenewalBlocked)

	var blocked *circulation.RenewalBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, circulation.ReasonLoanOverdue, blocked.Reason)
}

func TestRenew_ReturnedLoanRejected(t *testing.T) {
	loan := activeLoan()
	require.NoError(t, loan.Return(jan16, ""))

	err := loan.Renew(feb1, 0)
	assert.ErrorIs(t, err, circulation.ErrInvalidTransition)
}

// =============================================================================
// DELETE GATE
// =============================================================================

func TestDeletable_ActiveLoanIsNot(t *testing.T) {
	loan := activeLoan()
	assert.False(t, loan.Deletable())

	require.NoError(t, loan.Return(jan16, ""))
	assert.True(t, loan.Deletable())
}

func TestDeletable_OverdueLoanIs(t *testing.T) {
	loan := activeLoan()
	require.True(t, loan.MarkOverdue(feb1))
	assert.True(t, loan.Deletable())
}
