package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/fatali-fataliyev/financez/internal/receipt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestChangedFields(t *testing.T) {
	current := budget.Transaction{
		ID:     "t1",
		Name:   "Coffee",
		Kind:   budget.KindExpense,
		Amount: decimal.RequireFromString("3.50"),
	}

	fields, err := changedFields(current, transactionInput{Name: "Coffee", Kind: "expense", Amount: "3.5"})
	require.NoError(t, err)
	require.True(t, fields.IsEmpty())

	fields, err = changedFields(current, transactionInput{Name: " Tea ", Kind: "income", Amount: "4,25"})
	require.NoError(t, err)
	require.Equal(t, "Tea", *fields.Name)
	require.Equal(t, budget.KindIncome, *fields.Kind)
	require.Equal(t, "4.25", fields.Amount.StringFixed(2))

	_, err = changedFields(current, transactionInput{Amount: "-5"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestRenderTransactions(t *testing.T) {
	out := renderTransactions(budget.Snapshot{Budget: decimal.Zero})
	require.Contains(t, out, "Create a transaction to view Transactions")
	require.Contains(t, out, "Budget: 0.00")

	out = renderTransactions(budget.Snapshot{
		Transactions: []budget.Transaction{
			{ID: "a", Name: "Salary", Kind: budget.KindIncome, Amount: decimal.NewFromInt(100)},
			{ID: "b", Name: "Rent", Kind: budget.KindExpense, Amount: decimal.NewFromInt(40), ReceiptRef: "f1"},
		},
		Budget: decimal.NewFromInt(60),
		Loaded: true,
	})
	require.Contains(t, out, "Salary")
	require.Contains(t, out, "[receipt]")
	require.Contains(t, out, "Budget: 60.00")
}

func TestExtensionFor(t *testing.T) {
	require.Equal(t, ".png", extensionFor("image/png"))
	require.Equal(t, ".jpg", extensionFor("image/jpeg"))
	require.Equal(t, ".jpg", extensionFor("application/octet-stream"))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "abc…", truncate("abcdef", 4))
}

func TestCancelledOnlySwallowsUserChoices(t *testing.T) {
	require.NoError(t, cancelled(errCancelled))
	require.NoError(t, cancelled(receipt.ErrCaptureCancelled))

	interrupted := fmt.Errorf("receipt capture: %w", context.Canceled)
	require.ErrorIs(t, cancelled(interrupted), context.Canceled)

	other := errors.New("boom")
	require.Equal(t, other, cancelled(other))
}
