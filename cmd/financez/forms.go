package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
	"github.com/fatali-fataliyev/financez/internal/auth"
	"github.com/fatali-fataliyev/financez/internal/budget"
)

var errCancelled = errors.New("cancelled")

// runForm maps the user aborting a form to errCancelled. Context errors
// pass through so an interrupt is not mistaken for a choice.
func runForm(ctx context.Context, form *huh.Form) error {
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) && ctx.Err() == nil {
			return errCancelled
		}
		return err
	}
	return nil
}

func kindOptions() []huh.Option[string] {
	return []huh.Option[string]{
		huh.NewOption("Expense", string(budget.KindExpense)),
		huh.NewOption("Income", string(budget.KindIncome)),
	}
}

func validateAmountInput(s string) error {
	_, err := budget.ParseAmount(s)
	return err
}

func signupForm(ctx context.Context, newUser *auth.NewUser) error {
	return runForm(ctx, huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Full name").
				Value(&newUser.FullName).
				Validate(auth.ValidateFullName),
			huh.NewInput().
				Title("Email").
				Placeholder("john.doe@gmail.com").
				Value(&newUser.Email).
				Validate(auth.ValidateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&newUser.PasswordPlain).
				Validate(auth.ValidatePassword),
			huh.NewInput().
				Title("Country").
				Value(&newUser.Country),
		),
	))
}

func loginForm(ctx context.Context, credentials *auth.UserCredentialsPure) error {
	fields := []huh.Field{}
	if credentials.Email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(&credentials.Email).
			Validate(auth.ValidateEmail))
	}
	fields = append(fields, huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&credentials.PasswordPlain))

	return runForm(ctx, huh.NewForm(huh.NewGroup(fields...)))
}

type transactionInput struct {
	Name   string
	Kind   string
	Amount string
}

// transactionForm edits in place, so callers prefill it for the edit screen.
func transactionForm(ctx context.Context, title string, input *transactionInput) error {
	if input.Kind == "" {
		input.Kind = string(budget.KindExpense)
	}
	return runForm(ctx, huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title(title),
			huh.NewInput().
				Title("Name").
				Value(&input.Name).
				Validate(budget.ValidateName),
			huh.NewSelect[string]().
				Title("Type").
				Options(kindOptions()...).
				Value(&input.Kind),
			huh.NewInput().
				Title("Amount").
				Placeholder("0.00").
				Value(&input.Amount).
				Validate(validateAmountInput),
		),
	))
}

func askReceiptPath(ctx context.Context) (string, error) {
	var path string
	err := runForm(ctx, huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Receipt image").
				Description("Path to a photo of the receipt, empty to cancel").
				Value(&path),
		),
	))
	if errors.Is(err, errCancelled) {
		return "", nil
	}
	return path, err
}
