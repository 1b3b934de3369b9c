package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/auth"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/fatali-fataliyev/financez/internal/receipt"
	"github.com/shopspring/decimal"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
	}
	return fs
}

func (a *app) signup(ctx context.Context, args []string) error {
	if err := newFlagSet("signup").Parse(args); err != nil {
		return err
	}

	var newUser auth.NewUser
	if err := signupForm(ctx, &newUser); err != nil {
		return cancelled(err)
	}

	msg, err := a.client.Signup(ctx, newUser)
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render(msg))
	fmt.Println(mutedStyle.Render("Now log in: financez login -email " + strings.TrimSpace(newUser.Email)))
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	credentials := auth.UserCredentialsPure{Email: strings.TrimSpace(*email)}
	if err := loginForm(ctx, &credentials); err != nil {
		return cancelled(err)
	}

	credential, err := a.client.Login(ctx, credentials)
	if err != nil {
		return err
	}
	if err := a.session.Login(ctx, credential); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Logged in."))
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Logged out."))
	return nil
}

func (a *app) list(ctx context.Context, ownerID string) error {
	if err := a.store.Load(ctx, ownerID); err != nil {
		return err
	}
	fmt.Print(renderTransactions(a.store.Snapshot()))
	return nil
}

func (a *app) add(ctx context.Context, ownerID string, args []string) error {
	fs := newFlagSet("add")
	name := fs.String("name", "", "transaction name")
	kind := fs.String("type", "", "income or expense")
	amount := fs.String("amount", "", "non-negative amount, e.g. 3.50")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input := transactionInput{Name: *name, Kind: *kind, Amount: *amount}
	if input.Name == "" || input.Kind == "" || input.Amount == "" {
		if err := transactionForm(ctx, "New transaction", &input); err != nil {
			return cancelled(err)
		}
	}

	if err := a.store.Create(ctx, ownerID, input.Name, input.Kind, input.Amount); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Transaction added successfully"))
	fmt.Print(renderTransactions(a.store.Snapshot()))
	return nil
}

// findForEdit loads the list and resolves id against it.
func (a *app) findForEdit(ctx context.Context, ownerID string, id string) (budget.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return budget.Transaction{}, appErrors.Validation("Transaction id is required: -id ID")
	}
	if err := a.store.Load(ctx, ownerID); err != nil {
		return budget.Transaction{}, err
	}
	return a.store.Lookup(id)
}

func (a *app) edit(ctx context.Context, ownerID string, args []string) error {
	fs := newFlagSet("edit")
	id := fs.String("id", "", "transaction id")
	name := fs.String("name", "", "new name")
	kind := fs.String("type", "", "new type: income or expense")
	amount := fs.String("amount", "", "new amount")
	if err := fs.Parse(args); err != nil {
		return err
	}

	current, err := a.findForEdit(ctx, ownerID, *id)
	if err != nil {
		return err
	}

	input := transactionInput{Name: *name, Kind: *kind, Amount: *amount}
	if input.Name == "" && input.Kind == "" && input.Amount == "" {
		a.showReceiptSummary(ctx, current)
		input = transactionInput{
			Name:   current.Name,
			Kind:   string(current.Kind),
			Amount: current.Amount.StringFixed(2),
		}
		if err := transactionForm(ctx, "Edit transaction", &input); err != nil {
			return cancelled(err)
		}
	}

	fields, err := changedFields(current, input)
	if err != nil {
		return err
	}
	if fields.IsEmpty() {
		fmt.Println(mutedStyle.Render("Nothing changed."))
		return nil
	}

	if err := a.store.Update(ctx, current.ID, fields); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Transaction updated successfully!"))
	return nil
}

// changedFields keeps only the values that differ from current. Input is
// validated before anything is sent.
func changedFields(current budget.Transaction, input transactionInput) (budget.Fields, error) {
	var fields budget.Fields

	if name := strings.TrimSpace(input.Name); name != "" && name != current.Name {
		fields.Name = &name
	}
	if input.Kind != "" {
		kind, err := budget.ParseKind(input.Kind)
		if err != nil {
			return budget.Fields{}, err
		}
		if kind != current.Kind {
			fields.Kind = &kind
		}
	}
	if input.Amount != "" {
		amount, err := budget.ParseAmount(input.Amount)
		if err != nil {
			return budget.Fields{}, err
		}
		if !amount.Equal(current.Amount) {
			fields.Amount = &amount
		}
	}
	return fields, nil
}

func (a *app) showReceiptSummary(ctx context.Context, t budget.Transaction) {
	if t.ReceiptRef == "" {
		return
	}
	preview, ok := a.flow.FetchForDisplay(ctx, t.ReceiptRef)
	if !ok {
		fmt.Println(mutedStyle.Render("Receipt attached, preview unavailable."))
		return
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("Receipt attached: %s, %d bytes (financez receipt show -id %s)", preview.ContentType, len(preview.Data), t.ID)))
}

func (a *app) receipt(ctx context.Context, ownerID string, args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return appErrors.Validation("receipt needs a subcommand: attach or show")
	}

	switch args[0] {
	case "attach":
		return a.attachReceipt(ctx, ownerID, args[1:])
	case "show":
		return a.showReceipt(ctx, ownerID, args[1:])
	default:
		fmt.Print(usage)
		return appErrors.Validation("Unknown receipt command: %s", args[0])
	}
}

func (a *app) attachReceipt(ctx context.Context, ownerID string, args []string) error {
	fs := newFlagSet("receipt attach")
	id := fs.String("id", "", "transaction id")
	file := fs.String("file", "", "path to the receipt image")
	if err := fs.Parse(args); err != nil {
		return err
	}

	t, err := a.findForEdit(ctx, ownerID, *id)
	if err != nil {
		return err
	}

	image := receipt.LocalImage{Path: strings.TrimSpace(*file)}
	if image.Path == "" {
		image, err = a.flow.Capture(ctx)
		if err != nil {
			return cancelled(err)
		}
	}

	if _, err := a.flow.Attach(ctx, t.ID, ownerID, image); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Receipt uploaded successfully!"))
	return nil
}

func (a *app) showReceipt(ctx context.Context, ownerID string, args []string) error {
	fs := newFlagSet("receipt show")
	id := fs.String("id", "", "transaction id")
	out := fs.String("out", "", "where to save the image")
	if err := fs.Parse(args); err != nil {
		return err
	}

	t, err := a.findForEdit(ctx, ownerID, *id)
	if err != nil {
		return err
	}
	if t.ReceiptRef == "" {
		fmt.Println(mutedStyle.Render("No receipt attached."))
		return nil
	}

	preview, ok := a.flow.FetchForDisplay(ctx, t.ReceiptRef)
	if !ok {
		fmt.Println(mutedStyle.Render("No preview available."))
		return nil
	}

	path := *out
	if path == "" {
		path = "receipt_" + t.ID + extensionFor(preview.ContentType)
	}
	if err := os.WriteFile(path, preview.Data, 0o600); err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Receipt saved to %s (%s, %d bytes)", path, preview.ContentType, len(preview.Data))))
	return nil
}

func extensionFor(contentType string) string {
	switch strings.SplitN(contentType, ";", 2)[0] {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}

// cancelled turns a user backing out into a quiet exit.
func cancelled(err error) error {
	if errors.Is(err, errCancelled) || errors.Is(err, receipt.ErrCaptureCancelled) {
		fmt.Println(mutedStyle.Render("Cancelled."))
		return nil
	}
	return err
}

func renderTransactions(snap budget.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Transactions") + "\n")

	if len(snap.Transactions) == 0 {
		b.WriteString(mutedStyle.Render("Create a transaction to view Transactions") + "\n")
	}

	for _, t := range snap.Transactions {
		amount := fmt.Sprintf("%12s", t.Amount.StringFixed(2))
		style := incomeStyle
		sign := "+"
		if t.Kind == budget.KindExpense {
			style = expenseStyle
			sign = "-"
		}
		marker := ""
		if t.ReceiptRef != "" {
			marker = mutedStyle.Render(" [receipt]")
		}
		fmt.Fprintf(&b, "%s  %-24s %-8s %s%s\n",
			mutedStyle.Render(t.ID),
			truncate(t.Name, 24),
			t.Kind,
			style.Render(sign+amount),
			marker,
		)
	}

	budgetLine := "Budget: " + snap.Budget.StringFixed(2)
	if snap.Budget.LessThan(decimal.Zero) {
		budgetLine = expenseStyle.Render(budgetLine)
	} else {
		budgetLine = incomeStyle.Render(budgetLine)
	}
	b.WriteString(budgetStyle.Render(budgetLine) + "\n")
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
