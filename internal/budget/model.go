package budget

import (
	"regexp"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/shopspring/decimal"
)

const (
	MAX_TRANSACTION_NAME_LENGTH = 255
	MAX_AMOUNT_DECIMAL_PLACES   = 2
	MAX_AMOUNT_INTEGER_DIGITS   = 16
	MAX_AMOUNT_INPUT_LENGTH     = 32
)

// Plain digits with an optional fraction; no sign, no exponent.
var amountPattern = regexp.MustCompile(`^[0-9]+([.,][0-9]+)?$`)

// MAX_TRANSACTION_AMOUNT mirrors the backend column DECIMAL(18,2).
var MAX_TRANSACTION_AMOUNT = decimal.RequireFromString("9999999999999999.99")

type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Sign is +1 for income and -1 for expense.
func (k Kind) Sign() decimal.Decimal {
	if k == KindExpense {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", appErrors.Validation("Invalid transaction type: %q, expected income or expense", s)
	}
	return k, nil
}

// Transaction is the confirmed server state of a record. Amount is never
// negative; the sign lives in Kind.
type Transaction struct {
	ID         string
	OwnerID    string
	Name       string
	Kind       Kind
	Amount     decimal.Decimal
	ReceiptRef string
	CreatedAt  time.Time
}

// Signed returns the amount with the sign of its kind applied.
func (t Transaction) Signed() decimal.Decimal {
	return t.Amount.Mul(t.Kind.Sign())
}

type NewTransaction struct {
	OwnerID string
	Name    string
	Kind    Kind
	Amount  decimal.Decimal
}

// Fields is a partial update. Nil fields are left untouched by the server.
type Fields struct {
	Name       *string
	Kind       *Kind
	Amount     *decimal.Decimal
	ReceiptRef *string
}

func (f Fields) IsEmpty() bool {
	return f.Name == nil && f.Kind == nil && f.Amount == nil && f.ReceiptRef == nil
}

// ParseAmount accepts user input such as "3.50" or "3,50" and returns a
// non-negative decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Decimal{}, appErrors.Validation("Amount cannot be empty!")
	}
	if strings.HasPrefix(raw, "-") {
		return decimal.Decimal{}, appErrors.Validation("Amount cannot be negative!")
	}
	if !amountPattern.MatchString(raw) {
		return decimal.Decimal{}, appErrors.Validation("Amount must be a number, got: %q", s)
	}
	if len(raw) > MAX_AMOUNT_INPUT_LENGTH {
		return decimal.Decimal{}, amountTooLarge()
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		return decimal.Decimal{}, appErrors.Validation("Amount must be a number, got: %q", s)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

// ValidateAmount checks the DECIMAL(18,2) bounds from the exponent and digit
// count first, so no comparison ever rescales an out-of-range value.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return appErrors.Validation("Amount cannot be negative!")
	}

	exp := int(amount.Exponent())
	if exp > MAX_AMOUNT_INTEGER_DIGITS || (!amount.IsZero() && amount.NumDigits()+exp > MAX_AMOUNT_INTEGER_DIGITS) {
		return amountTooLarge()
	}
	if exp < -(MAX_AMOUNT_INTEGER_DIGITS + MAX_AMOUNT_DECIMAL_PLACES) {
		return appErrors.Validation("Amount can have at most %d decimal places", MAX_AMOUNT_DECIMAL_PLACES)
	}

	if amount.GreaterThan(MAX_TRANSACTION_AMOUNT) {
		return amountTooLarge()
	}
	if !amount.Equal(amount.Round(MAX_AMOUNT_DECIMAL_PLACES)) {
		return appErrors.Validation("Amount can have at most %d decimal places", MAX_AMOUNT_DECIMAL_PLACES)
	}
	return nil
}

func amountTooLarge() error {
	return appErrors.Validation("Amount is too large, the limit is: %s", MAX_TRANSACTION_AMOUNT.StringFixed(MAX_AMOUNT_DECIMAL_PLACES))
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return appErrors.Validation("Name cannot be empty!")
	}
	if len(name) > MAX_TRANSACTION_NAME_LENGTH {
		return appErrors.Validation("Name so long, maximum length is %d", MAX_TRANSACTION_NAME_LENGTH)
	}
	return nil
}

func (t NewTransaction) Validate() error {
	if t.OwnerID == "" {
		return appErrors.Validation("Owner cannot be empty!")
	}
	if err := ValidateName(t.Name); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return appErrors.Validation("Invalid transaction type: %q, expected income or expense", string(t.Kind))
	}
	return ValidateAmount(t.Amount)
}

func (f Fields) Validate() error {
	if f.Name != nil {
		if err := ValidateName(*f.Name); err != nil {
			return err
		}
	}
	if f.Kind != nil && !f.Kind.Valid() {
		return appErrors.Validation("Invalid transaction type: %q, expected income or expense", string(*f.Kind))
	}
	if f.Amount != nil {
		if err := ValidateAmount(*f.Amount); err != nil {
			return err
		}
	}
	if f.ReceiptRef != nil && strings.TrimSpace(*f.ReceiptRef) == "" {
		return appErrors.Validation("Receipt reference cannot be empty!")
	}
	return nil
}

// ComputeBudget is Σincome − Σexpense. An empty set yields zero.
func ComputeBudget(transactions []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transactions {
		total = total.Add(t.Signed())
	}
	return total
}
