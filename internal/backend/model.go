package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/shopspring/decimal"
)

// REQUESTS START:
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Country  string `json:"country"`
}

type CreateTransactionRequest struct {
	UserID string      `json:"userId"`
	Name   string      `json:"name"`
	Type   string      `json:"type"`
	Amount json.Number `json:"amount"`
}

type UpdateTransactionRequest struct {
	Name          *string      `json:"name,omitempty"`
	Type          *string      `json:"type,omitempty"`
	Amount        *json.Number `json:"amount,omitempty"`
	ReceiptFileID *string      `json:"receiptFileId,omitempty"`
}

// REQUESTS END:

// RESPONSES:
type LoginResponse struct {
	UserID  FlexString `json:"userId"`
	Token   string     `json:"token"`
	Message string     `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ReceiptUploadedResponse struct {
	FileID FlexString `json:"fileId"`
}

type TransactionItem struct {
	MongoID       FlexString      `json:"_id,omitempty"`
	ID            FlexString      `json:"id,omitempty"`
	UserID        FlexString      `json:"userId"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	ReceiptFileID FlexString      `json:"receiptFileId,omitempty"`
	CreatedAt     *time.Time      `json:"createdAt,omitempty"`
}

// FlexString accepts a JSON string or number. Identifiers from the API
// arrive as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = FlexString(n.String())
	return nil
}

func (item TransactionItem) toTransaction() (budget.Transaction, error) {
	id := string(item.MongoID)
	if id == "" {
		id = string(item.ID)
	}
	if id == "" {
		return budget.Transaction{}, fmt.Errorf("transaction without id")
	}

	kind, err := budget.ParseKind(item.Type)
	if err != nil {
		return budget.Transaction{}, fmt.Errorf("transaction %s: %w", id, err)
	}
	if item.Amount.IsNegative() {
		return budget.Transaction{}, fmt.Errorf("transaction %s: negative amount %s", id, item.Amount.String())
	}

	t := budget.Transaction{
		ID:         id,
		OwnerID:    string(item.UserID),
		Name:       item.Name,
		Kind:       kind,
		Amount:     item.Amount,
		ReceiptRef: strings.TrimSpace(string(item.ReceiptFileID)),
	}
	if item.CreatedAt != nil {
		t.CreatedAt = item.CreatedAt.UTC()
	}
	return t, nil
}

func fromFields(fields budget.Fields) UpdateTransactionRequest {
	var req UpdateTransactionRequest
	req.Name = fields.Name
	if fields.Kind != nil {
		kind := string(*fields.Kind)
		req.Type = &kind
	}
	if fields.Amount != nil {
		amount := json.Number(fields.Amount.String())
		req.Amount = &amount
	}
	req.ReceiptFileID = fields.ReceiptRef
	return req
}
