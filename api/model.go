package api

import (
	"encoding/json"
	"errors"
	"time"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/shopspring/decimal"
)

// REQUESTS START:
type SignupRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Country  string `json:"country"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateTransactionRequest accepts the amount as a JSON number or a
// numeric string.
type CreateTransactionRequest struct {
	UserID string          `json:"userId"`
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type UpdateTransactionRequest struct {
	Name          *string          `json:"name"`
	Type          *string          `json:"type"`
	Amount        *decimal.Decimal `json:"amount"`
	ReceiptFileID *string          `json:"receiptFileId"`
}

// REQUESTS END:

// RESPONSES:
type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type ReceiptUploadedResponse struct {
	Message string `json:"message"`
	FileID  string `json:"fileId"`
}

type TransactionItem struct {
	ID            string      `json:"_id"`
	UserID        string      `json:"userId"`
	Name          string      `json:"name"`
	Type          string      `json:"type"`
	Amount        json.Number `json:"amount"`
	ReceiptFileID string      `json:"receiptFileId,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func TransactionToHttp(t budget.Transaction) TransactionItem {
	return TransactionItem{
		ID:            t.ID,
		UserID:        t.OwnerID,
		Name:          t.Name,
		Type:          string(t.Kind),
		Amount:        json.Number(t.Amount.String()),
		ReceiptFileID: t.ReceiptRef,
		CreatedAt:     t.CreatedAt,
	}
}

func (req UpdateTransactionRequest) toFields() (budget.Fields, error) {
	fields := budget.Fields{
		Name:       req.Name,
		Amount:     req.Amount,
		ReceiptRef: req.ReceiptFileID,
	}
	if req.Type != nil {
		kind, err := budget.ParseKind(*req.Type)
		if err != nil {
			return budget.Fields{}, err
		}
		fields.Kind = &kind
	}
	return fields, nil
}

// publicMessage is the text a client may see for err. Internal failures
// never leak their cause.
func publicMessage(err error) string {
	var appErr appErrors.ErrorResponse
	if errors.As(err, &appErr) && appErr.Code != appErrors.ErrInternal && appErr.Message != "" {
		return appErr.Message
	}
	return "Internal server error"
}
