package storage

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const (
	STORAGE_TYPE_MEMORY = "inmemory"
	STORAGE_TYPE_MYSQL  = "mysql"
)

// Receipt is a stored receipt image.
type Receipt struct {
	ID            string
	UserID        string
	TransactionID string
	FileName      string
	ContentType   string
	Data          []byte
	CreatedAt     time.Time
}

type dbTransaction struct {
	ID            string
	UserID        string
	Name          string
	Type          string
	Amount        decimal.Decimal
	ReceiptFileID sql.NullString
	CreatedAt     time.Time
}

func NilToNullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
