package storage

import (
	"context"
	"strings"
	"sync"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	authModel "github.com/fatali-fataliyev/financez/internal/auth"
	budgetModel "github.com/fatali-fataliyev/financez/internal/budget"
)

// InMemoryStorage keeps everything in process memory, in insertion order.
type InMemoryStorage struct {
	mu           sync.RWMutex
	transactions []budgetModel.Transaction
	users        []authModel.User
	receipts     map[string]Receipt
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{receipts: make(map[string]Receipt)}
}

func (inMem *InMemoryStorage) GetStorageType() string {
	return STORAGE_TYPE_MEMORY
}

func (inMem *InMemoryStorage) SaveUser(ctx context.Context, newUser authModel.User) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for _, user := range inMem.users {
		if strings.EqualFold(user.Email, newUser.Email) {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: "This email address is already registered.",
			}
		}
	}
	inMem.users = append(inMem.users, newUser)
	return nil
}

func (inMem *InMemoryStorage) GetUserByEmail(ctx context.Context, email string) (authModel.User, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	for _, user := range inMem.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return authModel.User{}, appErrors.NotFound("user not found")
}

func (inMem *InMemoryStorage) IsUserExists(ctx context.Context, userID string) (bool, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	for _, user := range inMem.users {
		if user.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (inMem *InMemoryStorage) SaveTransaction(ctx context.Context, t budgetModel.Transaction) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()
	inMem.transactions = append(inMem.transactions, t)
	return nil
}

func (inMem *InMemoryStorage) GetTransactions(ctx context.Context, userID string) ([]budgetModel.Transaction, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	result := []budgetModel.Transaction{}
	for _, transaction := range inMem.transactions {
		if transaction.OwnerID == userID {
			result = append(result, transaction)
		}
	}
	return result, nil
}

func (inMem *InMemoryStorage) GetTransactionById(ctx context.Context, transactionID string) (budgetModel.Transaction, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	for _, transaction := range inMem.transactions {
		if transaction.ID == transactionID {
			return transaction, nil
		}
	}
	return budgetModel.Transaction{}, appErrors.NotFound("Transaction not found")
}

func (inMem *InMemoryStorage) UpdateTransaction(ctx context.Context, transactionID string, fields budgetModel.Fields) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	for i := range inMem.transactions {
		if inMem.transactions[i].ID != transactionID {
			continue
		}
		t := &inMem.transactions[i]
		if fields.Name != nil {
			t.Name = *fields.Name
		}
		if fields.Kind != nil {
			t.Kind = *fields.Kind
		}
		if fields.Amount != nil {
			t.Amount = *fields.Amount
		}
		if fields.ReceiptRef != nil {
			t.ReceiptRef = *fields.ReceiptRef
		}
		return nil
	}
	return appErrors.NotFound("Transaction not found")
}

func (inMem *InMemoryStorage) SaveReceipt(ctx context.Context, receipt Receipt) error {
	inMem.mu.Lock()
	defer inMem.mu.Unlock()

	data := make([]byte, len(receipt.Data))
	copy(data, receipt.Data)
	receipt.Data = data
	inMem.receipts[receipt.ID] = receipt
	return nil
}

func (inMem *InMemoryStorage) GetReceipt(ctx context.Context, fileID string) (Receipt, error) {
	inMem.mu.RLock()
	defer inMem.mu.RUnlock()

	receipt, ok := inMem.receipts[fileID]
	if !ok {
		return Receipt{}, appErrors.NotFound("File not found")
	}
	return receipt, nil
}
