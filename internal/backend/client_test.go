package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/auth"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/fatali-fataliyev/financez/internal/contextutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type staticSession string

func (s staticSession) CurrentCredential() (string, bool) {
	return string(s), s != ""
}

func newTestClient(t *testing.T, handler http.HandlerFunc, session CredentialSource) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/api/", Timeout: 5 * time.Second, MaxReceiptBytes: 1024}, session)
}

func TestLoginReturnsUserID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/users/login", r.URL.Path)
		require.Empty(t, r.Header.Get(HEADER_AUTHORIZATION))

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "john.doe@gmail.com", req.Email)
		require.Equal(t, "secret", req.Password)

		w.Write([]byte(`{"message":"Login successful","userId":"64f1c0"}`))
	}, nil)

	credential, err := client.Login(context.Background(), auth.UserCredentialsPure{Email: "john.doe@gmail.com", PasswordPlain: "secret"})
	require.NoError(t, err)
	require.Equal(t, "64f1c0", credential)
}

func TestLoginFallsBackToToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"tok-1"}`))
	}, nil)

	credential, err := client.Login(context.Background(), auth.UserCredentialsPure{Email: "a@b.co", PasswordPlain: "x"})
	require.NoError(t, err)
	require.Equal(t, "tok-1", credential)
}

func TestLoginServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid email or password"}`))
	}, nil)

	_, err := client.Login(context.Background(), auth.UserCredentialsPure{Email: "a@b.co", PasswordPlain: "x"})
	require.True(t, appErrors.Is(err, appErrors.ErrServer))
	require.Equal(t, "Invalid email or password", appErrors.UserMessage(err))
}

func TestLoginValidatesBeforeSending(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, nil)

	_, err := client.Login(context.Background(), auth.UserCredentialsPure{Email: "", PasswordPlain: "x"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
	require.False(t, called)
}

func TestSignup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/signup", r.URL.Path)
		var req SignupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "John Doe", req.FullName)
		require.Equal(t, "Azerbaijan", req.Country)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"User created successfully"}`))
	}, nil)

	msg, err := client.Signup(context.Background(), auth.NewUser{
		FullName:      "John Doe",
		Email:         "john.doe@gmail.com",
		PasswordPlain: "secret",
		Country:       "Azerbaijan",
	})
	require.NoError(t, err)
	require.Equal(t, "User created successfully", msg)
}

func TestListTransactionsDecodesBothIDForms(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/transactions", r.URL.Path)
		require.Equal(t, "u1", r.URL.Query().Get("userId"))
		require.Equal(t, "u1", r.Header.Get(HEADER_AUTHORIZATION))
		require.Equal(t, "trace-1", r.Header.Get(HEADER_REQUEST_ID))

		w.Write([]byte(`[
			{"_id":"a1","userId":"u1","name":"Salary","type":"income","amount":100,"createdAt":"2024-05-01T10:00:00Z"},
			{"id":2,"userId":"u1","name":"Coffee","type":"expense","amount":"3.50","receiptFileId":77}
		]`))
	}, staticSession("u1"))

	ctx := context.WithValue(context.Background(), contextutil.TraceIDKey, "trace-1")
	transactions, err := client.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	require.Equal(t, "a1", transactions[0].ID)
	require.Equal(t, budget.KindIncome, transactions[0].Kind)
	require.Equal(t, 2024, transactions[0].CreatedAt.Year())

	require.Equal(t, "2", transactions[1].ID)
	require.Equal(t, "77", transactions[1].ReceiptRef)
	require.True(t, decimal.RequireFromString("3.5").Equal(transactions[1].Amount))
}

func TestListTransactionsRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "unknown type", body: `[{"_id":"1","type":"transfer","amount":1}]`},
		{name: "negative amount", body: `[{"_id":"1","type":"income","amount":-1}]`},
		{name: "missing id", body: `[{"type":"income","amount":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}, staticSession("u1"))

			_, err := client.ListTransactions(context.Background(), "u1")
			require.True(t, appErrors.Is(err, appErrors.ErrNetwork))
		})
	}
}

func TestUnreachableServerIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, staticSession("u1"))

	_, err := client.ListTransactions(context.Background(), "u1")
	require.True(t, appErrors.Is(err, appErrors.ErrNetwork))
	require.Equal(t, appErrors.NetworkNotice, appErrors.UserMessage(err))
}

func TestCreateTransactionSendsNumericAmount(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"userId":"u1","name":"Coffee","type":"expense","amount":3.5}`, string(raw))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_id":"t9","userId":"u1","name":"Coffee","type":"expense","amount":3.5}`))
	}, staticSession("u1"))

	created, err := client.CreateTransaction(context.Background(), budget.NewTransaction{
		OwnerID: "u1",
		Name:    "Coffee",
		Kind:    budget.KindExpense,
		Amount:  decimal.RequireFromString("3.50"),
	})
	require.NoError(t, err)
	require.Equal(t, "t9", created.ID)
}

func TestCreateTransactionToleratesMessageBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Transaction added"}`))
	}, staticSession("u1"))

	created, err := client.CreateTransaction(context.Background(), budget.NewTransaction{
		OwnerID: "u1",
		Name:    "Rent",
		Kind:    budget.KindExpense,
		Amount:  decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	require.Empty(t, created.ID)
	require.Equal(t, "Rent", created.Name)
}

func TestUpdateTransactionSendsOnlySetFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/transactions/put", r.URL.Path)
		require.Equal(t, "t1", r.URL.Query().Get("transactionId"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"receiptFileId":"f1"}`, string(raw))
		w.Write([]byte(`{"message":"Transaction updated"}`))
	}, staticSession("u1"))

	ref := "f1"
	require.NoError(t, client.UpdateTransaction(context.Background(), "t1", budget.Fields{ReceiptRef: &ref}))
}

func TestUpdateTransactionServerMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Transaction not found"))
	}, staticSession("u1"))

	name := "x"
	err := client.UpdateTransaction(context.Background(), "t1", budget.Fields{Name: &name})
	require.True(t, appErrors.Is(err, appErrors.ErrServer))
	require.Equal(t, "Transaction not found", appErrors.UserMessage(err))
}

func TestUploadReceiptMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/receipts", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		require.Equal(t, "u1", r.FormValue("userId"))
		require.Equal(t, "t1", r.FormValue("transactionId"))
		require.Equal(t, "receipt_t1.jpg", r.FormValue("fileName"))

		file, header, err := r.FormFile("receipt")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "receipt_t1.jpg", header.Filename)
		require.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "jpeg-bytes", string(data))

		w.Write([]byte(`{"fileId":"f-123"}`))
	}, staticSession("u1"))

	ref, err := client.UploadReceipt(context.Background(), "u1", "t1", "receipt_t1.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	require.Equal(t, "f-123", ref)
}

func TestUploadReceiptWithoutFileID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, staticSession("u1"))

	_, err := client.UploadReceipt(context.Background(), "u1", "t1", "receipt_t1.jpg", "image/jpeg", strings.NewReader("x"))
	require.True(t, appErrors.Is(err, appErrors.ErrNetwork))
}

func TestFetchReceipt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "f-1", r.URL.Query().Get("fileId"))
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}, staticSession("u1"))

	data, contentType, err := client.FetchReceipt(context.Background(), "f-1")
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(data))
	require.Equal(t, "image/png", contentType)
}

func TestFetchReceiptTooLarge(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}, staticSession("u1"))

	_, _, err := client.FetchReceipt(context.Background(), "f-1")
	require.True(t, appErrors.Is(err, appErrors.ErrNetwork))
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		wantErr  bool
	}{
		{raw: `"abc"`, expected: "abc"},
		{raw: `42`, expected: "42"},
		{raw: `null`, expected: ""},
		{raw: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var f FlexString
			err := json.Unmarshal([]byte(tt.raw), &f)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, string(f))
		})
	}
}

func TestRequestIDGeneratedWhenContextHasNone(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get(HEADER_REQUEST_ID))
		mu.Unlock()
		w.Write([]byte(`[]`))
	}, staticSession("u1"))

	_, err := client.ListTransactions(context.Background(), "u1")
	require.NoError(t, err)
	_, err = client.ListTransactions(context.Background(), "u1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	for _, id := range seen {
		_, err := uuid.Parse(id)
		require.NoError(t, err, "request id %q", id)
	}
	require.NotEqual(t, seen[0], seen[1])
}
