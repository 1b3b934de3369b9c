package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/auth"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/fatali-fataliyev/financez/internal/contextutil"
	"github.com/fatali-fataliyev/financez/logging"
)

const (
	HEADER_AUTHORIZATION = "Authorization"
	HEADER_REQUEST_ID    = "X-Request-ID"
	MAX_ERROR_BODY_BYTES = 64 << 10
)

type CredentialSource interface {
	CurrentCredential() (string, bool)
}

// Client talks to the finance API. It satisfies budget.Backend and the
// receipt flow's backend.
type Client struct {
	baseURL         string
	http            *http.Client
	session         CredentialSource
	maxReceiptBytes int64
}

type Options struct {
	BaseURL         string
	Timeout         time.Duration
	MaxReceiptBytes int64
	HTTPClient      *http.Client
}

func NewClient(opts Options, session CredentialSource) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		http:            httpClient,
		session:         session,
		maxReceiptBytes: opts.MaxReceiptBytes,
	}
}

func (c *Client) Login(ctx context.Context, credentials auth.UserCredentialsPure) (string, error) {
	if err := credentials.Validate(); err != nil {
		return "", err
	}

	var resp LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/users/login", nil, LoginRequest{
		Email:    strings.TrimSpace(credentials.Email),
		Password: credentials.PasswordPlain,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to login: %w", err)
	}

	credential := string(resp.UserID)
	if credential == "" {
		credential = resp.Token
	}
	if credential == "" {
		return "", appErrors.Network("Login response did not contain a user id", nil)
	}
	return credential, nil
}

// Signup registers a user and returns the server's confirmation message.
func (c *Client) Signup(ctx context.Context, newUser auth.NewUser) (string, error) {
	if err := newUser.ValidateUserFields(); err != nil {
		return "", err
	}

	var resp MessageResponse
	err := c.doJSON(ctx, http.MethodPost, "/users/signup", nil, SignupRequest{
		FullName: strings.TrimSpace(newUser.FullName),
		Email:    strings.TrimSpace(newUser.Email),
		Password: newUser.PasswordPlain,
		Country:  strings.TrimSpace(newUser.Country),
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to sign up: %w", err)
	}
	if resp.Message == "" {
		resp.Message = "Account created."
	}
	return resp.Message, nil
}

func (c *Client) ListTransactions(ctx context.Context, ownerID string) ([]budget.Transaction, error) {
	var items []TransactionItem
	query := url.Values{"userId": {ownerID}}
	if err := c.doJSON(ctx, http.MethodGet, "/transactions", query, nil, &items); err != nil {
		return nil, err
	}

	transactions := make([]budget.Transaction, 0, len(items))
	for _, item := range items {
		t, err := item.toTransaction()
		if err != nil {
			return nil, appErrors.Network("Invalid transaction list from server", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, nil
}

// CreateTransaction posts a new record. A success response without a
// readable body is still a success; the caller reloads anyway.
func (c *Client) CreateTransaction(ctx context.Context, t budget.NewTransaction) (budget.Transaction, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	body, err := c.do(ctx, http.MethodPost, "/transactions", nil, CreateTransactionRequest{
		UserID: t.OwnerID,
		Name:   t.Name,
		Type:   string(t.Kind),
		Amount: json.Number(t.Amount.String()),
	})
	if err != nil {
		return budget.Transaction{}, err
	}

	echo := budget.Transaction{OwnerID: t.OwnerID, Name: t.Name, Kind: t.Kind, Amount: t.Amount}

	var item TransactionItem
	if err := json.Unmarshal(body, &item); err != nil {
		logging.Logger.Warnf("[TraceID=%s] | create response was not a transaction | Error: %v", traceID, err)
		return echo, nil
	}
	created, err := item.toTransaction()
	if err != nil {
		logging.Logger.Warnf("[TraceID=%s] | create response was not a transaction | Error: %v", traceID, err)
		return echo, nil
	}
	return created, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, fields budget.Fields) error {
	query := url.Values{"transactionId": {id}}
	_, err := c.do(ctx, http.MethodPut, "/transactions/put", query, fromFields(fields))
	return err
}

// UploadReceipt sends the image as multipart form data and returns the
// stored file's reference.
func (c *Client) UploadReceipt(ctx context.Context, ownerID string, transactionID string, fileName string, contentType string, image io.Reader) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="receipt"; filename=%q`, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", appErrors.Network("Failed to prepare receipt upload", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return "", appErrors.Network("Failed to read receipt image", err)
	}

	fields := [][2]string{
		{"userId", ownerID},
		{"transactionId", transactionID},
		{"fileName", fileName},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return "", appErrors.Network("Failed to prepare receipt upload", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", appErrors.Network("Failed to prepare receipt upload", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/receipts", nil, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := c.send(req)
	if err != nil {
		return "", err
	}

	var resp ReceiptUploadedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", appErrors.Network("Invalid upload response from server", err)
	}
	if resp.FileID == "" {
		return "", appErrors.Network("Upload response did not contain a file id", nil)
	}
	return string(resp.FileID), nil
}

// FetchReceipt downloads the stored image for ref.
func (c *Client) FetchReceipt(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/receipts", url.Values{"fileId": {ref}}, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", appErrors.Network("Request failed", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, "", err
	}

	reader := io.Reader(resp.Body)
	if c.maxReceiptBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxReceiptBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", appErrors.Network("Failed to read receipt", err)
	}
	if c.maxReceiptBytes > 0 && int64(len(data)) > c.maxReceiptBytes {
		return nil, "", appErrors.Network("Receipt is larger than allowed", nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, query url.Values, payload any, out any) error {
	body, err := c.do(ctx, method, path, query, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return appErrors.Network("Invalid response from server", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *Client) newRequest(ctx context.Context, method string, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, traceID := contextutil.WithTraceID(ctx)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, appErrors.Network("Failed to build request", err)
	}

	req.Header.Set(HEADER_REQUEST_ID, traceID)
	if c.session != nil {
		if credential, ok := c.session.CurrentCredential(); ok {
			req.Header.Set(HEADER_AUTHORIZATION, credential)
		}
	}
	return req, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	traceID := contextutil.TraceIDFromContext(req.Context())
	started := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | %s %s failed | Error: %v", traceID, req.Method, req.URL.Path, err)
		return nil, appErrors.Network("Request failed", err)
	}
	defer resp.Body.Close()

	logging.Logger.Debugf("[TraceID=%s] | %s %s -> %d (%s)", traceID, req.Method, req.URL.Path, resp.StatusCode, time.Since(started))

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Network("Failed to read response", err)
	}
	return body, nil
}

// checkStatus turns a non-2xx response into a SERVER error carrying the
// server's own message when it sent one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, MAX_ERROR_BODY_BYTES))

	var msg MessageResponse
	if err := json.Unmarshal(raw, &msg); err == nil {
		if msg.Error != "" {
			return appErrors.Server(resp.StatusCode, msg.Error)
		}
		if msg.Message != "" {
			return appErrors.Server(resp.StatusCode, msg.Message)
		}
	}

	text := strings.TrimSpace(string(raw))
	if text != "" && !strings.HasPrefix(text, "<") && len(text) < 200 {
		return appErrors.Server(resp.StatusCode, text)
	}
	return appErrors.Server(resp.StatusCode, "")
}
