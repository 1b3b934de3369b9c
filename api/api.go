package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/0xcafe-io/iz"
	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/auth"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/fatali-fataliyev/financez/internal/contextutil"
	"github.com/fatali-fataliyev/financez/internal/storage"
	"github.com/fatali-fataliyev/financez/logging"
	"github.com/google/uuid"
)

const (
	HEADER_REQUEST_ID       = "X-Request-ID"
	MULTIPART_MEMORY_BYTES  = 1 << 20
	MULTIPART_OVERHEAD_SIZE = 64 << 10
	MAX_JSON_BODY_BYTES     = 64 << 10
)

type Storage interface {
	SaveUser(ctx context.Context, user auth.User) error
	GetUserByEmail(ctx context.Context, email string) (auth.User, error)
	IsUserExists(ctx context.Context, userID string) (bool, error)
	SaveTransaction(ctx context.Context, t budget.Transaction) error
	GetTransactions(ctx context.Context, userID string) ([]budget.Transaction, error)
	GetTransactionById(ctx context.Context, transactionID string) (budget.Transaction, error)
	UpdateTransaction(ctx context.Context, transactionID string, fields budget.Fields) error
	SaveReceipt(ctx context.Context, receipt storage.Receipt) error
	GetReceipt(ctx context.Context, fileID string) (storage.Receipt, error)
	GetStorageType() string
}

type Api struct {
	Storage         Storage
	MaxReceiptBytes int64
}

func NewApi(s Storage, maxReceiptBytes int64) *Api {
	return &Api{
		Storage:         s,
		MaxReceiptBytes: maxReceiptBytes,
	}
}

// Routes mounts every endpoint under /api.
func (api *Api) Routes() *http.ServeMux {
	server := http.NewServeMux()

	// USER ENDPOINTS.
	server.HandleFunc("POST /api/users/signup", iz.Bind(api.SignupHandler)) // Create User
	server.HandleFunc("POST /api/users/login", iz.Bind(api.LoginHandler))   // Login User

	// TRANSACTION ENDPOINTS.
	server.HandleFunc("GET /api/transactions", iz.Bind(api.GetTransactionsHandler))        // List Transactions of a user
	server.HandleFunc("POST /api/transactions", iz.Bind(api.SaveTransactionHandler))       // Create Transaction
	server.HandleFunc("PUT /api/transactions/put", iz.Bind(api.UpdateTransactionHandler)) // Partial update

	// RECEIPT ENDPOINTS.
	server.HandleFunc("POST /api/receipts", iz.Bind(api.UploadReceiptHandler)) // Store receipt image
	server.HandleFunc("GET /api/receipts", api.DownloadReceipt)                 // Raw receipt image

	return server
}

func withTrace(ctx context.Context, header http.Header) (context.Context, string) {
	if id := strings.TrimSpace(header.Get(HEADER_REQUEST_ID)); id != "" {
		ctx = context.WithValue(ctx, contextutil.TraceIDKey, id)
	}
	return contextutil.WithTraceID(ctx)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(body io.ReadCloser, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, body, MAX_JSON_BODY_BYTES)).Decode(v)
}

func fail(err error) iz.Responder {
	return iz.Respond().Status(appErrors.HTTPStatus(err)).JSON(ErrorResponse{Error: publicMessage(err)})
}

// authorize resolves the caller from the Authorization header, which
// carries the user id handed out at login. The returned ctx carries the
// caller for ownership checks.
func (api *Api) authorize(ctx context.Context, header http.Header) (context.Context, string, error) {
	userID := strings.TrimSpace(header.Get("Authorization"))
	if userID == "" {
		return ctx, "", appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Authorization header is required."}
	}

	exists, err := api.Storage.IsUserExists(ctx, userID)
	if err != nil {
		return ctx, "", err
	}
	if !exists {
		return ctx, "", appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Unknown user, login again."}
	}
	return contextutil.WithToken(ctx, userID), userID, nil
}

func accessDenied() error {
	return appErrors.ErrorResponse{Code: appErrors.ErrAccessDenied, Message: "Access denied."}
}

func (api *Api) SignupHandler(r *iz.Request) iz.Responder {
	ctx, traceID := withTrace(r.Context(), r.Header)

	var signupReq SignupRequest
	if err := decodeJSON(r.Body, &signupReq); err != nil {
		return fail(appErrors.Validation("invalid request body"))
	}

	newUser := auth.NewUser{
		FullName:      strings.TrimSpace(signupReq.FullName),
		Email:         strings.ToLower(strings.TrimSpace(signupReq.Email)),
		PasswordPlain: signupReq.Password,
		Country:       strings.TrimSpace(signupReq.Country),
	}
	if err := newUser.ValidateUserFields(); err != nil {
		return fail(err)
	}

	hashedPassword, err := auth.HashPassword(newUser.PasswordPlain)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to hash password | Error: %v", traceID, err)
		return fail(err)
	}

	user := auth.User{
		ID:             uuid.New().String(),
		FullName:       auth.CapitalizeFullName(newUser.FullName),
		Email:          newUser.Email,
		Country:        newUser.Country,
		PasswordHashed: hashedPassword,
		CreatedAt:      time.Now().UTC(),
	}
	if err := api.Storage.SaveUser(ctx, user); err != nil {
		return fail(err)
	}

	logging.Logger.Infof("[TraceID=%s] | user registered: %s", traceID, user.ID)
	return iz.Respond().Status(201).JSON(MessageResponse{Message: "User created successfully"})
}

func (api *Api) LoginHandler(r *iz.Request) iz.Responder {
	ctx, traceID := withTrace(r.Context(), r.Header)

	var loginReq LoginRequest
	if err := decodeJSON(r.Body, &loginReq); err != nil {
		return fail(appErrors.Validation("invalid request body"))
	}

	credentials := auth.UserCredentialsPure{
		Email:         strings.ToLower(strings.TrimSpace(loginReq.Email)),
		PasswordPlain: loginReq.Password,
	}
	if err := credentials.Validate(); err != nil {
		return fail(err)
	}

	invalid := appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Invalid email or password"}

	user, err := api.Storage.GetUserByEmail(ctx, credentials.Email)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return fail(invalid)
		}
		return fail(err)
	}
	if !auth.ComparePasswords(user.PasswordHashed, credentials.PasswordPlain) {
		return fail(invalid)
	}

	logging.Logger.Infof("[TraceID=%s] | user logged in: %s", traceID, user.ID)
	return iz.Respond().Status(200).JSON(LoginResponse{Message: "Login successful", UserID: user.ID})
}

func (api *Api) GetTransactionsHandler(r *iz.Request) iz.Responder {
	ctx, _ := withTrace(r.Context(), r.Header)

	ctx, callerID, err := api.authorize(ctx, r.Header)
	if err != nil {
		return fail(err)
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		return fail(appErrors.Validation("userId is required"))
	}
	if userID != callerID {
		return fail(accessDenied())
	}

	transactions, err := api.Storage.GetTransactions(ctx, userID)
	if err != nil {
		return fail(err)
	}

	items := make([]TransactionItem, 0, len(transactions))
	for _, t := range transactions {
		items = append(items, TransactionToHttp(t))
	}
	return iz.Respond().Status(200).JSON(items)
}

func (api *Api) SaveTransactionHandler(r *iz.Request) iz.Responder {
	ctx, traceID := withTrace(r.Context(), r.Header)

	ctx, callerID, err := api.authorize(ctx, r.Header)
	if err != nil {
		return fail(err)
	}

	var newTransactionReq CreateTransactionRequest
	if err := decodeJSON(r.Body, &newTransactionReq); err != nil {
		return fail(appErrors.Validation("invalid request body: amount must be a number"))
	}

	ownerID := strings.TrimSpace(newTransactionReq.UserID)
	if ownerID == "" {
		ownerID = callerID
	}
	if ownerID != callerID {
		return fail(accessDenied())
	}

	kind, err := budget.ParseKind(newTransactionReq.Type)
	if err != nil {
		return fail(err)
	}
	newTransaction := budget.NewTransaction{
		OwnerID: ownerID,
		Name:    strings.TrimSpace(newTransactionReq.Name),
		Kind:    kind,
		Amount:  newTransactionReq.Amount,
	}
	if err := newTransaction.Validate(); err != nil {
		return fail(err)
	}

	txn := budget.Transaction{
		ID:        uuid.New().String(),
		OwnerID:   newTransaction.OwnerID,
		Name:      newTransaction.Name,
		Kind:      newTransaction.Kind,
		Amount:    newTransaction.Amount,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := api.Storage.SaveTransaction(ctx, txn); err != nil {
		return fail(err)
	}

	logging.Logger.Infof("[TraceID=%s] | transaction created: %s", traceID, txn.ID)
	return iz.Respond().Status(201).JSON(TransactionToHttp(txn))
}

// ownedTransaction loads transactionID and checks it belongs to the caller
// that authorize put on ctx.
func (api *Api) ownedTransaction(ctx context.Context, transactionID string) (budget.Transaction, error) {
	callerID, ok := contextutil.TokenFromContext(ctx)
	if !ok {
		return budget.Transaction{}, appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "Authorization header is required."}
	}
	if strings.TrimSpace(transactionID) == "" {
		return budget.Transaction{}, appErrors.Validation("transactionId is required")
	}
	t, err := api.Storage.GetTransactionById(ctx, transactionID)
	if err != nil {
		return budget.Transaction{}, err
	}
	if t.OwnerID != callerID {
		return budget.Transaction{}, accessDenied()
	}
	return t, nil
}

func (api *Api) UpdateTransactionHandler(r *iz.Request) iz.Responder {
	ctx, traceID := withTrace(r.Context(), r.Header)

	ctx, callerID, err := api.authorize(ctx, r.Header)
	if err != nil {
		return fail(err)
	}

	transactionID := r.URL.Query().Get("transactionId")
	if _, err := api.ownedTransaction(ctx, transactionID); err != nil {
		return fail(err)
	}

	var updateReq UpdateTransactionRequest
	if err := decodeJSON(r.Body, &updateReq); err != nil {
		return fail(appErrors.Validation("invalid request body"))
	}

	fields, err := updateReq.toFields()
	if err != nil {
		return fail(err)
	}
	if fields.IsEmpty() {
		return fail(appErrors.Validation("Nothing to update."))
	}
	if fields.Name != nil {
		trimmed := strings.TrimSpace(*fields.Name)
		fields.Name = &trimmed
	}
	if err := fields.Validate(); err != nil {
		return fail(err)
	}

	if fields.ReceiptRef != nil {
		receipt, err := api.Storage.GetReceipt(ctx, *fields.ReceiptRef)
		if err != nil {
			if appErrors.Is(err, appErrors.ErrNotFound) {
				return fail(appErrors.Validation("Receipt %s does not exist", *fields.ReceiptRef))
			}
			return fail(err)
		}
		if receipt.UserID != callerID {
			return fail(accessDenied())
		}
	}

	if err := api.Storage.UpdateTransaction(ctx, transactionID, fields); err != nil {
		return fail(err)
	}

	logging.Logger.Infof("[TraceID=%s] | transaction updated: %s", traceID, transactionID)
	return iz.Respond().Status(200).JSON(MessageResponse{Message: "Transaction updated successfully"})
}

// UploadReceiptHandler stores the image only. Linking it to the transaction
// is a separate update made by the client.
func (api *Api) UploadReceiptHandler(r *iz.Request) iz.Responder {
	ctx, traceID := withTrace(r.Context(), r.Header)

	ctx, callerID, err := api.authorize(ctx, r.Header)
	if err != nil {
		return fail(err)
	}

	if api.MaxReceiptBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, api.MaxReceiptBytes+MULTIPART_OVERHEAD_SIZE)
	}
	if err := r.ParseMultipartForm(MULTIPART_MEMORY_BYTES); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fail(appErrors.Validation("Receipt is too large, maximum size is %d bytes", api.MaxReceiptBytes))
		}
		return fail(appErrors.Validation("invalid multipart form"))
	}
	defer r.MultipartForm.RemoveAll()

	if userID := strings.TrimSpace(r.FormValue("userId")); userID != callerID {
		return fail(accessDenied())
	}
	transactionID := strings.TrimSpace(r.FormValue("transactionId"))
	if _, err := api.ownedTransaction(ctx, transactionID); err != nil {
		return fail(err)
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		return fail(appErrors.Validation("receipt file is required"))
	}
	defer file.Close()

	if api.MaxReceiptBytes > 0 && header.Size > api.MaxReceiptBytes {
		return fail(appErrors.Validation("Receipt is too large, maximum size is %d bytes", api.MaxReceiptBytes))
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return fail(fmt.Errorf("failed to read receipt: %w", err))
	}
	if len(data) == 0 {
		return fail(appErrors.Validation("Receipt is empty."))
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return fail(appErrors.Validation("Receipt must be an image, got: %s", contentType))
	}

	fileName := strings.TrimSpace(r.FormValue("fileName"))
	if fileName == "" {
		fileName = header.Filename
	}

	receipt := storage.Receipt{
		ID:            uuid.New().String(),
		UserID:        callerID,
		TransactionID: transactionID,
		FileName:      fileName,
		ContentType:   contentType,
		Data:          data,
		CreatedAt:     time.Now().UTC(),
	}
	if err := api.Storage.SaveReceipt(ctx, receipt); err != nil {
		return fail(err)
	}

	logging.Logger.Infof("[TraceID=%s] | receipt %s stored for transaction %s", traceID, receipt.ID, transactionID)
	return iz.Respond().Status(201).JSON(ReceiptUploadedResponse{Message: "Receipt uploaded", FileID: receipt.ID})
}

// DownloadReceipt writes the raw image, so it bypasses the JSON responder.
func (api *Api) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	ctx, traceID := withTrace(r.Context(), r.Header)

	writeError := func(err error) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(appErrors.HTTPStatus(err))
		json.NewEncoder(w).Encode(ErrorResponse{Error: publicMessage(err)})
	}

	ctx, callerID, err := api.authorize(ctx, r.Header)
	if err != nil {
		writeError(err)
		return
	}

	fileID := strings.TrimSpace(r.URL.Query().Get("fileId"))
	if fileID == "" {
		writeError(appErrors.Validation("fileId is required"))
		return
	}

	receipt, err := api.Storage.GetReceipt(ctx, fileID)
	if err != nil {
		writeError(err)
		return
	}
	if receipt.UserID != callerID {
		writeError(accessDenied())
		return
	}

	w.Header().Set("Content-Type", receipt.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", receipt.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(receipt.Data); err != nil {
		logging.Logger.Warnf("[TraceID=%s] | failed to write receipt %s | Error: %v", traceID, fileID, err)
	}
}
