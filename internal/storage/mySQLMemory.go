package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/auth"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/fatali-fataliyev/financez/internal/config"
	"github.com/fatali-fataliyev/financez/internal/contextutil"
	"github.com/fatali-fataliyev/financez/logging"
	"github.com/go-sql-driver/mysql"
)

const (
	MYSQL_DUPLICATE_ENTRY = 1062
	CONNECT_ATTEMPTS      = 15
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// --- INIT START --- //

// Init connects to MySQL, creates the database when missing and applies
// pending migrations.
func Init(ctx context.Context, cfg *config.Server) (*sql.DB, error) {
	dsnConfig, err := mysql.ParseDSN(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	dsnConfig.ParseTime = true
	dsnConfig.Loc = time.UTC
	dbname := dsnConfig.DBName
	if dbname == "" {
		dbname = "financez"
		dsnConfig.DBName = dbname
	}

	adminConfig := dsnConfig.Clone()
	adminConfig.DBName = ""

	logging.Logger.Info("Connecting to MySQL server for initialization...")
	adminDb, err := sql.Open("mysql", adminConfig.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open admin mysql handle: %w", err)
	}
	defer adminDb.Close()

	if err := waitForDatabase(ctx, adminDb); err != nil {
		return nil, err
	}

	var dbnameExistence string
	checkDbnameExistQuery := "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?"
	err = adminDb.QueryRowContext(ctx, checkDbnameExistQuery, dbname).Scan(&dbnameExistence)
	if errors.Is(err, sql.ErrNoRows) {
		logging.Logger.Infof("Database '%s' does not exist, creating...", dbname)
		createDbSql := fmt.Sprintf("CREATE DATABASE `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci;", dbname)
		if _, err := adminDb.ExecContext(ctx, createDbSql); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	logging.Logger.Info("Connecting to database...")
	db, err := sql.Open("mysql", dsnConfig.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database handle: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	logging.Logger.Info("Connected to database successfully")
	logging.Logger.Info("Running migrations...")

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func waitForDatabase(ctx context.Context, db *sql.DB) error {
	for i := 0; i < CONNECT_ATTEMPTS; i++ {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		logging.Logger.Warnf("Database not ready, retrying... (%d/%d)", i+1, CONNECT_ATTEMPTS)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database unreachable after multiple attempts")
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	migrations, err := getMigrationFiles(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to get migration files: %w", err)
	}

	lastAppliedMigration, err := getLastAppliedMigration(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get last applied migration name: %w", err)
	}

	newMigrations := filterNewMigrations(migrations, lastAppliedMigration)
	if len(newMigrations) == 0 {
		logging.Logger.Info("no new migration")
		return nil
	}

	for _, migrationFile := range newMigrations {
		logging.Logger.Info("applying migration: ", migrationFile)
		migrationContent, err := fs.ReadFile(migrationFiles, "migrations/"+migrationFile)
		if err != nil {
			return fmt.Errorf("failed to read this '%s' migration file, error: %w", migrationFile, err)
		}

		if err := applyMigration(ctx, db, migrationFile, string(migrationContent)); err != nil {
			return fmt.Errorf("failed to apply this '%s' migration file, error: %w", migrationFile, err)
		}
	}

	logging.Logger.Info("all migrations applied successfully")
	return nil
}

func getMigrationFiles(fsys fs.FS, dir string) ([]string, error) {
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var migrations []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			migrations = append(migrations, file.Name())
		}
	}

	sort.Strings(migrations)
	return migrations, nil
}

func getLastAppliedMigration(ctx context.Context, db *sql.DB) (string, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS migration (
        id INT AUTO_INCREMENT PRIMARY KEY,
        migration_name VARCHAR(255) NOT NULL UNIQUE,
        applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );`)
	if err != nil {
		return "", err
	}

	var lastMigration string
	err = db.QueryRowContext(ctx, "SELECT migration_name FROM migration ORDER BY migration_name DESC LIMIT 1").Scan(&lastMigration)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return lastMigration, err
}

func filterNewMigrations(all []string, lastApplied string) []string {
	if lastApplied == "" {
		return all
	}

	var result []string
	for _, migration := range all {
		if migration > lastApplied {
			result = append(result, migration)
		}
	}
	return result
}

// splitStatements splits a migration file on ';'. Migrations must not
// contain semicolons inside string literals.
func splitStatements(sqlContent string) []string {
	var statements []string
	for _, statement := range strings.Split(sqlContent, ";") {
		trimmed := strings.TrimSpace(statement)
		if trimmed != "" {
			statements = append(statements, trimmed)
		}
	}
	return statements
}

func applyMigration(ctx context.Context, db *sql.DB, name, sqlContent string) error {
	txn, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	for _, statement := range splitStatements(sqlContent) {
		if _, err := txn.ExecContext(ctx, statement); err != nil {
			txn.Rollback()
			return fmt.Errorf("migration statement failed: %w\nStatement: %s", err, statement)
		}
	}

	if _, err := txn.ExecContext(ctx, "INSERT INTO migration (migration_name) VALUES (?)", name); err != nil {
		txn.Rollback()
		return fmt.Errorf("failed to record migration name: %w", err)
	}

	return txn.Commit()
}

// --- INIT END --- //

type MySQLStorage struct {
	db *sql.DB
}

func NewMySQLStorage(db *sql.DB) *MySQLStorage {
	return &MySQLStorage{db: db}
}

func (mySql *MySQLStorage) GetStorageType() string {
	return STORAGE_TYPE_MYSQL
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == MYSQL_DUPLICATE_ENTRY
}

func (mySql *MySQLStorage) SaveUser(ctx context.Context, user auth.User) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO user (id, fullname, email, country, hashed_password, created_at) VALUES (?, ?, ?, ?, ?, ?);"
	_, err := mySql.db.ExecContext(ctx, query, user.ID, user.FullName, user.Email, user.Country, user.PasswordHashed, user.CreatedAt)
	if err != nil {
		if isDuplicateEntry(err) {
			return appErrors.ErrorResponse{
				Code:    appErrors.ErrConflict,
				Message: "This email address is already registered.",
			}
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to save user Storage.SaveUser(), Error: %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Registration failed, try again later.",
		}
	}
	return nil
}

func (mySql *MySQLStorage) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, fullname, email, country, hashed_password, created_at FROM user WHERE email = ?;"
	var user auth.User
	err := mySql.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.FullName, &user.Email, &user.Country, &user.PasswordHashed, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.User{}, appErrors.NotFound("user not found")
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to scan user row in Storage.GetUserByEmail() function | Error : %v", traceID, err)
		return auth.User{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Login failed, try again later.",
		}
	}
	return user, nil
}

func (mySql *MySQLStorage) IsUserExists(ctx context.Context, userID string) (bool, error) {
	query := "SELECT 1 FROM user WHERE id = ?;"

	var dummy int
	err := mySql.db.QueryRowContext(ctx, query, userID).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to check user in Storage.IsUserExists() function | Error : %v", contextutil.TraceIDFromContext(ctx), err)
		return false, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to check user, try again later.",
		}
	}
	return true, nil
}

func (mySql *MySQLStorage) SaveTransaction(ctx context.Context, t budget.Transaction) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	var receipt *string
	if t.ReceiptRef != "" {
		receipt = &t.ReceiptRef
	}

	query := "INSERT INTO transaction (id, user_id, name, type, amount, receipt_file_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?);"
	_, err := mySql.db.ExecContext(ctx, query, t.ID, t.OwnerID, t.Name, string(t.Kind), t.Amount, NilToNullString(receipt), t.CreatedAt)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save transaction in Storage.SaveTransaction() function | Error : %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to save transaction, try again later.",
		}
	}
	return nil
}

func (mySql *MySQLStorage) processTransactionRows(ctx context.Context, rows *sql.Rows) ([]budget.Transaction, error) {
	traceID := contextutil.TraceIDFromContext(ctx)
	defer rows.Close()

	transactions := []budget.Transaction{}
	for rows.Next() {
		var row dbTransaction
		err := rows.Scan(&row.ID, &row.UserID, &row.Name, &row.Type, &row.Amount, &row.ReceiptFileID, &row.CreatedAt)
		if err != nil {
			logging.Logger.Errorf("[TraceID=%s] | failed to scan row in Storage.processTransactionRows() | Error : %v", traceID, err)
			return nil, appErrors.ErrorResponse{
				Code:    appErrors.ErrInternal,
				Message: "Failed to process transactions, try again later.",
			}
		}
		transactions = append(transactions, row.toTransaction())
	}

	if err := rows.Err(); err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to iterate rows in Storage.processTransactionRows() | Error : %v", traceID, err)
		return nil, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to process transactions, try again later.",
		}
	}

	return transactions, nil
}

func (row dbTransaction) toTransaction() budget.Transaction {
	return budget.Transaction{
		ID:         row.ID,
		OwnerID:    row.UserID,
		Name:       row.Name,
		Kind:       budget.Kind(row.Type),
		Amount:     row.Amount,
		ReceiptRef: row.ReceiptFileID.String,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func (mySql *MySQLStorage) GetTransactions(ctx context.Context, userID string) ([]budget.Transaction, error) {
	query := "SELECT id, user_id, name, type, amount, receipt_file_id, created_at FROM transaction WHERE user_id = ? ORDER BY seq ASC;"
	rows, err := mySql.db.QueryContext(ctx, query, userID)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to get transactions from Storage.GetTransactions() function | Error : %v", contextutil.TraceIDFromContext(ctx), err)
		return nil, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to get transactions, try again later.",
		}
	}
	return mySql.processTransactionRows(ctx, rows)
}

func (mySql *MySQLStorage) GetTransactionById(ctx context.Context, transactionID string) (budget.Transaction, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, user_id, name, type, amount, receipt_file_id, created_at FROM transaction WHERE id = ?;"
	var row dbTransaction
	err := mySql.db.QueryRowContext(ctx, query, transactionID).Scan(&row.ID, &row.UserID, &row.Name, &row.Type, &row.Amount, &row.ReceiptFileID, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return budget.Transaction{}, appErrors.NotFound("Transaction not found")
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to scan row in Storage.GetTransactionById() function | Error : %v", traceID, err)
		return budget.Transaction{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to get transaction",
		}
	}
	return row.toTransaction(), nil
}

func (mySql *MySQLStorage) UpdateTransaction(ctx context.Context, transactionID string, fields budget.Fields) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	var sets []string
	var args []interface{}

	if fields.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *fields.Name)
	}
	if fields.Kind != nil {
		sets = append(sets, "type = ?")
		args = append(args, string(*fields.Kind))
	}
	if fields.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *fields.Amount)
	}
	if fields.ReceiptRef != nil {
		sets = append(sets, "receipt_file_id = ?")
		args = append(args, NilToNullString(fields.ReceiptRef))
	}
	if len(sets) == 0 {
		return appErrors.Validation("Nothing to update.")
	}

	query := "UPDATE transaction SET " + strings.Join(sets, ", ") + " WHERE id = ?;"
	args = append(args, transactionID)

	result, err := mySql.db.ExecContext(ctx, query, args...)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to update transaction in Storage.UpdateTransaction() function | Error : %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to update transaction, try again later.",
		}
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		// MySQL reports 0 for an update that changes nothing, so check existence.
		if _, err := mySql.GetTransactionById(ctx, transactionID); err != nil {
			return err
		}
	}
	return nil
}

func (mySql *MySQLStorage) SaveReceipt(ctx context.Context, receipt Receipt) error {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "INSERT INTO receipt (id, user_id, transaction_id, file_name, content_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?);"
	_, err := mySql.db.ExecContext(ctx, query, receipt.ID, receipt.UserID, receipt.TransactionID, receipt.FileName, receipt.ContentType, receipt.Data, receipt.CreatedAt)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to save receipt in Storage.SaveReceipt() function | Error : %v", traceID, err)
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to store receipt, try again later.",
		}
	}
	return nil
}

func (mySql *MySQLStorage) GetReceipt(ctx context.Context, fileID string) (Receipt, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	query := "SELECT id, user_id, transaction_id, file_name, content_type, data, created_at FROM receipt WHERE id = ?;"
	var receipt Receipt
	err := mySql.db.QueryRowContext(ctx, query, fileID).Scan(&receipt.ID, &receipt.UserID, &receipt.TransactionID, &receipt.FileName, &receipt.ContentType, &receipt.Data, &receipt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Receipt{}, appErrors.NotFound("File not found")
		}
		logging.Logger.Errorf("[TraceID=%s] | failed to scan receipt in Storage.GetReceipt() function | Error : %v", traceID, err)
		return Receipt{}, appErrors.ErrorResponse{
			Code:    appErrors.ErrInternal,
			Message: "Failed to get receipt, try again later.",
		}
	}
	return receipt, nil
}
