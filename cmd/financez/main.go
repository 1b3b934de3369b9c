package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/auth"
	"github.com/fatali-fataliyev/financez/internal/backend"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/fatali-fataliyev/financez/internal/config"
	"github.com/fatali-fataliyev/financez/internal/contextutil"
	"github.com/fatali-fataliyev/financez/internal/receipt"
	"github.com/fatali-fataliyev/financez/logging"
)

const usage = `financez - personal finance tracker

Usage:
  financez signup
  financez login [-email EMAIL]
  financez logout
  financez list
  financez add [-name NAME -type income|expense -amount AMOUNT]
  financez edit -id ID [-name NAME] [-type income|expense] [-amount AMOUNT]
  financez receipt attach -id ID [-file PATH]
  financez receipt show -id ID [-out PATH]
`

type app struct {
	cfg     *config.Client
	session *auth.SessionManager
	client  *backend.Client
	store   *budget.TransactionStore
	flow    *receipt.Flow
	closers []func() error
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Print(usage)
		return 0
	}

	cfg := config.LoadClient()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return 2
	}

	if err := logging.Init(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, traceID := contextutil.WithTraceID(ctx)
	logging.Logger.Debugf("[TraceID=%s] | command: %v", traceID, args)

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		return 1
	}
	defer a.close()

	if err := a.dispatch(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		report(err)
		return 1
	}
	return 0
}

func newApp(cfg *config.Client) (*app, error) {
	a := &app{cfg: cfg}

	var store auth.TokenStore
	switch cfg.TokenStore {
	case config.TokenStoreSQLite:
		sqliteStore, err := auth.NewSQLiteTokenStore(cfg.TokenPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		a.closers = append(a.closers, sqliteStore.Close)
		store = sqliteStore
	default:
		store = auth.NewFileTokenStore(cfg.TokenPath)
	}

	a.session = auth.NewSessionManager(store)
	a.client = backend.NewClient(backend.Options{
		BaseURL:         cfg.APIURL,
		Timeout:         cfg.HTTPTimeout,
		MaxReceiptBytes: cfg.MaxReceiptBytes,
	}, a.session)
	a.store = budget.NewTransactionStore(a.client, a.session)

	flow, err := receipt.NewFlow(receipt.PathCapturer{Ask: askReceiptPath}, a.client, a.store, receipt.Options{
		MaxReceiptBytes:  cfg.MaxReceiptBytes,
		PreviewCacheSize: cfg.PreviewCacheSize,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.flow = flow
	a.closers = append(a.closers, func() error {
		flow.Close()
		return nil
	})

	a.session.OnLogout(a.store.Reset)
	a.session.OnLogout(a.flow.ForgetPreviews)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Logger.Warnf("failed to close resource: %v", err)
		}
	}
}

// dispatch routes a command. Only signup and login are reachable without
// a restored session.
func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args)
	}

	ownerID, ok := a.session.Restore(ctx)
	if !ok {
		return appErrors.ErrorResponse{Code: appErrors.ErrAuth, Message: "You need to login first: financez login"}
	}

	switch command {
	case "logout":
		return a.logout(ctx)
	case "list":
		return a.list(ctx, ownerID)
	case "add":
		return a.add(ctx, ownerID, args)
	case "edit":
		return a.edit(ctx, ownerID, args)
	case "receipt":
		return a.receipt(ctx, ownerID, args)
	default:
		fmt.Print(usage)
		return appErrors.Validation("Unknown command: %s", command)
	}
}

// report prints err the way the error kind asks for.
func report(err error) {
	var refreshErr budget.RefreshError
	if errors.As(err, &refreshErr) {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Saved. The list could not be refreshed: "+appErrors.UserMessage(err)))
		return
	}
	var linkErr receipt.LinkError
	if errors.As(err, &linkErr) {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Receipt uploaded but not attached: "+appErrors.UserMessage(linkErr.Err)))
		logging.Logger.Warnf("orphaned receipt %s: %v", linkErr.Ref, linkErr.Err)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintln(os.Stderr, mutedStyle.Render("Interrupted."))
		logging.Logger.Debugf("command interrupted: %v", err)
		return
	}
	if appErrors.Is(err, appErrors.ErrNotFound) {
		fmt.Fprintln(os.Stderr, mutedStyle.Render(appErrors.UserMessage(err)))
		return
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render(appErrors.UserMessage(err)))
	logging.Logger.Debugf("command failed: %v", err)
}
