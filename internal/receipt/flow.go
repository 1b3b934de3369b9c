package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dgraph-io/ristretto"
	appErrors "github.com/fatali-fataliyev/financez/errors"
	"github.com/fatali-fataliyev/financez/internal/budget"
	"github.com/fatali-fataliyev/financez/internal/contextutil"
	"github.com/fatali-fataliyev/financez/logging"
)

const (
	SNIFF_LENGTH              = 512
	DEFAULT_PREVIEW_CACHE_MAX = 32 << 20
)

var ErrCaptureCancelled = errors.New("receipt capture cancelled")

// LocalImage is a transient reference to a captured image on this device.
type LocalImage struct {
	Path string
}

// Capturer is whatever produces a local image: a camera, a picker, a prompt.
// It returns ErrCaptureCancelled when the user backs out.
type Capturer interface {
	Capture(ctx context.Context) (LocalImage, error)
}

type Backend interface {
	UploadReceipt(ctx context.Context, ownerID string, transactionID string, fileName string, contentType string, image io.Reader) (string, error)
	FetchReceipt(ctx context.Context, ref string) ([]byte, string, error)
}

// Linker records a receipt reference on a transaction.
type Linker interface {
	Update(ctx context.Context, id string, fields budget.Fields) error
}

type Preview struct {
	Ref         string
	ContentType string
	Data        []byte
}

// LinkError means the image was stored but the transaction was not updated
// to point at it. Ref is the orphaned reference.
type LinkError struct {
	Ref string
	Err error
}

func (e LinkError) Error() string {
	return fmt.Sprintf("receipt %s uploaded but not linked: %v", e.Ref, e.Err)
}

func (e LinkError) Unwrap() error {
	return e.Err
}

type Options struct {
	MaxReceiptBytes  int64
	PreviewCacheSize int64
}

type Flow struct {
	capturer Capturer
	backend  Backend
	linker   Linker
	previews *ristretto.Cache
	maxBytes int64
}

func NewFlow(capturer Capturer, backend Backend, linker Linker, opts Options) (*Flow, error) {
	cacheSize := opts.PreviewCacheSize
	if cacheSize <= 0 {
		cacheSize = DEFAULT_PREVIEW_CACHE_MAX
	}

	previews, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1000,
		MaxCost:            cacheSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create preview cache: %w", err)
	}

	return &Flow{
		capturer: capturer,
		backend:  backend,
		linker:   linker,
		previews: previews,
		maxBytes: opts.MaxReceiptBytes,
	}, nil
}

// FileName is the name a receipt is uploaded under.
func FileName(transactionID string) string {
	return fmt.Sprintf("receipt_%s.jpg", transactionID)
}

// Capture asks the capturer for an image. If ctx ends first the call
// returns the context error right away instead of waiting on the device.
// ErrCaptureCancelled is kept for the user backing out.
func (f *Flow) Capture(ctx context.Context) (LocalImage, error) {
	type result struct {
		image LocalImage
		err   error
	}
	done := make(chan result, 1)

	go func() {
		image, err := f.capturer.Capture(ctx)
		done <- result{image: image, err: err}
	}()

	select {
	case <-ctx.Done():
		logging.Logger.Debugf("[TraceID=%s] | receipt capture abandoned: %v", contextutil.TraceIDFromContext(ctx), ctx.Err())
		return LocalImage{}, fmt.Errorf("receipt capture: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return LocalImage{}, r.err
		}
		if strings.TrimSpace(r.image.Path) == "" {
			return LocalImage{}, ErrCaptureCancelled
		}
		return r.image, nil
	}
}

// Upload sends the image bound to transactionID and ownerID and returns the
// stored reference. It never touches the transaction itself.
func (f *Flow) Upload(ctx context.Context, transactionID string, ownerID string, image LocalImage) (string, error) {
	traceID := contextutil.TraceIDFromContext(ctx)

	if strings.TrimSpace(transactionID) == "" {
		return "", appErrors.Validation("Transaction id cannot be empty!")
	}
	if strings.TrimSpace(ownerID) == "" {
		return "", appErrors.Validation("You need to login first.")
	}

	file, err := os.Open(image.Path)
	if err != nil {
		return "", appErrors.Validation("Cannot open receipt image: %s", image.Path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", appErrors.Validation("Cannot open receipt image: %s", image.Path)
	}
	if info.IsDir() {
		return "", appErrors.Validation("Receipt image must be a file: %s", image.Path)
	}
	if info.Size() == 0 {
		return "", appErrors.Validation("Receipt image is empty.")
	}
	if f.maxBytes > 0 && info.Size() > f.maxBytes {
		return "", appErrors.Validation("Receipt image is too large, maximum size is %d bytes", f.maxBytes)
	}

	head := make([]byte, SNIFF_LENGTH)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("failed to read receipt image: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return "", appErrors.Validation("Receipt must be an image, got: %s", contentType)
	}

	body := io.MultiReader(bytes.NewReader(head), file)
	ref, err := f.backend.UploadReceipt(ctx, ownerID, transactionID, FileName(transactionID), contentType, body)
	if err != nil {
		logging.Logger.Errorf("[TraceID=%s] | failed to upload receipt for transaction %s | Error: %v", traceID, transactionID, err)
		return "", fmt.Errorf("failed to upload receipt: %w", err)
	}

	logging.Logger.Infof("[TraceID=%s] | receipt %s uploaded for transaction %s", traceID, ref, transactionID)
	return ref, nil
}

// Attach uploads the image and only then links the returned reference to
// the transaction. A failed upload never reaches the linker.
func (f *Flow) Attach(ctx context.Context, transactionID string, ownerID string, image LocalImage) (string, error) {
	ref, err := f.Upload(ctx, transactionID, ownerID, image)
	if err != nil {
		return "", err
	}

	err = f.linker.Update(ctx, transactionID, budget.Fields{ReceiptRef: &ref})
	if err == nil {
		return ref, nil
	}

	var refreshErr budget.RefreshError
	if errors.As(err, &refreshErr) {
		return ref, err
	}

	logging.Logger.Errorf("[TraceID=%s] | receipt %s stored but transaction %s not updated | Error: %v", contextutil.TraceIDFromContext(ctx), ref, transactionID, err)
	return "", LinkError{Ref: ref, Err: err}
}

// FetchForDisplay returns the image for ref. Any failure means there is
// no preview; it is never reported as an error.
func (f *Flow) FetchForDisplay(ctx context.Context, ref string) (Preview, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Preview{}, false
	}

	if cached, ok := f.previews.Get(ref); ok {
		if preview, ok := cached.(Preview); ok {
			return preview, true
		}
	}

	data, contentType, err := f.backend.FetchReceipt(ctx, ref)
	if err != nil {
		logging.Logger.Warnf("[TraceID=%s] | no preview for receipt %s | Error: %v", contextutil.TraceIDFromContext(ctx), ref, err)
		return Preview{}, false
	}
	if len(data) == 0 {
		return Preview{}, false
	}

	preview := Preview{Ref: ref, ContentType: contentType, Data: data}
	f.previews.Set(ref, preview, int64(len(data)))
	f.previews.Wait()
	return preview, true
}

// ForgetPreviews drops every cached image. It is registered as a logout hook.
func (f *Flow) ForgetPreviews() {
	f.previews.Clear()
}

func (f *Flow) Close() {
	f.previews.Close()
}
