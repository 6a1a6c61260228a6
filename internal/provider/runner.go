package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/clipstash/internal/capture"
	clerrors "github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
)

// Runner executes provider requests in background goroutines and hands the
// results to the display loop through a mailbox.
type Runner struct {
	prov    Provider
	mb      *capture.Mailbox
	timeout time.Duration
	log     *zap.Logger

	wg       sync.WaitGroup
	inFlight atomic.Int32
}

// NewRunner returns a Runner delivering into mb. Each request is bounded by timeout.
func NewRunner(prov Provider, mb *capture.Mailbox, timeout time.Duration, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{prov: prov, mb: mb, timeout: timeout, log: log}
}

// Provider returns the backend the runner calls.
func (r *Runner) Provider() Provider { return r.prov }

// Process sends prompt to the LLM. The result is tagged with snap's epoch, so
// it is dropped if the buffer changes before the response arrives.
func (r *Runner) Process(ctx context.Context, snap capture.Snapshot, prompt string) {
	r.start(ctx, snap.Epoch, "llm", func(ctx context.Context) (string, error) {
		resp, err := r.prov.ProcessText(ctx, prompt)
		if err != nil {
			return "", err
		}
		return FormatProcessed(snap.Text, resp), nil
	}, item.SourceLLM)
}

// Extract runs OCR on an image. OCR results replace the buffer whenever they
// arrive, so they carry no epoch.
func (r *Runner) Extract(ctx context.Context, image []byte, mime string) {
	r.start(ctx, 0, "ocr", func(ctx context.Context) (string, error) {
		return r.prov.ExtractText(ctx, image, mime)
	}, item.SourceOCR)
}

func (r *Runner) start(ctx context.Context, epoch uint64, kind string, call func(context.Context) (string, error), source item.Source) {
	r.wg.Add(1)
	r.inFlight.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Add(-1)

		ctx, cancel := r.withTimeout(ctx)
		defer cancel()

		started := time.Now()
		text, err := call(ctx)
		if err != nil {
			r.log.Warn("provider request failed",
				zap.String("provider", r.prov.Name()),
				zap.String("kind", kind),
				zap.Duration("elapsed", time.Since(started)),
				zap.Error(err))
			r.mb.Put(capture.Event{Source: source, Err: clerrors.NewProvider(r.prov.Name(), err), Epoch: epoch})
			return
		}
		r.log.Debug("provider request done",
			zap.String("provider", r.prov.Name()),
			zap.String("kind", kind),
			zap.Duration("elapsed", time.Since(started)))
		r.mb.Put(capture.Event{Text: text, Source: source, Epoch: epoch})
	}()
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Busy reports whether any request is still running.
func (r *Runner) Busy() bool { return r.inFlight.Load() > 0 }

// Wait blocks until every started request has delivered its result.
func (r *Runner) Wait() { r.wg.Wait() }

// Call runs a single request synchronously, bounded by timeout, and wraps
// failures as provider errors.
func Call(ctx context.Context, prov Provider, timeout time.Duration, fn func(context.Context, Provider) (string, error)) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	text, err := fn(ctx, prov)
	if err != nil {
		return "", clerrors.NewProvider(prov.Name(), err)
	}
	return text, nil
}
