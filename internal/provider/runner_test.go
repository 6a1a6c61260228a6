package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hpungsan/clipstash/internal/capture"
	clerrors "github.com/hpungsan/clipstash/internal/errors"
	"github.com/hpungsan/clipstash/internal/item"
)

type fakeProvider struct {
	text    string
	err     error
	release chan struct{}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ProcessText(ctx context.Context, prompt string) (string, error) {
	return f.wait(ctx)
}

func (f *fakeProvider) ExtractText(ctx context.Context, image []byte, mime string) (string, error) {
	return f.wait(ctx)
}

func (f *fakeProvider) wait(ctx context.Context) (string, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func takeEvent(t *testing.T, mb *capture.Mailbox) capture.Event {
	t.Helper()
	select {
	case <-mb.C():
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	ev, ok := mb.Take()
	require.True(t, ok)
	return ev
}

func TestRunner_ProcessDeliversFormattedResult(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	buf := capture.NewBuffer()
	buf.Receive("ls -la", item.SourceClipboard)
	snap, _ := buf.Current()

	mb := capture.NewMailbox()
	r := NewRunner(&fakeProvider{text: "lists files"}, mb, time.Second, nil)
	r.Process(context.Background(), snap, "explain ls -la")
	r.Wait()

	ev := takeEvent(t, mb)
	require.NoError(t, ev.Err)
	require.Equal(t, item.SourceLLM, ev.Source)
	require.Equal(t, snap.Epoch, ev.Epoch)
	require.Equal(t, FormatProcessed("ls -la", "lists files"), ev.Text)
	require.False(t, r.Busy())
}

func TestRunner_StaleResultDropped(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	buf := capture.NewBuffer()
	buf.Receive("first", item.SourceClipboard)
	snap, _ := buf.Current()

	fp := &fakeProvider{text: "late answer", release: make(chan struct{})}
	mb := capture.NewMailbox()
	r := NewRunner(fp, mb, time.Second, nil)
	r.Process(context.Background(), snap, "prompt")

	router := capture.NewRouter(buf, 0)
	router.Receive("second", item.SourceClipboard)

	close(fp.release)
	r.Wait()

	ev := takeEvent(t, mb)
	require.False(t, router.Deliver(ev), "stale result should be dropped")

	cur, _ := buf.Current()
	require.Equal(t, "second", cur.Text)
}

func TestRunner_ErrorBecomesMarker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	buf := capture.NewBuffer()
	buf.Receive("keep me", item.SourceClipboard)
	snap, _ := buf.Current()

	mb := capture.NewMailbox()
	r := NewRunner(&fakeProvider{err: errors.New("quota exceeded")}, mb, time.Second, nil)
	r.Process(context.Background(), snap, "prompt")
	r.Wait()

	ev := takeEvent(t, mb)
	require.True(t, clerrors.Is(ev.Err, clerrors.ErrProvider))

	router := capture.NewRouter(buf, 0)
	require.True(t, router.Deliver(ev))

	cur, _ := buf.Current()
	require.Equal(t, "keep me", cur.Text)
	require.Contains(t, cur.Err, "quota exceeded")
	require.Equal(t, snap.Epoch, cur.Epoch)
}

func TestRunner_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mb := capture.NewMailbox()
	r := NewRunner(&fakeProvider{release: make(chan struct{})}, mb, 20*time.Millisecond, nil)
	r.Extract(context.Background(), []byte("png"), "image/png")
	r.Wait()

	ev := takeEvent(t, mb)
	require.True(t, clerrors.Is(ev.Err, clerrors.ErrProvider))
	require.ErrorIs(t, ev.Err, context.DeadlineExceeded)
	require.Equal(t, uint64(0), ev.Epoch)
	require.Equal(t, item.SourceOCR, ev.Source)
}

func TestRunner_ExtractIsNeverStale(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	buf := capture.NewBuffer()
	buf.Receive("before", item.SourceClipboard)

	mb := capture.NewMailbox()
	r := NewRunner(&fakeProvider{text: "from screen"}, mb, time.Second, nil)
	r.Extract(context.Background(), []byte("png"), "image/png")
	r.Wait()
	buf.Receive("meanwhile", item.SourceClipboard)

	router := capture.NewRouter(buf, 0)
	require.True(t, router.Deliver(takeEvent(t, mb)))

	cur, _ := buf.Current()
	require.Equal(t, "from screen", cur.Text)
	require.Equal(t, item.SourceOCR, cur.Source)
}

func TestCall_WrapsProviderError(t *testing.T) {
	_, err := Call(context.Background(), &fakeProvider{err: errors.New("down")}, time.Second,
		func(ctx context.Context, p Provider) (string, error) {
			return p.ProcessText(ctx, "x")
		})
	require.True(t, clerrors.Is(err, clerrors.ErrProvider))

	got, err := Call(context.Background(), &fakeProvider{text: "ok"}, 0,
		func(ctx context.Context, p Provider) (string, error) {
			return p.ProcessText(ctx, "x")
		})
	require.NoError(t, err)
	require.Equal(t, "ok", got)
}
