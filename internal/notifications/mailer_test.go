package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	driver      string
	verifyErr   error
	verifyDelay time.Duration
	failFirst   int
	alwaysErr   error

	mu     sync.Mutex
	sent   []Message
	calls  int
	closed atomic.Bool
}

func (f *fakeTransport) Driver() string { return f.driver }

func (f *fakeTransport) Verify(ctx context.Context) error {
	if f.verifyDelay > 0 && !sleep(ctx, f.verifyDelay) {
		return ctx.Err()
	}
	return f.verifyErr
}

func (f *fakeTransport) Send(ctx context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.alwaysErr != nil {
		return f.alwaysErr
	}
	if f.calls <= f.failFirst {
		return errors.New("temporary failure")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fastOptions() Options {
	return Options{Retries: 2, Backoff: time.Millisecond, RateInterval: time.Millisecond, RateBurst: 100}
}

var testMsg = Message{To: "client@example.com", Subject: "hello", HTML: "<p>hi</p>"}

func TestSendRetriesThenSucceeds(t *testing.T) {
	primary := &fakeTransport{driver: "smtp", failFirst: 1}
	m := NewMailer(testLogger(), fastOptions(), map[Account]Transport{Primary: primary})
	m.Open(context.Background())

	res := m.Send(context.Background(), Primary, testMsg)
	require.True(t, res.Success)
	assert.Equal(t, Primary, res.Account)
	assert.Equal(t, 2, res.Attempts)
	assert.Empty(t, res.Error)
}

func TestSendFallsBackToOtherAccount(t *testing.T) {
	primary := &fakeTransport{driver: "smtp", alwaysErr: errors.New("auth failed")}
	secondary := &fakeTransport{driver: "brevo"}
	m := NewMailer(testLogger(), fastOptions(), map[Account]Transport{Primary: primary, Secondary: secondary})
	m.Open(context.Background())

	res := m.Send(context.Background(), Primary, testMsg)
	require.True(t, res.Success)
	assert.Equal(t, Secondary, res.Account)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 1, secondary.sentCount())
}

func TestSendPrefersReadyAccount(t *testing.T) {
	primary := &fakeTransport{driver: "smtp", verifyErr: errors.New("dial refused"), alwaysErr: errors.New("dial refused")}
	secondary := &fakeTransport{driver: "brevo"}
	m := NewMailer(testLogger(), fastOptions(), map[Account]Transport{Primary: primary, Secondary: secondary})
	m.Open(context.Background())

	res := m.Send(context.Background(), Primary, testMsg)
	require.True(t, res.Success)
	assert.Equal(t, Secondary, res.Account)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, primary.calls)
}

func TestSendReportsFailure(t *testing.T) {
	primary := &fakeTransport{driver: "smtp", alwaysErr: errors.New("mailbox unavailable")}
	m := NewMailer(testLogger(), fastOptions(), map[Account]Transport{Primary: primary})

	res := m.Send(context.Background(), Secondary, testMsg)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "mailbox unavailable", res.Error)
}

func TestSendWithoutTransports(t *testing.T) {
	m := NewMailer(testLogger(), fastOptions(), nil)
	res := m.Send(context.Background(), Primary, testMsg)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoTransport.Error(), res.Error)
	assert.Zero(t, res.Attempts)
}

func TestStatusAfterOpen(t *testing.T) {
	primary := &fakeTransport{driver: "smtp"}
	secondary := &fakeTransport{driver: "brevo", verifyErr: errors.New("invalid key")}
	m := NewMailer(testLogger(), fastOptions(), map[Account]Transport{Primary: primary, Secondary: secondary})

	before := m.Status()
	assert.False(t, before[0].Ready)
	assert.Nil(t, before[0].VerifiedAt)

	m.Open(context.Background())
	st := m.Status()
	require.Len(t, st, 2)
	assert.Equal(t, Primary, st[0].Account)
	assert.True(t, st[0].Configured)
	assert.True(t, st[0].Ready)
	assert.NotNil(t, st[0].VerifiedAt)
	assert.Equal(t, "brevo", st[1].Driver)
	assert.False(t, st[1].Ready)
	assert.Equal(t, "invalid key", st[1].Error)
}

func TestSendAsyncCompletesBeforeClose(t *testing.T) {
	primary := &fakeTransport{driver: "smtp"}
	m := NewMailer(testLogger(), fastOptions(), map[Account]Transport{Primary: primary})

	for i := 0; i < 10; i++ {
		m.SendAsync(Primary, testMsg)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	assert.Equal(t, 10, primary.sentCount())
	assert.True(t, primary.closed.Load())

	m.SendAsync(Primary, testMsg)
	assert.Equal(t, 10, primary.sentCount())
}

func TestSendAsyncRacingClose(t *testing.T) {
	primary := &fakeTransport{driver: "smtp"}
	m := NewMailer(testLogger(), fastOptions(), map[Account]Transport{Primary: primary})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.SendAsync(Primary, testMsg)
		}()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	// every send accepted before Close has finished; later ones are dropped
	sent := primary.sentCount()
	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, sent, primary.sentCount())
	assert.LessOrEqual(t, sent, 20)
}

func TestOpenVerifiesAccountsConcurrently(t *testing.T) {
	primary := &fakeTransport{driver: "smtp", verifyDelay: 60 * time.Millisecond}
	secondary := &fakeTransport{driver: "brevo", verifyDelay: 60 * time.Millisecond}
	m := NewMailer(testLogger(), fastOptions(), map[Account]Transport{Primary: primary, Secondary: secondary})

	// one budget that fits a single check but not two in a row
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	m.Open(ctx)

	for _, st := range m.Status() {
		assert.True(t, st.Ready, st.Account)
		assert.Empty(t, st.Error, st.Account)
	}
}
