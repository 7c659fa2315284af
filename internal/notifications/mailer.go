package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Account string

const (
	Primary   Account = "primary"
	Secondary Account = "secondary"
)

func (a Account) other() Account {
	if a == Primary {
		return Secondary
	}
	return Primary
}

type Status struct {
	Account    Account    `json:"account"`
	Driver     string     `json:"driver"`
	Configured bool       `json:"configured"`
	Ready      bool       `json:"ready"`
	Error      string     `json:"error,omitempty"`
	VerifiedAt *time.Time `json:"verifiedAt,omitempty"`
}

// Result describes a delivery; Send never returns a Go error.
type Result struct {
	Success  bool    `json:"success"`
	Account  Account `json:"transport,omitempty"`
	Attempts int     `json:"attempts"`
	Error    string  `json:"error,omitempty"`
}

type Options struct {
	Retries       int
	Backoff       time.Duration
	MaxConcurrent int
	RateInterval  time.Duration
	RateBurst     int
	AsyncTimeout  time.Duration
	VerifyTimeout time.Duration
	AdminEmail    string
}

func (o Options) withDefaults() Options {
	if o.Retries < 1 {
		o.Retries = 2
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.MaxConcurrent < 1 {
		o.MaxConcurrent = 5
	}
	if o.RateInterval <= 0 {
		o.RateInterval = 4 * time.Second
	}
	if o.RateBurst < 1 {
		o.RateBurst = 14
	}
	if o.AsyncTimeout <= 0 {
		o.AsyncTimeout = 2 * time.Minute
	}
	if o.VerifyTimeout <= 0 {
		o.VerifyTimeout = 15 * time.Second
	}
	return o
}

type Mailer struct {
	log        *slog.Logger
	opts       Options
	transports map[Account]Transport

	mu     sync.RWMutex
	status map[Account]Status

	sem     chan struct{}
	limiter *rate.Limiter
	// asyncMu orders wg.Add in SendAsync against wg.Wait in Close.
	asyncMu sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

// NewMailer owns the given transports; nil entries count as unconfigured.
func NewMailer(log *slog.Logger, opts Options, transports map[Account]Transport) *Mailer {
	opts = opts.withDefaults()
	m := &Mailer{
		log:        log,
		opts:       opts,
		transports: make(map[Account]Transport, 2),
		status:     make(map[Account]Status, 2),
		sem:        make(chan struct{}, opts.MaxConcurrent),
		limiter:    rate.NewLimiter(rate.Every(opts.RateInterval/time.Duration(opts.RateBurst)), opts.RateBurst),
	}
	for _, acc := range []Account{Primary, Secondary} {
		t := transports[acc]
		st := Status{Account: acc}
		if t != nil {
			m.transports[acc] = t
			st.Driver = t.Driver()
			st.Configured = true
		}
		m.status[acc] = st
	}
	return m
}

func (m *Mailer) AdminEmail() string {
	return m.opts.AdminEmail
}

// Open verifies every configured transport once, concurrently, and caches
// the outcome. Each check gets VerifyTimeout within ctx.
func (m *Mailer) Open(ctx context.Context) {
	var wg sync.WaitGroup
	for acc, t := range m.transports {
		wg.Add(1)
		go func(acc Account, t Transport) {
			defer wg.Done()
			m.verify(ctx, acc, t)
		}(acc, t)
	}
	wg.Wait()
}

func (m *Mailer) verify(ctx context.Context, acc Account, t Transport) {
	verifyCtx, cancel := context.WithTimeout(ctx, m.opts.VerifyTimeout)
	err := t.Verify(verifyCtx)
	cancel()

	now := time.Now()
	m.mu.Lock()
	st := m.status[acc]
	st.VerifiedAt = &now
	st.Ready = err == nil
	st.Error = ""
	if err != nil {
		st.Error = err.Error()
	}
	m.status[acc] = st
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("mailer: transport verify failed", slog.String("account", string(acc)), slog.String("error", err.Error()))
		return
	}
	m.log.Info("mailer: transport ready", slog.String("account", string(acc)), slog.String("driver", t.Driver()))
}

func (m *Mailer) Status() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return []Status{m.status[Primary], m.status[Secondary]}
}

func (m *Mailer) ready(acc Account) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status[acc].Ready
}

func (m *Mailer) markResult(acc Account, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[acc]
	if err == nil {
		st.Ready = true
		st.Error = ""
	} else {
		st.Error = err.Error()
	}
	m.status[acc] = st
}

// candidates orders configured accounts: the requested one first unless only
// the other one verified successfully.
func (m *Mailer) candidates(requested Account) []Account {
	order := []Account{requested, requested.other()}
	if !m.ready(requested) && m.ready(requested.other()) {
		order = []Account{requested.other(), requested}
	}
	out := make([]Account, 0, 2)
	for _, acc := range order {
		if _, ok := m.transports[acc]; ok {
			out = append(out, acc)
		}
	}
	return out
}

// Send delivers msg with bounded retries per account, then falls back to the
// other account.
func (m *Mailer) Send(ctx context.Context, requested Account, msg Message) Result {
	accounts := m.candidates(requested)
	if len(accounts) == 0 {
		return Result{Error: ErrNoTransport.Error()}
	}

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return Result{Error: ctx.Err().Error()}
	}

	res := Result{}
	for _, acc := range accounts {
		t := m.transports[acc]
		for attempt := 1; attempt <= m.opts.Retries; attempt++ {
			if err := m.limiter.Wait(ctx); err != nil {
				res.Error = err.Error()
				return res
			}
			res.Attempts++
			err := t.Send(ctx, msg)
			m.markResult(acc, err)
			if err == nil {
				res.Success = true
				res.Account = acc
				res.Error = ""
				return res
			}
			res.Account = acc
			res.Error = err.Error()
			m.log.Warn("mailer: send attempt failed",
				slog.String("account", string(acc)),
				slog.Int("attempt", attempt),
				slog.String("to", msg.To),
				slog.String("error", err.Error()),
			)
			if attempt < m.opts.Retries {
				if !sleep(ctx, time.Duration(attempt)*m.opts.Backoff) {
					return res
				}
			}
		}
	}
	return res
}

// SendAsync delivers in the background; failures are only logged.
func (m *Mailer) SendAsync(requested Account, msg Message) {
	m.asyncMu.Lock()
	if m.closed {
		m.asyncMu.Unlock()
		m.log.Warn("mailer: dropped message after close", slog.String("to", msg.To), slog.String("subject", msg.Subject))
		return
	}
	m.wg.Add(1)
	m.asyncMu.Unlock()

	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.AsyncTimeout)
		defer cancel()
		res := m.Send(ctx, requested, msg)
		if !res.Success {
			m.log.Error("mailer: async delivery failed",
				slog.String("to", msg.To),
				slog.String("subject", msg.Subject),
				slog.Int("attempts", res.Attempts),
				slog.String("error", res.Error),
			)
			return
		}
		m.log.Info("mailer: delivered", slog.String("to", msg.To), slog.String("account", string(res.Account)))
	}()
}

// Close waits for background sends (bounded by ctx) and closes transports.
func (m *Mailer) Close(ctx context.Context) error {
	m.asyncMu.Lock()
	m.closed = true
	m.asyncMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.log.Warn("mailer: close timed out with pending sends")
	}

	var firstErr error
	for _, t := range m.transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
