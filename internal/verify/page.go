// Package verify holds the state of the product verification page,
// independent of how it is rendered.
package verify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"heritage-atlas/internal/domain"

	"go.uber.org/zap"
)

// Verifier looks up a verification code.
type Verifier interface {
	VerifyProduct(ctx context.Context, code string) (*domain.VerificationResponse, error)
}

// StatusCoder is implemented by failures that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// Detailer is implemented by failures that carry a server-provided message.
type Detailer interface {
	ServerDetail() string
}

// Result is the outcome of the last applied submission.
type Result struct {
	Verified bool
	Product  *domain.Product
}

// State is a snapshot of a Page.
type State struct {
	Barcode    string
	Loading    bool
	Result     *Result
	Error      string
	Phase      Phase
	Generation uint64
}

// Page is the verification page of one visitor. It is safe for concurrent
// use. Only the most recent submission may change the displayed outcome.
type Page struct {
	verifier Verifier
	logger   *zap.Logger

	mu         sync.Mutex
	barcode    string
	loading    bool
	result     *Result
	errMsg     string
	generation uint64
	cancel     context.CancelFunc
}

// NewPage returns an idle page that looks codes up through verifier.
func NewPage(verifier Verifier, logger *zap.Logger) *Page {
	return &Page{
		verifier: verifier,
		logger:   logger,
	}
}

// Navigate applies the query of the current location. A non-blank barcode
// parameter replaces the input with its trimmed value; anything else leaves
// the input alone.
func (p *Page) Navigate(query url.Values) {
	code := strings.TrimSpace(query.Get("barcode"))
	if code == "" {
		return
	}

	p.mu.Lock()
	p.barcode = code
	p.mu.Unlock()
}

// SetBarcode stores the input exactly as typed.
func (p *Page) SetBarcode(text string) {
	p.mu.Lock()
	p.barcode = text
	p.mu.Unlock()
}

// Submit verifies the trimmed input and blocks until the lookup returns or
// is superseded. A blank input is ignored. Starting a submission cancels the
// lookup of the previous one, whose outcome is then discarded.
func (p *Page) Submit(ctx context.Context) {
	p.mu.Lock()
	code := strings.TrimSpace(p.barcode)
	if code == "" {
		p.mu.Unlock()
		return
	}

	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	gen := p.generation
	reqCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.loading = true
	p.errMsg = ""
	p.result = nil
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		if gen == p.generation {
			p.loading = false
			p.cancel = nil
		}
		p.mu.Unlock()
	}()

	resp, err := p.lookup(reqCtx, code)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		p.logger.Debug("Discarding superseded verification",
			zap.String("code", code),
			zap.Uint64("generation", gen),
		)
		return
	}

	if err != nil {
		p.logger.Info("Verification failed", zap.String("code", code), zap.Error(err))
		p.errMsg = FailureMessage(err)
		p.result = &Result{Verified: false}
		return
	}

	p.result = &Result{Verified: resp.Verified, Product: resp.Product}
}

// lookup turns a panicking verifier into an ordinary failure.
func (p *Page) lookup(ctx context.Context, code string) (resp *domain.VerificationResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Verifier panicked", zap.String("code", code), zap.Any("panic", r))
			resp, err = nil, fmt.Errorf("verifier panic: %v", r)
		}
	}()

	resp, err = p.verifier.VerifyProduct(ctx, code)
	if err == nil && resp == nil {
		resp = &domain.VerificationResponse{}
	}
	return resp, err
}

// Reset returns the page to a freshly mounted state. Any lookup in flight
// is cancelled and its outcome discarded.
func (p *Page) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
	p.barcode = ""
	p.loading = false
	p.result = nil
	p.errMsg = ""
}

// Close cancels any lookup in flight.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// State returns a snapshot of the page.
func (p *Page) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stateLocked()
}

func (p *Page) stateLocked() State {
	s := State{
		Barcode:    p.barcode,
		Loading:    p.loading,
		Error:      p.errMsg,
		Generation: p.generation,
	}
	if p.result != nil {
		r := *p.result
		s.Result = &r
	}
	s.Phase = phaseOf(s)
	return s
}
