package verify

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"heritage-atlas/internal/client"
	"heritage-atlas/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type verifierFunc func(ctx context.Context, code string) (*domain.VerificationResponse, error)

func (f verifierFunc) VerifyProduct(ctx context.Context, code string) (*domain.VerificationResponse, error) {
	return f(ctx, code)
}

type countingVerifier struct {
	mu    sync.Mutex
	codes []string
	resp  *domain.VerificationResponse
	err   error
}

func (v *countingVerifier) VerifyProduct(ctx context.Context, code string) (*domain.VerificationResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.codes = append(v.codes, code)
	return v.resp, v.err
}

func (v *countingVerifier) calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.codes...)
}

func kondapalli() *domain.Product {
	return &domain.Product{
		ID:          uuid.MustParse("5f1d7c8e-4a7b-4c1e-9a51-1f0e2b3c4d5e"),
		Name:        "Kondapalli Bommalu (Toys)",
		Region:      "Andhra Pradesh",
		GITag:       "Kondapalli",
		ArtisanName: "Venkatesh Rao",
		Barcode:     "HC-KOND-001",
		ImageURL:    "https://images.example/kondapalli.jpg",
		IsActive:    true,
	}
}

func newTestPage(v Verifier) *Page {
	return NewPage(v, zap.NewNop())
}

func TestNavigate_PrefillsTrimmedBarcode(t *testing.T) {
	page := newTestPage(&countingVerifier{})

	page.Navigate(url.Values{"barcode": {"  HC-KOND-001 "}})

	if got := page.State().Barcode; got != "HC-KOND-001" {
		t.Errorf("barcode = %q, want HC-KOND-001", got)
	}
}

func TestNavigate_IgnoresBlankOrMissingParam(t *testing.T) {
	for _, query := range []url.Values{
		{"barcode": {"   "}},
		{"barcode": {""}},
		{},
		{"code": {"HC-KOND-001"}},
	} {
		page := newTestPage(&countingVerifier{})
		page.Navigate(query)
		if got := page.State().Barcode; got != "" {
			t.Errorf("Navigate(%v): barcode = %q, want empty", query, got)
		}
	}
}

func TestNavigate_RunsOnEveryNavigation(t *testing.T) {
	page := newTestPage(&countingVerifier{})

	page.Navigate(url.Values{"barcode": {"HC-KOND-001"}})
	page.SetBarcode("typed")
	page.Navigate(url.Values{"barcode": {"HC-CHAN-002"}})

	if got := page.State().Barcode; got != "HC-CHAN-002" {
		t.Errorf("barcode = %q, want HC-CHAN-002", got)
	}

	page.Navigate(url.Values{})
	if got := page.State().Barcode; got != "HC-CHAN-002" {
		t.Errorf("navigation without barcode changed input to %q", got)
	}
}

// Feature: heritage-atlas, Property 14: Blank input never reaches the verifier
func TestProperty_BlankInputIsIgnored(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("whitespace-only input performs no call and leaves state unset", prop.ForAll(
		func(input string) bool {
			v := &countingVerifier{resp: &domain.VerificationResponse{Verified: true, Product: kondapalli()}}
			page := newTestPage(v)
			page.SetBarcode(input)

			page.Submit(context.Background())

			s := page.State()
			return len(v.calls()) == 0 &&
				s.Result == nil &&
				s.Error == "" &&
				!s.Loading &&
				s.Phase == PhaseIdle &&
				page.View().SubmitDisabled
		},
		gen.RegexMatch(`[ \t\r\n]{0,8}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: heritage-atlas, Property 15: Failures keep the typed input and end loading
func TestProperty_FailureKeepsInput(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("after any failure loading is false and input is unchanged", prop.ForAll(
		func(input string, status int, detail string) bool {
			v := &countingVerifier{err: &client.APIError{StatusCode: status, Detail: detail}}
			page := newTestPage(v)
			page.SetBarcode(input)

			page.Submit(context.Background())

			s := page.State()
			return !s.Loading &&
				s.Barcode == input &&
				s.Error != "" &&
				s.Result != nil && !s.Result.Verified &&
				s.Phase == PhaseFailed
		},
		gen.Identifier().Map(func(s string) string { return " " + s + " " }),
		gen.OneConstOf(0, 400, 404, 429, 500, 503),
		gen.OneConstOf("", "Database unavailable"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSubmit_SendsTrimmedCode(t *testing.T) {
	v := &countingVerifier{resp: &domain.VerificationResponse{}}
	page := newTestPage(v)
	page.SetBarcode("  HC-KOND-001\t")

	page.Submit(context.Background())

	if diff := cmp.Diff([]string{"HC-KOND-001"}, v.calls()); diff != "" {
		t.Errorf("verifier calls mismatch (-want +got):\n%s", diff)
	}
	if got := page.State().Barcode; got != "  HC-KOND-001\t" {
		t.Errorf("input was rewritten to %q", got)
	}
}

func TestSubmit_Verified(t *testing.T) {
	product := kondapalli()
	page := newTestPage(&countingVerifier{resp: &domain.VerificationResponse{Verified: true, Product: product}})
	page.SetBarcode("HC-KOND-001")

	page.Submit(context.Background())

	want := View{
		Barcode:     "HC-KOND-001",
		SubmitLabel: "Verify",
		Panel:       PanelVerified,
		Product: &ProductView{
			ID:          "5f1d7c8e-4a7b-4c1e-9a51-1f0e2b3c4d5e",
			Name:        "Kondapalli Bommalu (Toys)",
			Region:      "Andhra Pradesh",
			GITag:       "Kondapalli",
			ArtisanName: "Venkatesh Rao",
			Barcode:     "HC-KOND-001",
			ImageURL:    "https://images.example/kondapalli.jpg",
			Link:        "/products/5f1d7c8e-4a7b-4c1e-9a51-1f0e2b3c4d5e",
		},
	}
	if diff := cmp.Diff(want, page.View()); diff != "" {
		t.Errorf("view mismatch (-want +got):\n%s", diff)
	}

	s := page.State()
	if s.Loading || s.Error != "" || s.Phase != PhaseVerified {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestSubmit_NotFoundResult(t *testing.T) {
	page := newTestPage(&countingVerifier{resp: &domain.VerificationResponse{Verified: false}})
	page.SetBarcode("HC-GONE-404")

	page.Submit(context.Background())

	v := page.View()
	if v.Panel != PanelNotFound || v.Message != MessageNoMatch || v.Product != nil {
		t.Errorf("unexpected view %+v", v)
	}
	if page.State().Phase != PhaseNotFound {
		t.Errorf("phase = %v, want not-found", page.State().Phase)
	}
}

func TestSubmit_NilResponseIsNotFound(t *testing.T) {
	page := newTestPage(verifierFunc(func(ctx context.Context, code string) (*domain.VerificationResponse, error) {
		return nil, nil
	}))
	page.SetBarcode("HC-1")

	page.Submit(context.Background())

	if got := page.View().Panel; got != PanelNotFound {
		t.Errorf("panel = %v, want not-found", got)
	}
}

func TestSubmit_FailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"404 with detail", &client.APIError{StatusCode: 404, Detail: "X"}, "X"},
		{"404 without detail", &client.APIError{StatusCode: 404}, MessageProductNotFound},
		{"500 without detail", &client.APIError{StatusCode: 500}, MessageVerificationFailed},
		{"500 with detail", &client.APIError{StatusCode: 500, Detail: "Database unavailable"}, "Database unavailable"},
		{"400 without detail", &client.APIError{StatusCode: 400}, MessageVerificationFailed},
		{"malformed response", &client.APIError{}, MessageVerificationFailed},
		{"transport error", errors.New("connection refused"), MessageVerificationFailed},
		{"wrapped 404", errors.Join(errors.New("lookup"), &client.APIError{StatusCode: 404}), MessageProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newTestPage(&countingVerifier{err: tt.err})
			page.SetBarcode("HC-KOND-001")

			page.Submit(context.Background())

			v := page.View()
			if v.Panel != PanelError {
				t.Fatalf("panel = %v, want error", v.Panel)
			}
			if v.Message != tt.want {
				t.Errorf("message = %q, want %q", v.Message, tt.want)
			}
		})
	}
}

func TestSubmit_PanicIsContained(t *testing.T) {
	page := newTestPage(verifierFunc(func(ctx context.Context, code string) (*domain.VerificationResponse, error) {
		panic("decoder exploded")
	}))
	page.SetBarcode("HC-KOND-001")

	page.Submit(context.Background())

	s := page.State()
	if s.Loading {
		t.Error("loading stuck after panic")
	}
	if s.Error != MessageVerificationFailed {
		t.Errorf("error = %q", s.Error)
	}
}

func TestSubmit_ClearsPreviousOutcome(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0

	page := newTestPage(verifierFunc(func(ctx context.Context, code string) (*domain.VerificationResponse, error) {
		calls++
		if calls == 1 {
			return nil, &client.APIError{StatusCode: 500}
		}
		close(started)
		<-release
		return &domain.VerificationResponse{Verified: true, Product: kondapalli()}, nil
	}))
	page.SetBarcode("HC-KOND-001")
	page.Submit(context.Background())

	done := make(chan struct{})
	go func() {
		page.Submit(context.Background())
		close(done)
	}()
	<-started

	s := page.State()
	if !s.Loading || s.Error != "" || s.Result != nil || s.Phase != PhaseLoading {
		t.Errorf("state while loading = %+v", s)
	}
	v := page.View()
	if !v.SubmitDisabled || v.SubmitLabel != "Verifying..." || v.Panel != PanelNone {
		t.Errorf("view while loading = %+v", v)
	}

	close(release)
	<-done

	if got := page.State().Phase; got != PhaseVerified {
		t.Errorf("phase = %v, want verified", got)
	}
}

func TestSubmit_LastSubmissionWins(t *testing.T) {
	firstStarted := make(chan struct{})
	firstCancelled := make(chan struct{})

	page := newTestPage(verifierFunc(func(ctx context.Context, code string) (*domain.VerificationResponse, error) {
		if code == "HC-SLOW-001" {
			close(firstStarted)
			<-ctx.Done()
			close(firstCancelled)
			// A late answer from the superseded lookup must not be shown.
			return &domain.VerificationResponse{Verified: true, Product: kondapalli()}, nil
		}
		return &domain.VerificationResponse{Verified: false}, nil
	}))

	page.SetBarcode("HC-SLOW-001")
	done := make(chan struct{})
	go func() {
		page.Submit(context.Background())
		close(done)
	}()
	<-firstStarted

	page.SetBarcode("HC-FAST-002")
	page.Submit(context.Background())

	select {
	case <-firstCancelled:
	case <-time.After(time.Second):
		t.Fatal("first lookup was not cancelled")
	}
	<-done

	s := page.State()
	if s.Phase != PhaseNotFound {
		t.Errorf("phase = %v, want not-found from the latest submission", s.Phase)
	}
	if s.Loading {
		t.Error("loading left on")
	}
	if s.Generation != 2 {
		t.Errorf("generation = %d, want 2", s.Generation)
	}
}

func TestSubmit_StaleCompletionKeepsNewerLoading(t *testing.T) {
	secondStarted := make(chan struct{})
	releaseSecond := make(chan struct{})
	firstStarted := make(chan struct{})

	page := newTestPage(verifierFunc(func(ctx context.Context, code string) (*domain.VerificationResponse, error) {
		switch code {
		case "FIRST":
			close(firstStarted)
			<-ctx.Done()
			return nil, ctx.Err()
		default:
			close(secondStarted)
			<-releaseSecond
			return &domain.VerificationResponse{}, nil
		}
	}))

	page.SetBarcode("FIRST")
	firstDone := make(chan struct{})
	go func() {
		page.Submit(context.Background())
		close(firstDone)
	}()
	<-firstStarted

	page.SetBarcode("SECOND")
	secondDone := make(chan struct{})
	go func() {
		page.Submit(context.Background())
		close(secondDone)
	}()
	<-secondStarted
	<-firstDone

	s := page.State()
	if !s.Loading || s.Error != "" {
		t.Errorf("superseded failure leaked into state: %+v", s)
	}

	close(releaseSecond)
	<-secondDone
}

func TestClose_CancelsInFlightLookup(t *testing.T) {
	started := make(chan struct{})
	page := newTestPage(verifierFunc(func(ctx context.Context, code string) (*domain.VerificationResponse, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	page.SetBarcode("HC-KOND-001")

	done := make(chan struct{})
	go func() {
		page.Submit(context.Background())
		close(done)
	}()
	<-started

	page.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit did not return after Close")
	}
	if page.State().Loading {
		t.Error("loading left on after Close")
	}
}

func TestPhaseString(t *testing.T) {
	want := map[Phase]string{
		PhaseIdle:     "idle",
		PhaseLoading:  "loading",
		PhaseVerified: "verified",
		PhaseNotFound: "not-found",
		PhaseFailed:   "failed",
		Phase(42):     "unknown",
	}
	for phase, s := range want {
		if phase.String() != s {
			t.Errorf("Phase(%d).String() = %q, want %q", int(phase), phase.String(), s)
		}
	}
}

func TestReset_ClearsOutcomeAndInput(t *testing.T) {
	page := newTestPage(&countingVerifier{resp: &domain.VerificationResponse{Verified: true, Product: kondapalli()}})
	page.SetBarcode("HC-KOND-001")
	page.Submit(context.Background())
	before := page.State().Generation

	page.Reset()

	s := page.State()
	if s.Barcode != "" || s.Result != nil || s.Error != "" || s.Loading || s.Phase != PhaseIdle {
		t.Errorf("state after Reset = %+v", s)
	}
	if s.Generation <= before {
		t.Errorf("generation = %d, want greater than %d", s.Generation, before)
	}
	if got := page.View().Panel; got != PanelNone {
		t.Errorf("panel = %v, want none", got)
	}
}

func TestReset_DiscardsInFlightLookup(t *testing.T) {
	started := make(chan struct{})
	page := newTestPage(verifierFunc(func(ctx context.Context, code string) (*domain.VerificationResponse, error) {
		close(started)
		<-ctx.Done()
		return &domain.VerificationResponse{Verified: true, Product: kondapalli()}, nil
	}))
	page.SetBarcode("HC-KOND-001")

	done := make(chan struct{})
	go func() {
		page.Submit(context.Background())
		close(done)
	}()
	<-started

	page.Reset()
	page.Navigate(url.Values{"barcode": {"HC-OTHER-999"}})
	<-done

	s := page.State()
	if s.Phase != PhaseIdle || s.Result != nil {
		t.Errorf("late answer leaked into a reset page: %+v", s)
	}
	if s.Barcode != "HC-OTHER-999" {
		t.Errorf("barcode = %q", s.Barcode)
	}
}
