package freebox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAuthorizer counts logins and can fail with a configured error.
type fakeAuthorizer struct {
	logins  atomic.Int32
	delay   time.Duration
	loginFn func(attempt int32) (*SessionToken, error)
}

func (f *fakeAuthorizer) Login(ctx context.Context, creds *AppCredentials) (*SessionToken, error) {
	n := f.logins.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.loginFn != nil {
		return f.loginFn(n)
	}
	return &SessionToken{Token: fmt.Sprintf("sess-%d", n)}, nil
}

var testCreds = &AppCredentials{AppID: "freebox_bridge", AppToken: "tok"}

func TestConcurrentTokenCallsSingleLogin(t *testing.T) {
	auth := &fakeAuthorizer{delay: 20 * time.Millisecond}
	m := NewSessionManager(auth, testCreds)

	const callers = 25
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.Token(context.Background())
			errs[i] = err
			if tok != nil {
				tokens[i] = tok.Token
			}
		}(i)
	}
	wg.Wait()

	if got := auth.logins.Load(); got != 1 {
		t.Errorf("logins = %d, want exactly 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if tokens[i] != "sess-1" {
			t.Errorf("caller %d token = %q, want sess-1", i, tokens[i])
		}
	}
	if m.State() != StateActive {
		t.Errorf("state = %v, want active", m.State())
	}
}

func TestTokenReusedWhileActive(t *testing.T) {
	auth := &fakeAuthorizer{}
	m := NewSessionManager(auth, testCreds)
	ctx := context.Background()

	first, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	second, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if first.Token != second.Token {
		t.Errorf("tokens differ: %q vs %q", first.Token, second.Token)
	}
	if auth.logins.Load() != 1 {
		t.Errorf("logins = %d, want 1", auth.logins.Load())
	}
}

func TestInvalidateTriggersRelogin(t *testing.T) {
	auth := &fakeAuthorizer{}
	m := NewSessionManager(auth, testCreds)
	ctx := context.Background()

	first, _ := m.Token(ctx)
	m.Invalidate(first.Token)

	if m.State() != StateExpired {
		t.Fatalf("state = %v, want expired", m.State())
	}

	second, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token() after invalidate error = %v", err)
	}
	if second.Token == first.Token {
		t.Error("expected a fresh token after invalidation")
	}
	if auth.logins.Load() != 2 {
		t.Errorf("logins = %d, want 2", auth.logins.Load())
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	auth := &fakeAuthorizer{}
	m := NewSessionManager(auth, testCreds)

	tok, _ := m.Token(context.Background())
	m.Invalidate(tok.Token)
	m.Invalidate(tok.Token)
	m.Invalidate(tok.Token)

	if m.State() != StateExpired {
		t.Errorf("state = %v, want expired", m.State())
	}
}

func TestInvalidateIgnoresStaleToken(t *testing.T) {
	auth := &fakeAuthorizer{}
	m := NewSessionManager(auth, testCreds)
	ctx := context.Background()

	first, _ := m.Token(ctx)
	m.Invalidate(first.Token)
	second, _ := m.Token(ctx)

	// A request that was in flight with the old token reports it rejected
	// after the renewal; the new session must survive.
	m.Invalidate(first.Token)

	if m.State() != StateActive {
		t.Errorf("state = %v, want active", m.State())
	}
	if cur := m.Current(); cur == nil || cur.Token != second.Token {
		t.Error("stale invalidation displaced the fresh token")
	}
}

func TestAuthRejectionDisablesManager(t *testing.T) {
	auth := &fakeAuthorizer{
		loginFn: func(int32) (*SessionToken, error) {
			return nil, fmt.Errorf("%w: invalid_token", ErrAuthRejected)
		},
	}
	m := NewSessionManager(auth, testCreds)
	ctx := context.Background()

	_, err := m.Token(ctx)
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("error = %v, want ErrAuthRejected", err)
	}
	if m.State() != StateDisabled {
		t.Fatalf("state = %v, want disabled", m.State())
	}

	// Disabled is terminal: no further login attempts.
	_, err = m.Token(ctx)
	if !errors.Is(err, ErrSessionDisabled) {
		t.Errorf("error = %v, want ErrSessionDisabled", err)
	}
	if auth.logins.Load() != 1 {
		t.Errorf("logins = %d, want 1", auth.logins.Load())
	}
}

func TestTransientLoginFailureLeavesExpired(t *testing.T) {
	auth := &fakeAuthorizer{
		loginFn: func(attempt int32) (*SessionToken, error) {
			if attempt == 1 {
				return nil, fmt.Errorf("%w: connect refused", ErrTransport)
			}
			return &SessionToken{Token: "sess-2"}, nil
		},
	}
	m := NewSessionManager(auth, testCreds)
	ctx := context.Background()

	if _, err := m.Token(ctx); !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if m.State() != StateExpired {
		t.Fatalf("state = %v, want expired", m.State())
	}

	// Next caller retries and succeeds.
	tok, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token() retry error = %v", err)
	}
	if tok.Token != "sess-2" {
		t.Errorf("token = %q, want sess-2", tok.Token)
	}
}
