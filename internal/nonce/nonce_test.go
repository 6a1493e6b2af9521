package nonce

import (
	"testing"
	"time"

	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/config"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 0, 30, 0, 0, time.UTC))
	m, err := New(config.Config{AppSecret: "nonce-secret"}, clk, zap.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, clk
}

func TestIssueVerifyWindow(t *testing.T) {
	m, clk := newTestManager(t)
	value := m.Issue("key_A", ActionREST)

	if err := m.Verify("key_A", ActionREST, value); err != nil {
		t.Fatalf("fresh nonce rejected: %v", err)
	}

	clk.Advance(TickLength)
	if err := m.Verify("key_A", ActionREST, value); err != nil {
		t.Fatalf("previous tick nonce rejected: %v", err)
	}

	clk.Advance(TickLength)
	if err := m.Verify("key_A", ActionREST, value); err != ErrSecurityCheckFailed {
		t.Fatalf("expected expired nonce to fail, got %v", err)
	}
}

func TestVerifyIsBoundToSubjectAndAction(t *testing.T) {
	m, _ := newTestManager(t)
	value := m.Issue("key_A", ActionREST)

	cases := []struct {
		name    string
		subject string
		action  string
		value   string
	}{
		{name: "other subject", subject: "key_B", action: ActionREST, value: value},
		{name: "other action", subject: "key_A", action: "other", value: value},
		{name: "empty", subject: "key_A", action: ActionREST, value: ""},
		{name: "tampered", subject: "key_A", action: ActionREST, value: value[:len(value)-1] + "x"},
		{name: "no subject", subject: "", action: ActionREST, value: value},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := m.Verify(tc.subject, tc.action, tc.value); err != ErrSecurityCheckFailed {
				t.Fatalf("expected ErrSecurityCheckFailed, got %v", err)
			}
		})
	}
}

func TestKeysDifferAcrossSecrets(t *testing.T) {
	clk := clock.NewFakeClock(time.Unix(0, 0))
	a, err := New(config.Config{AppSecret: "one"}, clk, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := New(config.Config{}, clk, zap.NewNop())
	if err != nil {
		t.Fatalf("new ephemeral: %v", err)
	}
	if err := b.Verify("key_A", ActionREST, a.Issue("key_A", ActionREST)); err == nil {
		t.Fatalf("expected nonce from another key to fail")
	}
}
