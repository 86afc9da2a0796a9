package interrupt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type stubAuthorizer struct {
	err   error
	calls int
}

func (a *stubAuthorizer) WaitForCompletion(context.Context, string) error {
	a.calls++
	return a.err
}

type stubConfirmer struct {
	answer   bool
	err      error
	question string
}

func (c *stubConfirmer) Confirm(_ context.Context, q string) (bool, error) {
	c.question = q
	return c.answer, c.err
}

type recordNotifier struct {
	system []string
	errs   []string
}

func (n *recordNotifier) System(format string, args ...any) {
	n.system = append(n.system, fmt.Sprintf(format, args...))
}

func (n *recordNotifier) Error(format string, args ...any) {
	n.errs = append(n.errs, fmt.Sprintf(format, args...))
}

func TestGate_Authorization(t *testing.T) {
	auth := &stubAuthorizer{}
	out := &recordNotifier{}
	g := NewGate(auth, &stubConfirmer{}, out)

	d, err := g.Decide(context.Background(), Authorization("1", "Gmail_ListEmails", AuthorizationResponse{ID: "h1", URL: "https://x/auth"}))
	if err != nil || !d.Authorized {
		t.Fatalf("Decide = %v, %v", d, err)
	}
	want := []string{
		"Authorization required for tool call Gmail_ListEmails",
		"Please authorize in your browser https://x/auth",
		"Waiting for you to complete authorization...",
		"Authorization granted. Resuming execution...",
	}
	if strings.Join(out.system, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q", out.system)
	}
}

func TestGate_AuthorizationFailuresDeny(t *testing.T) {
	tests := []struct {
		name string
		auth Authorizer
		in   Interrupt
	}{
		{"wait error", &stubAuthorizer{err: errors.New("expired")}, Authorization("1", "T", AuthorizationResponse{ID: "h"})},
		{"no authorizer", nil, Authorization("1", "T", AuthorizationResponse{ID: "h"})},
		{"missing handle", &stubAuthorizer{}, Interrupt{Value: Payload{AuthorizationRequired: true, ToolName: "T"}}},
		{"empty handle id", &stubAuthorizer{}, Authorization("1", "T", AuthorizationResponse{URL: "u"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewGate(tt.auth, &stubConfirmer{answer: true}, &recordNotifier{}).Decide(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Authorized {
				t.Error("expected denial")
			}
		})
	}
}

func TestGate_AuthorizationWaitErrorIsReported(t *testing.T) {
	out := &recordNotifier{}
	NewGate(&stubAuthorizer{err: errors.New("expired")}, nil, out).
		Decide(context.Background(), Authorization("1", "T", AuthorizationResponse{ID: "h"}))
	if len(out.errs) != 1 || out.errs[0] != "Error waiting for authorization to complete: expired" {
		t.Errorf("errors = %q", out.errs)
	}
}

func TestGate_HumanApproval(t *testing.T) {
	for _, answer := range []bool{true, false} {
		c := &stubConfirmer{answer: answer}
		out := &recordNotifier{}
		d, err := NewGate(nil, c, out).Decide(context.Background(),
			HumanApproval("1", "Linkedin_CreateTextPost", map[string]any{"text": "hello", "api_key": "abcdefghijklmnop"}))
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if d.Authorized != answer {
			t.Errorf("answer %v produced %v", answer, d.Authorized)
		}
		if c.question != "Do you approve this tool call?" {
			t.Errorf("question = %q", c.question)
		}
		if out.system[0] != "Human in the loop required for tool call Linkedin_CreateTextPost" {
			t.Errorf("first line = %q", out.system[0])
		}
		if !strings.Contains(out.system[1], `"text": "hello"`) || strings.Contains(out.system[1], "abcdefghijklmnop") {
			t.Errorf("input preview = %q", out.system[1])
		}
	}
}

func TestGate_ConfirmErrorPropagates(t *testing.T) {
	boom := errors.New("stdin closed")
	d, err := NewGate(nil, &stubConfirmer{answer: true, err: boom}, &recordNotifier{}).
		Decide(context.Background(), HumanApproval("1", "T", nil))
	if !errors.Is(err, boom) {
		t.Errorf("expected confirm error, got %v", err)
	}
	if d.Authorized {
		t.Error("errored decision must not be authorized")
	}
}

func TestGate_UnknownKindDenied(t *testing.T) {
	c := &stubConfirmer{answer: true}
	auth := &stubAuthorizer{}
	d, err := NewGate(auth, c, &recordNotifier{}).Decide(context.Background(), Interrupt{ID: "x", Value: Payload{ToolName: "T"}})
	if err != nil || d.Authorized {
		t.Errorf("Decide = %v, %v; want denied", d, err)
	}
	if c.question != "" || auth.calls != 0 {
		t.Error("unknown kind must not prompt or wait")
	}
}
