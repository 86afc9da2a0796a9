package arcade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextlevelbuilder/hitlchat/internal/retry"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		APIKey:       "arc-test",
		BaseURL:      srv.URL,
		UserID:       "user@example.com",
		AuthTimeout:  2 * time.Second,
		PollInterval: time.Millisecond,
		Retry:        retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
}

func TestQualifiedName(t *testing.T) {
	tests := map[string]string{
		"Gmail_ListEmails":         "Gmail.ListEmails",
		"Linkedin_CreateTextPost":  "Linkedin.CreateTextPost",
		"Gmail.ListEmails":         "Gmail.ListEmails",
		"Github_List_Repositories": "Github.List_Repositories",
		"plain":                    "plain",
	}
	for in, want := range tests {
		if got := QualifiedName(in); got != want {
			t.Errorf("QualifiedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListTools(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/formatted_tools" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer arc-test" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("toolkit") != "Linkedin" || q.Get("format") != "openai" || q.Get("limit") != "5" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"items":[{"type":"function","function":{"name":"Linkedin_CreateTextPost","description":"Post","parameters":{"type":"object"}}}]}`))
	})

	defs, err := c.ListTools(context.Background(), "Linkedin", 5)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(defs) != 1 || defs[0].Function.Name != "Linkedin_CreateTextPost" {
		t.Fatalf("defs = %+v", defs)
	}
}

func TestGetTool(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/formatted_tools/Gmail.SendEmail" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"type":"function","function":{"name":"Gmail_SendEmail","description":"Send"}}`))
	})

	def, err := c.GetTool(context.Background(), "Gmail_SendEmail")
	if err != nil {
		t.Fatalf("GetTool: %v", err)
	}
	if def.Function.Name != "Gmail_SendEmail" {
		t.Errorf("name = %q", def.Function.Name)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	})

	_, err := c.ListTools(context.Background(), "Gmail", 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "invalid api key" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"items":[]}`))
	})

	if _, err := c.ListTools(context.Background(), "Gmail", 0); err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestAuthorize_CachesCompleted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req authorizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.ToolName != "Gmail.SendEmail" || req.UserID != "user@example.com" {
			t.Errorf("req = %+v", req)
		}
		w.Write([]byte(`{"id":"auth_1","status":"completed"}`))
	})

	for range 3 {
		auth, err := c.Authorize(context.Background(), "Gmail_SendEmail")
		if err != nil {
			t.Fatalf("Authorize: %v", err)
		}
		if !auth.Completed() {
			t.Fatalf("auth = %+v", auth)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server calls = %d, want 1", n)
	}
}

func TestWaitForCompletion(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tools/authorize":
			w.Write([]byte(`{"id":"auth_2","status":"pending","url":"https://auth.example/x"}`))
		case "/v1/auth/status":
			if r.URL.Query().Get("id") != "auth_2" {
				t.Errorf("status id = %q", r.URL.Query().Get("id"))
			}
			if polls.Add(1) < 3 {
				w.Write([]byte(`{"id":"auth_2","status":"pending"}`))
				return
			}
			w.Write([]byte(`{"id":"auth_2","status":"completed"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	auth, err := c.Authorize(ctx, "Gmail_SendEmail")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if auth.Completed() || auth.URL != "https://auth.example/x" {
		t.Fatalf("auth = %+v", auth)
	}

	if err := c.WaitForCompletion(ctx, auth.ID); err != nil {
		t.Fatalf("WaitForCompletion: %v", err)
	}
	if n := polls.Load(); n != 3 {
		t.Errorf("polls = %d, want 3", n)
	}

	// Completion is remembered for the tool.
	again, err := c.Authorize(ctx, "Gmail_SendEmail")
	if err != nil || !again.Completed() {
		t.Errorf("Authorize after completion = %+v, %v", again, err)
	}
}

func TestWaitForCompletion_Failed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"auth_3","status":"failed"}`))
	})

	err := c.WaitForCompletion(context.Background(), "auth_3")
	if !errors.Is(err, ErrAuthorizationFailed) {
		t.Fatalf("err = %v, want ErrAuthorizationFailed", err)
	}
}

func TestWaitForCompletion_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"auth_4","status":"pending"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		BaseURL:      srv.URL,
		AuthTimeout:  50 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	})
	err := c.WaitForCompletion(context.Background(), "auth_4")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestExecute(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ToolName != "Math.Add" || req.UserID != "user@example.com" {
			t.Errorf("req = %+v", req)
		}
		if req.Input["a"] != float64(1) {
			t.Errorf("input = %v", req.Input)
		}
		w.Write([]byte(`{"id":"exe_1","status":"success","success":true,"output":{"value":{"sum":3}}}`))
	})

	res, err := c.Execute(context.Background(), "Math_Add", map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if msg := res.ErrorMessage(); msg != "" {
		t.Fatalf("ErrorMessage = %q", msg)
	}
	if formatValue(res.Output.Value) != `{"sum":3}` {
		t.Errorf("value = %v", res.Output.Value)
	}
}

func TestTool(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tools/authorize":
			w.Write([]byte(`{"id":"auth_5","status":"pending","url":"https://auth.example/y"}`))
		case "/v1/tools/execute":
			var req executeRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Input["fail"] == true {
				w.Write([]byte(`{"success":false,"status":"failed","output":{"error":{"message":"quota exceeded"}}}`))
				return
			}
			w.Write([]byte(`{"success":true,"status":"success","output":{"value":"posted"}}`))
		}
	})

	var tool tools.Authorizable = NewTool(c, toolDef("Linkedin_CreateTextPost"))
	if tool.Name() != "Linkedin_CreateTextPost" {
		t.Errorf("Name = %q", tool.Name())
	}
	if tool.Parameters()["type"] != "object" {
		t.Errorf("Parameters = %v", tool.Parameters())
	}

	auth, err := tool.Authorize(context.Background())
	if err != nil || auth.ID != "auth_5" || auth.Completed() {
		t.Fatalf("Authorize = %+v, %v", auth, err)
	}

	res := tool.Execute(context.Background(), map[string]any{"text": "hi"})
	if res.IsError || res.ForLLM != "posted" {
		t.Errorf("result = %+v", res)
	}

	res = tool.Execute(context.Background(), map[string]any{"fail": true})
	if !res.IsError || !strings.Contains(res.ForLLM, "quota exceeded") {
		t.Errorf("error result = %+v", res)
	}
}
