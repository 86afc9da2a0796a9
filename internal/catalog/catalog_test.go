package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/hitlchat/internal/arcade"
	"github.com/nextlevelbuilder/hitlchat/internal/mcp"
	"github.com/nextlevelbuilder/hitlchat/internal/tools"
)

type namedTool struct{ name string }

func (t namedTool) Name() string               { return t.name }
func (t namedTool) Description() string        { return "" }
func (t namedTool) Parameters() map[string]any { return nil }
func (t namedTool) Execute(context.Context, map[string]any) *tools.Result {
	return tools.NewResult(t.name)
}

type staticFetcher struct {
	list   []tools.Tool
	err    error
	closed bool
}

func (f *staticFetcher) Fetch(context.Context, Options) ([]tools.Tool, error) { return f.list, f.err }

func (f *staticFetcher) Close() error {
	f.closed = true
	return nil
}

func names(list []tools.Tool) string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Name()
	}
	return strings.Join(out, ",")
}

func TestMulti(t *testing.T) {
	a := &staticFetcher{list: []tools.Tool{namedTool{"a"}, namedTool{"b"}}}
	b := &staticFetcher{list: []tools.Tool{namedTool{"b"}, namedTool{"c"}}}
	m := Multi{a, b}

	list, err := m.Fetch(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := names(list); got != "a,b,c" {
		t.Errorf("names = %s, want a,b,c", got)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("expected both fetchers closed")
	}
}

func TestMulti_Error(t *testing.T) {
	boom := errors.New("boom")
	m := Multi{&staticFetcher{list: []tools.Tool{namedTool{"a"}}}, &staticFetcher{err: boom}}
	if _, err := m.Fetch(context.Background(), Options{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestRegister(t *testing.T) {
	reg := tools.NewRegistry()
	if n := Register(reg, []tools.Tool{namedTool{"a"}, namedTool{"b"}}); n != 2 {
		t.Errorf("Register = %d", n)
	}
	if reg.Count() != 2 {
		t.Errorf("Count = %d", reg.Count())
	}
}

func arcadeServer(t *testing.T) *arcade.Client {
	t.Helper()
	def := func(name string) string {
		return fmt.Sprintf(`{"type":"function","function":{"name":%q,"description":"d","parameters":{"type":"object"}}}`, name)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/formatted_tools" && r.URL.Query().Get("toolkit") == "Linkedin":
			fmt.Fprintf(w, `{"items":[%s,%s]}`, def("Linkedin_CreateTextPost"), def("Linkedin_GetProfile"))
		case r.URL.Path == "/v1/formatted_tools" && r.URL.Query().Get("toolkit") == "Gmail":
			fmt.Fprintf(w, `{"items":[%s]}`, def("Gmail_SendEmail"))
		case r.URL.Path == "/v1/formatted_tools/Gmail.SendEmail":
			w.Write([]byte(def("Gmail_SendEmail")))
		case r.URL.Path == "/v1/formatted_tools/Math.Add":
			w.Write([]byte(def("Math_Add")))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"toolkit not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return arcade.NewClient(arcade.ClientConfig{BaseURL: srv.URL, UserID: "u1"})
}

func TestArcadeFetcher(t *testing.T) {
	f := NewArcadeFetcher(arcadeServer(t))
	ctx := context.Background()

	list, err := f.Fetch(ctx, Options{
		Toolkits: []string{"Linkedin", "Gmail"},
		Tools:    []string{"Gmail_SendEmail", "Math_Add"},
		UserID:   "u1",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := "Linkedin_CreateTextPost,Linkedin_GetProfile,Gmail_SendEmail,Math_Add"
	if got := names(list); got != want {
		t.Errorf("names = %s, want %s", got, want)
	}
	if _, ok := list[0].(tools.Authorizable); !ok {
		t.Error("arcade tools should be authorizable")
	}

	limited, err := f.Fetch(ctx, Options{Toolkits: []string{"Linkedin", "Gmail"}, Limit: 2})
	if err != nil {
		t.Fatalf("Fetch limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited = %s", names(limited))
	}
}

func TestArcadeFetcher_Errors(t *testing.T) {
	f := NewArcadeFetcher(arcadeServer(t))
	ctx := context.Background()

	if _, err := f.Fetch(ctx, Options{Toolkits: []string{"Nope"}}); err == nil {
		t.Error("expected error for unknown toolkit")
	}
	if _, err := f.Fetch(ctx, Options{Toolkits: []string{"Gmail"}, UserID: "someone-else"}); err == nil {
		t.Error("expected error for user mismatch")
	}
}

func inProcessConnect(t *testing.T) ConnectFunc {
	return func(ctx context.Context, cfg mcp.ServerConfig) (*mcp.Server, error) {
		if cfg.Name == "broken" {
			return nil, errors.New("connection refused")
		}
		srv := server.NewMCPServer(cfg.Name, "1.0.0")
		srv.AddTool(mcpgo.NewTool("ping", mcpgo.WithDescription("Ping")),
			func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
				return mcpgo.NewToolResultText("pong from " + cfg.Name), nil
			})
		c, err := mcpclient.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			return nil, err
		}
		return mcp.Attach(ctx, cfg.Name, c, 5, "test")
	}
}

func TestMCPFetcher(t *testing.T) {
	servers := []mcp.ServerConfig{{Name: "notes"}, {Name: "calendar"}, {Name: "broken"}}
	f := NewMCPFetcher(servers, inProcessConnect(t))
	defer f.Close()
	ctx := context.Background()

	list, err := f.Fetch(ctx, Options{Toolkits: []string{"Linkedin"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := names(list); got != "calendar__ping,notes__ping" {
		t.Errorf("names = %s", got)
	}

	res := list[1].Execute(ctx, nil)
	if res.IsError || res.ForLLM != "pong from notes" {
		t.Errorf("result = %+v", res)
	}
}

func TestMCPFetcher_SelectByToolkit(t *testing.T) {
	servers := []mcp.ServerConfig{{Name: "notes"}, {Name: "calendar"}}
	f := NewMCPFetcher(servers, inProcessConnect(t))
	defer f.Close()

	list, err := f.Fetch(context.Background(), Options{Toolkits: []string{"Notes"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := names(list); got != "notes__ping" {
		t.Errorf("names = %s", got)
	}
}
