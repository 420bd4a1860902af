package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashureev/academy-assistant/internal/assistant"
)

var sampleSummary = assistant.CompactContext{
	UserName:         "Camille",
	CompletedModules: 1,
	TotalModules:     5,
	CompletedLessons: 4,
	TotalLessons:     12,
	ContinueModule:   "Analyse technique",
	ContinueLesson:   "Le RSI",
	Challenges: []assistant.ChallengeSummary{
		{Title: "Série de 7 jours", Progress: 2, Target: 7, Joined: true},
	},
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	got := SystemPrompt(sampleSummary)
	for _, want := range []string{"Camille", "1/5", "4/12", "Analyse technique", "Le RSI", "Série de 7 jours", "2/7 (inscrit)"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}

	empty := SystemPrompt(assistant.CompactContext{})
	if !strings.Contains(empty, "Aucune information disponible") {
		t.Errorf("empty summary prompt = %q", empty)
	}
}

func TestNewProviderSelection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, name := range []string{"", "none", " NONE "} {
		p, err := New(ctx, Config{Provider: name}, nil)
		if err != nil || p != nil {
			t.Errorf("New(%q) = %v, %v; want nil, nil", name, p, err)
		}
	}

	if _, err := New(ctx, Config{Provider: "openai"}, nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("unknown provider error = %v", err)
	}
	if _, err := New(ctx, Config{Provider: ProviderGemini}, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("gemini without key error = %v", err)
	}
	if _, err := New(ctx, Config{Provider: ProviderAnthropic}, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("anthropic without key error = %v", err)
	}

	p, err := New(ctx, Config{Provider: ProviderAnthropic, APIKey: "test"}, nil)
	if err != nil {
		t.Fatalf("New(anthropic) error = %v", err)
	}
	if p.Name() != ProviderAnthropic {
		t.Errorf("Name() = %q", p.Name())
	}
}

type completionServer struct {
	reply func(*structpb.Struct) *structpb.Struct
	last  chan *structpb.Struct
}

func (s *completionServer) complete(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	select {
	case s.last <- in:
	default:
	}
	return s.reply(in), nil
}

var completionServiceDesc = grpc.ServiceDesc{
	ServiceName: CompletionServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Complete",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			return srv.(*completionServer).complete(ctx, in)
		},
	}},
}

func startCompletionServer(t *testing.T, impl *completionServer) *GrpcCompleter {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&completionServiceDesc, impl)
	hs := health.NewServer()
	hs.SetServingStatus(CompletionServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := NewGrpcCompleter(ctx, Config{GrpcAddr: "passthrough:///bufnet"}, nil,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("NewGrpcCompleter() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGrpcCompleter(t *testing.T) {
	t.Parallel()

	impl := &completionServer{
		last: make(chan *structpb.Struct, 1),
		reply: func(in *structpb.Struct) *structpb.Struct {
			out, _ := structpb.NewStruct(map[string]any{
				"message": "  Réponse à : " + in.GetFields()["input"].GetStringValue() + "  ",
			})
			return out
		},
	}
	c := startCompletionServer(t, impl)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	got, err := c.Complete(ctx, "c'est quoi un pip ?", sampleSummary)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Réponse à : c'est quoi un pip ?" {
		t.Errorf("Complete() = %q", got)
	}

	req := <-impl.last
	fields := req.GetFields()
	if !strings.Contains(fields["system"].GetStringValue(), "Camille") {
		t.Error("request system prompt does not carry the member summary")
	}
	cc := fields["context"].GetStructValue().GetFields()
	if cc["continue_lesson"].GetStringValue() != "Le RSI" {
		t.Errorf("context.continue_lesson = %v", cc["continue_lesson"])
	}
	if n := len(cc["challenges"].GetListValue().GetValues()); n != 1 {
		t.Errorf("context.challenges has %d entries, want 1", n)
	}
}

func TestGrpcCompleterErrorReply(t *testing.T) {
	t.Parallel()

	impl := &completionServer{
		last: make(chan *structpb.Struct, 1),
		reply: func(*structpb.Struct) *structpb.Struct {
			out, _ := structpb.NewStruct(map[string]any{"error": "model overloaded"})
			return out
		},
	}
	c := startCompletionServer(t, impl)

	_, err := c.Complete(context.Background(), "question", assistant.CompactContext{})
	if !errors.Is(err, errCompletionResponse) {
		t.Fatalf("Complete() error = %v, want errCompletionResponse", err)
	}
}

func TestAnthropicCompleter(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": " Le pip est la plus petite variation de prix. "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 12}
		}`)
	}))
	t.Cleanup(srv.Close)

	c, err := NewAnthropicCompleter(Config{APIKey: "test", MaxTokens: 100}, nil,
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("NewAnthropicCompleter() error = %v", err)
	}

	got, err := c.Complete(context.Background(), "c'est quoi un pip ?", sampleSummary)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "Le pip est la plus petite variation de prix." {
		t.Errorf("Complete() = %q", got)
	}
	if gotBody["model"] != defaultAnthropicModel {
		t.Errorf("request model = %v", gotBody["model"])
	}
	if !strings.Contains(string(mustJSON(t, gotBody["system"])), "Camille") {
		t.Errorf("request system = %v", gotBody["system"])
	}
}

func TestAnthropicCompleterHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	t.Cleanup(srv.Close)

	c, err := NewAnthropicCompleter(Config{APIKey: "test", MaxTokens: 100}, nil,
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatalf("NewAnthropicCompleter() error = %v", err)
	}
	if _, err := c.Complete(context.Background(), "question", assistant.CompactContext{}); err == nil {
		t.Fatal("Complete() error = nil, want HTTP error")
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
