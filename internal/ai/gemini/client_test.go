package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	testModel  = "gemini-2.5-flash"
	testSystem = "You compare a CV with a job description."
	testCV     = "CV: five years of Go, Kubernetes operators, PostgreSQL."
)

// scriptedChats hands out one scripted reply per created chat session.
type scriptedChats struct {
	mu       sync.Mutex
	replies  []scriptedReply
	sessions []*scriptedSession
}

type scriptedReply struct {
	resp *genai.GenerateContentResponse
	err  error
}

type scriptedSession struct {
	model  string
	config *genai.GenerateContentConfig
	reply  scriptedReply
	sent   []string
}

func (s *scriptedSession) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, part := range parts {
		s.sent = append(s.sent, part.Text)
	}
	return s.reply.resp, s.reply.err
}

func (c *scriptedChats) reply(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, scriptedReply{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}})
}

func (c *scriptedChats) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, scriptedReply{err: err})
}

func (c *scriptedChats) Create(_ context.Context, model string, config *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	session := &scriptedSession{model: model, config: config, reply: c.replies[0]}
	c.replies = c.replies[1:]
	c.sessions = append(c.sessions, session)
	return session, nil
}

func newTestGenerator(chats chatCreator, maxRetries int) *Generator {
	return &Generator{chats: chats, model: testModel, maxRetries: maxRetries, logger: zap.NewNop()}
}

// skipSleep makes retry backoff instant for the duration of the test.
func skipSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = original })
}

func TestGeneratorRetriesAfterServerError(t *testing.T) {
	skipSleep(t)

	chats := &scriptedChats{}
	chats.fail(genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	chats.reply(`{"score": 72, "matched": ["go"]}`)

	output, err := newTestGenerator(chats, 2).GenerateContent(context.Background(), testSystem, testCV)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != `{"score": 72, "matched": ["go"]}` {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(chats.sessions) != 2 {
		t.Fatalf("expected 2 chat sessions, got %d", len(chats.sessions))
	}

	for i, session := range chats.sessions {
		if session.model != testModel {
			t.Fatalf("session %d: unexpected model %q", i, session.model)
		}
		if session.config == nil || session.config.SystemInstruction == nil {
			t.Fatalf("session %d: expected system instruction", i)
		}
		if got := session.config.SystemInstruction.Parts[0].Text; got != testSystem {
			t.Fatalf("session %d: unexpected system instruction %q", i, got)
		}
		if len(session.sent) != 1 || session.sent[0] != testCV {
			t.Fatalf("session %d: unexpected messages %+v", i, session.sent)
		}
	}
}

func TestGeneratorGivesUpAfterMaxRetries(t *testing.T) {
	skipSleep(t)

	chats := &scriptedChats{}
	for range 3 {
		chats.fail(genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"})
	}

	if _, err := newTestGenerator(chats, 3).GenerateContent(context.Background(), testSystem, testCV); err == nil {
		t.Fatal("expected error once retries are used up")
	}
	if len(chats.sessions) != 3 {
		t.Fatalf("expected 3 chat sessions, got %d", len(chats.sessions))
	}
}

func TestGeneratorFailsFastOnLongQuotaDelay(t *testing.T) {
	chats := &scriptedChats{}
	chats.fail(genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "Quota exceeded for embed and generate requests. Please retry in 45s.",
	})

	if _, err := newTestGenerator(chats, 3).GenerateContent(context.Background(), testSystem, testCV); err == nil {
		t.Fatal("expected error when the quota delay is too long")
	}
	if len(chats.sessions) != 1 {
		t.Fatalf("expected a single chat session, got %d", len(chats.sessions))
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRetry bool
		wantDelay time.Duration
	}{
		{name: "server error", err: genai.APIError{Code: http.StatusBadGateway}, wantRetry: true, wantDelay: baseBackoff},
		{name: "short quota delay", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "Please retry in 5.5s"}, wantRetry: true, wantDelay: 5500 * time.Millisecond},
		{name: "quota without delay", err: genai.APIError{Code: http.StatusTooManyRequests}, wantRetry: true, wantDelay: baseBackoff},
		{name: "long quota delay", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "retry after 120 seconds"}},
		{name: "bad request", err: genai.APIError{Code: http.StatusBadRequest}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			delay, retry := retryDelay(tc.err, 0)
			if retry != tc.wantRetry {
				t.Fatalf("expected retry=%v, got %v", tc.wantRetry, retry)
			}
			if retry && delay != tc.wantDelay {
				t.Fatalf("expected delay %s, got %s", tc.wantDelay, delay)
			}
		})
	}
}

func TestGeneratorRejectsEmptyMessage(t *testing.T) {
	if _, err := newTestGenerator(&scriptedChats{}, 1).GenerateContent(context.Background(), testSystem, "   "); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestGeneratorStopsWhenContextCancelled(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) { time.Sleep(time.Second) }
	defer func() { sleep = originalSleep }()

	chats := &scriptedChats{}
	chats.fail(genai.APIError{Code: http.StatusServiceUnavailable})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newTestGenerator(chats, 3).GenerateContent(ctx, testSystem, testCV)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
