package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/calchat/calchat/internal/instrumentation"
	"github.com/calchat/calchat/internal/logging"
	"github.com/calchat/calchat/internal/memory"
)

// Completer is the LLM collaborator. llm.Client satisfies it; tests
// substitute fakes.
type Completer interface {
	Chat(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool) (*llms.ContentChoice, error)
}

// TurnRequest is one user turn entering the agent. The access token is
// a precondition: callers short-circuit before invoking the agent when
// it is absent.
type TurnRequest struct {
	UserID         string
	ConversationID string
	Message        string
	Timezone       string
	AccessToken    string
}

// TurnResult is the agent's answer to one turn.
type TurnResult struct {
	Reply          string
	ConversationID string
}

// Agent drives the two-phase completion exchange: offer the tool
// catalog, execute whatever the model invokes, feed the results back,
// and commit the final natural-language reply to conversation memory.
type Agent struct {
	llm             Completer
	dispatcher      *Dispatcher
	memory          *memory.Store
	logger          *slog.Logger
	metrics         *instrumentation.Metrics
	defaultTimezone string
	historyLimit    int
	llmTimeout      time.Duration
	now             func() time.Time
}

// Options tunes an Agent beyond its required collaborators.
type Options struct {
	// DefaultTimezone is used when a turn carries no timezone label.
	DefaultTimezone string

	// HistoryLimit is how many stored messages are replayed as context.
	// Values <= 0 fall back to 10.
	HistoryLimit int

	// LLMTimeout bounds each completion call. Zero means no bound.
	LLMTimeout time.Duration

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// New creates an Agent. All collaborators are constructed once by the
// caller and injected; the agent holds no ambient global state.
func New(completer Completer, dispatcher *Dispatcher, store *memory.Store, opts Options) *Agent {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = &instrumentation.Metrics{}
	}
	return &Agent{
		llm:             completer,
		dispatcher:      dispatcher,
		memory:          store,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		defaultTimezone: opts.DefaultTimezone,
		historyLimit:    opts.HistoryLimit,
		llmTimeout:      opts.LLMTimeout,
		now:             time.Now,
	}
}

// HandleMessage processes one conversation turn end to end and returns
// the reply together with the conversation id (freshly allocated when
// the request carried none, or an unknown one).
func (a *Agent) HandleMessage(ctx context.Context, req TurnRequest) (TurnResult, error) {
	started := a.now()

	timezone := req.Timezone
	if timezone == "" {
		timezone = a.defaultTimezone
	}

	conversationID := req.ConversationID
	if conversationID == "" || !a.memory.ConversationExists(req.UserID, conversationID) {
		conversationID = a.memory.StartConversation(req.UserID)
	}

	logger := a.logger.With(
		logging.UserHash(req.UserID),
		logging.Conversation(conversationID),
	)

	a.metrics.IncrementActiveConversations(ctx)
	defer a.metrics.DecrementActiveConversations(ctx)

	reply, err := a.runTurn(ctx, req, conversationID, timezone, logger)

	status := logging.StatusSuccess
	if err != nil {
		status = logging.StatusError
	}
	a.metrics.RecordChatTurn(ctx, status, a.now().Sub(started))
	if err != nil {
		logger.Error("chat turn failed", logging.Operation("chat_turn"), logging.Err(err))
		return TurnResult{}, err
	}

	logger.Info("chat turn completed",
		logging.Operation("chat_turn"),
		slog.Duration(logging.KeyDuration, a.now().Sub(started)),
	)
	return TurnResult{Reply: reply, ConversationID: conversationID}, nil
}

func (a *Agent) runTurn(ctx context.Context, req TurnRequest, conversationID, timezone string, logger *slog.Logger) (string, error) {
	systemPrompt := buildSystemPrompt(timezone, a.now().UTC())
	history := a.memory.RecentMessages(req.UserID, conversationID, a.historyLimit)

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for _, m := range history {
		messages = append(messages, llms.TextParts(chatRole(m.Role), m.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Message))

	first, err := a.complete(ctx, messages, Catalog())
	if err != nil {
		return "", fmt.Errorf("first completion: %w", err)
	}

	// No tool calls: the assistant's text is the final reply.
	if len(first.ToolCalls) == 0 {
		a.commit(req.UserID, conversationID, req.Message, first.Content)
		return first.Content, nil
	}

	toolCalls := first.ToolCalls
	logger.Debug("dispatching tool calls", slog.Int("count", len(toolCalls)))

	// Tool calls from one turn are independent; dispatch them
	// concurrently. Results are reassembled in call order so every
	// result keeps its originating correlation id.
	results := make([]string, len(toolCalls))
	var wg sync.WaitGroup
	for i, tc := range toolCalls {
		wg.Add(1)
		go func(i int, tc llms.ToolCall) {
			defer wg.Done()
			results[i] = a.dispatcher.Dispatch(ctx, toToolCall(tc), req.AccessToken, timezone, req.UserID)
		}(i, tc)
	}
	wg.Wait()

	// Second phase: replay the context plus the assistant's tool-call
	// message and one tool result per call, with no tools offered so
	// the model must synthesize a natural-language reply.
	second := make([]llms.MessageContent, 0, len(messages)+1+len(toolCalls))
	second = append(second, messages...)

	assistantParts := make([]llms.ContentPart, 0, len(toolCalls))
	for _, tc := range toolCalls {
		assistantParts = append(assistantParts, tc)
	}
	second = append(second, llms.MessageContent{
		Role:  llms.ChatMessageTypeAI,
		Parts: assistantParts,
	})

	for i, tc := range toolCalls {
		call := toToolCall(tc)
		second = append(second, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{
				llms.ToolCallResponse{
					ToolCallID: call.ID,
					Name:       call.Name,
					Content:    results[i],
				},
			},
		})
	}

	final, err := a.complete(ctx, second, nil)
	if err != nil {
		return "", fmt.Errorf("second completion: %w", err)
	}

	a.commit(req.UserID, conversationID, req.Message, final.Content)
	return final.Content, nil
}

// complete issues one bounded completion call.
func (a *Agent) complete(ctx context.Context, messages []llms.MessageContent, tools []llms.Tool) (*llms.ContentChoice, error) {
	if a.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		defer cancel()
	}

	started := a.now()
	choice, err := a.llm.Chat(ctx, messages, tools)

	status := logging.StatusSuccess
	if err != nil {
		status = logging.StatusError
	}
	a.metrics.RecordLLMRequest(ctx, status, a.now().Sub(started))

	return choice, err
}

// commit stores the user message and the final reply. Memory is only
// touched after the turn produced a reply, so a failed turn leaves the
// conversation log untouched.
func (a *Agent) commit(userID, conversationID, userMessage, reply string) {
	a.memory.AddMessage(userID, conversationID, memory.RoleUser, userMessage)
	a.memory.AddMessage(userID, conversationID, memory.RoleAssistant, reply)
}

// chatRole maps a stored role onto the completion protocol role.
func chatRole(role memory.Role) llms.ChatMessageType {
	if role == memory.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}

// toToolCall converts the protocol tool call into the dispatcher's
// shape, tolerating a missing function payload.
func toToolCall(tc llms.ToolCall) ToolCall {
	call := ToolCall{ID: tc.ID}
	if tc.FunctionCall != nil {
		call.Name = tc.FunctionCall.Name
		call.Arguments = tc.FunctionCall.Arguments
	}
	return call
}
