package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/lexiqai/voice-assistant/internal/observability"
)

const (
	// maxOperationRounds bounds model/operation round trips within one turn
	maxOperationRounds = 8
	// maxHistoryTurns is how many past turns are replayed to the model
	maxHistoryTurns = 20
)

// GeminiEngine runs turns against the Gemini API using function calling.
// Turns run one at a time on a worker goroutine, so events keep their order.
type GeminiEngine struct {
	apiKey string
	model  string
	logger zerolog.Logger

	mu      sync.Mutex
	prompts chan string
	cancel  context.CancelFunc
}

// geminiConversation is the state owned by one connection's worker
type geminiConversation struct {
	client     *genai.Client
	model      string
	config     *genai.GenerateContentConfig
	operations *Registry
	handler    func(Event)

	history    []*genai.Content
	turnStarts []int
}

// NewGeminiEngine creates a Gemini engine for model
func NewGeminiEngine(apiKey, model string) *GeminiEngine {
	return &GeminiEngine{
		apiKey: apiKey,
		model:  model,
		logger: observability.Component("agent"),
	}
}

// Connect creates the client, checks the key against the model and starts the turn worker
func (g *GeminiEngine) Connect(ctx context.Context, setup Setup, handler func(Event)) error {
	g.Close()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("genai client: %w", err)
	}

	if _, err := client.Models.Get(ctx, g.model, nil); err != nil {
		if isAuthError(err) {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return fmt.Errorf("failed to reach Gemini model %s: %w", g.model, err)
	}

	operations := setup.Operations
	if operations == nil {
		operations = NewRegistry()
	}

	conv := &geminiConversation{
		client:     client,
		model:      g.model,
		config:     geminiConfig(setup.Instructions, operations),
		operations: operations,
		handler:    handler,
	}
	workerCtx, cancel := context.WithCancel(context.Background())
	prompts := make(chan string, 1)

	g.mu.Lock()
	g.prompts = prompts
	g.cancel = cancel
	g.mu.Unlock()

	go conv.serve(workerCtx, prompts)

	g.logger.Info().Str("model", g.model).Msg("Connected to Gemini")
	return nil
}

func isAuthError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusUnauthorized || apiErrPtr.Code == http.StatusForbidden
	}
	return false
}

func geminiConfig(instructions string, operations *Registry) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if instructions != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(instructions)}}
	}

	var declarations []*genai.FunctionDeclaration
	for _, op := range operations.List() {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        op.Name,
			Description: op.Description,
			Parameters:  geminiSchema(op.Parameters),
		})
	}
	if len(declarations) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}
	return cfg
}

// Submit queues prompt for the worker
func (g *GeminiEngine) Submit(ctx context.Context, prompt string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.prompts == nil {
		return ErrConnectionLost
	}
	select {
	case g.prompts <- prompt:
		return nil
	default:
		return ErrBusy
	}
}

func (c *geminiConversation) serve(ctx context.Context, prompts <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case prompt := <-prompts:
			c.runTurn(ctx, prompt)
		}
	}
}

func (c *geminiConversation) runTurn(ctx context.Context, prompt string) {
	handler := c.handler

	c.startTurn(&genai.Content{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}})

	for round := 0; round < maxOperationRounds; round++ {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, c.history, c.config)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.dropTurn()
			handler(TurnError{Err: fmt.Errorf("gemini: %w", err)})
			return
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			c.dropTurn()
			handler(TurnError{Err: errors.New("gemini returned no candidates")})
			return
		}

		content := resp.Candidates[0].Content
		content.Role = "model"
		c.history = append(c.history, content)

		var (
			text  strings.Builder
			calls []*genai.FunctionCall
		)
		for _, part := range content.Parts {
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				calls = append(calls, part.FunctionCall)
			}
		}
		if reply := strings.TrimSpace(text.String()); reply != "" {
			handler(ReplyContent{Text: reply})
		}
		if len(calls) == 0 {
			handler(TurnComplete{})
			return
		}

		responses := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			arguments, _ := json.Marshal(call.Args)
			result := c.operations.Invoke(ctx, call.Name, arguments)
			handler(OperationInvoked{Name: call.Name, Arguments: arguments, Result: result})

			part := genai.NewPartFromFunctionResponse(call.Name, map[string]any{"result": result})
			part.FunctionResponse.ID = call.ID
			responses = append(responses, part)
		}
		c.history = append(c.history, &genai.Content{Role: "user", Parts: responses})
	}

	c.dropTurn()
	handler(TurnError{Err: fmt.Errorf("gemini: gave up after %d operation rounds", maxOperationRounds)})
}

// startTurn appends the opening content and trims the oldest whole turns
func (c *geminiConversation) startTurn(content *genai.Content) {
	if len(c.turnStarts) >= maxHistoryTurns {
		cut := c.turnStarts[1]
		c.history = append([]*genai.Content(nil), c.history[cut:]...)
		starts := c.turnStarts[1:]
		for i := range starts {
			starts[i] -= cut
		}
		c.turnStarts = append([]int(nil), starts...)
	}
	c.turnStarts = append(c.turnStarts, len(c.history))
	c.history = append(c.history, content)
}

// dropTurn removes a failed turn so the history stays well formed
func (c *geminiConversation) dropTurn() {
	if n := len(c.turnStarts); n > 0 {
		c.history = c.history[:c.turnStarts[n-1]]
		c.turnStarts = c.turnStarts[:n-1]
	}
}

// Close stops the turn worker
func (g *GeminiEngine) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.prompts = nil
	return nil
}

// geminiSchema converts a reflected JSON schema into Gemini's schema subset
func geminiSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}

	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Items:       geminiSchema(schema.Items),
		Required:    schema.Required,
	}
	if len(enums) > 0 {
		gs.Enum = enums
	}

	if schema.Properties != nil && schema.Properties.Len() > 0 {
		gs.Properties = make(map[string]*genai.Schema, schema.Properties.Len())
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			gs.Properties[pair.Key] = geminiSchema(pair.Value)
			gs.PropertyOrdering = append(gs.PropertyOrdering, pair.Key)
		}
	}

	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}

var _ Engine = (*GeminiEngine)(nil)
