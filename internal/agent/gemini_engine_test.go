package agent

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"google.golang.org/genai"
)

type lookupParams struct {
	City  string   `json:"city" jsonschema:"description=City name"`
	Units string   `json:"units,omitempty" jsonschema:"enum=metric,enum=imperial"`
	Days  int      `json:"days,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func TestGeminiSchema(t *testing.T) {
	op := NewOperation("lookup", "Look up weather", func(ctx context.Context, p lookupParams) (string, error) {
		return "", nil
	})

	schema := geminiSchema(op.Parameters)
	if schema.Type != genai.TypeObject {
		t.Errorf("Expected object, got %v", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "city" {
		t.Errorf("Expected city to be required, got %v", schema.Required)
	}

	wantOrder := []string{"city", "units", "days", "tags"}
	if len(schema.PropertyOrdering) != len(wantOrder) {
		t.Fatalf("Expected %d ordered properties, got %v", len(wantOrder), schema.PropertyOrdering)
	}
	for i, name := range wantOrder {
		if schema.PropertyOrdering[i] != name {
			t.Errorf("Expected property %d to be %s, got %s", i, name, schema.PropertyOrdering[i])
		}
	}

	if city := schema.Properties["city"]; city.Type != genai.TypeString || city.Description != "City name" {
		t.Errorf("Unexpected city schema: %+v", city)
	}
	if units := schema.Properties["units"]; len(units.Enum) != 2 || units.Enum[0] != "metric" {
		t.Errorf("Unexpected units enum: %v", units.Enum)
	}
	if days := schema.Properties["days"]; days.Type != genai.TypeInteger {
		t.Errorf("Expected integer days, got %v", days.Type)
	}
	if tags := schema.Properties["tags"]; tags.Type != genai.TypeArray || tags.Items == nil || tags.Items.Type != genai.TypeString {
		t.Errorf("Unexpected tags schema: %+v", tags)
	}
}

func TestGeminiSchema_Nil(t *testing.T) {
	if geminiSchema(nil) != nil {
		t.Error("Expected nil schema")
	}
}

func userTurn(text string) *genai.Content {
	return &genai.Content{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(text)}}
}

func TestGeminiConversation_HistoryTrim(t *testing.T) {
	c := &geminiConversation{}
	for i := 0; i < maxHistoryTurns+3; i++ {
		c.startTurn(userTurn("prompt"))
		c.history = append(c.history, &genai.Content{Role: "model"})
	}

	if len(c.turnStarts) != maxHistoryTurns {
		t.Errorf("Expected %d turns kept, got %d", maxHistoryTurns, len(c.turnStarts))
	}
	if len(c.history) != 2*maxHistoryTurns {
		t.Errorf("Expected %d contents, got %d", 2*maxHistoryTurns, len(c.history))
	}
	if c.turnStarts[0] != 0 || c.history[0].Role != "user" {
		t.Errorf("Expected history to start on a user turn, got start %d role %q", c.turnStarts[0], c.history[0].Role)
	}
}

func TestGeminiConversation_DropTurn(t *testing.T) {
	c := &geminiConversation{}
	c.startTurn(userTurn("first"))
	c.history = append(c.history, &genai.Content{Role: "model"})
	c.startTurn(userTurn("second"))
	c.history = append(c.history, &genai.Content{Role: "model"})

	c.dropTurn()

	if len(c.history) != 2 || len(c.turnStarts) != 1 {
		t.Errorf("Expected only the first turn, got %d contents and %d turns", len(c.history), len(c.turnStarts))
	}
}

func TestGeminiEngine_SubmitWithoutConnection(t *testing.T) {
	engine := NewGeminiEngine("key", "gemini-2.0-flash")
	if err := engine.Submit(context.Background(), "hello"); !errors.Is(err, ErrConnectionLost) {
		t.Errorf("Expected ErrConnectionLost, got %v", err)
	}
}

func TestIsAuthError(t *testing.T) {
	if !isAuthError(genai.APIError{Code: http.StatusUnauthorized}) {
		t.Error("Expected 401 to be an auth error")
	}
	if !isAuthError(&genai.APIError{Code: http.StatusForbidden}) {
		t.Error("Expected 403 to be an auth error")
	}
	if isAuthError(genai.APIError{Code: http.StatusTooManyRequests}) {
		t.Error("Expected 429 not to be an auth error")
	}
}
