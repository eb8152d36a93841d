package agent

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/lexiqai/voice-assistant/internal/agent"

var tracer = otel.Tracer(scopeName)
