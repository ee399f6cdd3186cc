package ai

import (
	"context"

	"github.com/poiesic/tagger/core"
)

// Generator produces a free-text label response for one record name.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate renders the instruction template with the record name and
	// returns the model's raw response text.
	// Returns an error if the template cannot be rendered or the call fails.
	Generate(ctx context.Context, template, name string) (string, error)
}

// Judge scores a batch of generations and proposes a revised template.
// Implementations must be thread-safe for concurrent use.
type Judge interface {
	// Judge sends the current template and the batch history to the judge
	// model and returns its raw response text. Parsing the verdict is left
	// to the caller.
	Judge(ctx context.Context, template string, cases []core.Invocation) (string, error)
}

// AIProvider aggregates the model services used by a tagging run.
type AIProvider interface {
	// Generator returns the label generation service.
	Generator() Generator

	// Judge returns the judge service.
	Judge() Judge

	// Close releases resources held by the provider and its services.
	Close() error
}
