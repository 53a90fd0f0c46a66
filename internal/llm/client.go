// Package llm provides the text-in, text-out client used for semantic
// classification. The engine never talks to a provider directly; it only
// sees this interface, so tests swap in a mock and the relevance matcher
// stays provider-agnostic.
package llm

import "context"

// Client is an opaque "generate text" capability. Calls may be slow or
// fail; callers bound them with the context.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
