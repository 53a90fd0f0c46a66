// Package relevance decides which stored consequences apply to the
// player's current input. A cheap classifier model does the semantic
// matching; this package builds its prompt and reconciles its free-text
// answer back into typed IDs. Everything the classifier returns is
// treated as unreliable: references that do not resolve are dropped, and
// malformed output degrades to an empty result.
package relevance

import (
	"context"
	"fmt"

	"github.com/taleweave/taleweave/internal/llm"
	"github.com/taleweave/taleweave/internal/memory"
)

// defaultPrompt is the relevance-check prompt. Slots: player input,
// current location, pending consequence list.
const defaultPrompt = `You are checking if any pending consequences should trigger based on a player's action in a role-playing game.

## Player Action
"%s"

## Current Location
%s

## Pending Consequences
%s

## Instructions
Analyze the player's action and determine:
1. Which consequences (if any) should TRIGGER based on this action
2. Which entities/NPCs might be relevant even if not explicitly mentioned

A consequence should trigger if the player's action matches or is closely related to its trigger condition. Be generous with semantic matching - "I enter the village" should trigger a consequence about "entering Riverside" if Riverside is a village.

Respond with ONLY a JSON object (no markdown, no explanation outside the JSON):
{
  "triggered_consequences": ["id1", "id2"],
  "relevant_entities": ["Baron Aldric", "Town Guards"],
  "explanation": "Brief explanation of matches"
}

If nothing is relevant, return empty arrays.`

// Result is the matcher's verdict, resolved into typed IDs.
type Result struct {
	TriggeredConsequences []memory.ConsequenceID
	RelevantFacts         []memory.FactID
	RelevantEntities      []memory.EntityID
	Explanation           string
}

// HasTriggeredConsequences reports whether any consequence should fire.
func (r Result) HasTriggeredConsequences() bool {
	return len(r.TriggeredConsequences) > 0
}

// HasRelevantContext reports whether any facts or entities surfaced.
func (r Result) HasRelevantContext() bool {
	return len(r.RelevantFacts) > 0 || len(r.RelevantEntities) > 0
}

// IsEmpty reports whether nothing relevant was found.
func (r Result) IsEmpty() bool {
	return !r.HasTriggeredConsequences() && !r.HasRelevantContext()
}

// response is the JSON shape expected from the classifier. Extra fields
// are ignored; absent arrays stay empty.
type response struct {
	TriggeredConsequences []string `json:"triggered_consequences"`
	RelevantEntities      []string `json:"relevant_entities"`
	Explanation           string   `json:"explanation"`
}

// Matcher checks stored consequences against player input.
type Matcher struct {
	client llm.Client
	prompt string
}

// NewMatcher builds a matcher on the given classifier client.
func NewMatcher(client llm.Client) *Matcher {
	return &Matcher{client: client, prompt: defaultPrompt}
}

// WithPrompt overrides the prompt template. The template must carry three
// %s slots: player input, location, consequence list.
func (m *Matcher) WithPrompt(prompt string) *Matcher {
	if prompt != "" {
		m.prompt = prompt
	}
	return m
}

// Check asks the classifier which pending consequences the player's input
// triggers and which entities are relevant. With no pending consequences
// it returns an empty result without calling out. Transport errors
// propagate; parse failures return a *ParseError alongside the empty
// result so the caller can log and move on.
func (m *Matcher) Check(ctx context.Context, playerInput, currentLocation string, mem *memory.StoryMemory) (Result, error) {
	if mem.PendingConsequenceCount() == 0 {
		return Result{}, nil
	}

	prompt := fmt.Sprintf(m.prompt, playerInput, currentLocation, mem.BuildConsequencesForRelevance())

	reply, err := m.client.Generate(ctx, prompt)
	if err != nil {
		return Result{}, err
	}

	return m.reconcile(reply, mem)
}

// reconcile maps the classifier's strings back onto typed IDs. The
// classifier is never trusted to invent valid references: consequence ids
// must match a pending consequence by exact string equality, entity names
// must resolve through the fuzzy index, and anything else is dropped.
func (m *Matcher) reconcile(reply string, mem *memory.StoryMemory) (Result, error) {
	parsed, err := parseJSON[response](reply)
	if err != nil {
		return Result{}, err
	}

	result := Result{Explanation: parsed.Explanation}

	pending := mem.Consequences.Pending()
	for _, idStr := range parsed.TriggeredConsequences {
		for _, c := range pending {
			if string(c.ID) == idStr {
				result.TriggeredConsequences = append(result.TriggeredConsequences, c.ID)
				break
			}
		}
	}

	seen := make(map[memory.EntityID]bool)
	for _, name := range parsed.RelevantEntities {
		if id, ok := mem.FindEntityID(name); ok && !seen[id] {
			seen[id] = true
			result.RelevantEntities = append(result.RelevantEntities, id)
		}
	}

	return result, nil
}
