// Package extraction turns a narration exchange into structured memory
// records. A model is asked to emit entities, facts, relationships, and
// consequences as JSON; the extractor parses that output with the same
// tolerance as the relevance matcher and writes it into story memory,
// resolving names through the fuzzy index.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taleweave/taleweave/internal/llm"
	"github.com/taleweave/taleweave/internal/memory"
	"github.com/taleweave/taleweave/internal/relevance"
)

// defaultPrompt asks for memory records from the latest exchange.
// Slot: the narration text.
const defaultPrompt = `You are maintaining the long-term memory of a narrated role-playing game. From the exchange below, extract what is worth remembering.

## Exchange
%s

## Instructions
Respond with ONLY a JSON object:
{
  "entities": [{"name": "...", "kind": "npc|location|item|quest|organization|event|creature", "description": "..."}],
  "facts": [{"subject": "entity name", "content": "...", "category": "appearance|personality|event|relationship|backstory|motivation|capability|location|possession|status|secret", "mentions": ["other entity names"]}],
  "relationships": [{"from": "entity name", "to": "entity name", "kind": "friend|enemy|mentor|student|ally|rival|family|romantic|employer|employee|owns|lives_at|works_at|leads|member_of|created|hunts|betrayer|acquaintance|business|fellow_member", "description": "..."}],
  "consequences": [{"trigger": "when this should fire", "effect": "what happens", "severity": "minor|moderate|major|critical", "subject": "entity name", "expires_in_turns": 0}]
}

Only include what the exchange actually establishes. Empty arrays are fine.`

// Records is the parsed extraction output, still in name form.
type Records struct {
	Entities []struct {
		Name        string `json:"name"`
		Kind        string `json:"kind"`
		Description string `json:"description"`
	} `json:"entities"`
	Facts []struct {
		Subject  string   `json:"subject"`
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Mentions []string `json:"mentions"`
	} `json:"facts"`
	Relationships []struct {
		From        string `json:"from"`
		To          string `json:"to"`
		Kind        string `json:"kind"`
		Description string `json:"description"`
	} `json:"relationships"`
	Consequences []struct {
		Trigger        string `json:"trigger"`
		Effect         string `json:"effect"`
		Severity       string `json:"severity"`
		Subject        string `json:"subject"`
		ExpiresInTurns uint32 `json:"expires_in_turns"`
	} `json:"consequences"`
}

// Extractor pulls memory records out of narration text.
type Extractor struct {
	client llm.Client
	prompt string
	source memory.FactSource
}

// NewExtractor builds an extractor on the given model client. Extracted
// facts are attributed to DM narration by default.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client, prompt: defaultPrompt, source: memory.SourceDmNarration}
}

// WithPrompt overrides the prompt template (one %s slot: the exchange).
func (e *Extractor) WithPrompt(prompt string) *Extractor {
	if prompt != "" {
		e.prompt = prompt
	}
	return e
}

// WithSource changes the fact source attribution.
func (e *Extractor) WithSource(source memory.FactSource) *Extractor {
	e.source = source
	return e
}

// Extract asks the model for memory records from the exchange. Transport
// errors propagate; unparseable output is an error the caller may ignore,
// since extraction is best-effort.
func (e *Extractor) Extract(ctx context.Context, exchange string) (Records, error) {
	reply, err := e.client.Generate(ctx, fmt.Sprintf(e.prompt, exchange))
	if err != nil {
		return Records{}, fmt.Errorf("failed to generate extraction: %w", err)
	}

	var records Records
	raw := relevance.ExtractJSON(reply)
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return Records{}, fmt.Errorf("failed to parse extraction output: %w", err)
	}
	return records, nil
}

// Apply writes records into story memory. Names resolve through the
// index, creating entities on first mention; records naming nothing
// resolvable are dropped rather than guessed at.
func (e *Extractor) Apply(records Records, mem *memory.StoryMemory) {
	for _, ent := range records.Entities {
		if ent.Name == "" {
			continue
		}
		id := mem.GetOrCreateEntity(memory.ParseEntityKind(ent.Kind), ent.Name)
		if ent.Description != "" {
			if existing := mem.Entities.Get(id); existing != nil && existing.Description == "" {
				existing.WithDescription(ent.Description)
			}
		}
	}

	for _, fact := range records.Facts {
		if fact.Subject == "" || fact.Content == "" {
			continue
		}
		subject := mem.GetOrCreateEntity(memory.KindNpc, fact.Subject)
		var mentions []memory.EntityID
		for _, name := range fact.Mentions {
			if id, ok := mem.FindEntityID(name); ok {
				mentions = append(mentions, id)
			}
		}
		mem.RecordFactWithMentions(subject, fact.Content, parseCategory(fact.Category), e.source, mentions)
	}

	for _, rel := range records.Relationships {
		from, okFrom := mem.FindEntityID(rel.From)
		to, okTo := mem.FindEntityID(rel.To)
		if !okFrom || !okTo || from == to {
			continue
		}
		r := mem.AddRelationship(from, to, parseRelKind(rel.Kind))
		if rel.Description != "" {
			r.WithDescription(rel.Description)
		}
	}

	for _, cons := range records.Consequences {
		if cons.Trigger == "" || cons.Effect == "" {
			continue
		}
		var c *memory.Consequence
		if cons.ExpiresInTurns > 0 {
			c = mem.CreateConsequenceWithExpiry(cons.Trigger, cons.Effect, parseSeverity(cons.Severity), cons.ExpiresInTurns)
		} else {
			c = mem.CreateConsequence(cons.Trigger, cons.Effect, parseSeverity(cons.Severity))
		}
		if id, ok := mem.FindEntityID(cons.Subject); ok {
			c.WithSubject(id)
		}
	}
}

// The parse helpers are deliberately forgiving: model output drifts, and
// a wrong bucket beats a dropped record.

func parseCategory(s string) memory.FactCategory {
	c := memory.FactCategory(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case memory.CategoryAppearance, memory.CategoryPersonality, memory.CategoryRelationship,
		memory.CategoryBackstory, memory.CategoryMotivation, memory.CategoryCapability,
		memory.CategoryLocation, memory.CategoryPossession, memory.CategoryStatus,
		memory.CategorySecret:
		return c
	}
	return memory.CategoryEvent
}

func parseRelKind(s string) memory.RelationshipKind {
	k := memory.RelationshipKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := k.Inverse(); ok {
		return k
	}
	switch k {
	case memory.RelHunts, memory.RelBetrayer, memory.RelLivesAt, memory.RelWorksAt,
		memory.RelOwns, memory.RelCreated, memory.RelMemberOf:
		return k
	}
	return memory.RelAcquaintance
}

func parseSeverity(s string) memory.ConsequenceSeverity {
	switch memory.ConsequenceSeverity(strings.ToLower(strings.TrimSpace(s))) {
	case memory.SeverityMinor:
		return memory.SeverityMinor
	case memory.SeverityMajor:
		return memory.SeverityMajor
	case memory.SeverityCritical:
		return memory.SeverityCritical
	}
	return memory.SeverityModerate
}
