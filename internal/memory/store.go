// Package memory implements the story memory engine: entities, facts,
// relationships, and deferred consequences behind a single turn clock.
// It records what the narration establishes, decays relevance as turns
// pass, and surfaces what still matters.
package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Caps on how much stored context gets rendered into prompts.
const (
	maxContextFacts        = 30
	maxContextConsequences = 20
)

// DecayPolicy sets the per-turn importance decay rates. Decay runs on
// every turn advance; stable fact categories decay at half the fact rate.
type DecayPolicy struct {
	EntityRate      float64
	FactRate        float64
	ConsequenceRate float64
}

// DefaultDecayPolicy returns the standard rates: consequences decay at
// half the entity/fact rate since plot hooks should linger.
func DefaultDecayPolicy() DecayPolicy {
	return DecayPolicy{
		EntityRate:      0.02,
		FactRate:        0.02,
		ConsequenceRate: 0.01,
	}
}

// StoryMemory aggregates the four stores behind one turn clock. It is the
// sole writable surface for the narrative driver; every mutation is
// stamped with the current turn. A StoryMemory is not safe for concurrent
// use; each session must own its instance exclusively.
type StoryMemory struct {
	Entities      *EntityIndex
	Facts         *FactStore
	Relationships *RelationshipGraph
	Consequences  *ConsequenceStore

	currentTurn uint32
	decay       DecayPolicy
}

// NewStoryMemory creates an empty memory at turn zero with the default
// decay policy.
func NewStoryMemory() *StoryMemory {
	return &StoryMemory{
		Entities:      NewEntityIndex(),
		Facts:         NewFactStore(),
		Relationships: NewRelationshipGraph(),
		Consequences:  NewConsequenceStore(),
		decay:         DefaultDecayPolicy(),
	}
}

// WithDecayPolicy overrides the decay rates.
func (m *StoryMemory) WithDecayPolicy(p DecayPolicy) *StoryMemory {
	m.decay = p
	return m
}

// CurrentTurn returns the turn counter.
func (m *StoryMemory) CurrentTurn() uint32 {
	return m.currentTurn
}

// AdvanceTurn increments the clock, expires due consequences, and applies
// decay across all stores. Stable fact categories decay at half rate.
func (m *StoryMemory) AdvanceTurn() {
	m.currentTurn++

	m.Entities.DecayAll(m.decay.EntityRate)

	for _, f := range m.Facts.All() {
		rate := m.decay.FactRate
		if f.Category.IsStable() {
			rate *= 0.5
		}
		f.Decay(rate)
	}

	m.Consequences.SweepExpiry(m.currentTurn)
	m.Consequences.DecayAll(m.decay.ConsequenceRate)
}

// CreateEntity mints a new entity stamped with the current turn.
func (m *StoryMemory) CreateEntity(kind EntityKind, name string) EntityID {
	return m.Entities.Create(kind, name, m.currentTurn)
}

// GetOrCreateEntity returns an existing entity matched by name (touching
// it) or creates a new one.
func (m *StoryMemory) GetOrCreateEntity(kind EntityKind, name string) EntityID {
	return m.Entities.GetOrCreate(kind, name, m.currentTurn)
}

// FindEntityID resolves a free-text name to an entity ID, fuzzily. Used
// to translate matcher output back into typed handles.
func (m *StoryMemory) FindEntityID(name string) (EntityID, bool) {
	return m.Entities.FindEntityID(name)
}

// RecordFact stores a fact about an entity, touching the subject.
func (m *StoryMemory) RecordFact(subject EntityID, content string, category FactCategory, source FactSource) FactID {
	return m.RecordFactWithMentions(subject, content, category, source, nil)
}

// RecordFactWithMentions stores a fact and wires up mentioned entities,
// touching everyone involved.
func (m *StoryMemory) RecordFactWithMentions(subject EntityID, content string, category FactCategory, source FactSource, mentioned []EntityID) FactID {
	f := NewStoryFact(subject, content, category, source, m.currentTurn)
	for _, id := range mentioned {
		f.WithMentioned(id)
	}
	m.Entities.Touch(subject, m.currentTurn)
	for _, id := range f.Mentioned {
		m.Entities.Touch(id, m.currentTurn)
	}
	return m.Facts.Add(f)
}

// AddRelationship creates a typed edge stamped with the current turn.
func (m *StoryMemory) AddRelationship(from, to EntityID, kind RelationshipKind) *Relationship {
	return m.Relationships.Add(from, to, kind, m.currentTurn)
}

// CreateConsequence stores a pending consequence stamped with the current
// turn.
func (m *StoryMemory) CreateConsequence(triggerDesc, consequenceDesc string, severity ConsequenceSeverity) *Consequence {
	return m.Consequences.Create(triggerDesc, consequenceDesc, severity, m.currentTurn)
}

// CreateConsequenceWithExpiry stores a pending consequence that expires
// after the given number of turns.
func (m *StoryMemory) CreateConsequenceWithExpiry(triggerDesc, consequenceDesc string, severity ConsequenceSeverity, expiresInTurns uint32) *Consequence {
	c := m.CreateConsequence(triggerDesc, consequenceDesc, severity)
	c.WithExpiry(m.currentTurn + expiresInTurns)
	return c
}

// AddConsequence stores an already-built consequence.
func (m *StoryMemory) AddConsequence(c *Consequence) ConsequenceID {
	return m.Consequences.Add(c)
}

// EntityCount returns the number of tracked entities.
func (m *StoryMemory) EntityCount() int { return m.Entities.Len() }

// FactCount returns the number of facts ever recorded.
func (m *StoryMemory) FactCount() int { return m.Facts.Len() }

// RelationshipCount returns the number of edges ever added.
func (m *StoryMemory) RelationshipCount() int { return m.Relationships.Len() }

// ConsequenceCount returns the number of consequences, all statuses.
func (m *StoryMemory) ConsequenceCount() int { return m.Consequences.Len() }

// PendingConsequenceCount returns the number of pending consequences.
func (m *StoryMemory) PendingConsequenceCount() int { return m.Consequences.PendingCount() }

// BuildConsequencesForRelevance renders pending consequences as a
// numbered list for the relevance prompt: highest importance first,
// capped, deterministic for a given store state.
func (m *StoryMemory) BuildConsequencesForRelevance() string {
	pending := m.Consequences.PendingByImportance()
	if len(pending) == 0 {
		return ""
	}
	if len(pending) > maxContextConsequences {
		pending = pending[:maxContextConsequences]
	}
	var b strings.Builder
	for i, c := range pending {
		fmt.Fprintf(&b, "%d. [%s] TRIGGER: %s -> EFFECT: %s\n",
			i+1, c.ID, c.TriggerDescription, c.ConsequenceDescription)
	}
	return b.String()
}

// BuildContextForInput finds entities mentioned in the player's input and
// renders their stored context.
func (m *StoryMemory) BuildContextForInput(input string) string {
	return m.BuildRelevantContext(m.Entities.ExtractMentions(input))
}

// BuildRelevantContext renders facts and relationships for the given
// entities, most relevant first. Recent facts get a recency bonus.
func (m *StoryMemory) BuildRelevantContext(entityIDs []EntityID) string {
	if len(entityIDs) == 0 {
		return ""
	}

	type scored struct {
		fact  *StoryFact
		score float64
	}
	var relevant []scored
	seen := make(map[FactID]bool)
	for _, id := range entityIDs {
		for _, f := range m.Facts.All() {
			if !f.IsCurrent || !f.Involves(id) || seen[f.ID] {
				continue
			}
			score := f.Importance
			if f.Established.Turn+10 >= m.currentTurn {
				score += 0.3
			}
			seen[f.ID] = true
			relevant = append(relevant, scored{f, score})
		}
	}
	sort.SliceStable(relevant, func(i, j int) bool { return relevant[i].score > relevant[j].score })
	if len(relevant) > maxContextFacts {
		relevant = relevant[:maxContextFacts]
	}
	if len(relevant) == 0 {
		return ""
	}

	// Group by subject, keeping first-appearance order of subjects.
	bySubject := make(map[EntityID][]*StoryFact)
	var subjects []EntityID
	for _, s := range relevant {
		if _, ok := bySubject[s.fact.Subject]; !ok {
			subjects = append(subjects, s.fact.Subject)
		}
		bySubject[s.fact.Subject] = append(bySubject[s.fact.Subject], s.fact)
	}

	var b strings.Builder
	b.WriteString("## Relevant Story Context\n\n")
	for _, subject := range subjects {
		entity := m.Entities.Get(subject)
		if entity == nil {
			continue
		}
		fmt.Fprintf(&b, "### %s (%s)\n", entity.Name, entity.Kind.Name())
		for _, f := range bySubject[subject] {
			fmt.Fprintf(&b, "- %s\n", f.Content)
		}
		rels := m.Relationships.Involving(subject)
		if len(rels) > 3 {
			rels = rels[:3]
		}
		for _, r := range rels {
			otherID, _ := r.Other(subject)
			other := m.Entities.Get(otherID)
			if other == nil {
				continue
			}
			if r.Description != "" {
				fmt.Fprintf(&b, "- %s %s (%s)\n", r.Kind.Name(), other.Name, r.Description)
			} else {
				fmt.Fprintf(&b, "- %s %s\n", r.Kind.Name(), other.Name)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BuildSummary renders the important story elements: key NPCs, notable
// locations, active quests, and recent events.
func (m *StoryMemory) BuildSummary() string {
	var b strings.Builder

	writeEntities := func(header string, entities []*Entity) {
		if len(entities) == 0 {
			return
		}
		b.WriteString(header + "\n")
		for _, e := range entities {
			fmt.Fprintf(&b, "- **%s**", e.Name)
			if e.Description != "" {
				fmt.Fprintf(&b, ": %s", e.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	npcs := m.Entities.OfKind(KindNpc)
	if len(npcs) > 5 {
		npcs = npcs[:5]
	}
	writeEntities("### Key NPCs", npcs)

	locations := m.Entities.OfKind(KindLocation)
	if len(locations) > 3 {
		locations = locations[:3]
	}
	writeEntities("### Notable Locations", locations)

	var quests []*Entity
	for _, q := range m.Entities.OfKind(KindQuest) {
		if q.Importance > 0.3 {
			quests = append(quests, q)
		}
	}
	writeEntities("### Active Quests", quests)

	var events []*StoryFact
	for _, f := range m.Facts.Recent(m.currentTurn, 5) {
		if f.Category == CategoryEvent {
			events = append(events, f)
			if len(events) == 5 {
				break
			}
		}
	}
	if len(events) > 0 {
		b.WriteString("### Recent Events\n")
		for _, f := range events {
			fmt.Fprintf(&b, "- %s\n", f.Content)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// snapshot is the serialized shape of a StoryMemory. Every record is kept
// verbatim, non-current facts and terminal consequences included, so a
// reload reproduces the state exactly.
type snapshot struct {
	Entities      []*Entity       `json:"entities"`
	Facts         []*StoryFact    `json:"facts"`
	Relationships []*Relationship `json:"relationships"`
	Consequences  []*Consequence  `json:"consequences"`
	CurrentTurn   uint32          `json:"current_turn"`
}

// MarshalJSON serializes the full memory state.
func (m *StoryMemory) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{
		Entities:      m.Entities.All(),
		Facts:         m.Facts.All(),
		Relationships: m.Relationships.All(),
		Consequences:  m.Consequences.All(),
		CurrentTurn:   m.currentTurn,
	})
}

// UnmarshalJSON restores the full memory state, rebuilding indexes.
func (m *StoryMemory) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if m.Entities == nil {
		m.Entities = NewEntityIndex()
		m.Facts = NewFactStore()
		m.Relationships = NewRelationshipGraph()
		m.Consequences = NewConsequenceStore()
		m.decay = DefaultDecayPolicy()
	}
	m.Entities.restore(snap.Entities)
	m.Facts.restore(snap.Facts)
	m.Relationships.restore(snap.Relationships)
	m.Consequences.restore(snap.Consequences)
	m.currentTurn = snap.CurrentTurn
	return nil
}

// stableSortByImportance orders items descending by score, preserving
// insertion order on ties.
func stableSortByImportance[T any](items []T, score func(T) float64) {
	sort.SliceStable(items, func(i, j int) bool {
		return score(items[i]) > score(items[j])
	})
}
