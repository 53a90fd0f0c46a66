package memory

import "github.com/google/uuid"

// FactID is the opaque identifier for a story fact.
type FactID string

// NewFactID mints a fresh fact ID.
func NewFactID() FactID {
	return FactID(uuid.New().String())
}

// FactCategory classifies what a fact is about.
type FactCategory string

const (
	CategoryAppearance   FactCategory = "appearance"
	CategoryPersonality  FactCategory = "personality"
	CategoryEvent        FactCategory = "event"
	CategoryRelationship FactCategory = "relationship"
	CategoryBackstory    FactCategory = "backstory"
	CategoryMotivation   FactCategory = "motivation"
	CategoryCapability   FactCategory = "capability"
	CategoryLocation     FactCategory = "location"
	CategoryPossession   FactCategory = "possession"
	CategoryStatus       FactCategory = "status"
	CategorySecret       FactCategory = "secret"
)

// IsStable reports whether facts of this category change slowly.
// Stable facts are decayed at half rate by the turn sweep.
func (c FactCategory) IsStable() bool {
	switch c {
	case CategoryAppearance, CategoryPersonality, CategoryBackstory, CategoryCapability:
		return true
	}
	return false
}

// FactSource records where a fact was established.
type FactSource string

const (
	SourceDmNarration   FactSource = "dm_narration"
	SourcePlayerAction  FactSource = "player_action"
	SourceNpcDialogue   FactSource = "npc_dialogue"
	SourceMechanics     FactSource = "mechanics"
	SourceWorldBuilding FactSource = "world_building"
)

const factImportanceFloor = 0.1

// StoryFact is an attributable, timestamped statement about an entity.
// Facts are never deleted; superseding only flips IsCurrent so the full
// history stays available for audit.
type StoryFact struct {
	ID          FactID       `json:"id"`
	Subject     EntityID     `json:"subject"`
	Mentioned   []EntityID   `json:"mentioned,omitempty"`
	Content     string       `json:"content"`
	Category    FactCategory `json:"category"`
	Established StoryMoment  `json:"established"`
	IsCurrent   bool         `json:"is_current"`
	Importance  float64      `json:"importance"`
	Source      FactSource   `json:"source"`
}

// NewStoryFact creates a current fact established at the given turn.
func NewStoryFact(subject EntityID, content string, category FactCategory, source FactSource, currentTurn uint32) *StoryFact {
	return &StoryFact{
		ID:          NewFactID(),
		Subject:     subject,
		Content:     content,
		Category:    category,
		Established: MomentAt(currentTurn),
		IsCurrent:   true,
		Importance:  1.0,
		Source:      source,
	}
}

// WithMentioned adds a mentioned entity. The subject and duplicates are
// skipped.
func (f *StoryFact) WithMentioned(id EntityID) *StoryFact {
	if id == f.Subject {
		return f
	}
	for _, m := range f.Mentioned {
		if m == id {
			return f
		}
	}
	f.Mentioned = append(f.Mentioned, id)
	return f
}

// WithImportance sets importance, clamped to [0,1].
func (f *StoryFact) WithImportance(importance float64) *StoryFact {
	f.Importance = clamp(importance, 0, 1)
	return f
}

// Supersede marks the fact as no longer current.
func (f *StoryFact) Supersede() {
	f.IsCurrent = false
}

// Decay lowers importance by rate, never below the floor.
func (f *StoryFact) Decay(rate float64) {
	f.Importance = max(f.Importance-rate, factImportanceFloor)
}

// Involves reports whether the entity is the subject or mentioned.
func (f *StoryFact) Involves(id EntityID) bool {
	if f.Subject == id {
		return true
	}
	for _, m := range f.Mentioned {
		if m == id {
			return true
		}
	}
	return false
}

// FactStore is the append-only log of story facts.
type FactStore struct {
	facts []*StoryFact
	byID  map[FactID]*StoryFact
}

// NewFactStore creates an empty store.
func NewFactStore() *FactStore {
	return &FactStore{byID: make(map[FactID]*StoryFact)}
}

// Add appends a fact and returns its ID.
func (s *FactStore) Add(f *StoryFact) FactID {
	s.facts = append(s.facts, f)
	s.byID[f.ID] = f
	return f.ID
}

// Get returns the fact with the given ID, or nil.
func (s *FactStore) Get(id FactID) *StoryFact {
	return s.byID[id]
}

// Supersede flips IsCurrent on a fact. Which fact is outdated is the
// caller's call; there is no contradiction detection here. Reports
// whether the ID was known.
func (s *FactStore) Supersede(id FactID) bool {
	f := s.byID[id]
	if f == nil {
		return false
	}
	f.Supersede()
	return true
}

// FactsFor returns current facts where the entity is subject or mentioned.
func (s *FactStore) FactsFor(id EntityID) []*StoryFact {
	var out []*StoryFact
	for _, f := range s.facts {
		if f.IsCurrent && f.Involves(id) {
			out = append(out, f)
		}
	}
	return out
}

// ByCategory returns current facts of the given category.
func (s *FactStore) ByCategory(category FactCategory) []*StoryFact {
	var out []*StoryFact
	for _, f := range s.facts {
		if f.IsCurrent && f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

// Recent returns current facts established within N turns of the given
// turn.
func (s *FactStore) Recent(currentTurn, withinTurns uint32) []*StoryFact {
	minTurn := uint32(0)
	if currentTurn > withinTurns {
		minTurn = currentTurn - withinTurns
	}
	var out []*StoryFact
	for _, f := range s.facts {
		if f.IsCurrent && f.Established.Turn >= minTurn {
			out = append(out, f)
		}
	}
	return out
}

// All returns every fact, current or not, in insertion order.
func (s *FactStore) All() []*StoryFact {
	return s.facts
}

// Len returns the total number of facts ever recorded.
func (s *FactStore) Len() int {
	return len(s.facts)
}

// DecayAll applies a flat decay to every fact. Differential decay for
// stable categories is the caller's policy; the turn sweep in StoryMemory
// halves the rate for them.
func (s *FactStore) DecayAll(rate float64) {
	for _, f := range s.facts {
		f.Decay(rate)
	}
}

// restore rebuilds the store from a deserialized fact list.
func (s *FactStore) restore(facts []*StoryFact) {
	s.facts = facts
	s.byID = make(map[FactID]*StoryFact, len(facts))
	for _, f := range facts {
		s.byID[f.ID] = f
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
