package memory

import "github.com/google/uuid"

// ConsequenceID is the opaque identifier for a consequence. Its string
// form is what the relevance classifier echoes back, so matching against
// classifier output is plain string equality.
type ConsequenceID string

// NewConsequenceID mints a fresh consequence ID.
func NewConsequenceID() ConsequenceID {
	return ConsequenceID(uuid.New().String())
}

// ConsequenceStatus is the lifecycle state of a consequence. Pending is
// the only active state; the other three are terminal.
type ConsequenceStatus string

const (
	StatusPending   ConsequenceStatus = "pending"
	StatusTriggered ConsequenceStatus = "triggered"
	StatusResolved  ConsequenceStatus = "resolved"
	StatusExpired   ConsequenceStatus = "expired"
)

// IsActive reports whether the consequence could still trigger.
func (s ConsequenceStatus) IsActive() bool {
	return s == StatusPending
}

// ConsequenceSeverity grades how prominently a consequence should be
// surfaced.
type ConsequenceSeverity string

const (
	SeverityMinor    ConsequenceSeverity = "minor"
	SeverityModerate ConsequenceSeverity = "moderate"
	SeverityMajor    ConsequenceSeverity = "major"
	SeverityCritical ConsequenceSeverity = "critical"
)

// Name returns the display name for the severity.
func (s ConsequenceSeverity) Name() string {
	switch s {
	case SeverityMinor:
		return "Minor"
	case SeverityModerate:
		return "Moderate"
	case SeverityMajor:
		return "Major"
	case SeverityCritical:
		return "Critical"
	}
	return string(s)
}

// BaseImportance returns the starting importance for the severity.
func (s ConsequenceSeverity) BaseImportance() float64 {
	switch s {
	case SeverityMinor:
		return 0.3
	case SeverityModerate:
		return 0.5
	case SeverityMajor:
		return 0.8
	case SeverityCritical:
		return 1.0
	}
	return 0.3
}

// Consequence is a deferred narrative effect: a natural-language trigger
// condition, what happens when it fires, and a lifecycle. Consequences
// decay slower than facts and never below half their severity's base
// importance, so future plot hooks never vanish from ranking.
//
// Examples: "If the player enters Riverside, guards will attempt arrest";
// "The curse activates when the player sleeps".
type Consequence struct {
	ID                     ConsequenceID       `json:"id"`
	TriggerDescription     string              `json:"trigger_description"`
	ConsequenceDescription string              `json:"consequence_description"`
	Severity               ConsequenceSeverity `json:"severity"`
	Subject                EntityID            `json:"subject,omitempty"`
	Related                []EntityID          `json:"related,omitempty"`
	Created                StoryMoment         `json:"created"`
	ExpiresTurn            *uint32             `json:"expires_turn,omitempty"`
	Status                 ConsequenceStatus   `json:"status"`
	Importance             float64             `json:"importance"`
	SourceDescription      string              `json:"source_description,omitempty"`
}

// NewConsequence creates a pending consequence with importance set to the
// severity's base.
func NewConsequence(triggerDesc, consequenceDesc string, severity ConsequenceSeverity, currentTurn uint32) *Consequence {
	return &Consequence{
		ID:                     NewConsequenceID(),
		TriggerDescription:     triggerDesc,
		ConsequenceDescription: consequenceDesc,
		Severity:               severity,
		Created:                MomentAt(currentTurn),
		Status:                 StatusPending,
		Importance:             severity.BaseImportance(),
	}
}

// WithSubject sets the primary entity this consequence is about.
func (c *Consequence) WithSubject(id EntityID) *Consequence {
	c.Subject = id
	return c
}

// WithRelated adds a related entity, skipping duplicates.
func (c *Consequence) WithRelated(id EntityID) *Consequence {
	for _, r := range c.Related {
		if r == id {
			return c
		}
	}
	c.Related = append(c.Related, id)
	return c
}

// WithExpiry sets the turn at which the consequence expires.
func (c *Consequence) WithExpiry(expiresTurn uint32) *Consequence {
	c.ExpiresTurn = &expiresTurn
	return c
}

// WithImportance overrides importance, clamped to [0,1].
func (c *Consequence) WithImportance(importance float64) *Consequence {
	c.Importance = clamp(importance, 0, 1)
	return c
}

// WithSource records what caused this consequence.
func (c *Consequence) WithSource(source string) *Consequence {
	c.SourceDescription = source
	return c
}

// Trigger moves Pending to Triggered. A no-op in any terminal state, so
// double-triggering cannot happen.
func (c *Consequence) Trigger() {
	if c.Status == StatusPending {
		c.Status = StatusTriggered
	}
}

// Resolve moves Pending to Resolved (handled without triggering). A no-op
// in any terminal state.
func (c *Consequence) Resolve() {
	if c.Status == StatusPending {
		c.Status = StatusResolved
	}
}

// CheckExpiry expires a pending consequence whose expiry turn has been
// reached, reporting whether a transition happened. Calling it again is a
// no-op since Expired is terminal.
func (c *Consequence) CheckExpiry(currentTurn uint32) bool {
	if c.ExpiresTurn != nil && currentTurn >= *c.ExpiresTurn && c.Status == StatusPending {
		c.Status = StatusExpired
		return true
	}
	return false
}

// Involves reports whether the entity is the subject or related.
func (c *Consequence) Involves(id EntityID) bool {
	if c.Subject == id {
		return true
	}
	for _, r := range c.Related {
		if r == id {
			return true
		}
	}
	return false
}

// Decay lowers importance by rate, floored at half the severity's base.
func (c *Consequence) Decay(rate float64) {
	c.Importance = max(c.Importance-rate, c.Severity.BaseImportance()*0.5)
}

// ConsequenceStore holds all consequences across their lifecycle.
// Insertion order is preserved so importance ties rank deterministically.
type ConsequenceStore struct {
	consequences []*Consequence
	byID         map[ConsequenceID]*Consequence
}

// NewConsequenceStore creates an empty store.
func NewConsequenceStore() *ConsequenceStore {
	return &ConsequenceStore{byID: make(map[ConsequenceID]*Consequence)}
}

// Add stores a consequence and returns its ID.
func (s *ConsequenceStore) Add(c *Consequence) ConsequenceID {
	s.consequences = append(s.consequences, c)
	s.byID[c.ID] = c
	return c.ID
}

// Create builds and stores a pending consequence.
func (s *ConsequenceStore) Create(triggerDesc, consequenceDesc string, severity ConsequenceSeverity, currentTurn uint32) *Consequence {
	c := NewConsequence(triggerDesc, consequenceDesc, severity, currentTurn)
	s.Add(c)
	return c
}

// Get returns the consequence with the given ID, or nil.
func (s *ConsequenceStore) Get(id ConsequenceID) *Consequence {
	return s.byID[id]
}

// Trigger fires a pending consequence by ID. Reports whether the ID was
// known; terminal states are untouched.
func (s *ConsequenceStore) Trigger(id ConsequenceID) bool {
	c := s.byID[id]
	if c == nil {
		return false
	}
	c.Trigger()
	return true
}

// Resolve marks a pending consequence handled without triggering.
func (s *ConsequenceStore) Resolve(id ConsequenceID) bool {
	c := s.byID[id]
	if c == nil {
		return false
	}
	c.Resolve()
	return true
}

// Pending returns pending consequences in insertion order.
func (s *ConsequenceStore) Pending() []*Consequence {
	var out []*Consequence
	for _, c := range s.consequences {
		if c.Status.IsActive() {
			out = append(out, c)
		}
	}
	return out
}

// PendingByImportance returns pending consequences sorted descending by
// importance, ties broken by insertion order. The relevance prompt is
// bounded, so ranking must be deterministic.
func (s *ConsequenceStore) PendingByImportance() []*Consequence {
	out := s.Pending()
	stableSortByImportance(out, func(c *Consequence) float64 { return c.Importance })
	return out
}

// Involving returns pending consequences involving the entity.
func (s *ConsequenceStore) Involving(id EntityID) []*Consequence {
	var out []*Consequence
	for _, c := range s.consequences {
		if c.Status.IsActive() && c.Involves(id) {
			out = append(out, c)
		}
	}
	return out
}

// SweepExpiry runs CheckExpiry across every consequence, returning how
// many expired this sweep.
func (s *ConsequenceStore) SweepExpiry(currentTurn uint32) int {
	expired := 0
	for _, c := range s.consequences {
		if c.CheckExpiry(currentTurn) {
			expired++
		}
	}
	return expired
}

// DecayAll decays every active consequence.
func (s *ConsequenceStore) DecayAll(rate float64) {
	for _, c := range s.consequences {
		if c.Status.IsActive() {
			c.Decay(rate)
		}
	}
}

// All returns every consequence, any status, in insertion order.
func (s *ConsequenceStore) All() []*Consequence {
	return s.consequences
}

// Len returns the total number of consequences, all statuses.
func (s *ConsequenceStore) Len() int {
	return len(s.consequences)
}

// PendingCount returns the number of pending consequences.
func (s *ConsequenceStore) PendingCount() int {
	n := 0
	for _, c := range s.consequences {
		if c.Status.IsActive() {
			n++
		}
	}
	return n
}

// restore rebuilds the store from a deserialized list.
func (s *ConsequenceStore) restore(consequences []*Consequence) {
	s.consequences = consequences
	s.byID = make(map[ConsequenceID]*Consequence, len(consequences))
	for _, c := range consequences {
		s.byID[c.ID] = c
	}
}
