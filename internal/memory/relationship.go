package memory

// RelationshipKind classifies a typed edge between two entities.
type RelationshipKind string

const (
	// Positive relationships.
	RelFamily   RelationshipKind = "family"
	RelFriend   RelationshipKind = "friend"
	RelAlly     RelationshipKind = "ally"
	RelMentor   RelationshipKind = "mentor"
	RelStudent  RelationshipKind = "student"
	RelRomantic RelationshipKind = "romantic"
	RelEmployer RelationshipKind = "employer"
	RelEmployee RelationshipKind = "employee"

	// Neutral relationships.
	RelAcquaintance RelationshipKind = "acquaintance"
	RelBusiness     RelationshipKind = "business"
	RelFellowMember RelationshipKind = "fellow_member"

	// Negative relationships.
	RelRival    RelationshipKind = "rival"
	RelEnemy    RelationshipKind = "enemy"
	RelBetrayer RelationshipKind = "betrayer"
	RelHunts    RelationshipKind = "hunts"

	// Location and possession relationships.
	RelLivesAt RelationshipKind = "lives_at"
	RelWorksAt RelationshipKind = "works_at"
	RelOwns    RelationshipKind = "owns"
	RelCreated RelationshipKind = "created"

	// Organization relationships.
	RelLeads    RelationshipKind = "leads"
	RelMemberOf RelationshipKind = "member_of"
)

// Name returns a natural-language rendering of the kind, phrased from
// the source entity's point of view.
func (k RelationshipKind) Name() string {
	switch k {
	case RelFamily:
		return "family of"
	case RelFriend:
		return "friend of"
	case RelAlly:
		return "ally of"
	case RelMentor:
		return "mentor to"
	case RelStudent:
		return "student of"
	case RelRomantic:
		return "romantic with"
	case RelEmployer:
		return "employer of"
	case RelEmployee:
		return "works for"
	case RelAcquaintance:
		return "acquainted with"
	case RelBusiness:
		return "does business with"
	case RelFellowMember:
		return "fellow member with"
	case RelRival:
		return "rival of"
	case RelEnemy:
		return "enemy of"
	case RelBetrayer:
		return "betrayed"
	case RelHunts:
		return "hunting"
	case RelLivesAt:
		return "lives at"
	case RelWorksAt:
		return "works at"
	case RelOwns:
		return "owns"
	case RelCreated:
		return "created"
	case RelLeads:
		return "leads"
	case RelMemberOf:
		return "member of"
	}
	return string(k)
}

// IsPositive reports whether the kind implies goodwill.
func (k RelationshipKind) IsPositive() bool {
	switch k {
	case RelFamily, RelFriend, RelAlly, RelMentor, RelStudent, RelRomantic:
		return true
	}
	return false
}

// IsNegative reports whether the kind implies hostility.
func (k RelationshipKind) IsNegative() bool {
	switch k {
	case RelRival, RelEnemy, RelBetrayer, RelHunts:
		return true
	}
	return false
}

// Inverse returns the reciprocal kind, if one exists. Symmetric kinds
// return themselves; one-directional kinds like Owns have none. This is
// advisory metadata only; the graph never auto-inserts reciprocal edges.
func (k RelationshipKind) Inverse() (RelationshipKind, bool) {
	switch k {
	case RelMentor:
		return RelStudent, true
	case RelStudent:
		return RelMentor, true
	case RelEmployer:
		return RelEmployee, true
	case RelEmployee:
		return RelEmployer, true
	case RelLeads:
		return RelMemberOf, true
	case RelFamily, RelFriend, RelAlly, RelRomantic, RelAcquaintance,
		RelBusiness, RelFellowMember, RelRival, RelEnemy:
		return k, true
	}
	return "", false
}

// Relationship is a typed edge between two entities with a strength in
// [-1,1] where negative means hostile.
type Relationship struct {
	From        EntityID         `json:"from"`
	To          EntityID         `json:"to"`
	Kind        RelationshipKind `json:"kind"`
	Description string           `json:"description,omitempty"`
	Strength    float64          `json:"strength"`
	Established StoryMoment      `json:"established"`
	IsActive    bool             `json:"is_active"`
}

// NewRelationship creates an active edge with the kind's default
// strength: +0.5 for positive kinds, -0.5 for negative, 0 otherwise.
func NewRelationship(from, to EntityID, kind RelationshipKind, currentTurn uint32) *Relationship {
	strength := 0.0
	if kind.IsPositive() {
		strength = 0.5
	} else if kind.IsNegative() {
		strength = -0.5
	}
	return &Relationship{
		From:        from,
		To:          to,
		Kind:        kind,
		Strength:    strength,
		Established: MomentAt(currentTurn),
		IsActive:    true,
	}
}

// WithDescription sets the description.
func (r *Relationship) WithDescription(description string) *Relationship {
	r.Description = description
	return r
}

// WithStrength sets the strength, clamped to [-1,1].
func (r *Relationship) WithStrength(strength float64) *Relationship {
	r.Strength = clamp(strength, -1, 1)
	return r
}

// AdjustStrength shifts the strength by delta, clamped to [-1,1].
func (r *Relationship) AdjustStrength(delta float64) {
	r.Strength = clamp(r.Strength+delta, -1, 1)
}

// End deactivates the relationship. It stays queryable as history.
func (r *Relationship) End() {
	r.IsActive = false
}

// Involves reports whether the entity is either endpoint.
func (r *Relationship) Involves(id EntityID) bool {
	return r.From == id || r.To == id
}

// Other returns the counterpart entity, if id is an endpoint.
func (r *Relationship) Other(id EntityID) (EntityID, bool) {
	switch id {
	case r.From:
		return r.To, true
	case r.To:
		return r.From, true
	}
	return "", false
}

// RelationshipGraph holds all edges, active and ended.
type RelationshipGraph struct {
	relationships []*Relationship
}

// NewRelationshipGraph creates an empty graph.
func NewRelationshipGraph() *RelationshipGraph {
	return &RelationshipGraph{}
}

// Add creates and stores an edge with type-driven default strength.
func (g *RelationshipGraph) Add(from, to EntityID, kind RelationshipKind, currentTurn uint32) *Relationship {
	r := NewRelationship(from, to, kind, currentTurn)
	g.relationships = append(g.relationships, r)
	return r
}

// Insert stores an already-built edge.
func (g *RelationshipGraph) Insert(r *Relationship) {
	g.relationships = append(g.relationships, r)
}

// Involving returns active edges where the entity is either endpoint.
func (g *RelationshipGraph) Involving(id EntityID) []*Relationship {
	var out []*Relationship
	for _, r := range g.relationships {
		if r.IsActive && r.Involves(id) {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the active edge from one entity to another, or nil.
func (g *RelationshipGraph) Find(from, to EntityID) *Relationship {
	for _, r := range g.relationships {
		if r.IsActive && r.From == from && r.To == to {
			return r
		}
	}
	return nil
}

// All returns every edge, active or not, in insertion order.
func (g *RelationshipGraph) All() []*Relationship {
	return g.relationships
}

// Len returns the total number of edges ever added.
func (g *RelationshipGraph) Len() int {
	return len(g.relationships)
}

// restore rebuilds the graph from a deserialized edge list.
func (g *RelationshipGraph) restore(relationships []*Relationship) {
	g.relationships = relationships
}
