package memory

import (
	"strings"

	"github.com/google/uuid"
)

// EntityID is the opaque identifier for an entity. IDs are random UUIDs
// minted at creation time, so they never collide across a long session.
type EntityID string

// NewEntityID mints a fresh entity ID.
func NewEntityID() EntityID {
	return EntityID(uuid.New().String())
}

// EntityKind classifies what an entity is.
type EntityKind string

const (
	KindNpc          EntityKind = "npc"
	KindLocation     EntityKind = "location"
	KindItem         EntityKind = "item"
	KindQuest        EntityKind = "quest"
	KindOrganization EntityKind = "organization"
	KindEvent        EntityKind = "event"
	KindCreature     EntityKind = "creature"
)

// ParseEntityKind maps a free-form kind string to a kind. Unrecognized
// input buckets to npc rather than being rejected; kind strings arrive
// from model output and HTTP clients, and a wrong bucket beats a
// dropped record.
func ParseEntityKind(s string) EntityKind {
	switch k := EntityKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindNpc, KindLocation, KindItem, KindQuest,
		KindOrganization, KindEvent, KindCreature:
		return k
	}
	return KindNpc
}

// Name returns the display name for the kind.
func (k EntityKind) Name() string {
	switch k {
	case KindNpc:
		return "NPC"
	case KindLocation:
		return "Location"
	case KindItem:
		return "Item"
	case KindQuest:
		return "Quest"
	case KindOrganization:
		return "Organization"
	case KindEvent:
		return "Event"
	case KindCreature:
		return "Creature"
	}
	return string(k)
}

// Entity is anything tracked for narrative continuity: an NPC, a place,
// an item, a quest, and so on. Identity is immutable once created.
type Entity struct {
	ID          EntityID    `json:"id"`
	Kind        EntityKind  `json:"kind"`
	Name        string      `json:"name"`
	Aliases     []string    `json:"aliases,omitempty"`
	Description string      `json:"description,omitempty"`
	FirstSeen   StoryMoment `json:"first_seen"`
	LastSeen    StoryMoment `json:"last_seen"`
	Importance  float64     `json:"importance"`
}

// Entity importance starts at the ceiling, gets a boost every time the
// entity is mentioned, and decays toward a floor so long-absent entities
// fade from ranking without ever disappearing.
const (
	entityImportanceFloor = 0.1
	entityTouchBoost      = 0.2
)

// NewEntity creates an entity first seen at the given turn.
func NewEntity(kind EntityKind, name string, currentTurn uint32) *Entity {
	moment := MomentAt(currentTurn)
	return &Entity{
		ID:         NewEntityID(),
		Kind:       kind,
		Name:       name,
		FirstSeen:  moment,
		LastSeen:   moment,
		Importance: 1.0,
	}
}

// WithAlias adds an alternative name.
func (e *Entity) WithAlias(alias string) *Entity {
	e.Aliases = append(e.Aliases, alias)
	return e
}

// WithDescription sets the description.
func (e *Entity) WithDescription(description string) *Entity {
	e.Description = description
	return e
}

// MatchesName reports whether the query matches the name or any alias,
// case-insensitively.
func (e *Entity) MatchesName(query string) bool {
	q := strings.ToLower(query)
	if strings.ToLower(e.Name) == q {
		return true
	}
	for _, a := range e.Aliases {
		if strings.ToLower(a) == q {
			return true
		}
	}
	return false
}

// MatchesPartial reports whether the query is a case-insensitive substring
// of the name or any alias. Used for fuzzy lookup of free-text mentions.
func (e *Entity) MatchesPartial(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(e.Name), q) {
		return true
	}
	for _, a := range e.Aliases {
		if strings.Contains(strings.ToLower(a), q) {
			return true
		}
	}
	return false
}

// Touch records a mention at the given turn and boosts importance.
func (e *Entity) Touch(currentTurn uint32) {
	e.LastSeen = MomentAt(currentTurn)
	e.Importance = min(e.Importance+entityTouchBoost, 1.0)
}

// Decay lowers importance by rate, never below the floor.
func (e *Entity) Decay(rate float64) {
	e.Importance = max(e.Importance-rate, entityImportanceFloor)
}

// EntityIndex owns all entities and their name lookup tables.
// Insertion order is preserved so fuzzy lookups and serialization are
// deterministic.
type EntityIndex struct {
	entities map[EntityID]*Entity
	byName   map[string]EntityID
	order    []EntityID
}

// NewEntityIndex creates an empty index.
func NewEntityIndex() *EntityIndex {
	return &EntityIndex{
		entities: make(map[EntityID]*Entity),
		byName:   make(map[string]EntityID),
	}
}

// Add indexes an existing entity under its name and aliases.
func (x *EntityIndex) Add(e *Entity) EntityID {
	x.byName[strings.ToLower(e.Name)] = e.ID
	for _, alias := range e.Aliases {
		x.byName[strings.ToLower(alias)] = e.ID
	}
	if _, seen := x.entities[e.ID]; !seen {
		x.order = append(x.order, e.ID)
	}
	x.entities[e.ID] = e
	return e.ID
}

// Create mints and indexes a new entity. No deduplication happens here;
// callers that want uniqueness should check FindByName first.
func (x *EntityIndex) Create(kind EntityKind, name string, currentTurn uint32) EntityID {
	return x.Add(NewEntity(kind, name, currentTurn))
}

// Get returns the entity with the given ID, or nil.
func (x *EntityIndex) Get(id EntityID) *Entity {
	return x.entities[id]
}

// FindByName returns the entity whose name or alias exactly matches the
// query, case-insensitively, or nil.
func (x *EntityIndex) FindByName(query string) *Entity {
	if id, ok := x.byName[strings.ToLower(query)]; ok {
		return x.entities[id]
	}
	return nil
}

// FindEntityID resolves a free-text name to an ID. Exact name/alias
// matches win; otherwise the first entity (in creation order) with a
// substring match is returned. The empty ID means no match. Blank
// queries never match: classifier output reaches this lookup, and an
// empty string must not resolve to an arbitrary entity.
func (x *EntityIndex) FindEntityID(query string) (EntityID, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}
	if id, ok := x.byName[strings.ToLower(query)]; ok {
		return id, true
	}
	for _, id := range x.order {
		if x.entities[id].MatchesPartial(query) {
			return id, true
		}
	}
	return "", false
}

// GetOrCreate returns an existing entity matched by name, touching it,
// or creates a new one.
func (x *EntityIndex) GetOrCreate(kind EntityKind, name string, currentTurn uint32) EntityID {
	if e := x.FindByName(name); e != nil {
		e.Touch(currentTurn)
		return e.ID
	}
	return x.Create(kind, name, currentTurn)
}

// Touch marks an entity as mentioned at the given turn. Unknown IDs are
// ignored.
func (x *EntityIndex) Touch(id EntityID, currentTurn uint32) {
	if e := x.entities[id]; e != nil {
		e.Touch(currentTurn)
	}
}

// OfKind returns all entities of a kind, in creation order.
func (x *EntityIndex) OfKind(kind EntityKind) []*Entity {
	var out []*Entity
	for _, id := range x.order {
		if e := x.entities[id]; e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// ByImportance returns all entities sorted by descending importance,
// ties broken by creation order.
func (x *EntityIndex) ByImportance() []*Entity {
	out := x.All()
	stableSortByImportance(out, func(e *Entity) float64 { return e.Importance })
	return out
}

// All returns every entity in creation order.
func (x *EntityIndex) All() []*Entity {
	out := make([]*Entity, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.entities[id])
	}
	return out
}

// Len returns the number of entities.
func (x *EntityIndex) Len() int {
	return len(x.entities)
}

// DecayAll applies a flat decay to every entity.
func (x *EntityIndex) DecayAll(rate float64) {
	for _, e := range x.entities {
		e.Decay(rate)
	}
}

// ExtractMentions finds entity names mentioned in free text. Names match
// at word boundaries only, so "Thor" matches in "I ask Thor" but not in
// "I ask Thorin". Multi-word names match as phrases.
func (x *EntityIndex) ExtractMentions(text string) []EntityID {
	lower := strings.ToLower(text)
	var found []EntityID
	seen := make(map[EntityID]bool)
	for _, id := range x.order {
		e := x.entities[id]
		names := append([]string{e.Name}, e.Aliases...)
		for _, name := range names {
			if containsWord(lower, strings.ToLower(name)) && !seen[id] {
				seen[id] = true
				found = append(found, id)
				break
			}
		}
	}
	return found
}

// containsWord reports whether text contains word at word boundaries.
// A boundary is the start/end of string or a non-alphanumeric byte.
func containsWord(text, word string) bool {
	if word == "" || len(word) > len(text) {
		return false
	}
	for i := 0; i+len(word) <= len(text); i++ {
		if text[i:i+len(word)] != word {
			continue
		}
		leftOK := i == 0 || !isAlphanumeric(text[i-1])
		rightOK := i+len(word) == len(text) || !isAlphanumeric(text[i+len(word)])
		if leftOK && rightOK {
			return true
		}
	}
	return false
}

func isAlphanumeric(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// restore rebuilds the index from a deserialized entity list.
func (x *EntityIndex) restore(entities []*Entity) {
	x.entities = make(map[EntityID]*Entity, len(entities))
	x.byName = make(map[string]EntityID, len(entities))
	x.order = x.order[:0]
	for _, e := range entities {
		x.Add(e)
	}
}
