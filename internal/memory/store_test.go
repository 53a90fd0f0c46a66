package memory

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreStartsEmpty(t *testing.T) {
	m := NewStoryMemory()
	assert.Equal(t, uint32(0), m.CurrentTurn())
	assert.Equal(t, 0, m.EntityCount())
	assert.Equal(t, 0, m.FactCount())
	assert.Equal(t, 0, m.RelationshipCount())
	assert.Equal(t, 0, m.PendingConsequenceCount())
}

func TestAdvanceTurnDecays(t *testing.T) {
	m := NewStoryMemory()
	id := m.CreateEntity(KindNpc, "Gandalf")
	m.RecordFact(id, "Gandalf is a wizard", CategoryCapability, SourceDmNarration)
	m.RecordFact(id, "Gandalf is at the inn", CategoryLocation, SourceDmNarration)
	m.CreateConsequence("trigger", "effect", SeverityCritical)

	m.AdvanceTurn()
	assert.Equal(t, uint32(1), m.CurrentTurn())

	// Flat entity decay.
	assert.InDelta(t, 0.98, m.Entities.Get(id).Importance, 1e-9)

	// Stable categories decay at half rate.
	facts := m.Facts.All()
	assert.InDelta(t, 0.99, facts[0].Importance, 1e-9)
	assert.InDelta(t, 0.98, facts[1].Importance, 1e-9)

	// Consequences decay slowest.
	assert.InDelta(t, 0.99, m.Consequences.All()[0].Importance, 1e-9)
}

func TestAdvanceTurnSweepsExpiry(t *testing.T) {
	m := NewStoryMemory()
	c := m.CreateConsequenceWithExpiry("Wolves are hunting in the forest", "Wolves attack", SeverityModerate, 5)

	for i := 0; i < 4; i++ {
		m.AdvanceTurn()
	}
	assert.Equal(t, 1, m.PendingConsequenceCount())

	m.AdvanceTurn()
	assert.Equal(t, 0, m.PendingConsequenceCount())
	assert.Equal(t, StatusExpired, m.Consequences.Get(c.ID).Status)
}

func TestRecordFactTouchesEveryoneInvolved(t *testing.T) {
	m := NewStoryMemory()
	gandalf := m.CreateEntity(KindNpc, "Gandalf")
	frodo := m.CreateEntity(KindNpc, "Frodo")

	m.Entities.Get(gandalf).Decay(0.5)
	m.Entities.Get(frodo).Decay(0.5)
	m.AdvanceTurn()
	m.AdvanceTurn()

	m.RecordFactWithMentions(gandalf, "Gandalf warns Frodo about the ring",
		CategoryEvent, SourceDmNarration, []EntityID{frodo})

	assert.Equal(t, uint32(2), m.Entities.Get(gandalf).LastSeen.Turn)
	assert.Equal(t, uint32(2), m.Entities.Get(frodo).LastSeen.Turn)
	assert.Greater(t, m.Entities.Get(gandalf).Importance, 0.5)
}

func TestBuildConsequencesForRelevance(t *testing.T) {
	m := NewStoryMemory()
	assert.Empty(t, m.BuildConsequencesForRelevance())

	minor := m.CreateConsequence("minor trigger", "minor effect", SeverityMinor)
	critical := m.CreateConsequence("critical trigger", "critical effect", SeverityCritical)

	text := m.BuildConsequencesForRelevance()

	// Importance-first ordering, numbered, with ids inline.
	criticalLine := "1. [" + string(critical.ID) + "] TRIGGER: critical trigger -> EFFECT: critical effect"
	minorLine := "2. [" + string(minor.ID) + "] TRIGGER: minor trigger -> EFFECT: minor effect"
	assert.True(t, strings.HasPrefix(text, criticalLine), text)
	assert.Contains(t, text, minorLine)

	// Deterministic for a given state.
	assert.Equal(t, text, m.BuildConsequencesForRelevance())
}

func TestBuildContextForInput(t *testing.T) {
	m := NewStoryMemory()
	gandalf := m.CreateEntity(KindNpc, "Gandalf")
	frodo := m.CreateEntity(KindNpc, "Frodo")
	m.RecordFact(gandalf, "Gandalf is a powerful wizard", CategoryCapability, SourceDmNarration)
	m.AddRelationship(gandalf, frodo, RelMentor)

	context := m.BuildContextForInput("I speak to Gandalf")
	assert.Contains(t, context, "Gandalf")
	assert.Contains(t, context, "powerful wizard")
	assert.Contains(t, context, "mentor to Frodo")

	assert.Empty(t, m.BuildContextForInput("I look at the sky"))
}

func TestBuildSummary(t *testing.T) {
	m := NewStoryMemory()
	gandalf := m.CreateEntity(KindNpc, "Gandalf")
	m.Entities.Get(gandalf).WithDescription("a wandering wizard")
	m.CreateEntity(KindLocation, "Moria")
	m.CreateEntity(KindQuest, "Destroy the Ring")
	m.RecordFact(gandalf, "Gandalf fell in Moria", CategoryEvent, SourceDmNarration)

	summary := m.BuildSummary()
	assert.Contains(t, summary, "### Key NPCs")
	assert.Contains(t, summary, "**Gandalf**: a wandering wizard")
	assert.Contains(t, summary, "### Notable Locations")
	assert.Contains(t, summary, "### Active Quests")
	assert.Contains(t, summary, "### Recent Events")
	assert.Contains(t, summary, "Gandalf fell in Moria")
}

func TestRoundTrip(t *testing.T) {
	m := NewStoryMemory()
	m.AdvanceTurn()
	m.AdvanceTurn()

	gandalf := m.CreateEntity(KindNpc, "Gandalf")
	m.Entities.Get(gandalf).WithAlias("Mithrandir").WithDescription("grey wizard")
	frodo := m.CreateEntity(KindNpc, "Frodo")

	superseded := m.RecordFact(gandalf, "Gandalf is at the inn", CategoryLocation, SourceDmNarration)
	m.RecordFactWithMentions(gandalf, "Gandalf left with Frodo", CategoryEvent, SourceNpcDialogue, []EntityID{frodo})
	m.Facts.Supersede(superseded)

	rel := m.AddRelationship(gandalf, frodo, RelMentor)
	rel.WithDescription("teaches him about the ring")
	endedRel := m.AddRelationship(frodo, gandalf, RelFriend)
	endedRel.End()

	triggered := m.CreateConsequence("Player enters Riverside", "Guards attempt arrest", SeverityMajor).
		WithSubject(gandalf).
		WithRelated(frodo).
		WithSource("cheated the baron")
	m.Consequences.Trigger(triggered.ID)
	m.CreateConsequenceWithExpiry("Wolves hunt at night", "Wolves attack", SeverityModerate, 5)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	restored := NewStoryMemory()
	require.NoError(t, json.Unmarshal(data, restored))

	// Everything must survive verbatim: the turn clock, superseded
	// facts, ended relationships, and terminal consequences.
	assert.Equal(t, m.CurrentTurn(), restored.CurrentTurn())
	assert.Equal(t, m.Entities.All(), restored.Entities.All())
	assert.Equal(t, m.Facts.All(), restored.Facts.All())
	assert.Equal(t, m.Relationships.All(), restored.Relationships.All())
	assert.Equal(t, m.Consequences.All(), restored.Consequences.All())

	// Indexes were rebuilt, not just the lists.
	id, ok := restored.FindEntityID("mithrandir")
	assert.True(t, ok)
	assert.Equal(t, gandalf, id)
	assert.Equal(t, StatusTriggered, restored.Consequences.Get(triggered.ID).Status)

	// And a second round-trip is byte-identical.
	data2, err := json.Marshal(restored)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))
}
