package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStrengths(t *testing.T) {
	from := NewEntityID()
	to := NewEntityID()

	friend := NewRelationship(from, to, RelFriend, 0)
	assert.Equal(t, 0.5, friend.Strength)

	enemy := NewRelationship(from, to, RelEnemy, 0)
	assert.Equal(t, -0.5, enemy.Strength)

	business := NewRelationship(from, to, RelBusiness, 0)
	assert.Equal(t, 0.0, business.Strength)
}

func TestRelationshipInverse(t *testing.T) {
	inv, ok := RelMentor.Inverse()
	require.True(t, ok)
	assert.Equal(t, RelStudent, inv)

	inv, ok = RelFriend.Inverse()
	require.True(t, ok)
	assert.Equal(t, RelFriend, inv)

	inv, ok = RelLeads.Inverse()
	require.True(t, ok)
	assert.Equal(t, RelMemberOf, inv)

	_, ok = RelOwns.Inverse()
	assert.False(t, ok)

	_, ok = RelHunts.Inverse()
	assert.False(t, ok)
}

func TestAdjustStrengthClamps(t *testing.T) {
	r := NewRelationship(NewEntityID(), NewEntityID(), RelFriend, 0)

	r.AdjustStrength(5)
	assert.Equal(t, 1.0, r.Strength)

	r.AdjustStrength(-10)
	assert.Equal(t, -1.0, r.Strength)
}

func TestEndKeepsHistory(t *testing.T) {
	g := NewRelationshipGraph()
	a := NewEntityID()
	b := NewEntityID()

	r := g.Add(a, b, RelAlly, 3)
	assert.True(t, r.IsActive)
	assert.Len(t, g.Involving(a), 1)

	r.End()
	assert.False(t, r.IsActive)
	// Active queries skip it, but the edge is still on record.
	assert.Empty(t, g.Involving(a))
	assert.Equal(t, 1, g.Len())
}

func TestInvolvingAndOther(t *testing.T) {
	g := NewRelationshipGraph()
	gandalf := NewEntityID()
	frodo := NewEntityID()
	stranger := NewEntityID()

	g.Add(gandalf, frodo, RelMentor, 0)

	rels := g.Involving(frodo)
	require.Len(t, rels, 1)

	other, ok := rels[0].Other(frodo)
	require.True(t, ok)
	assert.Equal(t, gandalf, other)

	_, ok = rels[0].Other(stranger)
	assert.False(t, ok)
	assert.False(t, rels[0].Involves(stranger))
}

func TestFindRelationship(t *testing.T) {
	g := NewRelationshipGraph()
	a := NewEntityID()
	b := NewEntityID()

	g.Add(a, b, RelEmployer, 0)

	assert.NotNil(t, g.Find(a, b))
	// Direction matters; no reciprocal edge is auto-inserted.
	assert.Nil(t, g.Find(b, a))
}
