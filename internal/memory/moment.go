package memory

// StoryMoment is a point on the story timeline, measured in turns.
// The turn counter is the engine's only clock: recency and consequence
// expiry are both defined in terms of it.
type StoryMoment struct {
	Turn uint32 `json:"turn"`
}

// MomentAt returns the moment for the given turn.
func MomentAt(turn uint32) StoryMoment {
	return StoryMoment{Turn: turn}
}

// IsRecent reports whether this moment is within N turns of another,
// in either direction.
func (m StoryMoment) IsRecent(other StoryMoment, withinTurns uint32) bool {
	if m.Turn >= other.Turn {
		return m.Turn-other.Turn <= withinTurns
	}
	return other.Turn-m.Turn <= withinTurns
}
