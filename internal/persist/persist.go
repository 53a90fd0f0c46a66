// Package persist saves and loads campaign snapshots as JSON. The file
// embeds the full story memory state, history included: superseded facts
// and terminal consequences round-trip exactly, since they are audit
// trail, not garbage.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/taleweave/taleweave/internal/memory"
)

// saveVersion guards against loading snapshots written by an
// incompatible engine.
const saveVersion = 1

// ErrVersionMismatch reports an incompatible save file version.
type ErrVersionMismatch struct {
	Expected uint32
	Found    uint32
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("save version mismatch: expected %d, found %d", e.Expected, e.Found)
}

// Metadata describes the campaign for save listings.
type Metadata struct {
	CharacterName string `json:"character_name"`
	CampaignName  string `json:"campaign_name"`
	Location      string `json:"location"`
}

// SavedCampaign is the on-disk shape: version, stamp, metadata, and the
// complete story memory.
type SavedCampaign struct {
	Version  uint32              `json:"version"`
	SavedAt  time.Time           `json:"saved_at"`
	Metadata Metadata            `json:"metadata"`
	Memory   *memory.StoryMemory `json:"memory"`
}

// NewSavedCampaign wraps a memory snapshot taken now.
func NewSavedCampaign(mem *memory.StoryMemory, meta Metadata) *SavedCampaign {
	return &SavedCampaign{
		Version:  saveVersion,
		SavedAt:  time.Now().UTC(),
		Metadata: meta,
		Memory:   mem,
	}
}

// Save writes the campaign to path as indented JSON.
func (s *SavedCampaign) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize campaign: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write save file '%s': %w", path, err)
	}
	return nil
}

// Load reads a campaign from path, rejecting incompatible versions.
func Load(path string) (*SavedCampaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read save file '%s': %w", path, err)
	}
	saved := &SavedCampaign{Memory: memory.NewStoryMemory()}
	if err := json.Unmarshal(data, saved); err != nil {
		return nil, fmt.Errorf("failed to parse save file '%s': %w", path, err)
	}
	if saved.Version != saveVersion {
		return nil, &ErrVersionMismatch{Expected: saveVersion, Found: saved.Version}
	}
	return saved, nil
}
