package export

import (
	"context"
	"fmt"

	"github.com/taleweave/taleweave/internal/memory"
)

const (
	saveEntityQuery = `
		MERGE (n:Entity {id: $id})
		SET n.kind = $kind,
			n.name = $name,
			n.description = $description,
			n.first_seen = $first_seen,
			n.last_seen = $last_seen,
			n.importance = $importance
		RETURN n.id AS id
	`

	saveRelationshipQuery = `
		MATCH (a:Entity {id: $from}), (b:Entity {id: $to})
		MERGE (a)-[r:RELATES {kind: $kind}]->(b)
		SET r.description = $description,
			r.strength = $strength,
			r.established = $established,
			r.is_active = $is_active
		RETURN r.kind AS kind
	`
)

// Exporter writes a story memory's graph into a graph database.
type Exporter struct {
	Driver GraphDriver
}

// NewExporter builds an exporter on the given driver.
func NewExporter(driver GraphDriver) *Exporter {
	return &Exporter{Driver: driver}
}

// Export upserts every entity and every relationship edge, history
// included; ended relationships go in flagged inactive.
func (e *Exporter) Export(ctx context.Context, mem *memory.StoryMemory) error {
	for _, entity := range mem.Entities.All() {
		params := map[string]interface{}{
			"id":          string(entity.ID),
			"kind":        string(entity.Kind),
			"name":        entity.Name,
			"description": entity.Description,
			"first_seen":  int64(entity.FirstSeen.Turn),
			"last_seen":   int64(entity.LastSeen.Turn),
			"importance":  entity.Importance,
		}
		if _, err := e.Driver.ExecuteQuery(ctx, saveEntityQuery, params); err != nil {
			return fmt.Errorf("failed to export entity %s: %w", entity.Name, err)
		}
	}

	for _, rel := range mem.Relationships.All() {
		params := map[string]interface{}{
			"from":        string(rel.From),
			"to":          string(rel.To),
			"kind":        string(rel.Kind),
			"description": rel.Description,
			"strength":    rel.Strength,
			"established": int64(rel.Established.Turn),
			"is_active":   rel.IsActive,
		}
		if _, err := e.Driver.ExecuteQuery(ctx, saveRelationshipQuery, params); err != nil {
			return fmt.Errorf("failed to export relationship %s->%s: %w", rel.From, rel.To, err)
		}
	}

	return nil
}
