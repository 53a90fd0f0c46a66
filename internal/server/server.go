// Package server exposes the story memory engine over HTTP for the
// narrative driver: session lifecycle, record endpoints, and the
// per-turn relevance check.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taleweave/taleweave/internal/config"
	"github.com/taleweave/taleweave/internal/export"
	"github.com/taleweave/taleweave/internal/extraction"
	"github.com/taleweave/taleweave/internal/llm"
	"github.com/taleweave/taleweave/internal/memory"
	"github.com/taleweave/taleweave/internal/relevance"
)

// Server wires the engine's components behind gin handlers.
type Server struct {
	Sessions  *SessionRegistry
	Matcher   *relevance.Matcher
	Extractor *extraction.Extractor

	decay            memory.DecayPolicy
	relevanceTimeout time.Duration
	memgraph         config.MemgraphConfig
}

// New builds a server from configuration and a classifier client.
func New(cfg *config.Config, classifier llm.Client) *Server {
	return &Server{
		Sessions:  NewSessionRegistry(),
		Matcher:   relevance.NewMatcher(classifier).WithPrompt(cfg.Prompts.Relevance),
		Extractor: extraction.NewExtractor(classifier).WithPrompt(cfg.Prompts.Extraction),
		decay: memory.DecayPolicy{
			EntityRate:      cfg.Decay.EntityRate,
			FactRate:        cfg.Decay.FactRate,
			ConsequenceRate: cfg.Decay.ConsequenceRate,
		},
		relevanceTimeout: time.Duration(cfg.Relevance.TimeoutSeconds) * time.Second,
		memgraph:         cfg.Memgraph,
	}
}

// SetupRouter registers all routes.
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/sessions", s.CreateSession)
	r.GET("/sessions/:id/status", s.Status)
	r.POST("/sessions/:id/turn", s.ProcessTurn)
	r.POST("/sessions/:id/entities", s.RecordEntity)
	r.POST("/sessions/:id/facts", s.RecordFact)
	r.POST("/sessions/:id/relationships", s.RecordRelationship)
	r.POST("/sessions/:id/consequences", s.RecordConsequence)
	r.GET("/sessions/:id/snapshot", s.Snapshot)
	r.POST("/sessions/:id/export", s.ExportGraph)

	return r
}

func (s *Server) session(c *gin.Context) *Session {
	sess := s.Sessions.Get(c.Param("id"))
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
	}
	return sess
}

// CreateSession opens a new campaign session.
func (s *Server) CreateSession(c *gin.Context) {
	sess := s.Sessions.Create(s.decay)
	c.JSON(http.StatusOK, gin.H{"session_id": sess.ID})
}

// Status reports the session's size counters.
func (s *Server) Status(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	sess.Do(func(mem *memory.StoryMemory) {
		c.JSON(http.StatusOK, gin.H{
			"current_turn":         mem.CurrentTurn(),
			"entities":             mem.EntityCount(),
			"facts":                mem.FactCount(),
			"relationships":        mem.RelationshipCount(),
			"pending_consequences": mem.PendingConsequenceCount(),
		})
	})
}

// TurnRequest is one player action plus where it happens.
type TurnRequest struct {
	PlayerInput string `json:"player_input"`
	Location    string `json:"location"`
	// Narration of the previous exchange; extracted into memory when set.
	Narration string `json:"narration,omitempty"`
}

// ProcessTurn advances the clock, folds the previous narration into
// memory, and runs the relevance check against the player's input. The
// classifier call is bounded: on timeout or failure the turn proceeds
// with no surfaced context rather than failing.
func (s *Server) ProcessTurn(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var resp gin.H
	sess.Do(func(mem *memory.StoryMemory) {
		mem.AdvanceTurn()

		if req.Narration != "" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), s.relevanceTimeout)
			records, err := s.Extractor.Extract(ctx, req.Narration)
			cancel()
			if err != nil {
				log.Printf("extraction skipped: %v", err)
			} else {
				s.Extractor.Apply(records, mem)
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), s.relevanceTimeout)
		defer cancel()
		result, err := s.Matcher.Check(ctx, req.PlayerInput, req.Location, mem)
		if err != nil {
			// Degrade to "nothing relevant": the turn must not fail on
			// the classifier.
			log.Printf("relevance check degraded to empty: %v", err)
			result = relevance.Result{}
		}

		triggered := make([]gin.H, 0, len(result.TriggeredConsequences))
		for _, id := range result.TriggeredConsequences {
			mem.Consequences.Trigger(id)
			if cons := mem.Consequences.Get(id); cons != nil {
				triggered = append(triggered, gin.H{
					"id":          cons.ID,
					"description": cons.ConsequenceDescription,
					"severity":    cons.Severity,
				})
			}
		}

		entities := make([]gin.H, 0, len(result.RelevantEntities))
		for _, id := range result.RelevantEntities {
			if e := mem.Entities.Get(id); e != nil {
				entities = append(entities, gin.H{"id": e.ID, "name": e.Name, "kind": e.Kind})
			}
		}

		resp = gin.H{
			"current_turn":      mem.CurrentTurn(),
			"triggered":         triggered,
			"relevant_entities": entities,
			"context":           mem.BuildContextForInput(req.PlayerInput),
			"explanation":       result.Explanation,
		}
	})

	c.JSON(http.StatusOK, resp)
}

// RecordEntity creates or touches an entity.
func (s *Server) RecordEntity(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}

	var req struct {
		Kind        string `json:"kind"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess.Do(func(mem *memory.StoryMemory) {
		id := mem.GetOrCreateEntity(memory.ParseEntityKind(req.Kind), req.Name)
		if req.Description != "" {
			if e := mem.Entities.Get(id); e != nil {
				e.WithDescription(req.Description)
			}
		}
		c.JSON(http.StatusOK, gin.H{"entity_id": id})
	})
}

// RecordFact stores a fact about a named entity.
func (s *Server) RecordFact(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}

	var req struct {
		Subject  string   `json:"subject"`
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Source   string   `json:"source"`
		Mentions []string `json:"mentions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Subject == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess.Do(func(mem *memory.StoryMemory) {
		subject := mem.GetOrCreateEntity(memory.KindNpc, req.Subject)
		var mentions []memory.EntityID
		for _, name := range req.Mentions {
			if id, ok := mem.FindEntityID(name); ok {
				mentions = append(mentions, id)
			}
		}
		id := mem.RecordFactWithMentions(subject, req.Content,
			memory.FactCategory(req.Category), memory.FactSource(req.Source), mentions)
		c.JSON(http.StatusOK, gin.H{"fact_id": id})
	})
}

// RecordRelationship adds an edge between two named entities.
func (s *Server) RecordRelationship(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}

	var req struct {
		From        string `json:"from"`
		To          string `json:"to"`
		Kind        string `json:"kind"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.From == "" || req.To == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess.Do(func(mem *memory.StoryMemory) {
		from := mem.GetOrCreateEntity(memory.KindNpc, req.From)
		to := mem.GetOrCreateEntity(memory.KindNpc, req.To)
		rel := mem.AddRelationship(from, to, memory.RelationshipKind(req.Kind))
		if req.Description != "" {
			rel.WithDescription(req.Description)
		}
		c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "strength": rel.Strength})
	})
}

// RecordConsequence stores a pending consequence.
func (s *Server) RecordConsequence(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}

	var req struct {
		Trigger        string `json:"trigger"`
		Effect         string `json:"effect"`
		Severity       string `json:"severity"`
		Subject        string `json:"subject"`
		ExpiresInTurns uint32 `json:"expires_in_turns"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Trigger == "" || req.Effect == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sess.Do(func(mem *memory.StoryMemory) {
		severity := memory.ConsequenceSeverity(req.Severity)
		var cons *memory.Consequence
		if req.ExpiresInTurns > 0 {
			cons = mem.CreateConsequenceWithExpiry(req.Trigger, req.Effect, severity, req.ExpiresInTurns)
		} else {
			cons = mem.CreateConsequence(req.Trigger, req.Effect, severity)
		}
		if req.Subject != "" {
			if id, ok := mem.FindEntityID(req.Subject); ok {
				cons.WithSubject(id)
			}
		}
		c.JSON(http.StatusOK, gin.H{"consequence_id": cons.ID})
	})
}

// Snapshot returns the session's full serialized memory.
func (s *Server) Snapshot(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	sess.Do(func(mem *memory.StoryMemory) {
		c.JSON(http.StatusOK, mem)
	})
}

// ExportGraph dumps the session's entity/relationship graph into the
// configured graph database.
func (s *Server) ExportGraph(c *gin.Context) {
	sess := s.session(c)
	if sess == nil {
		return
	}
	if s.memgraph.URI == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no graph database configured"})
		return
	}

	driver, err := export.NewMemgraphDriver(c.Request.Context(), s.memgraph.URI, s.memgraph.User, s.memgraph.Password)
	if err != nil {
		log.Printf("graph export connection failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to connect to graph database"})
		return
	}
	defer driver.Close(c.Request.Context())

	exporter := export.NewExporter(driver)
	var exportErr error
	sess.Do(func(mem *memory.StoryMemory) {
		exportErr = exporter.Export(c.Request.Context(), mem)
	})
	if exportErr != nil {
		log.Printf("graph export failed: %v", exportErr)
		c.JSON(http.StatusBadGateway, gin.H{"error": "export failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "exported"})
}
