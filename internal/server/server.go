// Package server exposes the research pipeline over HTTP. Research runs
// are asynchronous: submission returns a session id immediately and the
// remaining endpoints poll the session's progress and outputs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/cartographer/internal/core/model"
	"github.com/agenthands/cartographer/internal/core/workflow"
)

type Server struct {
	machine  *workflow.Machine
	registry *Registry
	log      *zap.Logger
}

func New(machine *workflow.Machine, registry *Registry, log *zap.Logger) *Server {
	return &Server{machine: machine, registry: registry, log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.Health)

	api := r.Group("/api")
	{
		api.POST("/research", s.StartResearch)
		api.POST("/research/:id/resume", s.ResumeResearch)
		api.GET("/research/:id/status", s.Status)
		api.GET("/research/:id/graph", s.Graph)
		api.GET("/research/:id/graph/stats", s.GraphStats)
		api.GET("/research/:id/report", s.Report)
	}
	return r
}

// Run blocks serving HTTP on the given port.
func (s *Server) Run(port int) error {
	return s.SetupRouter().Run(fmt.Sprintf(":%d", port))
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startRequest struct {
	Topic string `json:"topic" binding:"required"`
}

// StartResearch validates the topic, registers a session and runs the
// workflow in the background.
func (s *Server) StartResearch(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be JSON with a topic field"})
		return
	}

	state, err := s.machine.Start(req.Topic)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.registry.Update(state)
	s.runAsync(state.SessionID, func(ctx context.Context) (model.WorkflowState, error) {
		return s.machine.Run(ctx, state)
	})

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": state.SessionID,
		"phase":      state.Phase,
		"status":     state.Status,
	})
}

// ResumeResearch restarts a session from its latest checkpoint.
func (s *Server) ResumeResearch(c *gin.Context) {
	id := c.Param("id")
	s.runAsync(id, func(ctx context.Context) (model.WorkflowState, error) {
		return s.machine.Resume(ctx, id)
	})
	c.JSON(http.StatusAccepted, gin.H{"session_id": id, "status": model.StatusRunning})
}

// runAsync runs the workflow off the request goroutine. The final state is
// pushed to the registry here as well, in case no observer is wired.
func (s *Server) runAsync(sessionID string, run func(context.Context) (model.WorkflowState, error)) {
	go func() {
		final, err := run(context.Background())
		if err != nil {
			s.log.Error("session ended with error",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		if final.SessionID != "" {
			s.registry.Update(final)
		}
	}()
}

func (s *Server) Status(c *gin.Context) {
	state, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":     state.SessionID,
		"topic":          state.Topic,
		"phase":          state.Phase,
		"iteration":      state.Iteration,
		"max_iterations": state.MaxIterations,
		"status":         state.Status,
		"status_message": state.StatusMessage,
		"warnings":       state.Warnings,
		"documents":      len(state.Documents),
	})
}

// Graph serves the knowledge graph in the canonical export shape.
func (s *Server) Graph(c *gin.Context) {
	state, ok := s.session(c)
	if !ok {
		return
	}
	data, err := state.Graph.Marshal()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) GraphStats(c *gin.Context) {
	state, ok := s.session(c)
	if !ok {
		return
	}
	resolved := 0
	for _, conflict := range state.Graph.Conflicts {
		if conflict.Verdict != "" {
			resolved++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"entities":           len(state.Graph.Entities),
		"relationships":      len(state.Graph.Relationships),
		"conflicts":          len(state.Graph.Conflicts),
		"resolved_conflicts": resolved,
		"documents":          len(state.Documents),
	})
}

// Report serves the final narrative once the session reaches a terminal
// phase. Polling before then gets a 409 with the current phase.
func (s *Server) Report(c *gin.Context) {
	state, ok := s.session(c)
	if !ok {
		return
	}
	if !state.Phase.Terminal() {
		c.JSON(http.StatusConflict, gin.H{
			"error": "session still running",
			"phase": state.Phase,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":    state.SessionID,
		"topic":         state.Topic,
		"status":        state.Status,
		"report":        state.Report,
		"consensus":     state.Consensus,
		"battlegrounds": state.Battlegrounds,
		"warnings":      state.Warnings,
	})
}

func (s *Server) session(c *gin.Context) (model.WorkflowState, bool) {
	id := c.Param("id")
	state, ok := s.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session id"})
		return model.WorkflowState{}, false
	}
	return state, true
}
