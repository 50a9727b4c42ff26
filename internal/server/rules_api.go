package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/optimization"
)

type createEntityRequest struct {
	Name string `json:"name" binding:"required"`
}

type ruleRequest struct {
	EntityType  optimization.EntityType `json:"entity_type" binding:"required"`
	EntityID    string                  `json:"entity_id" binding:"required"`
	Provider    optimization.Provider   `json:"provider" binding:"required"`
	RuleType    optimization.RuleType   `json:"rule_type" binding:"required"`
	Conditions  json.RawMessage         `json:"conditions" binding:"required"`
	TargetModel string                  `json:"target_model" binding:"required"`
	Enabled     *bool                   `json:"enabled"`
}

// toRule decodes the request into a typed rule; the conditions payload is
// validated against the declared rule type here, at the boundary.
func (req *ruleRequest) toRule(id string) (*optimization.Rule, error) {
	conditions, err := optimization.DecodeConditions(req.RuleType, req.Conditions)
	if err != nil {
		return nil, err
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &optimization.Rule{
		ID:          id,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Provider:    req.Provider,
		RuleType:    req.RuleType,
		Conditions:  conditions,
		TargetModel: req.TargetModel,
		Enabled:     enabled,
	}, nil
}

func (s *Server) handleCreateOrganization(c *gin.Context) {
	var req createEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	org, err := s.store.Entities.CreateOrganization(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (s *Server) handleListOrganizations(c *gin.Context) {
	orgs, err := s.store.Entities.ListOrganizations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orgs)
}

func (s *Server) handleGetOrganization(c *gin.Context) {
	org, err := s.store.Entities.GetOrganization(c.Param("uuid"))
	if err != nil {
		notFoundOrInternal(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (s *Server) handleDeleteOrganization(c *gin.Context) {
	if err := s.store.Entities.DeleteOrganization(c.Param("uuid")); err != nil {
		notFoundOrInternal(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateTeam(c *gin.Context) {
	var req createEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	team, err := s.store.Entities.CreateTeam(c.Param("uuid"), req.Name)
	if err != nil {
		notFoundOrInternal(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (s *Server) handleListTeams(c *gin.Context) {
	teams, err := s.store.Entities.ListTeams(c.Param("uuid"))
	if err != nil {
		notFoundOrInternal(c, err)
		return
	}
	c.JSON(http.StatusOK, teams)
}

func (s *Server) handleDeleteTeam(c *gin.Context) {
	if err := s.store.Entities.DeleteTeam(c.Param("uuid")); err != nil {
		notFoundOrInternal(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCreateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule, err := req.toRule("")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Rules.Create(rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// handleListRules lists every rule visible to an organization: its own
// rules plus those of its teams.
func (s *Server) handleListRules(c *gin.Context) {
	orgUUID := c.Query("org")
	if orgUUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org query parameter is required"})
		return
	}
	rules, err := s.store.Rules.ListForOrganization(orgUUID)
	if err != nil {
		s.respondRuleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) handleGetRule(c *gin.Context) {
	rule, err := s.store.Rules.GetByUUID(c.Param("uuid"))
	if err != nil {
		s.respondRuleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule, err := req.toRule(c.Param("uuid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.Rules.Update(rule); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(c *gin.Context) {
	if err := s.store.Rules.Delete(c.Param("uuid")); err != nil {
		notFoundOrInternal(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
