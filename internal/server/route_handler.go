package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/optimization"
)

// RouteDecision is the response of the routing decision endpoint
type RouteDecision struct {
	TargetModel string `json:"target_model"`
	Matched     bool   `json:"matched"`
	TokenCount  int    `json:"token_count"`
	HasTools    bool   `json:"has_tools"`
}

// handleRoute decides which model a request should route to.
//
// The body is the raw LLM request JSON; the organization and provider come
// from query parameters. scope=org evaluates against every rule visible to
// the organization (its own plus its teams'); the default scope uses the
// organization's enabled rules for the given provider. When no rule
// matches, the decision falls back to the provider's configured default
// model with matched=false.
func (s *Server) handleRoute(c *gin.Context) {
	orgUUID := c.Query("org")
	if orgUUID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "org query parameter is required"})
		return
	}
	provider := optimization.Provider(c.Query("provider"))
	if !provider.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var rules []optimization.Rule
	if c.Query("scope") == "org" {
		rules, err = s.store.Rules.ListForOrganization(orgUUID)
	} else {
		rules, err = s.store.Rules.ListEnabledForProvider(orgUUID, provider)
	}
	if err != nil {
		s.respondRuleError(c, err)
		return
	}

	reqCtx := optimization.ExtractContext(body)
	target, matched, err := optimization.Match(rules, reqCtx)
	if err != nil {
		s.respondRuleError(c, err)
		return
	}

	decision := RouteDecision{
		TargetModel: target,
		Matched:     matched,
		TokenCount:  reqCtx.TokenCount,
		HasTools:    reqCtx.HasTools,
	}
	if !matched {
		decision.TargetModel = s.defaultModel(provider)
	}

	logrus.WithFields(logrus.Fields{
		"org":      orgUUID,
		"provider": provider,
		"matched":  matched,
		"target":   decision.TargetModel,
		"tokens":   reqCtx.TokenCount,
	}).Debug("Routing decision")

	c.JSON(http.StatusOK, decision)
}

// respondRuleError distinguishes rule-data integrity failures from lookup
// failures. Malformed rule data is a configuration bug that needs operator
// attention, so it surfaces as 422 instead of being masked as an ordinary
// unmatched request.
func (s *Server) respondRuleError(c *gin.Context, err error) {
	var malformed *optimization.MalformedConditionsError
	switch {
	case errors.As(err, &malformed), errors.Is(err, optimization.ErrUnknownRuleType):
		logrus.WithError(err).Error("Rule data integrity failure")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "organization not found"})
	default:
		logrus.WithError(err).Error("Rule lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
