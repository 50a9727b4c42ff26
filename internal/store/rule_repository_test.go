package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/optimization"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "rules.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newLengthRule(entityType optimization.EntityType, entityID, target string, maxLength int) *optimization.Rule {
	return &optimization.Rule{
		EntityType:  entityType,
		EntityID:    entityID,
		Provider:    optimization.ProviderOpenAI,
		RuleType:    optimization.RuleTypeContentLength,
		Conditions:  optimization.ContentLengthConditions{MaxLength: maxLength},
		TargetModel: target,
		Enabled:     true,
	}
}

func TestRuleRepository_CRUD(t *testing.T) {
	s := newTestStore(t)

	org, err := s.Entities.CreateOrganization("acme")
	require.NoError(t, err)

	rule := newLengthRule(optimization.EntityOrganization, org.UUID, "small-model", 100)
	require.NoError(t, s.Rules.Create(rule))
	require.NotEmpty(t, rule.ID)

	got, err := s.Rules.GetByUUID(rule.ID)
	require.NoError(t, err)
	require.Equal(t, *rule, got)

	got.TargetModel = "smaller-model"
	got.Conditions = optimization.ContentLengthConditions{MaxLength: 50}
	got.Enabled = false
	require.NoError(t, s.Rules.Update(&got))

	updated, err := s.Rules.GetByUUID(rule.ID)
	require.NoError(t, err)
	require.Equal(t, "smaller-model", updated.TargetModel)
	require.Equal(t, optimization.ContentLengthConditions{MaxLength: 50}, updated.Conditions)
	require.False(t, updated.Enabled)

	require.NoError(t, s.Rules.Delete(rule.ID))
	_, err = s.Rules.GetByUUID(rule.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.ErrorIs(t, s.Rules.Delete(rule.ID), gorm.ErrRecordNotFound)
}

func TestRuleRepository_CreateRejectsMissingEntity(t *testing.T) {
	s := newTestStore(t)

	rule := newLengthRule(optimization.EntityOrganization, "no-such-org", "small-model", 100)
	require.Error(t, s.Rules.Create(rule))

	teamRule := newLengthRule(optimization.EntityTeam, "no-such-team", "small-model", 100)
	require.Error(t, s.Rules.Create(teamRule))
}

func TestRuleRepository_CreateRejectsInvalidRule(t *testing.T) {
	s := newTestStore(t)
	org, err := s.Entities.CreateOrganization("acme")
	require.NoError(t, err)

	bad := newLengthRule(optimization.EntityOrganization, org.UUID, "some-model", 100)
	bad.RuleType = optimization.RuleType("sentiment")
	require.ErrorIs(t, s.Rules.Create(bad), optimization.ErrUnknownRuleType)

	mismatched := newLengthRule(optimization.EntityOrganization, org.UUID, "some-model", 100)
	mismatched.Conditions = optimization.ToolPresenceConditions{HasTools: true}
	var malformed *optimization.MalformedConditionsError
	require.ErrorAs(t, s.Rules.Create(mismatched), &malformed)
}

func TestRuleRepository_ListForOrganization(t *testing.T) {
	s := newTestStore(t)

	org, err := s.Entities.CreateOrganization("acme")
	require.NoError(t, err)
	team, err := s.Entities.CreateTeam(org.UUID, "platform")
	require.NoError(t, err)
	otherOrg, err := s.Entities.CreateOrganization("globex")
	require.NoError(t, err)
	otherTeam, err := s.Entities.CreateTeam(otherOrg.UUID, "research")
	require.NoError(t, err)

	orgRule := newLengthRule(optimization.EntityOrganization, org.UUID, "org-model", 100)
	require.NoError(t, s.Rules.Create(orgRule))
	teamRule := newLengthRule(optimization.EntityTeam, team.UUID, "team-model", 200)
	require.NoError(t, s.Rules.Create(teamRule))

	// Rules of other organizations and their teams stay invisible.
	require.NoError(t, s.Rules.Create(newLengthRule(optimization.EntityOrganization, otherOrg.UUID, "other-model", 10)))
	require.NoError(t, s.Rules.Create(newLengthRule(optimization.EntityTeam, otherTeam.UUID, "other-team-model", 10)))

	rules, err := s.Rules.ListForOrganization(org.UUID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "org-model", rules[0].TargetModel)
	require.Equal(t, "team-model", rules[1].TargetModel)

	_, err = s.Rules.ListForOrganization("no-such-org")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRuleRepository_ListEnabledForProvider(t *testing.T) {
	s := newTestStore(t)

	org, err := s.Entities.CreateOrganization("acme")
	require.NoError(t, err)
	team, err := s.Entities.CreateTeam(org.UUID, "platform")
	require.NoError(t, err)

	enabled := newLengthRule(optimization.EntityOrganization, org.UUID, "openai-model", 100)
	require.NoError(t, s.Rules.Create(enabled))

	disabled := newLengthRule(optimization.EntityOrganization, org.UUID, "disabled-model", 100)
	disabled.Enabled = false
	require.NoError(t, s.Rules.Create(disabled))

	otherProvider := newLengthRule(optimization.EntityOrganization, org.UUID, "claude-model", 100)
	otherProvider.Provider = optimization.ProviderAnthropic
	require.NoError(t, s.Rules.Create(otherProvider))

	// Team rules are org-visible but not part of the provider query,
	// which is organization-level only.
	require.NoError(t, s.Rules.Create(newLengthRule(optimization.EntityTeam, team.UUID, "team-model", 100)))

	rules, err := s.Rules.ListEnabledForProvider(org.UUID, optimization.ProviderOpenAI)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, "openai-model", rules[0].TargetModel)
	require.True(t, rules[0].Enabled)
}

func TestRuleRepository_MalformedStoredConditionsSurface(t *testing.T) {
	s := newTestStore(t)

	org, err := s.Entities.CreateOrganization("acme")
	require.NoError(t, err)

	// Corrupt record written behind the repository's back: a
	// content_length rule carrying a tool_presence payload.
	record := RuleRecord{
		UUID:        "corrupt",
		EntityType:  optimization.EntityOrganization,
		EntityID:    org.UUID,
		Provider:    optimization.ProviderOpenAI,
		RuleType:    optimization.RuleTypeContentLength,
		Conditions:  `{"hasTools":true}`,
		TargetModel: "some-model",
		Enabled:     true,
	}
	require.NoError(t, s.db.Create(&record).Error)

	var malformed *optimization.MalformedConditionsError

	_, err = s.Rules.GetByUUID("corrupt")
	require.ErrorAs(t, err, &malformed)

	_, err = s.Rules.ListForOrganization(org.UUID)
	require.ErrorAs(t, err, &malformed)

	_, err = s.Rules.ListEnabledForProvider(org.UUID, optimization.ProviderOpenAI)
	require.ErrorAs(t, err, &malformed)
}

func TestEntityRepository_Teams(t *testing.T) {
	s := newTestStore(t)

	org, err := s.Entities.CreateOrganization("acme")
	require.NoError(t, err)

	team, err := s.Entities.CreateTeam(org.UUID, "platform")
	require.NoError(t, err)
	require.Equal(t, org.ID, team.OrganizationID)

	teams, err := s.Entities.ListTeams(org.UUID)
	require.NoError(t, err)
	require.Len(t, teams, 1)

	got, err := s.Entities.GetTeam(team.UUID)
	require.NoError(t, err)
	require.NotNil(t, got.Organization)
	require.Equal(t, "acme", got.Organization.Name)

	require.NoError(t, s.Entities.DeleteTeam(team.UUID))
	teams, err = s.Entities.ListTeams(org.UUID)
	require.NoError(t, err)
	require.Empty(t, teams)

	_, err = s.Entities.CreateTeam("no-such-org", "ghost")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEntityRepository_DeleteOrganizationCascades(t *testing.T) {
	s := newTestStore(t)

	org, err := s.Entities.CreateOrganization("acme")
	require.NoError(t, err)
	_, err = s.Entities.CreateTeam(org.UUID, "platform")
	require.NoError(t, err)

	require.NoError(t, s.Entities.DeleteOrganization(org.UUID))

	_, err = s.Entities.GetOrganization(org.UUID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, s.db.Model(&Team{}).Count(&count).Error)
	require.Zero(t, count)
}
