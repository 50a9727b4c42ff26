package store

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/optimization"
)

// RuleRepository defines optimization rule data access.
//
// Both list queries return typed rules with conditions already decoded and
// validated; a record whose payload does not fit its declared rule type
// surfaces a MalformedConditionsError instead of being skipped.
type RuleRepository interface {
	// Create persists a new rule, assigning its UUID if empty.
	// The owning entity must exist with the declared entity type.
	Create(rule *optimization.Rule) error
	// GetByUUID retrieves a rule by UUID
	GetByUUID(uuid string) (optimization.Rule, error)
	// Update replaces the mutable fields of an existing rule
	Update(rule *optimization.Rule) error
	// Delete deletes a rule by UUID
	Delete(uuid string) error
	// ListForOrganization retrieves all rules visible to an organization:
	// the organization's own rules plus rules of every team under it.
	// Organization rules come first, then team rules, each oldest-first;
	// callers needing a different priority must reorder before matching.
	ListForOrganization(orgUUID string) ([]optimization.Rule, error)
	// ListEnabledForProvider retrieves the organization's enabled rules
	// restricted to one provider, oldest-first.
	ListEnabledForProvider(orgUUID string, provider optimization.Provider) ([]optimization.Rule, error)
}

type ruleRepositoryImpl struct {
	db *gorm.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(gormDB *gorm.DB) RuleRepository {
	return &ruleRepositoryImpl{db: gormDB}
}

func (r *ruleRepositoryImpl) Create(rule *optimization.Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := r.checkEntityExists(rule.EntityType, rule.EntityID); err != nil {
		return err
	}

	conditions, err := optimization.EncodeConditions(rule.Conditions)
	if err != nil {
		return err
	}

	record := RuleRecord{
		UUID:        rule.ID,
		EntityType:  rule.EntityType,
		EntityID:    rule.EntityID,
		Provider:    rule.Provider,
		RuleType:    rule.RuleType,
		Conditions:  string(conditions),
		TargetModel: rule.TargetModel,
		Enabled:     rule.Enabled,
	}
	return r.db.Create(&record).Error
}

func (r *ruleRepositoryImpl) GetByUUID(id string) (optimization.Rule, error) {
	var record RuleRecord
	if err := r.db.Where("uuid = ?", id).First(&record).Error; err != nil {
		return optimization.Rule{}, err
	}
	return record.Decode()
}

func (r *ruleRepositoryImpl) Update(rule *optimization.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := r.checkEntityExists(rule.EntityType, rule.EntityID); err != nil {
		return err
	}

	conditions, err := optimization.EncodeConditions(rule.Conditions)
	if err != nil {
		return err
	}

	result := r.db.Model(&RuleRecord{}).Where("uuid = ?", rule.ID).Updates(map[string]any{
		"entity_type":  rule.EntityType,
		"entity_id":    rule.EntityID,
		"provider":     rule.Provider,
		"rule_type":    rule.RuleType,
		"conditions":   string(conditions),
		"target_model": rule.TargetModel,
		"enabled":      rule.Enabled,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ruleRepositoryImpl) Delete(id string) error {
	result := r.db.Where("uuid = ?", id).Delete(&RuleRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ruleRepositoryImpl) ListForOrganization(orgUUID string) ([]optimization.Rule, error) {
	var org Organization
	if err := r.db.Where("uuid = ?", orgUUID).First(&org).Error; err != nil {
		return nil, err
	}

	var orgRecords []RuleRecord
	err := r.db.Where("entity_type = ? AND entity_id = ?", optimization.EntityOrganization, orgUUID).
		Order("created_at ASC, id ASC").
		Find(&orgRecords).Error
	if err != nil {
		return nil, err
	}

	var teamRecords []RuleRecord
	err = r.db.Where("entity_type = ? AND entity_id IN (?)", optimization.EntityTeam,
		r.db.Model(&Team{}).Select("uuid").Where("organization_id = ?", org.ID)).
		Order("created_at ASC, id ASC").
		Find(&teamRecords).Error
	if err != nil {
		return nil, err
	}

	return decodeRecords(append(orgRecords, teamRecords...))
}

func (r *ruleRepositoryImpl) ListEnabledForProvider(orgUUID string, provider optimization.Provider) ([]optimization.Rule, error) {
	var records []RuleRecord
	err := r.db.Where("entity_type = ? AND entity_id = ? AND provider = ? AND enabled = ?",
		optimization.EntityOrganization, orgUUID, provider, true).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return decodeRecords(records)
}

func (r *ruleRepositoryImpl) checkEntityExists(entityType optimization.EntityType, entityID string) error {
	var count int64
	var err error
	switch entityType {
	case optimization.EntityOrganization:
		err = r.db.Model(&Organization{}).Where("uuid = ?", entityID).Count(&count).Error
	case optimization.EntityTeam:
		err = r.db.Model(&Team{}).Where("uuid = ?", entityID).Count(&count).Error
	default:
		return fmt.Errorf("invalid entity type: %q", entityType)
	}
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s %q does not exist", entityType, entityID)
	}
	return nil
}

func decodeRecords(records []RuleRecord) ([]optimization.Rule, error) {
	rules := make([]optimization.Rule, 0, len(records))
	for i := range records {
		rule, err := records[i].Decode()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
