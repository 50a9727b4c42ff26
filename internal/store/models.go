package store

import (
	"time"

	"github.com/modelgate/modelgate/internal/optimization"
)

// Organization represents a customer organization
type Organization struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UUID      string    `gorm:"uniqueIndex;column:uuid;type:varchar(36);not null" json:"uuid"`
	Name      string    `gorm:"uniqueIndex;column:name;type:varchar(255);not null" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relations
	Teams []Team `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE" json:"teams,omitempty"`
}

// TableName specifies the table name for GORM
func (Organization) TableName() string {
	return "organizations"
}

// Team represents a team under an organization
type Team struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UUID           string    `gorm:"uniqueIndex;column:uuid;type:varchar(36);not null" json:"uuid"`
	OrganizationID int64     `gorm:"column:organization_id;not null;index:idx_teams_organization_id" json:"organization_id"`
	Name           string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relations
	Organization *Organization `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE" json:"organization,omitempty"`
}

// TableName specifies the table name for GORM
func (Team) TableName() string {
	return "teams"
}

// RuleRecord is the persisted form of an optimization rule. Conditions are
// stored as a JSON text column and decoded into the typed payload when the
// record leaves the store; a record whose payload does not fit its rule
// type fails to decode instead of silently participating in matching.
type RuleRecord struct {
	ID          int64                   `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	UUID        string                  `gorm:"uniqueIndex;column:uuid;type:varchar(36);not null" json:"uuid"`
	EntityType  optimization.EntityType `gorm:"column:entity_type;type:varchar(20);not null;index:idx_rules_entity" json:"entity_type"`
	EntityID    string                  `gorm:"column:entity_id;type:varchar(36);not null;index:idx_rules_entity" json:"entity_id"`
	Provider    optimization.Provider   `gorm:"column:provider;type:varchar(32);not null;index:idx_rules_provider" json:"provider"`
	RuleType    optimization.RuleType   `gorm:"column:rule_type;type:varchar(32);not null" json:"rule_type"`
	Conditions  string                  `gorm:"column:conditions;type:text;not null" json:"conditions"`
	TargetModel string                  `gorm:"column:target_model;type:varchar(255);not null" json:"target_model"`
	Enabled     bool                    `gorm:"column:enabled;type:boolean;not null;default:true" json:"enabled"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (RuleRecord) TableName() string {
	return "optimization_rules"
}

// Decode converts the record to a typed rule, validating the conditions
// payload against the declared rule type.
func (r *RuleRecord) Decode() (optimization.Rule, error) {
	conditions, err := optimization.DecodeConditions(r.RuleType, []byte(r.Conditions))
	if err != nil {
		return optimization.Rule{}, err
	}
	return optimization.Rule{
		ID:          r.UUID,
		EntityType:  r.EntityType,
		EntityID:    r.EntityID,
		Provider:    r.Provider,
		RuleType:    r.RuleType,
		Conditions:  conditions,
		TargetModel: r.TargetModel,
		Enabled:     r.Enabled,
	}, nil
}
