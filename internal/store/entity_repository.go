package store

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityRepository defines organization and team data access
type EntityRepository interface {
	// CreateOrganization creates a new organization
	CreateOrganization(name string) (*Organization, error)
	// GetOrganization retrieves an organization by UUID
	GetOrganization(uuid string) (*Organization, error)
	// ListOrganizations retrieves all organizations
	ListOrganizations() ([]*Organization, error)
	// DeleteOrganization deletes an organization and its teams
	DeleteOrganization(uuid string) error
	// CreateTeam creates a team under an organization
	CreateTeam(orgUUID, name string) (*Team, error)
	// GetTeam retrieves a team by UUID
	GetTeam(uuid string) (*Team, error)
	// ListTeams retrieves all teams under an organization
	ListTeams(orgUUID string) ([]*Team, error)
	// DeleteTeam deletes a team by UUID
	DeleteTeam(uuid string) error
}

type entityRepositoryImpl struct {
	db *gorm.DB
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(gormDB *gorm.DB) EntityRepository {
	return &entityRepositoryImpl{db: gormDB}
}

func (r *entityRepositoryImpl) CreateOrganization(name string) (*Organization, error) {
	org := Organization{
		UUID: uuid.New().String(),
		Name: name,
	}
	if err := r.db.Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *entityRepositoryImpl) GetOrganization(id string) (*Organization, error) {
	var org Organization
	err := r.db.Preload("Teams").Where("uuid = ?", id).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *entityRepositoryImpl) ListOrganizations() ([]*Organization, error) {
	var orgs []*Organization
	err := r.db.Order("created_at ASC").Find(&orgs).Error
	return orgs, err
}

func (r *entityRepositoryImpl) DeleteOrganization(id string) error {
	var org Organization
	if err := r.db.Where("uuid = ?", id).First(&org).Error; err != nil {
		return err
	}
	if err := r.db.Where("organization_id = ?", org.ID).Delete(&Team{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&org).Error
}

func (r *entityRepositoryImpl) CreateTeam(orgUUID, name string) (*Team, error) {
	var org Organization
	if err := r.db.Where("uuid = ?", orgUUID).First(&org).Error; err != nil {
		return nil, err
	}
	team := Team{
		UUID:           uuid.New().String(),
		OrganizationID: org.ID,
		Name:           name,
	}
	if err := r.db.Create(&team).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *entityRepositoryImpl) GetTeam(id string) (*Team, error) {
	var team Team
	err := r.db.Preload("Organization").Where("uuid = ?", id).First(&team).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *entityRepositoryImpl) ListTeams(orgUUID string) ([]*Team, error) {
	var org Organization
	if err := r.db.Where("uuid = ?", orgUUID).First(&org).Error; err != nil {
		return nil, err
	}
	var teams []*Team
	err := r.db.Where("organization_id = ?", org.ID).Order("created_at ASC").Find(&teams).Error
	return teams, err
}

func (r *entityRepositoryImpl) DeleteTeam(id string) error {
	result := r.db.Where("uuid = ?", id).Delete(&Team{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
