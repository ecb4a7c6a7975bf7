package database

import (
	"larder/internal/models"

	"github.com/jinzhu/gorm"
)

// IsMember reports whether the user belongs to the household. This backs
// the membership checks done before any household-scoped operation or
// subscription.
func (d *DB) IsMember(userID, householdID string) (bool, error) {
	var count int64
	err := d.conn.Model(&models.HouseholdMember{}).
		Where("user_id = ? AND household_id = ?", userID, householdID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateHousehold inserts a household and its owning member
func (d *DB) CreateHousehold(householdID, name, ownerID string) error {
	household := models.Household{HouseholdID: householdID, Name: name}
	if err := d.conn.Create(&household).Error; err != nil {
		return err
	}
	member := models.HouseholdMember{
		HouseholdID: householdID,
		UserID:      ownerID,
		Role:        models.RoleOwner,
	}
	return d.conn.Create(&member).Error
}

// AddMember adds a user to an existing household
func (d *DB) AddMember(householdID, userID string) error {
	var household models.Household
	err := d.conn.Where("household_id = ?", householdID).First(&household).Error
	if gorm.IsRecordNotFoundError(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	member := models.HouseholdMember{
		HouseholdID: householdID,
		UserID:      userID,
		Role:        models.RoleMember,
	}
	return d.conn.Create(&member).Error
}

// Households returns the household ids the user is a member of
func (d *DB) Households(userID string) ([]string, error) {
	var members []models.HouseholdMember
	if err := d.conn.Where("user_id = ?", userID).Find(&members).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.HouseholdID)
	}
	return ids, nil
}
