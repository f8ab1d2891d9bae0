package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storyconnect-backend/internal/models"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (u *Users) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", id, err)
	}
	return &user, nil
}

// UpdatePreferences merges prefs into the stored preferences and returns the
// updated profile.
func (u *Users) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs map[string]interface{}) (*models.User, error) {
	var user models.User
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			return err
		}
		if user.Preferences == nil {
			user.Preferences = make(models.JSONMap)
		}
		for key, value := range prefs {
			user.Preferences[key] = value
		}
		return tx.Model(&user).Update("preferences", user.Preferences).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating preferences of %s: %w", id, err)
	}
	return &user, nil
}
