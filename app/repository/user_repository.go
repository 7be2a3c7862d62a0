package repository

import (
	"errors"
	"time"

	"github.com/DavidKroell/Vendora/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByChatID retrieves a user by their chat platform id
func (r *userRepository) GetByChatID(chatID int64) (*models.User, error) {
	var user models.User
	err := r.db.Where("chat_id = ?", chatID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreateByChatID resolves a chat identity to a user, creating it on
// first contact and refreshing username/last-seen on subsequent ones.
func (r *userRepository) GetOrCreateByChatID(chatID int64, username string) (*models.User, error) {
	user, err := r.GetByChatID(chatID)
	if err == nil {
		now := time.Now()
		updates := map[string]interface{}{"last_seen_at": &now}
		if username != "" && username != user.Username {
			updates["username"] = username
			user.Username = username
		}
		if uerr := r.db.Model(user).Updates(updates).Error; uerr != nil {
			return nil, uerr
		}
		user.LastSeenAt = &now
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	user = &models.User{
		ChatID:     chatID,
		Username:   username,
		Role:       models.ROLE_USER,
		Status:     models.STATUS_ACTIVE,
		LastSeenAt: &now,
	}
	if cerr := r.db.Create(user).Error; cerr != nil {
		return nil, cerr
	}
	return user, nil
}

// Update saves changes to an existing user
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// List retrieves users with pagination
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}
