package services

import (
	"errors"

	"crewboard/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserService interface {
	GetUsers(db *gorm.DB) ([]models.User, error)
	GetUserByID(db *gorm.DB, id uuid.UUID) (*models.User, error)
}

type UserServiceImpl struct{}

func NewUserService() *UserServiceImpl {
	return &UserServiceImpl{}
}

// GetUsers returns the active team roster, used by clients to populate
// assignee pickers and resolve display names.
func (s *UserServiceImpl) GetUsers(db *gorm.DB) ([]models.User, error) {
	var users []models.User
	err := db.Where("is_active = ?", true).Order("first_name ASC, last_name ASC").Find(&users).Error
	return users, err
}

func (s *UserServiceImpl) GetUserByID(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
