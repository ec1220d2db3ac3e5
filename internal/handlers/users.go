package handlers

import (
	"errors"
	"net/http"

	"crewboard/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type UserHandler struct {
	db          *gorm.DB
	userService services.UserService
}

func NewUserHandler(db *gorm.DB, userService services.UserService) *UserHandler {
	return &UserHandler{db: db, userService: userService}
}

// GetUsers returns the active team roster for assignee pickers.
func (h *UserHandler) GetUsers(c *gin.Context) {
	users, err := h.userService.GetUsers(h.db)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load users")
		return
	}
	respondData(c, http.StatusOK, users)
}

func (h *UserHandler) GetUserProfile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok || actor.ID == uuid.Nil {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetUserByID(h.db, actor.ID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to load profile")
		return
	}
	respondData(c, http.StatusOK, user)
}
