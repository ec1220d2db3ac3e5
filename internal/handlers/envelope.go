package handlers

import (
	"github.com/gin-gonic/gin"

	"crewboard/backend/internal/models"
	"crewboard/backend/internal/services"
)

// Envelope is the uniform response shape every endpoint returns. Clients key
// off Success; Error carries the message verbatim when Success is false.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

// TaskListData is the payload of the list endpoint.
type TaskListData struct {
	Data    []models.Task `json:"data"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	HasMore bool          `json:"hasMore"`
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Error: message})
}

// actorFromContext rebuilds the authenticated caller from the claims the
// authz middleware stored on the request.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userID, ok := c.Get("user_id")
	if !ok {
		return services.Actor{}, false
	}
	name, _ := c.Get("user_name")
	role, _ := c.Get("role")

	actor := services.Actor{}
	if idStr, ok := userID.(string); ok {
		actor.ID = parseUUID(idStr)
	}
	if nameStr, ok := name.(string); ok {
		actor.Name = nameStr
	}
	if roleStr, ok := role.(string); ok {
		actor.Role = models.Role(roleStr)
	}
	return actor, true
}
