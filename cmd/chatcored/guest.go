package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatcore/auth"
)

const guestTokenTTL = 24 * time.Hour

// handleGuestSession provisions a guest identity and a room, then hands
// back a credential scoped to that guest. The messaging core itself only
// ever sees the resulting token; how the guest came to exist is this
// endpoint's business alone.
func handleGuestSession(minter *auth.Minter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
			Room string `json:"room"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "Invalid request data"})
			return
		}

		guestID := uuid.NewString()
		username := req.Name
		if username == "" {
			username = "guest-" + guestID[:8]
		}
		room := req.Room
		if room == "" {
			room = "room-" + uuid.NewString()[:8]
		}

		token, err := minter.Mint(auth.Identity{UserID: guestID, Username: username}, guestTokenTTL)
		if err != nil {
			c.JSON(500, gin.H{"error": "Failed to generate token"})
			return
		}

		c.JSON(200, gin.H{
			"token":    token,
			"userId":   guestID,
			"username": username,
			"room":     room,
		})
	}
}
