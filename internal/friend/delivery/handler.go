package delivery

import (
	"net/http"

	authdelivery "tasksync-backend/internal/auth/delivery"
	frienddto "tasksync-backend/internal/friend/dto"
	"tasksync-backend/internal/friend/usecase"

	"github.com/gin-gonic/gin"
)

type FriendHandler struct {
	friendUsecase usecase.FriendUsecase
}

func NewFriendHandler(friendUsecase usecase.FriendUsecase) *FriendHandler {
	return &FriendHandler{friendUsecase: friendUsecase}
}

// GetFriends
// GET /api/friends
func (h *FriendHandler) GetFriends(c *gin.Context) {
	friends, err := h.friendUsecase.ListFriends(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// GetIncoming lists requests waiting for the signed-in user
// GET /api/friends/requests
func (h *FriendHandler) GetIncoming(c *gin.Context) {
	requests, err := h.friendUsecase.ListIncoming(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// GET /api/friends/requests/outgoing
func (h *FriendHandler) GetOutgoing(c *gin.Context) {
	requests, err := h.friendUsecase.ListOutgoing(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// SendRequest
// POST /api/friends/requests
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req frienddto.SendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.friendUsecase.SendRequest(c.Request.Context(), c.GetString("userID"), req.Handle); err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend request sent"})
}

// Accept takes the requester's account id
// POST /api/friends/requests/:id/accept
func (h *FriendHandler) Accept(c *gin.Context) {
	if err := h.friendUsecase.Accept(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend request accepted"})
}

// POST /api/friends/requests/:id/decline
func (h *FriendHandler) Decline(c *gin.Context) {
	if err := h.friendUsecase.Decline(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend request declined"})
}

// GET /api/friends/:id/relationship
func (h *FriendHandler) GetRelationship(c *gin.Context) {
	otherID := c.Param("id")
	relationship, err := h.friendUsecase.Relationship(c.Request.Context(), c.GetString("userID"), otherID)
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, frienddto.RelationshipResponse{AccountID: otherID, Relationship: relationship})
}

// Remove
// DELETE /api/friends/:id
func (h *FriendHandler) Remove(c *gin.Context) {
	if err := h.friendUsecase.Remove(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend removed"})
}
