package delivery

import (
	"net/http"

	authdto "tasksync-backend/internal/auth/dto"
	"tasksync-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
}

func NewAuthHandler(authUsecase usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{authUsecase: authUsecase}
}

// Register creates an account and signs it in
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.Register(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.Login(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req authdto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.authUsecase.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req authdto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the signed-in account
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe changes the display name
// PATCH /api/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req authdto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.authUsecase.UpdateDisplayName(c.Request.Context(), c.GetString("userID"), req.DisplayName)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// ResolveHandle looks up an account by handle for invite and share flows
// GET /api/users/resolve/:handle
func (h *AuthHandler) ResolveHandle(c *gin.Context) {
	account, err := h.authUsecase.ResolveHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		RespondError(c, err)
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, authdto.ResolveResponse{
		ID:          account.ID,
		Handle:      account.Handle,
		DisplayName: account.DisplayName,
	})
}

// POST /api/fcm/register
func (h *AuthHandler) RegisterFCMToken(c *gin.Context) {
	var req authdto.RegisterFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.RegisterDeviceToken(c.Request.Context(), c.GetString("userID"), req.Token, req.DeviceInfo); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token registered"})
}

// DELETE /api/fcm/:token
func (h *AuthHandler) UnregisterFCMToken(c *gin.Context) {
	if err := h.authUsecase.UnregisterDeviceToken(c.Request.Context(), c.Param("token")); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "token removed"})
}
