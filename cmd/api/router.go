package api

import (
	"net/http"

	authdelivery "tasksync-backend/internal/auth/delivery"
	"tasksync-backend/internal/auth/usecase"
	feeddelivery "tasksync-backend/internal/feed/delivery"
	frienddelivery "tasksync-backend/internal/friend/delivery"
	notificationdelivery "tasksync-backend/internal/notification/delivery"
	taskdelivery "tasksync-backend/internal/task/delivery"
	"tasksync-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

// Handlers groups the feature handlers mounted under /api.
type Handlers struct {
	Auth         *authdelivery.AuthHandler
	Friend       *frienddelivery.FriendHandler
	Task         *taskdelivery.TaskHandler
	Feed         *feeddelivery.FeedHandler
	Notification *notificationdelivery.NotificationHandler
}

func SetupRoutes(r *gin.Engine, authUsecase usecase.AuthUsecase, sseManager *sse.Manager, h Handlers) {
	requireAuth := authdelivery.AuthMiddleware(authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE endpoint for notifications
		api.GET("/events", requireAuth, func(c *gin.Context) {
			sseManager.ServeHTTP(c, c.GetString("userID"))
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", requireAuth, h.Auth.Me)
			auth.PATCH("/me", requireAuth, h.Auth.UpdateMe)
		}

		api.GET("/users/resolve/:handle", requireAuth, h.Auth.ResolveHandle)

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(requireAuth)
		{
			fcm.POST("/register", h.Auth.RegisterFCMToken)
			fcm.DELETE("/:token", h.Auth.UnregisterFCMToken)
		}

		friends := api.Group("/friends")
		friends.Use(requireAuth)
		{
			friends.GET("", h.Friend.GetFriends)
			friends.GET("/requests", h.Friend.GetIncoming)
			friends.GET("/requests/outgoing", h.Friend.GetOutgoing)
			friends.POST("/requests", h.Friend.SendRequest)
			friends.POST("/requests/:id/accept", h.Friend.Accept)
			friends.POST("/requests/:id/decline", h.Friend.Decline)
			friends.GET("/:id/relationship", h.Friend.GetRelationship)
			friends.DELETE("/:id", h.Friend.Remove)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", h.Task.GetTasks)
			tasks.POST("", h.Task.CreateTask)
			tasks.GET("/stream", h.Feed.Stream)
			tasks.DELETE("/stream", h.Feed.Disconnect)
			tasks.GET("/export", h.Task.Export)
			tasks.GET("/stats", h.Task.GetStats)
			tasks.POST("/rollover", h.Task.Rollover)
			tasks.GET("/:id", h.Task.GetTaskByID)
			tasks.PATCH("/:id", h.Task.UpdateTask)
			tasks.PATCH("/:id/complete", h.Task.CompleteTask)
			tasks.DELETE("/:id", h.Task.DeleteTask)
		}

		categories := api.Group("/categories")
		categories.Use(requireAuth)
		{
			categories.GET("", h.Task.GetCategories)
			categories.POST("", h.Task.AddCategory)
			categories.DELETE("/:name", h.Task.RemoveCategory)
		}

		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("", h.Notification.GetUnread)
			notifications.POST("/:id/read", h.Notification.MarkRead)
			notifications.POST("/read-all", h.Notification.MarkAllRead)
		}
	}
}
