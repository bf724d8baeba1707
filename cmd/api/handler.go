package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"tasksync-backend/internal/app"
	authdelivery "tasksync-backend/internal/auth/delivery"
	feeddelivery "tasksync-backend/internal/feed/delivery"
	frienddelivery "tasksync-backend/internal/friend/delivery"
	notificationdelivery "tasksync-backend/internal/notification/delivery"
	taskdelivery "tasksync-backend/internal/task/delivery"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type Handler struct {
	app      *app.App
	handlers Handlers
}

func NewHandler(a *app.App) *Handler {
	return &Handler{
		app: a,
		handlers: Handlers{
			Auth:         authdelivery.NewAuthHandler(a.Auth),
			Friend:       frienddelivery.NewFriendHandler(a.Friends),
			Task:         taskdelivery.NewTaskHandler(a.Tasks, a.Auth),
			Feed:         feeddelivery.NewFeedHandler(a.Sessions),
			Notification: notificationdelivery.NewNotificationHandler(a.Notifications),
		},
	}
}

// Engine builds the gin engine with CORS and every route mounted.
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.app.Auth, h.app.SSE, h.handlers)
	return r
}

// Start serves on addr until ctx is cancelled, then drains open requests.
func (h *Handler) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx so open event streams return
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	h.app.Sessions.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
