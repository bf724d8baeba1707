// Package app builds the object graph shared by the HTTP server and the
// admin CLI.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"gorm.io/gorm"

	authdomain "tasksync-backend/internal/auth/domain"
	authrepo "tasksync-backend/internal/auth/repository"
	authusecase "tasksync-backend/internal/auth/usecase"
	"tasksync-backend/internal/feed"
	frienddomain "tasksync-backend/internal/friend/domain"
	friendrepo "tasksync-backend/internal/friend/repository"
	friendusecase "tasksync-backend/internal/friend/usecase"
	"tasksync-backend/internal/notification"
	notificationdomain "tasksync-backend/internal/notification/domain"
	notificationrepo "tasksync-backend/internal/notification/repository"
	taskdomain "tasksync-backend/internal/task/domain"
	taskrepo "tasksync-backend/internal/task/repository"
	"tasksync-backend/internal/task/scheduler"
	taskusecase "tasksync-backend/internal/task/usecase"
	"tasksync-backend/pkg/config"
	"tasksync-backend/pkg/database"
	"tasksync-backend/pkg/fcm"
	"tasksync-backend/pkg/firebaseapp"
	"tasksync-backend/pkg/relay"
	"tasksync-backend/pkg/sse"
)

const loginRolloverTimeout = 30 * time.Second

// App holds the wired services. Build it once per process and Close it on
// shutdown.
type App struct {
	Config *config.Config
	DB     *gorm.DB

	SSE           *sse.Manager
	Notifications *notification.Service
	Auth          authusecase.AuthUsecase
	Friends       friendusecase.FriendUsecase
	Tasks         taskusecase.TaskUsecase
	TaskRepo      taskrepo.TaskRepository
	Sessions      *feed.Sessions
	Scheduler     *scheduler.TaskReminderScheduler

	firestore   *firestore.Client
	bus         *relay.Relay
	changeRelay *taskrepo.ChangeRelay
}

// Models lists every table kept in SQL. Refresh tokens, device tokens and
// notifications live there on both store backends.
func Models() []interface{} {
	return []interface{}{
		&authdomain.Account{},
		&authdomain.RefreshToken{},
		&authdomain.DeviceToken{},
		&frienddomain.Request{},
		&frienddomain.Friendship{},
		&notificationdomain.Notification{},
		&taskdomain.Task{},
		&taskdomain.TaskShare{},
		&taskdomain.Category{},
	}
}

// Migrate opens the SQL database and migrates Models.
func Migrate(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db, Models()...); err != nil {
		return nil, err
	}
	return db, nil
}

// Build connects the stores and wires every feature.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := Migrate(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db}

	var fbApp *firebase.App
	if cfg.StoreBackend == config.StoreBackendFirestore || cfg.FirebaseCredentials != "" {
		fbApp, err = firebaseapp.NewApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			if cfg.StoreBackend == config.StoreBackendFirestore {
				a.Close()
				return nil, err
			}
			log.Printf("[WARN] Firebase unavailable, push notifications disabled: %v", err)
		}
	}

	var (
		accountRepo  authrepo.AccountRepository
		friendRepo   friendrepo.FriendRepository
		categoryRepo taskrepo.CategoryRepository
		hub          *taskrepo.Hub
	)
	switch cfg.StoreBackend {
	case config.StoreBackendFirestore:
		a.firestore, err = firebaseapp.NewFirestore(ctx, fbApp)
		if err != nil {
			a.Close()
			return nil, err
		}
		accountRepo = authrepo.NewFirestoreAccountRepository(a.firestore)
		friendRepo = friendrepo.NewFirestoreFriendRepository(a.firestore)
		a.TaskRepo = taskrepo.NewFirestoreTaskRepository(a.firestore)
		categoryRepo = taskrepo.NewFirestoreCategoryRepository(a.firestore)
	case config.StoreBackendSQL, "":
		hub = taskrepo.NewHub()
		accountRepo = authrepo.NewGormAccountRepository(db)
		friendRepo = friendrepo.NewGormFriendRepository(db)
		a.TaskRepo = taskrepo.NewGormTaskRepository(db, hub)
		categoryRepo = taskrepo.NewGormCategoryRepository(db)
	default:
		a.Close()
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}
	log.Printf("[App] Using %s store backend", cfg.StoreBackend)

	tokenRepo := authrepo.NewGormTokenRepository(db)
	deviceRepo := authrepo.NewFCMTokenRepository(db)

	// push stays a nil interface unless FCM is ready
	var push notification.PushSender
	if fbApp != nil {
		fcmClient, err := fcm.NewClient(ctx, fbApp)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			push = fcmClient
		}
	}

	a.SSE = sse.NewManager()
	a.Notifications = notification.NewService(notificationrepo.NewGormNotificationRepository(db), a.SSE, deviceRepo, push)

	a.Auth = authusecase.NewAuthUsecase(accountRepo, tokenRepo, deviceRepo, cfg)
	a.Friends = friendusecase.NewFriendUsecase(friendRepo, accountRepo, a.Notifications)
	a.Tasks = taskusecase.NewTaskUsecase(a.TaskRepo, categoryRepo, a.Friends, accountRepo, a.Notifications, cfg.Location())
	a.Sessions = feed.NewSessions(a.TaskRepo)

	if cfg.RolloverOnLogin {
		a.Auth.SetLoginCallback(a.rolloverOnLogin)
	}

	if hub != nil && cfg.GoogleProjectID != "" {
		bus, err := relay.New(ctx, cfg.GoogleProjectID, topicName(cfg.GooglePubSubTopic), cfg.InstanceID, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[WARN] Pub/Sub relay disabled, changes stay on this instance: %v", err)
		} else {
			a.bus = bus
			a.changeRelay = taskrepo.NewChangeRelay(hub, bus)
		}
	}

	if cfg.ReminderTime != "" {
		a.Scheduler, err = scheduler.NewTaskReminderScheduler(a.TaskRepo, a.Notifications, cfg.ReminderTime, cfg.Location())
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Start runs the background parts used by the server: the reminder job
// and the change relay.
func (a *App) Start(ctx context.Context) error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(); err != nil {
			return err
		}
	}
	if a.changeRelay != nil {
		go func() {
			if err := a.changeRelay.Run(ctx); err != nil {
				log.Printf("[Relay] Receive stopped: %v", err)
			}
		}()
	}
	return nil
}

// Close stops background work and releases store connections.
func (a *App) Close() {
	if a.Sessions != nil {
		a.Sessions.CloseAll()
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.changeRelay != nil {
		a.changeRelay.Wait()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			log.Printf("[Relay] Close: %v", err)
		}
	}
	if a.firestore != nil {
		if err := a.firestore.Close(); err != nil {
			log.Printf("[Firebase] Close: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// rolloverOnLogin runs the sweep for an account that just signed in.
func (a *App) rolloverOnLogin(accountID string) {
	ctx, cancel := context.WithTimeout(context.Background(), loginRolloverTimeout)
	defer cancel()

	report, err := a.Tasks.Rollover(ctx, accountID, a.Tasks.Today())
	if err != nil {
		log.Printf("[Rollover] Sweep for %s failed: %v", accountID, err)
		return
	}
	if len(report.Created) > 0 || len(report.Closed) > 0 {
		log.Printf("[Rollover] %s: created %d, closed %d", accountID, len(report.Created), len(report.Closed))
	}
}

// topicName accepts either a short topic name or a full resource name.
func topicName(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		topic = parts[len(parts)-1]
	}
	if topic == "" {
		return "task-changes"
	}
	return topic
}
