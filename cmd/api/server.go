package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"messenger-api/internal/auth"
	"messenger-api/internal/data"
	"messenger-api/internal/events"
	"messenger-api/internal/middleware"
	"messenger-api/internal/session"
)

// userStore is the subset of data.UsersStore the handlers use.
type userStore interface {
	CreateUser(ctx context.Context, email, firstName, lastName, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	SearchUsers(ctx context.Context, namePrefix string) ([]data.DirectoryEntry, error)
	SetProfilePictureURL(ctx context.Context, safeEmail, url string) error
}

// conversationStore is the subset of data.ConversationsStore the handlers use.
type conversationStore interface {
	ConversationExists(ctx context.Context, userID, otherUserID string) (string, error)
	CreateConversation(ctx context.Context, userID, otherUserID, otherName, senderName string, first *data.Message) (string, error)
	SendMessage(ctx context.Context, conversationID, userID, otherUserID, otherName, senderName string, msg *data.Message) error
	GetAllConversations(ctx context.Context, userID string) ([]data.Conversation, error)
	GetAllMessages(ctx context.Context, conversationID string) ([]*data.Message, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error
}

// sessionStore is the subset of session.Directory the handlers use.
type sessionStore interface {
	Put(ctx context.Context, p session.Profile) error
	Current(ctx context.Context, safeEmail string) (*session.Profile, error)
	Clear(ctx context.Context, safeEmail string) error
}

// mediaStore is the subset of storage.S3Store the handlers use.
type mediaStore interface {
	UploadProfilePicture(ctx context.Context, data []byte, fileName string) (string, error)
	UploadMessagePhoto(ctx context.Context, data []byte, fileName string) (string, error)
	UploadMessageVideo(ctx context.Context, data []byte, fileName string) (string, error)
	DownloadURL(ctx context.Context, path string) (string, error)
}

// Server holds the stores and services behind the HTTP API.
type Server struct {
	users    userStore
	convs    conversationStore
	sessions sessionStore
	media    mediaStore
	auth     *auth.JWTManager
	events   *events.Publisher
	log      *zap.SugaredLogger
}

// newServer returns a ready-to-use Server wired with stores and services.
func newServer(users userStore, convs conversationStore, sessions sessionStore, media mediaStore, authMgr *auth.JWTManager, pub *events.Publisher, log *zap.SugaredLogger) *Server {
	return &Server{
		users:    users,
		convs:    convs,
		sessions: sessions,
		media:    media,
		auth:     authMgr,
		events:   pub,
		log:      log,
	}
}

// registerRoutes mounts the API on the given app. The limiter guards the
// register and login endpoints only.
func registerRoutes(app *fiber.App, srv *Server, limiter *middleware.LimiterStore) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	v1 := app.Group("/v1")

	limited := middleware.RateLimit(limiter)
	v1.Post("/register", limited, srv.Register)
	v1.Post("/login", limited, srv.Login)

	// routes registered after this point require a valid token
	authed := v1.Use(middleware.JWTAuth(srv.auth))
	authed.Post("/logout", srv.Logout)
	authed.Get("/users", srv.SearchUsers)

	authed.Get("/conversations", srv.ListConversations)
	authed.Post("/conversations", srv.CreateConversation)
	authed.Get("/conversations/:id/messages", srv.ListMessages)
	authed.Post("/conversations/:id/messages", srv.SendMessage)
	authed.Delete("/conversations/:id", srv.DeleteConversation)

	authed.Post("/media/profile-picture", srv.UploadProfilePicture)
	authed.Post("/media/message-photo", srv.UploadMessagePhoto)
	authed.Post("/media/message-video", srv.UploadMessageVideo)
	authed.Get("/media/download-url", srv.DownloadURL)
}
