package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"messenger-api/internal/auth"
	"messenger-api/internal/data"
	"messenger-api/internal/events"
	"messenger-api/internal/middleware"
	"messenger-api/internal/normalize"
	"messenger-api/internal/session"
	"messenger-api/internal/storage"
)

type registerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"` // safe form
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// messagePayload is the client's shape for an outgoing message. Type selects
// the variant; photo and video carry an uploaded object URL in content,
// location uses the coordinate fields instead.
type messagePayload struct {
	Type      string  `json:"type"`
	Content   string  `json:"content"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type createConversationRequest struct {
	OtherUserEmail string         `json:"other_user_email"`
	OtherUserName  string         `json:"other_user_name"`
	Message        messagePayload `json:"message"`
}

// messageResponse mirrors the stored wire record.
type messageResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Date        string `json:"date"`
	SenderEmail string `json:"sender_email"`
	SenderName  string `json:"sender_name"`
	IsRead      bool   `json:"is_read"`
}

// Register creates an account, opens a session and returns a token.
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.FirstName == "" || req.LastName == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email, first_name, last_name and password are required")
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.log.Errorw("hash password", "err", err)
		return fail(c, http.StatusInternalServerError, "registration failed")
	}

	user, err := s.users.CreateUser(c.Context(), req.Email, req.FirstName, req.LastName, hashed)
	if err != nil {
		if errors.Is(err, data.ErrUserExists) {
			return fail(c, http.StatusConflict, "user already exists")
		}
		s.log.Errorw("create user", "err", err)
		return fail(c, http.StatusInternalServerError, "registration failed")
	}

	return s.openSession(c, user)
}

// Login authenticates a user, opens a session and returns a token.
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	user, err := s.users.GetUserByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return fail(c, http.StatusUnauthorized, "invalid credentials")
		}
		s.log.Errorw("fetch user", "err", err)
		return fail(c, http.StatusInternalServerError, "login failed")
	}
	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}

	return s.openSession(c, user)
}

func (s *Server) openSession(c *fiber.Ctx, user *data.User) error {
	token, expiresAt, err := s.auth.GenerateToken(user.Email, user.Name())
	if err != nil {
		s.log.Errorw("generate token", "err", err)
		return fail(c, http.StatusInternalServerError, "login failed")
	}

	profile := session.Profile{
		Email:             user.SafeEmail,
		Name:              user.Name(),
		ProfilePictureURL: user.ProfilePictureURL,
	}
	if err := s.sessions.Put(c.Context(), profile); err != nil {
		s.log.Errorw("store session", "err", err)
		return fail(c, http.StatusInternalServerError, "login failed")
	}

	return c.JSON(tokenResponse{
		Token:     token,
		Email:     user.SafeEmail,
		Name:      user.Name(),
		ExpiresAt: expiresAt,
	})
}

// Logout clears the caller's session. The token itself stays valid until it
// expires, but store operations consult the session and will start failing.
func (s *Server) Logout(c *fiber.Ctx) error {
	claims := mustClaims(c)
	if err := s.sessions.Clear(c.Context(), claims.Email); err != nil {
		s.log.Errorw("clear session", "err", err)
		return fail(c, http.StatusInternalServerError, "logout failed")
	}
	return c.SendStatus(http.StatusNoContent)
}

// SearchUsers returns directory entries whose name starts with the q
// parameter. The caller is excluded from the results.
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	claims := mustClaims(c)

	entries, err := s.users.SearchUsers(c.Context(), c.Query("q"))
	if err != nil {
		s.log.Errorw("search users", "err", err)
		return fail(c, http.StatusInternalServerError, "search failed")
	}

	results := make([]data.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.Email == claims.Email {
			continue
		}
		results = append(results, e)
	}
	return c.JSON(fiber.Map{"users": results})
}

// ListConversations returns the caller's conversation list.
func (s *Server) ListConversations(c *fiber.Ctx) error {
	claims := mustClaims(c)

	convs, err := s.convs.GetAllConversations(c.Context(), claims.Email)
	if err != nil {
		return s.storeError(c, "list conversations", err)
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

// CreateConversation starts a conversation with another user, seeded with a
// first message. If a conversation with that user already exists on either
// side it is resumed instead, so a pair of users converges on one thread even
// after one of them deleted it.
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	claims := mustClaims(c)

	var req createConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.OtherUserEmail == "" {
		return fail(c, http.StatusBadRequest, "other_user_email is required")
	}

	profile, err := s.sessions.Current(c.Context(), claims.Email)
	if err != nil {
		return s.storeError(c, "resolve session", err)
	}

	otherID := normalize.Email(req.OtherUserEmail)
	msg, err := s.buildMessage(claims, otherID, req.Message)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid message")
	}

	// resume an existing thread when either side still lists one
	convID, err := s.convs.ConversationExists(c.Context(), claims.Email, otherID)
	if err != nil && errors.Is(err, data.ErrNotFound) {
		convID, err = s.convs.ConversationExists(c.Context(), otherID, claims.Email)
	}
	if err == nil {
		if err := s.convs.SendMessage(c.Context(), convID, claims.Email, otherID, req.OtherUserName, profile.Name, msg); err != nil {
			return s.storeError(c, "send message", err)
		}
		s.events.PublishMessageSent(c.Context(), messageSentEvent(convID, msg))
		return c.JSON(fiber.Map{"conversation_id": convID, "message_id": msg.ID})
	}
	if !errors.Is(err, data.ErrNotFound) {
		return s.storeError(c, "check conversation", err)
	}

	convID, err = s.convs.CreateConversation(c.Context(), claims.Email, otherID, req.OtherUserName, profile.Name, msg)
	if err != nil {
		return s.storeError(c, "create conversation", err)
	}

	s.events.PublishConversationCreated(c.Context(), events.ConversationCreated{
		ConversationID: convID,
		Participants:   []string{claims.Email, otherID},
		CreatedAt:      msg.SentAt,
	})
	s.events.PublishMessageSent(c.Context(), messageSentEvent(convID, msg))

	return c.Status(http.StatusCreated).JSON(fiber.Map{"conversation_id": convID, "message_id": msg.ID})
}

// ListMessages returns a conversation's history in send order. The caller
// must still list the conversation; a hidden (deleted) thread reads as gone.
func (s *Server) ListMessages(c *fiber.Ctx) error {
	claims := mustClaims(c)
	convID := c.Params("id")

	if _, err := s.entryFor(c, claims.Email, convID); err != nil {
		return s.storeError(c, "list messages", err)
	}

	msgs, err := s.convs.GetAllMessages(c.Context(), convID)
	if err != nil {
		return s.storeError(c, "list messages", err)
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:          m.ID,
			Type:        m.Kind.Tag(),
			Content:     m.Kind.Content(),
			Date:        m.SentAt.Format(time.RFC3339Nano),
			SenderEmail: m.SenderEmail,
			SenderName:  m.SenderName,
			IsRead:      m.IsRead,
		})
	}
	return c.JSON(fiber.Map{"messages": out})
}

// SendMessage appends a message to an existing conversation.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	claims := mustClaims(c)
	convID := c.Params("id")

	var payload messagePayload
	if err := c.BodyParser(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	entry, err := s.entryFor(c, claims.Email, convID)
	if err != nil {
		return s.storeError(c, "send message", err)
	}

	profile, err := s.sessions.Current(c.Context(), claims.Email)
	if err != nil {
		return s.storeError(c, "resolve session", err)
	}

	msg, err := s.buildMessage(claims, entry.OtherUserEmail, payload)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid message")
	}

	if err := s.convs.SendMessage(c.Context(), convID, claims.Email, entry.OtherUserEmail, entry.Name, profile.Name, msg); err != nil {
		return s.storeError(c, "send message", err)
	}

	s.events.PublishMessageSent(c.Context(), messageSentEvent(convID, msg))
	return c.JSON(fiber.Map{"message_id": msg.ID})
}

// DeleteConversation hides the conversation from the caller's list. The peer
// keeps their entry and the log survives.
func (s *Server) DeleteConversation(c *fiber.Ctx) error {
	claims := mustClaims(c)

	if err := s.convs.DeleteConversation(c.Context(), claims.Email, c.Params("id")); err != nil {
		return s.storeError(c, "delete conversation", err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// UploadProfilePicture stores the caller's profile picture and records its
// URL on the user document and the session profile.
func (s *Server) UploadProfilePicture(c *fiber.Ctx) error {
	claims := mustClaims(c)

	body, err := formFileBytes(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "file is required")
	}

	fileName := claims.Email + "_profile_picture.png"
	url, err := s.media.UploadProfilePicture(c.Context(), body, fileName)
	if err != nil {
		s.log.Errorw("upload profile picture", "err", err)
		return fail(c, http.StatusInternalServerError, "upload failed")
	}

	if err := s.users.SetProfilePictureURL(c.Context(), claims.Email, url); err != nil {
		return s.storeError(c, "record profile picture", err)
	}

	if profile, err := s.sessions.Current(c.Context(), claims.Email); err == nil {
		profile.ProfilePictureURL = url
		if err := s.sessions.Put(c.Context(), *profile); err != nil {
			s.log.Errorw("refresh session", "err", err)
		}
	}

	return c.JSON(fiber.Map{"url": url})
}

// UploadMessagePhoto stores an image for an outgoing photo message and
// returns the URL to put in the message content.
func (s *Server) UploadMessagePhoto(c *fiber.Ctx) error {
	return s.uploadMessageMedia(c, storage.ExtPNG, s.media.UploadMessagePhoto)
}

// UploadMessageVideo stores a video for an outgoing video message and
// returns the URL to put in the message content.
func (s *Server) UploadMessageVideo(c *fiber.Ctx) error {
	return s.uploadMessageMedia(c, storage.ExtMOV, s.media.UploadMessageVideo)
}

func (s *Server) uploadMessageMedia(c *fiber.Ctx, ext storage.FileExtension, upload func(ctx context.Context, data []byte, fileName string) (string, error)) error {
	messageID := c.Query("message_id")
	if messageID == "" {
		return fail(c, http.StatusBadRequest, "message_id is required")
	}

	body, err := formFileBytes(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "file is required")
	}

	url, err := upload(c.Context(), body, storage.MessageFileName(messageID, ext))
	if err != nil {
		s.log.Errorw("upload message media", "err", err)
		return fail(c, http.StatusInternalServerError, "upload failed")
	}
	return c.JSON(fiber.Map{"url": url})
}

// DownloadURL resolves a stored object path to a short-lived presigned URL.
func (s *Server) DownloadURL(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return fail(c, http.StatusBadRequest, "path is required")
	}

	url, err := s.media.DownloadURL(c.Context(), path)
	if err != nil {
		s.log.Errorw("presign download", "path", path, "err", err)
		return fail(c, http.StatusInternalServerError, "could not resolve download url")
	}
	return c.JSON(fiber.Map{"url": url})
}

// entryFor finds the caller's list entry for a conversation, ErrNotFound when
// the caller does not (or no longer) lists it.
func (s *Server) entryFor(c *fiber.Ctx, userID, conversationID string) (*data.Conversation, error) {
	convs, err := s.convs.GetAllConversations(c.Context(), userID)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		if convs[i].ID == conversationID {
			return &convs[i], nil
		}
	}
	return nil, data.ErrNotFound
}

// buildMessage assembles a Message from a client payload, minting the id
// from the participant pair and send time.
func (s *Server) buildMessage(claims *auth.Claims, otherID string, payload messagePayload) (*data.Message, error) {
	kind, err := kindFromPayload(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &data.Message{
		ID:          normalize.MessageID(otherID, claims.Email, now),
		SenderEmail: claims.Email,
		SenderName:  claims.Name,
		SentAt:      now,
		Kind:        kind,
	}, nil
}

func kindFromPayload(p messagePayload) (data.Kind, error) {
	switch p.Type {
	case data.KindText:
		return data.Text{Body: p.Content}, nil
	case data.KindPhoto:
		if p.Content == "" {
			return nil, data.ErrInvalidInput
		}
		return data.Photo{URL: p.Content}, nil
	case data.KindVideo:
		if p.Content == "" {
			return nil, data.ErrInvalidInput
		}
		return data.Video{URL: p.Content}, nil
	case data.KindLocation:
		return data.Location{Latitude: p.Latitude, Longitude: p.Longitude}, nil
	default:
		return nil, data.ErrInvalidInput
	}
}

func messageSentEvent(conversationID string, m *data.Message) events.MessageSent {
	return events.MessageSent{
		ConversationID: conversationID,
		MessageID:      m.ID,
		SenderEmail:    m.SenderEmail,
		Kind:           m.Kind.Tag(),
		SentAt:         m.SentAt,
	}
}

// storeError maps store failures to HTTP responses.
func (s *Server) storeError(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, data.ErrUnauthenticated):
		return fail(c, http.StatusUnauthorized, "not logged in")
	case errors.Is(err, data.ErrNotFound):
		return fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, data.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, "invalid input")
	case errors.Is(err, data.ErrUserExists):
		return fail(c, http.StatusConflict, "user already exists")
	default:
		s.log.Errorw(op, "err", err)
		return fail(c, http.StatusInternalServerError, op+" failed")
	}
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// mustClaims returns the claims set by the auth middleware. Routes registered
// behind JWTAuth always have them.
func mustClaims(c *fiber.Ctx) *auth.Claims {
	claims, _ := middleware.ClaimsFrom(c)
	return claims
}

func formFileBytes(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
