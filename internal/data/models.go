// Package data provides DB models and stores.
package data

import (
	"strconv"
	"time"
)

// User maps to the users collection. The document key is the safe
// (normalized) form of the email, which is also the root of every per-user
// path in the conversation store.
type User struct {
	SafeEmail         string    `bson:"_id"`
	Email             string    `bson:"email"`
	FirstName         string    `bson:"first_name"`
	LastName          string    `bson:"last_name"`
	Password          string    `bson:"password"`
	ProfilePictureURL string    `bson:"profile_picture_url,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// Name returns the display name shown in conversation lists and search.
func (u *User) Name() string {
	return u.FirstName + " " + u.LastName
}

// DirectoryEntry is the minimal shape returned by user search.
type DirectoryEntry struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
}

// LatestMessage is the denormalized summary kept on each conversation list
// entry so the list view renders without loading the message log.
type LatestMessage struct {
	Date    time.Time `bson:"date"`
	Message string    `bson:"message"`
	IsRead  bool      `bson:"is_read"`
}

// Conversation is one entry in a user's conversation list. The id is derived
// from the first message at creation and never changes.
type Conversation struct {
	ID             string        `bson:"id"`
	OtherUserEmail string        `bson:"other_user_email"`
	Name           string        `bson:"name"`
	LatestMessage  LatestMessage `bson:"latest_message"`
}

// Kind is the tagged payload of a message. The send path constructs only the
// four variants below; decode additionally tolerates (by skipping) tags it
// does not recognize.
type Kind interface {
	// Tag is the wire type tag, e.g. "text".
	Tag() string
	// Content is the type-dependent wire payload.
	Content() string
}

const (
	KindText     = "text"
	KindPhoto    = "photo"
	KindVideo    = "video"
	KindLocation = "location"
)

// Text is a plain text message.
type Text struct {
	Body string
}

func (t Text) Tag() string     { return KindText }
func (t Text) Content() string { return t.Body }

// Photo is an image message carrying the uploaded object's URL.
type Photo struct {
	URL string
}

func (p Photo) Tag() string     { return KindPhoto }
func (p Photo) Content() string { return p.URL }

// Video is a video message carrying the uploaded object's URL.
type Video struct {
	URL string
}

func (v Video) Tag() string     { return KindVideo }
func (v Video) Content() string { return v.URL }

// Location is a shared map coordinate, wired as "lat,long".
type Location struct {
	Latitude  float64
	Longitude float64
}

func (l Location) Tag() string { return KindLocation }

func (l Location) Content() string {
	return strconv.FormatFloat(l.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// Message is one entry in a conversation's append-only log.
type Message struct {
	ID          string
	SenderEmail string // safe (normalized) form
	SenderName  string
	SentAt      time.Time
	IsRead      bool
	Kind        Kind
}
