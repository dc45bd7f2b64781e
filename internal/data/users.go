package data

import (
	"context"
	"errors"
	"strings"
	"time"

	"messenger-api/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document keyed by the safe form of the email.
// The password must already be hashed by the auth package.
func (u *UsersStore) CreateUser(ctx context.Context, email, firstName, lastName, hashedPassword string) (*User, error) {
	now := time.Now()
	user := &User{
		SafeEmail: normalize.Email(email),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := u.coll.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, &WriteError{Op: "create user", Err: err}
	}
	return user, nil
}

// GetUserByEmail finds a user by email (raw or already safe form).
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, &FetchError{Op: "fetch user", Err: err}
	}
	return &user, nil
}

// UserExists checks whether an account exists for the email.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": normalize.Email(email)})
	if err != nil {
		return false, &FetchError{Op: "count users", Err: err}
	}
	return count > 0, nil
}

// SearchUsers returns directory entries whose display name starts with the
// given prefix, case-insensitively. An empty prefix lists everyone; this
// powers the new-conversation user picker.
func (u *UsersStore) SearchUsers(ctx context.Context, namePrefix string) ([]DirectoryEntry, error) {
	cursor, err := u.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, &FetchError{Op: "list users", Err: err}
	}
	defer cursor.Close(ctx)

	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, &FetchError{Op: "list users", Err: err}
	}

	prefix := strings.ToLower(namePrefix)
	entries := make([]DirectoryEntry, 0, len(users))
	for _, usr := range users {
		if !strings.HasPrefix(strings.ToLower(usr.Name()), prefix) {
			continue
		}
		entries = append(entries, DirectoryEntry{Name: usr.Name(), Email: usr.SafeEmail})
	}
	return entries, nil
}

// SetProfilePictureURL records the uploaded profile picture URL on the user.
func (u *UsersStore) SetProfilePictureURL(ctx context.Context, safeEmail, url string) error {
	res, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": safeEmail},
		bson.M{"$set": bson.M{"profile_picture_url": url, "updated_at": time.Now()}},
	)
	if err != nil {
		return &WriteError{Op: "set profile picture", Err: err}
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
