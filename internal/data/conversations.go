package data

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConversationsStore provides conversation and message log operations.
//
// Layout mirrors the hierarchical paths of the source system: one document
// per user holding that user's conversation list, and one document per
// conversation holding the append-only message log. Creating a conversation
// and updating latest-message summaries fan the same logical update out into
// both participants' list documents; the two writes are not transactional, so
// a mid-failure leaves one-sided visibility until a later send repairs it.
type ConversationsStore struct {
	// lists is the user_conversations collection (keyed by safe email)
	lists *mongo.Collection
	// logs is the conversation_messages collection (keyed by conversation id)
	logs *mongo.Collection
}

// NewConversationsStore returns a store using the given collections.
func NewConversationsStore(lists, logs *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{lists: lists, logs: logs}
}

// userConversations maps to one user_conversations document.
type userConversations struct {
	UserID        string         `bson:"_id"`
	Conversations []Conversation `bson:"conversations"`
}

// conversationLog maps to one conversation_messages document. Messages stay
// raw wire records here; decoding happens per record so a single malformed
// entry cannot poison the whole log.
type conversationLog struct {
	ID       string   `bson:"_id"`
	Messages []bson.M `bson:"messages"`
}

// ConversationID derives the immutable conversation id from the id of the
// conversation's first message.
func ConversationID(firstMessageID string) string {
	return "conversation_" + firstMessageID
}

// ConversationExists scans userID's conversation list for an entry with the
// given participant and returns its id, or ErrNotFound. A concurrent create
// from the peer's device can race this check; the pair converging on two
// conversations is tolerated rather than locked against.
func (s *ConversationsStore) ConversationExists(ctx context.Context, userID, otherUserID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}

	var doc userConversations
	err := s.lists.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", &FetchError{Op: "fetch conversation list", Err: err}
	}

	for _, c := range doc.Conversations {
		if c.OtherUserEmail == otherUserID {
			return c.ID, nil
		}
	}
	return "", ErrNotFound
}

// CreateConversation creates a conversation between userID and otherUserID
// seeded with the first message, and returns the derived conversation id.
// otherName is the peer's display name snapshot kept on userID's entry;
// senderName goes on the peer's entry.
func (s *ConversationsStore) CreateConversation(ctx context.Context, userID, otherUserID, otherName, senderName string, first *Message) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}
	if err := validateMessage(first); err != nil {
		return "", err
	}

	convID := ConversationID(first.ID)
	summary := LatestMessage{Date: first.SentAt, Message: first.Kind.Content()}

	// fan-out: an entry in each participant's list
	mine := Conversation{ID: convID, OtherUserEmail: otherUserID, Name: otherName, LatestMessage: summary}
	theirs := Conversation{ID: convID, OtherUserEmail: userID, Name: senderName, LatestMessage: summary}

	if err := s.pushListEntry(ctx, userID, mine); err != nil {
		return "", err
	}
	if err := s.pushListEntry(ctx, otherUserID, theirs); err != nil {
		return "", err
	}

	// seed the message log with exactly the first message
	log := conversationLog{ID: convID, Messages: []bson.M{EncodeMessage(first)}}
	if _, err := s.logs.InsertOne(ctx, log); err != nil {
		return "", &WriteError{Op: "create message log", Err: err}
	}

	return convID, nil
}

// SendMessage appends msg to the conversation's log and refreshes the
// latest-message summary on both participants' list entries. The append is a
// single atomic push; the two summary writes are last-writer-wins and a
// participant whose list entry was deleted gets it re-created.
func (s *ConversationsStore) SendMessage(ctx context.Context, conversationID, userID, otherUserID, otherName, senderName string, msg *Message) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := validateMessage(msg); err != nil {
		return err
	}

	res, err := s.logs.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$push": bson.M{"messages": EncodeMessage(msg)}},
	)
	if err != nil {
		return &WriteError{Op: "append message", Err: err}
	}
	if res.MatchedCount == 0 {
		return &WriteError{Op: "append message", Err: ErrNotFound}
	}

	summary := LatestMessage{Date: msg.SentAt, Message: msg.Kind.Content()}
	if err := s.updateSummary(ctx, userID, conversationID, otherUserID, otherName, summary); err != nil {
		return err
	}
	return s.updateSummary(ctx, otherUserID, conversationID, userID, senderName, summary)
}

// GetAllConversations returns userID's conversation list in stored order.
// A user with no conversations yet gets an empty list, not an error.
func (s *ConversationsStore) GetAllConversations(ctx context.Context, userID string) ([]Conversation, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var doc userConversations
	err := s.lists.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []Conversation{}, nil
		}
		return nil, &FetchError{Op: "fetch conversation list", Err: err}
	}
	if doc.Conversations == nil {
		return []Conversation{}, nil
	}
	return doc.Conversations, nil
}

// GetAllMessages decodes the conversation's message log in append order.
// Records that fail to decode are skipped so one forward-incompatible or
// corrupt entry never breaks history loading.
func (s *ConversationsStore) GetAllMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	var doc conversationLog
	err := s.logs.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &FetchError{Op: "fetch message log", Err: ErrNotFound}
		}
		return nil, &FetchError{Op: "fetch message log", Err: err}
	}

	msgs := make([]*Message, 0, len(doc.Messages))
	for _, rec := range doc.Messages {
		m, err := DecodeMessage(rec)
		if err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// DeleteConversation removes the conversation entry from userID's list only.
// The peer's entry and the shared message log are deliberately untouched:
// delete is a one-sided hide, and a new message from the peer re-creates the
// entry via SendMessage.
func (s *ConversationsStore) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	res, err := s.lists.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"conversations": bson.M{"id": conversationID}}},
	)
	if err != nil {
		return &DeleteError{Op: "delete conversation entry", Err: err}
	}
	if res.ModifiedCount == 0 {
		return &DeleteError{Op: "delete conversation entry", Err: ErrNotFound}
	}
	return nil
}

// pushListEntry appends an entry to a user's conversation list, creating the
// list document on first use.
func (s *ConversationsStore) pushListEntry(ctx context.Context, userID string, entry Conversation) error {
	_, err := s.lists.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$push": bson.M{"conversations": entry}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return &WriteError{Op: "append conversation entry", Err: err}
	}
	return nil
}

// updateSummary sets the latest-message summary on userID's entry for the
// conversation. When the entry is gone (deleted conversation) it is appended
// back with the summary, which is how a hidden conversation resurfaces when
// the peer keeps writing to it.
func (s *ConversationsStore) updateSummary(ctx context.Context, userID, conversationID, otherUserID, name string, summary LatestMessage) error {
	res, err := s.lists.UpdateOne(ctx,
		bson.M{"_id": userID, "conversations.id": conversationID},
		bson.M{"$set": bson.M{"conversations.$.latest_message": summary}},
	)
	if err != nil {
		return &WriteError{Op: "update latest message", Err: err}
	}
	if res.MatchedCount == 0 {
		entry := Conversation{
			ID:             conversationID,
			OtherUserEmail: otherUserID,
			Name:           name,
			LatestMessage:  summary,
		}
		return s.pushListEntry(ctx, userID, entry)
	}
	return nil
}

func validateMessage(m *Message) error {
	if m == nil || m.ID == "" || m.Kind == nil {
		return ErrInvalidInput
	}
	if t, ok := m.Kind.(Text); ok && strings.TrimSpace(t.Body) == "" {
		return ErrInvalidInput
	}
	return nil
}
