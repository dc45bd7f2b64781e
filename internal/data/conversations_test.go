package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"messenger-api/internal/db"
	"messenger-api/internal/normalize"
)

// Integration tests; require MONGODB_URI set externally.

func setupConversations(t *testing.T) *ConversationsStore {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri, "messenger_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	// ensure clean collections
	_ = c.UserConversationsCollection().Drop(ctx)
	_ = c.ConversationMessagesCollection().Drop(ctx)

	return NewConversationsStore(c.UserConversationsCollection(), c.ConversationMessagesCollection())
}

func textMessage(fromEmail, toEmail, body string, at time.Time) *Message {
	return &Message{
		ID:          normalize.MessageID(toEmail, fromEmail, at),
		SenderEmail: normalize.Email(fromEmail),
		SenderName:  "Test Sender",
		SentAt:      at,
		Kind:        Text{Body: body},
	}
}

func TestCreateConversationAndFetchFirstMessage(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	alice := "a-example-com"
	bob := "bob-example-com"
	first := textMessage("a@example.com", "bob@example.com", "Hi! How are you?", time.Now())

	convID, err := store.CreateConversation(ctx, alice, bob, "Bob Jones", "Alice Smith", first)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if convID != "conversation_"+first.ID {
		t.Fatalf("unexpected conversation id: %q", convID)
	}

	msgs, err := store.GetAllMessages(ctx, convID)
	if err != nil {
		t.Fatalf("GetAllMessages failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected exactly 1 message, got %d", len(msgs))
	}
	if msgs[0].ID != first.ID || msgs[0].Kind != first.Kind {
		t.Fatalf("stored message mismatch: got %+v", msgs[0])
	}

	// both participants should see the conversation in their lists
	for _, uid := range []string{alice, bob} {
		convs, err := store.GetAllConversations(ctx, uid)
		if err != nil {
			t.Fatalf("GetAllConversations(%s) failed: %v", uid, err)
		}
		if len(convs) != 1 || convs[0].ID != convID {
			t.Fatalf("list for %s missing conversation: %+v", uid, convs)
		}
		if convs[0].LatestMessage.Message != "Hi! How are you?" {
			t.Fatalf("latest message summary wrong for %s: %+v", uid, convs[0].LatestMessage)
		}
	}
}

func TestConversationExistsBeforeAndAfterCreate(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	alice := "alice-example-com"
	bob := "bob-example-com"

	if _, err := store.ConversationExists(ctx, alice, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before creation, got %v", err)
	}

	first := textMessage("alice@example.com", "bob@example.com", "hello", time.Now())
	convID, err := store.CreateConversation(ctx, alice, bob, "Bob", "Alice", first)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	got, err := store.ConversationExists(ctx, alice, bob)
	if err != nil {
		t.Fatalf("ConversationExists failed after create: %v", err)
	}
	if got != convID {
		t.Fatalf("ConversationExists returned %q, want %q", got, convID)
	}
}

func TestSendMessageAppendsInOrder(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	alice := "alice-example-com"
	bob := "bob-example-com"

	now := time.Now()
	first := textMessage("alice@example.com", "bob@example.com", "msg 0", now)
	convID, err := store.CreateConversation(ctx, alice, bob, "Bob", "Alice", first)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	const n = 5
	for i := 1; i < n; i++ {
		msg := textMessage("alice@example.com", "bob@example.com", fmt.Sprintf("msg %d", i), now.Add(time.Duration(i)*time.Second))
		if err := store.SendMessage(ctx, convID, alice, bob, "Bob", "Alice", msg); err != nil {
			t.Fatalf("SendMessage %d failed: %v", i, err)
		}
	}

	msgs, err := store.GetAllMessages(ctx, convID)
	if err != nil {
		t.Fatalf("GetAllMessages failed: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("expected %d messages after %d sends, got %d", n, n, len(msgs))
	}
	for i, m := range msgs {
		want := fmt.Sprintf("msg %d", i)
		if m.Kind.Content() != want {
			t.Fatalf("message %d out of order: got %q want %q", i, m.Kind.Content(), want)
		}
	}

	// latest-message summary should reflect the final send on both sides
	for _, uid := range []string{alice, bob} {
		convs, err := store.GetAllConversations(ctx, uid)
		if err != nil {
			t.Fatalf("GetAllConversations(%s) failed: %v", uid, err)
		}
		if convs[0].LatestMessage.Message != "msg 4" {
			t.Fatalf("summary for %s not updated: %+v", uid, convs[0].LatestMessage)
		}
	}
}

func TestDeleteConversationIsOneSided(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	alice := "alice-example-com"
	bob := "bob-example-com"

	first := textMessage("alice@example.com", "bob@example.com", "hello", time.Now())
	convID, err := store.CreateConversation(ctx, alice, bob, "Bob", "Alice", first)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if err := store.DeleteConversation(ctx, alice, convID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	mine, err := store.GetAllConversations(ctx, alice)
	if err != nil {
		t.Fatalf("GetAllConversations(alice) failed: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("alice's list should be empty after delete: %+v", mine)
	}

	theirs, err := store.GetAllConversations(ctx, bob)
	if err != nil {
		t.Fatalf("GetAllConversations(bob) failed: %v", err)
	}
	if len(theirs) != 1 {
		t.Fatalf("bob's list should be untouched by alice's delete: %+v", theirs)
	}

	// the shared log must survive a one-sided delete
	msgs, err := store.GetAllMessages(ctx, convID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("message log should survive delete: msgs=%v err=%v", msgs, err)
	}

	// deleting again reports not found
	if err := store.DeleteConversation(ctx, alice, convID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSendToDeletedConversationRecreatesEntry(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	alice := "alice-example-com"
	bob := "bob-example-com"

	first := textMessage("alice@example.com", "bob@example.com", "hello", time.Now())
	convID, err := store.CreateConversation(ctx, alice, bob, "Bob", "Alice", first)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if err := store.DeleteConversation(ctx, alice, convID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	// bob keeps writing; alice's hidden entry should resurface
	reply := textMessage("bob@example.com", "alice@example.com", "still here", time.Now().Add(time.Second))
	if err := store.SendMessage(ctx, convID, bob, alice, "Alice", "Bob", reply); err != nil {
		t.Fatalf("SendMessage after delete failed: %v", err)
	}

	mine, err := store.GetAllConversations(ctx, alice)
	if err != nil {
		t.Fatalf("GetAllConversations(alice) failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != convID {
		t.Fatalf("alice's entry was not re-created: %+v", mine)
	}
	if mine[0].LatestMessage.Message != "still here" {
		t.Fatalf("re-created entry has wrong summary: %+v", mine[0].LatestMessage)
	}
}

func TestSendMessageToUnknownConversation(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	msg := textMessage("alice@example.com", "bob@example.com", "hi", time.Now())
	err := store.SendMessage(ctx, "conversation_missing", "alice-example-com", "bob-example-com", "Bob", "Alice", msg)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WriteError wrapper, got %T", err)
	}
}

func TestGetAllMessagesSkipsUndecodableRecords(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	alice := "alice-example-com"
	bob := "bob-example-com"

	first := textMessage("alice@example.com", "bob@example.com", "hello", time.Now())
	convID, err := store.CreateConversation(ctx, alice, bob, "Bob", "Alice", first)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	// append a record with a type tag this version does not know
	future := &Message{
		ID:          normalize.MessageID("alice@example.com", "bob@example.com", time.Now()),
		SenderEmail: bob,
		SenderName:  "Bob",
		SentAt:      time.Now(),
		Kind:        Text{Body: "placeholder"},
	}
	rec := EncodeMessage(future)
	rec["type"] = "hologram"
	res, err := store.logs.UpdateOne(ctx,
		map[string]any{"_id": convID},
		map[string]any{"$push": map[string]any{"messages": rec}},
	)
	if err != nil || res.MatchedCount == 0 {
		t.Fatalf("failed to inject forward-incompatible record: %v", err)
	}

	msgs, err := store.GetAllMessages(ctx, convID)
	if err != nil {
		t.Fatalf("GetAllMessages failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected the unknown-kind record to be skipped, got %d messages", len(msgs))
	}
}

func TestStoreRejectsMissingUser(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	if _, err := store.ConversationExists(ctx, "", "bob-example-com"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := store.GetAllConversations(ctx, ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if err := store.DeleteConversation(ctx, "", "conversation_x"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCreateConversationRejectsEmptyText(t *testing.T) {
	store := setupConversations(t)
	ctx := context.Background()

	first := textMessage("alice@example.com", "bob@example.com", "   ", time.Now())
	_, err := store.CreateConversation(ctx, "alice-example-com", "bob-example-com", "Bob", "Alice", first)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank text, got %v", err)
	}
}
