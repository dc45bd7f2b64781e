package data

import (
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Wire record field names. The stored shape is a flat string-keyed document
// so records written by older or newer clients remain readable.
const (
	fieldID          = "id"
	fieldType        = "type"
	fieldContent     = "content"
	fieldDate        = "date"
	fieldSenderEmail = "sender_email"
	fieldSenderName  = "sender_name"
	fieldIsRead      = "is_read"
)

// wireDateFormat is the stable string form used for the date field.
const wireDateFormat = time.RFC3339Nano

// EncodeMessage converts a message to its wire record.
func EncodeMessage(m *Message) bson.M {
	return bson.M{
		fieldID:          m.ID,
		fieldType:        m.Kind.Tag(),
		fieldContent:     m.Kind.Content(),
		fieldDate:        m.SentAt.UTC().Format(wireDateFormat),
		fieldSenderEmail: m.SenderEmail,
		fieldSenderName:  m.SenderName,
		fieldIsRead:      m.IsRead,
	}
}

// DecodeMessage converts a wire record back to a message. It returns a
// *DecodeError when a required field is absent, the date is unparsable, or
// the type tag is unrecognized. Callers loading history treat a DecodeError
// as "skip this record", never as a fatal failure.
func DecodeMessage(rec bson.M) (*Message, error) {
	id, err := stringField(rec, fieldID)
	if err != nil {
		return nil, err
	}
	tag, err := stringField(rec, fieldType)
	if err != nil {
		return nil, err
	}
	content, err := stringField(rec, fieldContent)
	if err != nil {
		return nil, err
	}
	dateStr, err := stringField(rec, fieldDate)
	if err != nil {
		return nil, err
	}
	senderEmail, err := stringField(rec, fieldSenderEmail)
	if err != nil {
		return nil, err
	}
	senderName, err := stringField(rec, fieldSenderName)
	if err != nil {
		return nil, err
	}

	sentAt, perr := time.Parse(wireDateFormat, dateStr)
	if perr != nil {
		return nil, &DecodeError{Field: fieldDate, Reason: "unparsable date " + strconv.Quote(dateStr)}
	}

	isRead, _ := rec[fieldIsRead].(bool)

	kind, err := decodeKind(tag, content)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:          id,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		SentAt:      sentAt,
		IsRead:      isRead,
		Kind:        kind,
	}, nil
}

func decodeKind(tag, content string) (Kind, error) {
	switch tag {
	case KindText:
		return Text{Body: content}, nil
	case KindPhoto:
		return Photo{URL: content}, nil
	case KindVideo:
		return Video{URL: content}, nil
	case KindLocation:
		parts := strings.SplitN(content, ",", 2)
		if len(parts) != 2 {
			return nil, &DecodeError{Field: fieldContent, Reason: "malformed location payload"}
		}
		lat, err1 := strconv.ParseFloat(parts[0], 64)
		long, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return nil, &DecodeError{Field: fieldContent, Reason: "malformed location coordinates"}
		}
		return Location{Latitude: lat, Longitude: long}, nil
	default:
		return nil, &DecodeError{Field: fieldType, Reason: "unrecognized type tag " + strconv.Quote(tag)}
	}
}

func stringField(rec bson.M, field string) (string, error) {
	v, ok := rec[field]
	if !ok {
		return "", &DecodeError{Field: field, Reason: "missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &DecodeError{Field: field, Reason: "not a string"}
	}
	return s, nil
}
