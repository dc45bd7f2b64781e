// Package normalize derives storage-safe identifiers from user emails.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var safeReplacer = strings.NewReplacer(".", "-", "@", "-")

// Email returns a storage-safe form of an email address, used as the key for
// all per-user paths in the database and object store. Only `.` and `@` are
// folded to `-`; nothing else is altered, so two distinct emails cannot end
// up with the same safe form unless they differed only in those characters.
func Email(e string) string {
	return safeReplacer.Replace(e)
}

// MessageID derives a message identifier from the two participants and the
// send time. The trailing random component keeps two messages from the same
// pair within the same second from colliding on the same storage key.
func MessageID(otherEmail, senderEmail string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s",
		Email(otherEmail),
		Email(senderEmail),
		at.UTC().Format("20060102-150405"),
		uuid.NewString(),
	)
}
