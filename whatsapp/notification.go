package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ErrUnexpectedObject indicates a payload whose top-level object is not a
// WhatsApp Business Account notification.
var ErrUnexpectedObject = errors.New("expected WhatsApp Business Account notification")

var nonDigits = regexp.MustCompile(`\D`)

// ParseNotification decodes an inbound webhook payload and checks its
// top-level discriminator. Anything that is not a Business Account
// notification fails with ErrUnexpectedObject.
func ParseNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("unmarshaling notification: %w", err)
	}
	if n.Object != BusinessObject {
		return Notification{}, ErrUnexpectedObject
	}
	return n, nil
}

// Batch is one group of inbound messages extracted from a notification,
// paired with the metadata of the change that carried them.
type Batch struct {
	Messages []Message
	Metadata Metadata
}

// MessageBatches walks entry -> changes -> value and collects every change
// whose field is "messages" and that carries at least one message. Status
// and receipt changes are skipped; an empty result is not an error.
func (n Notification) MessageBatches() []Batch {
	var batches []Batch
	for _, entry := range n.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" || len(change.Value.Messages) == 0 {
				continue
			}
			batches = append(batches, Batch{
				Messages: change.Value.Messages,
				Metadata: change.Value.Metadata,
			})
		}
	}
	return batches
}

// SanitizePhone strips everything but digits from a phone number.
func SanitizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// NewTestNotification builds a full provider-shaped notification carrying a
// single simulated text message, exactly as a real inbound POST would look.
// It returns the payload together with the synthesized message.
func NewTestNotification(phoneNumberID, displayPhoneNumber, from, text string) (Notification, Message) {
	from = SanitizePhone(from)

	msg := Message{
		ID:        NewMessageID(),
		From:      from,
		Timestamp: UnixSeconds(time.Now().Unix()),
		Type:      "text",
		Text:      Text{Body: text},
	}

	contactName := "Cliente"
	if len(from) >= 4 {
		contactName = "Cliente " + from[len(from)-4:]
	}

	n := Notification{
		Object: BusinessObject,
		Entry: []Entry{{
			ID: "WHATSAPP_BUSINESS_ACCOUNT_ID",
			Changes: []Change{{
				Field: "messages",
				Value: Value{
					MessagingProduct: "whatsapp",
					Metadata: Metadata{
						DisplayPhoneNumber: displayPhoneNumber,
						PhoneNumberID:      phoneNumberID,
					},
					Contacts: []Contact{{
						Profile: Profile{Name: contactName},
						WaID:    from,
					}},
					Messages: []Message{msg},
				},
			}},
		}},
	}

	return n, msg
}

// SimulatedIDPrefix marks message ids minted by the sandbox so they are
// distinguishable from real provider ids when debugging.
const SimulatedIDPrefix = "wamid.sim."

// NewMessageID returns a fresh simulated message id.
func NewMessageID() string {
	return SimulatedIDPrefix + uuid.NewString()
}
