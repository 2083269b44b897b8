package whatsapp

import (
	"encoding/json"
	"fmt"
	"strconv"
)

/* Wire types for WhatsApp Business webhook notifications
 * Field names and nesting follow the Cloud API payload format
 */

// BusinessObject is the top-level discriminator of a Business Account notification.
const BusinessObject = "whatsapp_business_account"

// Message is a single inbound message as delivered inside a webhook notification.
// Immutable once created.
type Message struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	Timestamp UnixSeconds `json:"timestamp"`
	Type      string      `json:"type"`
	Text      Text        `json:"text"`
}

// Text is the body of a text-type message.
type Text struct {
	Body string `json:"body"`
}

// Notification is the full inbound webhook payload.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is a single field update inside an entry. Inbound messages arrive
// with Field == "messages"; delivery receipts and other status updates use
// different field names.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the payload of a change.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
}

// Metadata identifies the receiving phone number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact describes the sender of an inbound message.
type Contact struct {
	Profile Profile `json:"profile"`
	WaID    string  `json:"wa_id"`
}

// Profile holds the sender's display name.
type Profile struct {
	Name string `json:"name"`
}

/* UnixSeconds is an epoch-seconds timestamp. The provider serializes it as a
 * string in real notifications while simulated payloads historically carried
 * a bare number, so both encodings are accepted on the way in.
 */
type UnixSeconds int64

// MarshalJSON encodes the timestamp as a bare number.
func (t UnixSeconds) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(t), 10)), nil
}

// UnmarshalJSON accepts both a JSON number and a numeric string.
func (t *UnixSeconds) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshaling timestamp: %w", err)
	}
	switch v := raw.(type) {
	case float64:
		*t = UnixSeconds(int64(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing timestamp %q: %w", v, err)
		}
		*t = UnixSeconds(n)
	case nil:
		*t = 0
	default:
		return fmt.Errorf("unexpected timestamp type %T", raw)
	}
	return nil
}
