package whatsapp

/* Graph API wire shapes for the message-send and account-info endpoints.
 * Error bodies must match the real provider contract exactly: calling code
 * branches on error.code and error.type.
 */

// GraphHost is the provider's API domain.
const GraphHost = "graph.facebook.com"

// SendRequest is the body of POST /vX.Y/{phone-number-id}/messages.
type SendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             Text   `json:"text"`
}

// SendResponse is the success body of a message send.
type SendResponse struct {
	MessagingProduct string        `json:"messaging_product"`
	Contacts         []SendContact `json:"contacts"`
	Messages         []SendMessage `json:"messages"`
}

// SendContact echoes the destination of a sent message.
type SendContact struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

// SendMessage carries the provider-assigned id of a sent message.
type SendMessage struct {
	ID string `json:"id"`
}

// ErrorResponse is the envelope of a Graph API error body.
type ErrorResponse struct {
	Error GraphError `json:"error"`
}

// GraphError mirrors the provider's error object.
type GraphError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	FBTraceID    string `json:"fbtrace_id"`
}

// MissingParameter builds the error body the provider returns for a missing
// required field.
func MissingParameter(name string) ErrorResponse {
	return ErrorResponse{Error: GraphError{
		Message:      "Missing required parameter: " + name,
		Type:         "OAuthException",
		Code:         100,
		ErrorSubcode: 2018341,
		FBTraceID:    "fake_trace_id",
	}}
}

// AccountInfo is the body of the account-info lookup.
type AccountInfo struct {
	VerifiedName  string `json:"verified_name"`
	Status        string `json:"status"`
	QualityRating string `json:"quality_rating"`
}
