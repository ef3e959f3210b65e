package irisfast

// Message is one chat event pushed by Iris over the websocket.
type Message struct {
	Msg    string       `json:"msg"`
	Room   string       `json:"room"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

// MessageJSON carries the raw KakaoTalk chat log fields Iris forwards.
type MessageJSON struct {
	UserID  string `json:"user_id"`
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// SenderName prefers the Kakao user id and falls back to the display name.
func (m *Message) SenderName() string {
	if m == nil {
		return ""
	}
	if m.JSON != nil && m.JSON.UserID != "" {
		return m.JSON.UserID
	}
	if m.Sender != nil {
		return *m.Sender
	}
	return ""
}

// Config mirrors Iris' GET /config document.
type Config struct {
	BotName           string `json:"bot_name"`
	Port              int    `json:"bot_http_port"`
	WebserverEndpoint string `json:"web_server_endpoint"`
	PollingSpeed      int    `json:"db_polling_rate"`
	MessageRate       int    `json:"message_send_rate"`
}

const (
	replyTypeText  = "text"
	replyTypeImage = "image"
)

// ReplyRequest is the body of POST /reply and of websocket reply frames.
// For images Data holds the base64 encoded PNG.
type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)
