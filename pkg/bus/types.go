package bus

// InboundMessage is a chat message received from a channel.
type InboundMessage struct {
	Channel    string            `json:"channel"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name,omitempty"`
	ChatID     string            `json:"chat_id"`
	MessageID  string            `json:"message_id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IsAdmin reports whether the channel flagged the sender as an administrator
// of the chat the message was sent in.
func (m InboundMessage) IsAdmin() bool {
	return m.Metadata["is_admin"] == "true"
}

// IsDirect reports whether the message arrived in a private conversation.
func (m InboundMessage) IsDirect() bool {
	return m.Metadata["is_dm"] == "true"
}

// OutboundMessage is a reply to be delivered by a channel.
//
// A public message is posted to ChatID. A private message is sent as a
// direct message to every entry in Recipients instead. When
// DeleteMessageID is set the channel removes that message from ChatID
// after delivery.
type OutboundMessage struct {
	Channel         string   `json:"channel"`
	ChatID          string   `json:"chat_id"`
	Content         string   `json:"content"`
	Private         bool     `json:"private,omitempty"`
	Recipients      []string `json:"recipients,omitempty"`
	DeleteMessageID string   `json:"delete_message_id,omitempty"`
}
