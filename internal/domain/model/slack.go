package model

// Channel represents a Slack channel visible to the bot.
type Channel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	IsMember  bool   `json:"is_member"`
	Topic     string `json:"topic,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
}

// SlackUser represents a Slack workspace member.
type SlackUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	RealName    string `json:"real_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
	IsBot       bool   `json:"is_bot"`
}

// MessageReceipt is the confirmation for a sent Slack message. Timestamp
// doubles as the message ID within its channel.
type MessageReceipt struct {
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
}

// SlackMessage is one message read from channel history or a thread.
// Timestamp identifies the message within its channel and doubles as the
// thread key when the message has replies.
type SlackMessage struct {
	Timestamp  string `json:"ts"`
	User       string `json:"user"`
	UserName   string `json:"user_name,omitempty"`
	Text       string `json:"text"`
	HasThread  bool   `json:"has_thread,omitempty"`
	ReplyCount int    `json:"reply_count,omitempty"`
}
