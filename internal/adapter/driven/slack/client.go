// Package slack implements the SlackClient port using the slack-go library.
package slack

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SlackClient = (*Client)(nil)

// Client implements the driven.SlackClient port with a bot token. Like the
// GitHub adapter, a Client is bound to one token; rotation happens upstream
// by constructing a replacement.
type Client struct {
	api *slackapi.Client

	namesMu   sync.Mutex
	userNames map[string]string
}

// NewClient creates a Slack client for the given bot token.
func NewClient(botToken string) *Client {
	return &Client{api: slackapi.New(botToken)}
}

// NewClientWithAPIURL creates a Client pointed at a custom API base URL.
// Intended for testing against an httptest server; apiURL must end with "/".
func NewClientWithAPIURL(botToken, apiURL string) *Client {
	return &Client{api: slackapi.New(botToken, slackapi.OptionAPIURL(apiURL))}
}

// AuthTest verifies the bot token against auth.test.
func (c *Client) AuthTest(ctx context.Context) (string, string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("verifying slack token: %w", err)
	}
	return resp.Team, resp.User, nil
}

// ListChannels retrieves channels visible to the bot. Private channels are
// only included when requested, and only those the bot is a member of are
// returned by the API anyway.
func (c *Client) ListChannels(ctx context.Context, limit int, includePrivate bool) ([]model.Channel, error) {
	if limit <= 0 {
		limit = 100
	}

	types := []string{"public_channel"}
	if includePrivate {
		types = append(types, "private_channel")
	}

	params := &slackapi.GetConversationsParameters{
		Types:           types,
		Limit:           min(limit, 200),
		ExcludeArchived: true,
	}

	var all []model.Channel

	for {
		channels, cursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("listing slack channels: %w", err)
		}

		for _, ch := range channels {
			all = append(all, model.Channel{
				ID:        ch.ID,
				Name:      ch.Name,
				IsPrivate: ch.IsPrivate,
				IsMember:  ch.IsMember,
				Topic:     ch.Topic.Value,
				Purpose:   ch.Purpose.Value,
			})
			if len(all) >= limit {
				return all, nil
			}
		}
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}

	return all, nil
}

// ListUsers retrieves workspace members, skipping deleted accounts.
func (c *Client) ListUsers(ctx context.Context, limit int) ([]model.SlackUser, error) {
	if limit <= 0 {
		limit = 100
	}

	users, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing slack users: %w", err)
	}

	result := make([]model.SlackUser, 0, min(limit, len(users)))
	for _, u := range users {
		if u.Deleted {
			continue
		}
		result = append(result, model.SlackUser{
			ID:          u.ID,
			Name:        u.Name,
			RealName:    u.RealName,
			DisplayName: u.Profile.DisplayName,
			Email:       u.Profile.Email,
			IsAdmin:     u.IsAdmin,
			IsBot:       u.IsBot,
		})
		if len(result) >= limit {
			break
		}
	}

	return result, nil
}

// PostMessage sends text to a channel given as "#general", "general", or a
// channel ID.
func (c *Client) PostMessage(ctx context.Context, channel, text string) (*model.MessageReceipt, error) {
	channelID, err := c.resolveChannelID(ctx, channel)
	if err != nil {
		return nil, err
	}

	respChannel, timestamp, err := c.api.PostMessageContext(ctx, channelID,
		slackapi.MsgOptionText(text, false),
	)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", channel, err)
	}

	return &model.MessageReceipt{
		Channel:   respChannel,
		Timestamp: timestamp,
	}, nil
}

// GetChannelMessages reads channel history newest first, skipping messages
// older than oldest. A zero oldest means no lower bound.
func (c *Client) GetChannelMessages(ctx context.Context, channel string, oldest time.Time, limit int) ([]model.SlackMessage, error) {
	channelID, err := c.resolveChannelID(ctx, channel)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	names := c.lookupUserNames(ctx)

	params := &slackapi.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     min(limit, 200),
	}
	if !oldest.IsZero() {
		params.Oldest = strconv.FormatInt(oldest.Unix(), 10) + ".000000"
	}

	var all []model.SlackMessage

	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("reading history of %s: %w", channel, err)
		}
		for _, msg := range resp.Messages {
			all = append(all, mapMessage(msg, names))
			if len(all) >= limit {
				return all, nil
			}
		}
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		params.Cursor = resp.ResponseMetaData.NextCursor
	}

	return all, nil
}

// GetThreadReplies reads a thread by its parent timestamp. The parent comes
// back as the first message.
func (c *Client) GetThreadReplies(ctx context.Context, channel, threadTS string, limit int) ([]model.SlackMessage, error) {
	channelID, err := c.resolveChannelID(ctx, channel)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	names := c.lookupUserNames(ctx)

	params := &slackapi.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     min(limit, 200),
	}

	var all []model.SlackMessage

	for {
		msgs, hasMore, nextCursor, err := c.api.GetConversationRepliesContext(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("reading thread %s in %s: %w", threadTS, channel, err)
		}
		for _, msg := range msgs {
			all = append(all, mapMessage(msg, names))
			if len(all) >= limit {
				return all, nil
			}
		}
		if !hasMore || nextCursor == "" {
			break
		}
		params.Cursor = nextCursor
	}

	return all, nil
}

func mapMessage(msg slackapi.Message, names map[string]string) model.SlackMessage {
	return model.SlackMessage{
		Timestamp:  msg.Timestamp,
		User:       msg.User,
		UserName:   names[msg.User],
		Text:       msg.Text,
		HasThread:  msg.ReplyCount > 0 && msg.ThreadTimestamp == msg.Timestamp,
		ReplyCount: msg.ReplyCount,
	}
}

// lookupUserNames maps user IDs to readable names, fetched once per client.
// Resolution is best effort; a failed fetch leaves IDs unresolved for this
// call and retries on the next.
func (c *Client) lookupUserNames(ctx context.Context) map[string]string {
	c.namesMu.Lock()
	defer c.namesMu.Unlock()

	if c.userNames != nil {
		return c.userNames
	}

	users, err := c.api.GetUsersContext(ctx)
	if err != nil {
		return nil
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		name := u.Profile.DisplayName
		if name == "" {
			name = u.RealName
		}
		if name == "" {
			name = u.Name
		}
		names[u.ID] = name
	}
	c.userNames = names
	return names
}

// resolveChannelID maps a channel name to its ID, passing IDs through
// unchanged.
func (c *Client) resolveChannelID(ctx context.Context, channel string) (string, error) {
	name := strings.TrimPrefix(channel, "#")
	if looksLikeChannelID(name) {
		return name, nil
	}

	params := &slackapi.GetConversationsParameters{
		Types:           []string{"public_channel", "private_channel"},
		Limit:           200,
		ExcludeArchived: true,
	}

	for {
		channels, cursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return "", fmt.Errorf("resolving channel %q: %w", channel, err)
		}
		for _, ch := range channels {
			if ch.Name == name {
				return ch.ID, nil
			}
		}
		if cursor == "" {
			break
		}
		params.Cursor = cursor
	}

	return "", fmt.Errorf("channel %q not found", channel)
}

// looksLikeChannelID reports whether s has the shape of a Slack conversation
// ID (C..., G..., or D... followed by uppercase alphanumerics).
func looksLikeChannelID(s string) bool {
	if len(s) < 9 {
		return false
	}
	switch s[0] {
	case 'C', 'G', 'D':
	default:
		return false
	}
	for _, r := range s[1:] {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
