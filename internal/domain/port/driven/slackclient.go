package driven

import (
	"context"
	"time"

	"github.com/devlinkhq/devlink/internal/domain/model"
)

// SlackClient is the driven port for the Slack Web API, authenticated with
// a bot token from the broker session bundle.
type SlackClient interface {
	// AuthTest verifies the bot token and returns the workspace team name.
	AuthTest(ctx context.Context) (team string, botUser string, err error)

	ListChannels(ctx context.Context, limit int, includePrivate bool) ([]model.Channel, error)
	ListUsers(ctx context.Context, limit int) ([]model.SlackUser, error)

	// PostMessage sends text to the named channel ("#general", "general",
	// or a channel ID).
	PostMessage(ctx context.Context, channel, text string) (*model.MessageReceipt, error)

	// GetChannelMessages reads channel history no older than oldest. The
	// bot must be a member of the channel.
	GetChannelMessages(ctx context.Context, channel string, oldest time.Time, limit int) ([]model.SlackMessage, error)

	// GetThreadReplies reads a thread by its parent timestamp. The parent
	// message is included in the result.
	GetThreadReplies(ctx context.Context, channel, threadTS string, limit int) ([]model.SlackMessage, error)
}
