package mcptools

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devlinkhq/devlink/internal/domain/model"
)

type slackStatusOutput struct {
	Team    string `json:"team"`
	BotUser string `json:"bot_user"`
}

type listChannelsInput struct {
	Limit          int  `json:"limit,omitempty" jsonschema:"maximum number of channels (default 100)"`
	IncludePrivate bool `json:"include_private,omitempty" jsonschema:"include private channels the bot is a member of"`
}

type listChannelsOutput struct {
	Channels []model.Channel `json:"channels"`
}

type listUsersInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of users (default 100)"`
}

type listUsersOutput struct {
	Users []model.SlackUser `json:"users"`
}

type postMessageInput struct {
	Channel string `json:"channel" jsonschema:"channel name (#general or general) or channel ID"`
	Text    string `json:"text" jsonschema:"message text"`
}

type readMessagesInput struct {
	Channel        string `json:"channel" jsonschema:"channel name (#general or general) or channel ID"`
	Days           int    `json:"days,omitempty" jsonschema:"number of days to look back (default 1)"`
	Limit          int    `json:"limit,omitempty" jsonschema:"maximum messages (default 50)"`
	IncludeThreads *bool  `json:"include_threads,omitempty" jsonschema:"fetch thread replies for threaded messages (default true)"`
}

type channelMessage struct {
	model.SlackMessage
	Replies []model.SlackMessage `json:"replies,omitempty"`
}

type readMessagesOutput struct {
	Channel  string           `json:"channel"`
	Count    int              `json:"count"`
	Messages []channelMessage `json:"messages"`
}

type readThreadInput struct {
	Channel  string `json:"channel" jsonschema:"channel name (#general or general) or channel ID"`
	ThreadTS string `json:"thread_ts" jsonschema:"thread timestamp (ts) of the parent message"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum replies (default 50)"`
}

type threadMessage struct {
	model.SlackMessage
	IsParent bool `json:"is_parent"`
}

type readThreadOutput struct {
	Channel  string          `json:"channel"`
	ThreadTS string          `json:"thread_ts"`
	Count    int             `json:"count"`
	Messages []threadMessage `json:"messages"`
}

func (s *Server) registerSlackTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "slack_status",
		Description: "Verify the Slack connection and report the workspace and bot identity.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, slackStatusOutput, error) {
		client, err := s.deps.Slack.GetClient(ctx)
		if err != nil {
			return nil, slackStatusOutput{}, err
		}
		team, botUser, err := client.AuthTest(ctx)
		if err != nil {
			return nil, slackStatusOutput{}, err
		}
		return nil, slackStatusOutput{Team: team, BotUser: botUser}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "slack_list_channels",
		Description: "List channels visible to the bot.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listChannelsInput) (*mcp.CallToolResult, listChannelsOutput, error) {
		client, err := s.deps.Slack.GetClient(ctx)
		if err != nil {
			return nil, listChannelsOutput{}, err
		}
		channels, err := client.ListChannels(ctx, in.Limit, in.IncludePrivate)
		if err != nil {
			return nil, listChannelsOutput{}, err
		}
		return nil, listChannelsOutput{Channels: channels}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "slack_list_users",
		Description: "List workspace members, excluding deleted accounts.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in listUsersInput) (*mcp.CallToolResult, listUsersOutput, error) {
		client, err := s.deps.Slack.GetClient(ctx)
		if err != nil {
			return nil, listUsersOutput{}, err
		}
		users, err := client.ListUsers(ctx, in.Limit)
		if err != nil {
			return nil, listUsersOutput{}, err
		}
		return nil, listUsersOutput{Users: users}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "slack_read_messages",
		Description: "Read recent messages from a channel the bot is a member of. Thread replies are attached to their parent message unless disabled.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in readMessagesInput) (*mcp.CallToolResult, readMessagesOutput, error) {
		client, err := s.deps.Slack.GetClient(ctx)
		if err != nil {
			return nil, readMessagesOutput{}, err
		}

		days := in.Days
		if days <= 0 {
			days = 1
		}
		oldest := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

		messages, err := client.GetChannelMessages(ctx, in.Channel, oldest, in.Limit)
		if err != nil {
			return nil, readMessagesOutput{}, err
		}

		includeThreads := in.IncludeThreads == nil || *in.IncludeThreads

		result := make([]channelMessage, 0, len(messages))
		for _, msg := range messages {
			entry := channelMessage{SlackMessage: msg}
			if includeThreads && msg.HasThread {
				replies, err := client.GetThreadReplies(ctx, in.Channel, msg.Timestamp, 50)
				if err != nil {
					// A broken thread must not sink the whole read.
					slog.Warn("thread fetch failed", "thread_ts", msg.Timestamp, "error", err)
				}
				for _, reply := range replies {
					if reply.Timestamp == msg.Timestamp {
						continue
					}
					entry.Replies = append(entry.Replies, reply)
				}
			}
			result = append(result, entry)
		}

		return nil, readMessagesOutput{
			Channel:  in.Channel,
			Count:    len(result),
			Messages: result,
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "slack_read_thread",
		Description: "Read all replies in a thread. Use the ts from slack_read_messages as thread_ts.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in readThreadInput) (*mcp.CallToolResult, readThreadOutput, error) {
		client, err := s.deps.Slack.GetClient(ctx)
		if err != nil {
			return nil, readThreadOutput{}, err
		}

		messages, err := client.GetThreadReplies(ctx, in.Channel, in.ThreadTS, in.Limit)
		if err != nil {
			return nil, readThreadOutput{}, err
		}

		result := make([]threadMessage, 0, len(messages))
		for _, msg := range messages {
			result = append(result, threadMessage{
				SlackMessage: msg,
				IsParent:     msg.Timestamp == in.ThreadTS,
			})
		}

		return nil, readThreadOutput{
			Channel:  in.Channel,
			ThreadTS: in.ThreadTS,
			Count:    len(result),
			Messages: result,
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "slack_post_message",
		Description: "Post a message to a channel by name or ID.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in postMessageInput) (*mcp.CallToolResult, *model.MessageReceipt, error) {
		client, err := s.deps.Slack.GetClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		receipt, err := client.PostMessage(ctx, in.Channel, in.Text)
		if err != nil {
			return nil, nil, err
		}
		return nil, receipt, nil
	})
}
