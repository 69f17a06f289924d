package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymmrac/telego"

	"tgfeed/pkg/telegoapi"
)

// LiveCounter reads the current member count of a public channel.
type LiveCounter interface {
	MemberCount(ctx context.Context, channel string) (int64, error)
}

// TelegramCounter asks the Bot API for the member count of @channel.
type TelegramCounter struct {
	api telegoapi.ChatAPI
}

// NewTelegramCounter creates a counter. It requires a non-nil API.
func NewTelegramCounter(api telegoapi.ChatAPI) (*TelegramCounter, error) {
	if api == nil {
		return nil, errors.New("telegram chat API cannot be nil")
	}
	return &TelegramCounter{api: api}, nil
}

// MemberCount returns the member count of channel.
func (c *TelegramCounter) MemberCount(ctx context.Context, channel string) (int64, error) {
	count, err := c.api.GetChatMemberCount(ctx, &telego.GetChatMemberCountParams{
		ChatID: telego.ChatID{Username: "@" + channel},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get member count of @%s: %w", channel, err)
	}
	if count == nil {
		return 0, fmt.Errorf("empty member count for @%s", channel)
	}
	return int64(*count), nil
}
