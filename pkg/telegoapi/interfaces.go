package telegoapi

import (
	"context"

	"github.com/mymmrac/telego"
)

// FileAPI resolves Telegram file ids to downloadable URLs.
type FileAPI interface {
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(filepath string) string
}

// ChatAPI reads public chat information.
type ChatAPI interface {
	GetChatMemberCount(ctx context.Context, params *telego.GetChatMemberCountParams) (*int, error)
}

// UpdatesAPI receives updates by long polling.
type UpdatesAPI interface {
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error)
}

// BotAPI defines the bot operations used by the service.
// This allows using both the real telego.Bot and mocks.
type BotAPI interface {
	FileAPI
	ChatAPI
	UpdatesAPI
}

var _ BotAPI = (*telego.Bot)(nil)
