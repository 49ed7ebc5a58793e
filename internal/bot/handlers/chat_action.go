package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Telegram clears a chat action after about five seconds.
const chatActionInterval = 4 * time.Second

// ChatActionAPI is the part of *bot.Bot used to show chat actions.
type ChatActionAPI interface {
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

// KeepUploadingPhoto shows the "sending photo" indicator in chatID until ctx
// is cancelled.
func KeepUploadingPhoto(ctx context.Context, api ChatActionAPI, chatID int64, log *slog.Logger) {
	keepChatAction(ctx, api, chatID, models.ChatActionUploadPhoto, chatActionInterval, log)
}

func keepChatAction(ctx context.Context, api ChatActionAPI, chatID int64, action models.ChatAction, every time.Duration, log *slog.Logger) {
	send := func() error {
		_, err := api.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: action})
		return err
	}

	if err := send(); err != nil {
		log.Debug("Failed to send initial chat action", "chat_id", chatID, "error", err)
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(); err != nil && ctx.Err() == nil {
				log.Debug("Chat action failed", "chat_id", chatID, "error", err)
			}
		}
	}
}
