package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for /start and /help. It subscribes the
// sender to daily cards and replies with the welcome text.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	h := startHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

// startHandler processes the /start command using injected dependencies.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) handle(ctx context.Context, api BotAPI, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	msg := update.Message
	log.InfoContext(ctx, "Handling /start command", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	if err := h.deps.Subscriptions.Enable(ctx, msg.From.ID, displayName(msg.From)); err != nil {
		log.ErrorContext(ctx, "Failed to enable subscription", "error", err, "user_id", msg.From.ID)
		reply(ctx, api, log, msg, h.deps.Config.Telegram.Messages.GeneralError)
		return
	}

	reply(ctx, api, log, msg, h.deps.Config.Telegram.Messages.Welcome)
}
