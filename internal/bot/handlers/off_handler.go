package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewOffHandler returns a handler for the /off command.
func NewOffHandler(deps HandlerDeps) bot.HandlerFunc {
	h := offHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type offHandler struct {
	deps HandlerDeps
}

func (h offHandler) handle(ctx context.Context, api BotAPI, update *models.Update) {
	log := h.deps.Logger.With("handler", "off")
	msg := update.Message
	messages := h.deps.Config.Telegram.Messages

	wasEnabled, err := h.deps.Subscriptions.Disable(ctx, msg.From.ID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to disable subscription", "error", err, "user_id", msg.From.ID)
		reply(ctx, api, log, msg, messages.GeneralError)
		return
	}

	if !wasEnabled {
		reply(ctx, api, log, msg, messages.AlreadyDisabled)
		return
	}

	log.InfoContext(ctx, "Subscription disabled", "user_id", msg.From.ID)
	reply(ctx, api, log, msg, messages.Disabled)
}
