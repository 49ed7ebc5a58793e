// Package handlers contains Telegram bot command handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RequireSender drops updates that carry no message or no sender, so the
// command handlers can rely on update.Message.From.
func RequireSender(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if !hasSender(update) {
				deps.Logger.With("middleware", "RequireSender").
					WarnContext(ctx, "Dropping update without message sender", "update_id", update.ID)
				return
			}
			next(ctx, bot, update)
		}
	}
}

func hasSender(update *models.Update) bool {
	return update != nil && update.Message != nil && update.Message.From != nil
}

func displayName(u *models.User) string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
