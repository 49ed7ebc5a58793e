package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/holidaybot/internal/holiday"
)

// NewTodayHandler returns a handler for /today: a card for the current date.
func NewTodayHandler(deps HandlerDeps) bot.HandlerFunc {
	h := cardHandler{deps: deps, name: "today", pickDate: func(now time.Time) time.Time { return now }}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

// NewRandomHandler returns a handler for /random: a card for a random day of
// the current year, captioned with that day.
func NewRandomHandler(deps HandlerDeps) bot.HandlerFunc {
	pick := deps.RandomDate
	if pick == nil {
		pick = func(now time.Time) time.Time { return holiday.RandomDate(now, nil) }
	}
	h := cardHandler{deps: deps, name: "random", pickDate: pick, caption: true}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

// cardHandler renders a card synchronously while the chat shows a wait
// message and an "uploading photo" indicator.
type cardHandler struct {
	deps     HandlerDeps
	name     string
	pickDate func(now time.Time) time.Time
	caption  bool
}

func (h cardHandler) handle(ctx context.Context, api BotAPI, update *models.Update) {
	log := h.deps.Logger.With("handler", h.name)
	msg := update.Message
	chatID := msg.Chat.ID
	messages := h.deps.Config.Telegram.Messages

	log.InfoContext(ctx, "Handling card command", "chat_id", chatID, "user_id", msg.From.ID)

	wait, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            messages.Wait,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		log.WarnContext(ctx, "Failed to send wait message", "error", err, "chat_id", chatID)
	}

	actionCtx, stopAction := context.WithCancel(ctx)
	go KeepUploadingPhoto(actionCtx, api, chatID, log)

	date := h.pickDate(h.now())
	card, err := h.deps.Cards.MakeForDate(ctx, date)
	stopAction()

	if wait != nil {
		if _, delErr := api.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: wait.ID}); delErr != nil {
			log.WarnContext(ctx, "Failed to delete wait message", "error", delErr, "chat_id", chatID)
		}
	}

	if err != nil {
		log.ErrorContext(ctx, "Failed to make card", "error", err, "date", date.Format(time.DateOnly))
		reply(ctx, api, log, msg, messages.GeneralError)
		return
	}

	params := &bot.SendPhotoParams{
		ChatID:          chatID,
		Photo:           &models.InputFileUpload{Filename: "card.png", Data: bytes.NewReader(card.Image)},
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	}
	if h.caption {
		params.Caption = card.Day
	}
	if _, err := api.SendPhoto(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send card", "error", err, "chat_id", chatID)
		return
	}
	log.DebugContext(ctx, "Card sent", "chat_id", chatID, "holiday", card.Holiday)
}

func (h cardHandler) now() time.Time {
	if h.deps.Now != nil {
		return h.deps.Now()
	}
	return time.Now().In(h.deps.Config.Scheduler.Location())
}

func reply(ctx context.Context, api BotAPI, log *slog.Logger, msg *models.Message, text string) {
	_, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", msg.Chat.ID)
	}
}
