package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/holidaybot/internal/cards"
	"github.com/edgard/holidaybot/internal/config"
)

// Subscriptions manages daily deliveries for a chat.
type Subscriptions interface {
	Enable(ctx context.Context, telegramID int64, name string) error
	Disable(ctx context.Context, telegramID int64) (bool, error)
}

// CardMaker renders the card for a date.
type CardMaker interface {
	MakeForDate(ctx context.Context, date time.Time) (*cards.Card, error)
}

// BotAPI is the subset of *bot.Bot the handlers call.
type BotAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	ChatActionAPI
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger        *slog.Logger
	Config        *config.Config
	Subscriptions Subscriptions
	Cards         CardMaker
	// Now defaults to time.Now in the scheduler time zone.
	Now func() time.Time
	// RandomDate picks the day for /random. Defaults to holiday.RandomDate.
	RandomDate func(now time.Time) time.Time
}
