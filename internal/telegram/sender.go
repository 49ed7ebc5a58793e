package telegram

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/holidaybot/internal/errs"
)

// PhotoAPI is the part of *bot.Bot used to send photos.
type PhotoAPI interface {
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
}

// Sender delivers cards to chats and classifies Telegram failures.
type Sender struct {
	api PhotoAPI
}

// NewSender wraps api.
func NewSender(api PhotoAPI) *Sender {
	return &Sender{api: api}
}

// SendPhoto uploads image as card.png. A chat that blocked the bot yields
// errs.ErrDeliveryBlocked, any other failure errs.ErrDelivery.
func (s *Sender) SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error {
	_, err := s.api.SendPhoto(ctx, PhotoParams(chatID, image, caption))
	return ClassifyError(err)
}

// PhotoParams builds the upload request for image.
func PhotoParams(chatID int64, image []byte, caption string) *bot.SendPhotoParams {
	return &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: "card.png", Data: bytes.NewReader(image)},
		Caption: caption,
	}
}

// ClassifyError maps a Telegram API error onto the delivery error codes.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bot.ErrorForbidden) || isBlocked(err) {
		return errs.NewDeliveryBlockedError("recipient blocked the bot", err)
	}
	return errs.NewDeliveryError("telegram send failed", err)
}

// isBlocked reports recipient-side refusals only. "chat not found" is a bad
// request that can come from a malformed id and stays a plain delivery error.
func isBlocked(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "bot was blocked") ||
		strings.Contains(msg, "user is deactivated")
}
