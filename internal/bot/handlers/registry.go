package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its middleware.
// It encapsulates all information needed to register a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	senderOnly := []tgbot.Middleware{RequireSender(deps)}

	command := func(pattern string, h tgbot.HandlerFunc) {
		handlers["/"+pattern] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  senderOnly,
		}
	}

	start := NewStartHandler(deps)
	command("start", start)
	command("help", start)
	command("off", NewOffHandler(deps))
	command("today", NewTodayHandler(deps))
	command("random", NewRandomHandler(deps))

	return handlers
}
