package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"star-art-studio/internal/generator"
	"star-art-studio/internal/session"
	"star-art-studio/internal/studio"
	"star-art-studio/internal/telegram"
)

// Messenger is the slice of the Telegram client the handler needs.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTyping(chatID int64)
	SendTextWithKeyboard(chatID int64, text string, kb telegram.InlineKeyboard) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.InlineKeyboard) error
	AnswerCallback(callbackID, text string, alert bool) error
	SendDocument(chatID int64, name string, data []byte, caption string) error
	SendImages(chatID int64, images []generator.Image, caption string) error
}

type Options struct {
	Telegram Messenger
	Sessions *session.Store
	Logger   *slog.Logger
}

type Handler struct {
	tg       Messenger
	sessions *session.Store
	logger   *slog.Logger
}

const (
	textStart = "🎨 Star Art Studio\n\n" +
		"Describe a scene and I will draft a JSON blueprint, then paint 4 concepts from it.\n\n" +
		"Commands:\n" +
		"/generate <scene> - Blueprint and images\n" +
		"/options - Pick time of day, weather, camera and style\n" +
		"/set <option> <value|auto> - Set one option\n" +
		"/blueprint - Resend the last blueprint\n" +
		"/reset - Back to all auto\n" +
		"/help - Help"
	textHelp = "🎨 Help\n\n" +
		"Send any text to use it as the scene description.\n" +
		"Options left on auto are chosen by the model.\n" +
		"Example: /set time sunset\n" +
		"Options: time, weather, angle, fov, style."
	textNeedDescription = "❌ Please describe the scene.\nExample: /generate A castle on a hill with a dragon"
	textBusy            = "⏳ Still working on your previous request. Please wait for it to finish."
	textNoBlueprint     = "No blueprint yet. Send a scene description first."
	textUnknownCommand  = "❌ Unknown command. Use /help."
)

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:       opts.Telegram,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

func sessionKey(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if strings.TrimSpace(msg.Text) != "" {
		return h.generate(ctx, chatID, userID, msg.Text)
	}

	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, msg *telegram.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID, textStart)
	case "help":
		return h.tg.SendText(chatID, textHelp)
	case "generate":
		return h.generate(ctx, chatID, userID, args)
	case "options":
		return h.renderOptions(chatID, userID, 0, menuMain)
	case "set":
		return h.handleSet(chatID, userID, args)
	case "reset":
		_, _ = h.sessions.UpdateOptions(sessionKey(userID), func(o *generator.Options) error {
			*o = generator.Options{}
			return nil
		})
		return h.tg.SendText(chatID, "✅ All options are back to auto.")
	case "blueprint":
		snap := h.sessions.GetOrCreate(sessionKey(userID)).Studio.Snapshot()
		if snap.Blueprint == nil {
			return h.tg.SendText(chatID, textNoBlueprint)
		}
		return h.sendBlueprint(chatID, snap)
	default:
		return h.tg.SendText(chatID, textUnknownCommand)
	}
}

func (h *Handler) handleSet(chatID int64, userID int64, args string) error {
	param, value, ok := strings.Cut(args, " ")
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return h.tg.SendText(chatID, "❌ Usage: /set <option> <value|auto>\nExample: /set weather misty")
	}

	_, err := h.sessions.UpdateOptions(sessionKey(userID), func(o *generator.Options) error {
		if err := o.Set(param, value); err != nil {
			return err
		}
		return o.Validate()
	})
	if err != nil {
		return h.tg.SendText(chatID, "❌ "+err.Error())
	}
	return h.tg.SendText(chatID, fmt.Sprintf("✅ %s set to %s.", param, value))
}

// generate runs one blueprint-then-images pass for the user's session and
// reports progress as the orchestrator moves between stages.
func (h *Handler) generate(ctx context.Context, chatID int64, userID int64, description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return h.tg.SendText(chatID, textNeedDescription)
	}

	sess := h.sessions.GetOrCreate(sessionKey(userID))
	if sess.Studio.Loading() {
		return h.tg.SendText(chatID, textBusy)
	}
	opts := h.sessions.Options(sess.ID)

	h.tg.SendTyping(chatID)

	updates, unsubscribe := sess.Studio.Subscribe(4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := studio.PhaseIdle
		for snap := range updates {
			if snap.Phase == last || !snap.Phase.Loading() {
				continue
			}
			last = snap.Phase
			_ = h.tg.SendText(chatID, "⏳ "+snap.Phase.Message())
		}
	}()

	err := sess.Studio.Run(ctx, description, opts)
	unsubscribe()
	<-done

	switch {
	case errors.Is(err, studio.ErrBusy):
		return h.tg.SendText(chatID, textBusy)
	case errors.Is(err, studio.ErrEmptyDescription):
		return h.tg.SendText(chatID, textNeedDescription)
	}

	snap := sess.Studio.Snapshot()
	h.logger.Info("generation finished",
		"user_id", userID,
		"run_id", snap.RunID,
		"phase", snap.Phase.String(),
		"images", len(snap.Images),
	)

	if snap.Blueprint != nil {
		if err := h.sendBlueprint(chatID, snap); err != nil {
			return err
		}
	}

	if snap.Phase == studio.PhaseFailed {
		return h.tg.SendText(chatID, "❌ Generation Failed\n"+snap.Error)
	}

	return h.tg.SendImages(chatID, snap.Images, "✅ "+truncateLine(snap.Description, 200))
}

func (h *Handler) sendBlueprint(chatID int64, snap studio.Snapshot) error {
	data, err := json.MarshalIndent(snap.Blueprint, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blueprint: %w", err)
	}
	return h.tg.SendDocument(chatID, "blueprint.json", data, "📐 JSON blueprint")
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
