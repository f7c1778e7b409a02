package handlers

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"star-art-studio/internal/blueprint"
	"star-art-studio/internal/generator"
	"star-art-studio/internal/telegram"
)

const (
	optionsCallbackPrefix = "opt"
	menuMain              = "main"
)

// Callback data is "opt:<owner>:<action>[:args...]". Actions:
//
//	menu <param|main>   show a selector or the overview
//	set <param> <key>   pick a value and return to the overview
//	reset               everything back to auto
//	close               drop the keyboard
func (h *Handler) handleCallback(q *telegram.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, optionsCallbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu is not for you.", true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	menu := menuMain

	switch action {
	case "menu":
		if len(args) >= 1 && findSelector(args[0]) != nil {
			menu = args[0]
		}
	case "set":
		if len(args) < 2 {
			return nil
		}
		_, err := h.sessions.UpdateOptions(sessionKey(ownerID), func(o *generator.Options) error {
			if err := o.Set(args[0], args[1]); err != nil {
				return err
			}
			return o.Validate()
		})
		if err != nil {
			_ = h.tg.AnswerCallback(q.ID, err.Error(), true)
			return nil
		}
	case "reset":
		_, _ = h.sessions.UpdateOptions(sessionKey(ownerID), func(o *generator.Options) error {
			*o = generator.Options{}
			return nil
		})
	case "close":
		_ = h.tg.AnswerCallback(q.ID, "Saved", false)
		opts := h.sessions.Options(sessionKey(ownerID))
		return h.tg.EditTextWithKeyboard(chatID, msgID, optionsText(opts)+"\n\nSend a scene description to generate.", tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	}

	_ = h.tg.AnswerCallback(q.ID, "OK", false)
	return h.renderOptions(chatID, ownerID, msgID, menu)
}

// renderOptions edits the menu in place when messageID is known and falls
// back to a new message.
func (h *Handler) renderOptions(chatID int64, userID int64, messageID int, menu string) error {
	opts := h.sessions.Options(sessionKey(userID))
	text := optionsText(opts)
	kb := mainKeyboard(userID, opts)
	if sel := findSelector(menu); sel != nil {
		text += "\n\nChoose " + strings.ToLower(sel.Label) + ":"
		kb = selectorKeyboard(userID, *sel, opts)
	}

	if messageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, messageID, text, kb); err == nil {
			return nil
		}
	}

	_, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	return err
}

func optionsText(opts generator.Options) string {
	var b strings.Builder
	b.WriteString("⚙️ Generation options\n")
	for _, sel := range blueprint.Catalog() {
		b.WriteString(fmt.Sprintf("\n%s: %s", sel.Label, currentName(sel, opts)))
	}
	return b.String()
}

func mainKeyboard(ownerID int64, opts generator.Options) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, sel := range blueprint.Catalog() {
		label := fmt.Sprintf("%s: %s", sel.Label, currentName(sel, opts))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "menu", sel.Param)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Reset all", cb(ownerID, "reset")),
		tgbotapi.NewInlineKeyboardButtonData("✅ Done", cb(ownerID, "close")),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func selectorKeyboard(ownerID int64, sel blueprint.Selector, opts generator.Options) tgbotapi.InlineKeyboardMarkup {
	current, _ := opts.Get(sel.Param)

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, o := range sel.Options {
		label := o.Name
		if o.Key == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "set", sel.Param, o.Key)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", menuMain)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func findSelector(param string) *blueprint.Selector {
	for _, sel := range blueprint.Catalog() {
		if sel.Param == param {
			return &sel
		}
	}
	return nil
}

func currentName(sel blueprint.Selector, opts generator.Options) string {
	current, _ := opts.Get(sel.Param)
	for _, o := range sel.Options {
		if o.Key == current {
			return o.Name
		}
	}
	return current
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", optionsCallbackPrefix, ownerID, strings.Join(parts, ":"))
}
