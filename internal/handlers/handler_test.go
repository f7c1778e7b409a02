package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"star-art-studio/internal/blueprint"
	"star-art-studio/internal/generator"
	"star-art-studio/internal/session"
	"star-art-studio/internal/studio"
	"star-art-studio/internal/telegram"
)

type sentDocument struct {
	name string
	data []byte
}

type fakeMessenger struct {
	mu        sync.Mutex
	texts     []string
	documents []sentDocument
	albums    [][]generator.Image
	callbacks []string
	alerts    []bool
	keyboards []telegram.InlineKeyboard
	edits     int
}

func (f *fakeMessenger) SendText(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendTyping(chatID int64) {}

func (f *fakeMessenger) SendTextWithKeyboard(chatID int64, text string, kb telegram.InlineKeyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.keyboards = append(f.keyboards, kb)
	return 42, nil
}

func (f *fakeMessenger) EditTextWithKeyboard(chatID int64, messageID int, text string, kb telegram.InlineKeyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	f.texts = append(f.texts, text)
	f.keyboards = append(f.keyboards, kb)
	return nil
}

func (f *fakeMessenger) AnswerCallback(callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, text)
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeMessenger) SendDocument(chatID int64, name string, data []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.documents = append(f.documents, sentDocument{name: name, data: data})
	return nil
}

func (f *fakeMessenger) SendImages(chatID int64, images []generator.Image, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums = append(f.albums, images)
	return nil
}

func (f *fakeMessenger) allTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type stubBlueprints struct {
	mu      sync.Mutex
	opts    generator.Options
	err     error
	release chan struct{}
}

func (s *stubBlueprints) GenerateBlueprint(ctx context.Context, description string, opts generator.Options) (blueprint.Blueprint, error) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return blueprint.Blueprint{}, s.err
	}
	return blueprint.Blueprint{
		Scene:       blueprint.Scene{Environment: "hillside", Subjects: []string{"castle"}, TimeOfDay: blueprint.TimeSunset, Weather: blueprint.WeatherClear},
		Camera:      blueprint.Camera{Angle: blueprint.AngleWideShot, FOV: blueprint.FOVWide},
		Style:       blueprint.Style{ArtisticStyle: blueprint.StyleCinematic, Lighting: blueprint.LightingDramatic, Palette: blueprint.PaletteWarm},
		Rendering:   blueprint.Rendering{Effects: []string{"hdr"}, AspectRatio: blueprint.Ratio16x9},
		FinalPrompt: "A castle at sunset",
	}, nil
}

func (s *stubBlueprints) lastOptions() generator.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

type stubImages struct {
	err error
}

func (s stubImages) GenerateImages(ctx context.Context, prompt string, ratio blueprint.AspectRatio) ([]generator.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]generator.Image, generator.BatchSize)
	for i := range out {
		out[i] = generator.Image{MIMEType: generator.OutputMIMEType, Data: []byte{byte(i)}}
	}
	return out, nil
}

func newHandler(bp *stubBlueprints, images stubImages) (*Handler, *fakeMessenger, *session.Store) {
	store := session.NewStore(session.Options{
		NewStudio: func() *studio.Orchestrator {
			return studio.New(studio.Options{Blueprints: bp, Images: images})
		},
	})
	tg := &fakeMessenger{}
	return New(Options{Telegram: tg, Sessions: store}), tg, store
}

const userID = 7

func textUpdate(text string) telegram.Update {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 100},
		From: &tgbotapi.User{ID: userID},
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return telegram.Update{Message: msg}
}

func callbackUpdate(fromID int64, data string) telegram.Update {
	return telegram.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: fromID},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 42, Chat: &tgbotapi.Chat{ID: 100}},
	}}
}

func TestStartAndUnknownCommand(t *testing.T) {
	h, tg, _ := newHandler(&stubBlueprints{}, stubImages{})

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/start")))
	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/nope")))

	assert.Equal(t, []string{textStart, textUnknownCommand}, tg.allTexts())
}

func TestPlainTextGenerates(t *testing.T) {
	h, tg, _ := newHandler(&stubBlueprints{}, stubImages{})

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("A castle on a hill")))

	assert.Equal(t, []string{
		"⏳ " + studio.PhaseBuildingBlueprint.Message(),
		"⏳ " + studio.PhaseBuildingImages.Message(),
	}, tg.allTexts())

	require.Len(t, tg.documents, 1)
	assert.Equal(t, "blueprint.json", tg.documents[0].name)
	var bp blueprint.Blueprint
	require.NoError(t, json.Unmarshal(tg.documents[0].data, &bp))
	assert.Equal(t, "A castle at sunset", bp.FinalPrompt)

	require.Len(t, tg.albums, 1)
	assert.Len(t, tg.albums[0], generator.BatchSize)
}

func TestGenerateWithoutDescription(t *testing.T) {
	h, tg, _ := newHandler(&stubBlueprints{}, stubImages{})

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/generate")))
	assert.Equal(t, []string{textNeedDescription}, tg.allTexts())
	assert.Empty(t, tg.documents)
}

func TestSetOptionsFlowIntoRun(t *testing.T) {
	bp := &stubBlueprints{}
	h, tg, store := newHandler(bp, stubImages{})

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/set time sunset")))
	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/set weather hail")))
	assert.Equal(t, generator.Options{TimeOfDay: "sunset"}, store.Options(sessionKey(userID)))

	texts := tg.allTexts()
	require.Len(t, texts, 2)
	assert.True(t, strings.HasPrefix(texts[0], "✅"))
	assert.True(t, strings.HasPrefix(texts[1], "❌"))

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/generate castle")))
	assert.Equal(t, "sunset", bp.lastOptions().TimeOfDay)

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/reset")))
	assert.Equal(t, generator.Options{}, store.Options(sessionKey(userID)))
}

func TestBlueprintFailureReportsMessage(t *testing.T) {
	cause := &generator.StageError{Kind: generator.ErrBlueprintFailed, Cause: errors.New("boom")}
	h, tg, _ := newHandler(&stubBlueprints{err: cause}, stubImages{})

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("castle")))

	texts := tg.allTexts()
	assert.Equal(t, "❌ Generation Failed\n"+generator.ErrBlueprintFailed.Error(), texts[len(texts)-1])
	assert.Empty(t, tg.documents)
	assert.Empty(t, tg.albums)
}

func TestImageFailureStillSendsBlueprint(t *testing.T) {
	cause := &generator.StageError{Kind: generator.ErrImagesFailed, Cause: errors.New("quota")}
	h, tg, _ := newHandler(&stubBlueprints{}, stubImages{err: cause})

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("castle")))

	texts := tg.allTexts()
	assert.Equal(t, "❌ Generation Failed\n"+generator.ErrImagesFailed.Error(), texts[len(texts)-1])
	assert.Len(t, tg.documents, 1)
	assert.Empty(t, tg.albums)
}

func TestSecondRequestWhileBusy(t *testing.T) {
	bp := &stubBlueprints{release: make(chan struct{})}
	h, tg, store := newHandler(bp, stubImages{})

	done := make(chan error, 1)
	go func() {
		done <- h.HandleUpdate(context.Background(), textUpdate("first"))
	}()

	sess := store.GetOrCreate(sessionKey(userID))
	require.Eventually(t, sess.Studio.Loading, time.Second, 5*time.Millisecond)

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("second")))
	assert.Contains(t, tg.allTexts(), textBusy)

	close(bp.release)
	require.NoError(t, <-done)
	assert.Equal(t, "first", sess.Studio.Snapshot().Description)
}

func TestBlueprintCommand(t *testing.T) {
	h, tg, _ := newHandler(&stubBlueprints{}, stubImages{})

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/blueprint")))
	assert.Equal(t, []string{textNoBlueprint}, tg.allTexts())

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("castle")))
	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/blueprint")))
	assert.Len(t, tg.documents, 2)
}

func TestOptionsMenuCallbacks(t *testing.T) {
	h, tg, store := newHandler(&stubBlueprints{}, stubImages{})

	require.NoError(t, h.HandleUpdate(context.Background(), textUpdate("/options")))
	require.Len(t, tg.keyboards, 1)
	// Five selectors plus the reset/done row.
	assert.Len(t, tg.keyboards[0].InlineKeyboard, 6)

	require.NoError(t, h.HandleUpdate(context.Background(), callbackUpdate(userID, cb(userID, "menu", "weather"))))
	require.NoError(t, h.HandleUpdate(context.Background(), callbackUpdate(userID, cb(userID, "set", "weather", "misty"))))
	assert.Equal(t, "misty", store.Options(sessionKey(userID)).Weather)
	assert.Equal(t, 2, tg.edits)
	assert.Contains(t, tg.allTexts()[2], "Weather: Misty")

	require.NoError(t, h.HandleUpdate(context.Background(), callbackUpdate(userID, cb(userID, "set", "weather", "hail"))))
	assert.Equal(t, "misty", store.Options(sessionKey(userID)).Weather)

	require.NoError(t, h.HandleUpdate(context.Background(), callbackUpdate(userID, cb(userID, "reset"))))
	assert.Equal(t, generator.Options{}, store.Options(sessionKey(userID)))
}

func TestOptionsMenuRejectsOtherUsers(t *testing.T) {
	h, tg, store := newHandler(&stubBlueprints{}, stubImages{})

	require.NoError(t, h.HandleUpdate(context.Background(), callbackUpdate(99, cb(userID, "set", "weather", "misty"))))
	assert.Equal(t, []bool{true}, tg.alerts)
	assert.Equal(t, generator.Options{}, store.Options(sessionKey(userID)))
}

func TestSelectorKeyboardMarksCurrent(t *testing.T) {
	sel := findSelector("cameraFov")
	require.NotNil(t, sel)

	kb := selectorKeyboard(userID, *sel, generator.Options{CameraFOV: "wide"})
	var labels []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			labels = append(labels, b.Text)
		}
	}
	assert.Contains(t, labels, "✅ Wide")
	assert.Contains(t, labels, "Auto")
	assert.Equal(t, "⬅ Back", labels[len(labels)-1])
}
