package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/survival-bro/internal/llm"
	"github.com/raine/survival-bro/internal/scan"
	"github.com/rs/zerolog/log"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

const maxListedItems = 10

// Bot serves the owner's Telegram chat on top of a scan store.
type Bot struct {
	tg         BotAPI
	intake     *scan.Intake
	store      *scan.Store
	ownerID    int64
	downloader *ImageDownloader
	session    *UserSession
}

// NewBot creates the bot and starts its session worker. Call Stop when done.
func NewBot(tg BotAPI, intake *scan.Intake, ownerID int64) *Bot {
	b := &Bot{
		tg:         tg,
		intake:     intake,
		store:      intake.Store(),
		ownerID:    ownerID,
		downloader: NewImageDownloader(),
	}
	b.session = newUserSession(ownerID, tg)
	b.session.SetHandler(b)
	b.session.StartWorker()
	b.store.Subscribe(b.onStoreEvent)
	return b
}

// Stop stops the session worker.
func (b *Bot) Stop() {
	b.session.Stop()
}

// onStoreEvent forwards the events that change what the chat shows. Events
// caused by the worker itself (added, selected, deleted) are handled inline
// by the worker and skipped here, so the worker never waits on its own inbox.
func (b *Bot) onStoreEvent(ev scan.Event) {
	switch ev.Type {
	case scan.EventItemAnalyzed, scan.EventItemFailed,
		scan.EventNotificationCreated, scan.EventNotificationExpired:
		b.session.Send(SessionMessage{
			Type:  "store_event",
			Ctx:   context.Background(),
			Event: &ev,
		})
	}
}

// HandleUpdate is the main message router.
// It dispatches messages to the session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var userId int64
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		userId = update.CallbackQuery.From.ID
	} else if update.Message != nil && update.Message.From != nil {
		userId = update.Message.From.ID
	} else {
		return
	}

	if userId != b.ownerID {
		log.Debug().Int64("userId", userId).Msg("dropping update from non-owner")
		return
	}

	msg := SessionMessage{Ctx: ctx}
	switch {
	case update.CallbackQuery != nil:
		msg.Type = "callback"
		msg.CallbackQuery = update.CallbackQuery
	case len(update.Message.Photo) > 0 || update.Message.Document != nil:
		msg.Type = "photo"
		msg.Message = update.Message
	default:
		log.Info().Str("text", update.Message.Text).Msg("got message")
		msg.Type = "text"
		msg.Message = update.Message
	}

	if sync {
		b.session.SendSync(msg)
	} else {
		b.session.Send(msg)
	}
}

// HandleSessionMessage implements MessageHandler. Called only from the worker.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case "callback":
		b.handleCallbackQuery(session, msg.CallbackQuery)
	case "photo":
		b.handlePhotoMessage(ctx, session, msg.Message)
	case "text":
		b.handleCommand(session, msg.Message)
	case "store_event":
		b.handleStoreEvent(session, *msg.Event)
	}
}

// fileIDFor returns the largest photo size or an image document.
func fileIDFor(message *tgbotapi.Message) (fileID, mimeType string, ok bool) {
	if len(message.Photo) > 0 {
		return message.Photo[len(message.Photo)-1].FileID, "image/jpeg", true
	}
	if doc := message.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		return doc.FileID, doc.MimeType, true
	}
	return "", "", false
}

func (b *Bot) handlePhotoMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	fileID, mimeType, ok := fileIDFor(message)
	if !ok {
		session.reply(MsgNotAnImage)
		return
	}

	data, err := b.downloader.DownloadFromTelegramFileID(ctx, b.tg.GetFileDirectURL, fileID)
	if err != nil {
		log.Error().Err(err).Str("fileID", fileID).Msg("failed to download photo")
		session.reply(MsgDownloadError)
		return
	}

	scanning := tgbotapi.NewMessage(session.userId, MsgScanning)
	scanning.ReplyToMessageID = message.MessageID
	sent := session.replyWithMessage(scanning)

	id, err := b.intake.Ingest(scan.Upload{
		Name:     fileID,
		MIMEType: mimeType,
		Reader:   bytes.NewReader(data),
	})
	if err != nil {
		session.replyWithError(err)
		return
	}
	if sent.MessageID != 0 {
		session.scanMessages[id] = sent.MessageID
	}
}

func (b *Bot) handleStoreEvent(session *UserSession, ev scan.Event) {
	switch ev.Type {
	case scan.EventItemAnalyzed:
		messageID, ok := session.scanMessages[ev.Item.ID]
		if !ok {
			// Uploaded through another surface
			return
		}
		markup := reportKeyboard(ev.Item.ID)
		session.editMessage(messageID, formatReport(ev.Item), &markup)

	case scan.EventItemFailed:
		messageID, ok := session.scanMessages[ev.Item.ID]
		if !ok {
			return
		}
		session.editMessage(messageID, failureText(ev.Item.Failure), nil)
		delete(session.scanMessages, ev.Item.ID)

	case scan.EventNotificationCreated:
		msg := tgbotapi.NewMessage(session.userId, ev.Notification.Message)
		msg.ReplyMarkup = alertKeyboard(ev.Notification.ID)
		if messageID, ok := session.scanMessages[ev.Notification.TargetItemID]; ok {
			msg.ReplyToMessageID = messageID
		}
		sent := session.replyWithMessage(msg)
		if sent.MessageID != 0 {
			session.alertMessages[ev.Notification.ID] = sent.MessageID
		}

	case scan.EventNotificationExpired:
		messageID, ok := session.alertMessages[ev.Notification.ID]
		if !ok {
			return
		}
		session.deleteMessage(messageID)
		delete(session.alertMessages, ev.Notification.ID)
	}
}

func (b *Bot) handleCallbackQuery(session *UserSession, query *tgbotapi.CallbackQuery) {
	action, payload := parseCallbackData(query.Data)
	switch action {
	case callbackView:
		b.showItem(session, query, payload)
	case callbackOpen:
		n, ok := b.store.OpenNotification(payload)
		if !ok {
			session.answerCallback(query.ID, MsgScanNotFound)
			return
		}
		b.sendItem(session, n.TargetItemID)
		session.answerCallback(query.ID, "")
	case callbackDelete:
		b.deleteItem(session, query, payload)
	default:
		log.Warn().Str("data", query.Data).Msg("unknown callback data")
		session.answerCallback(query.ID, "")
	}
}

func (b *Bot) showItem(session *UserSession, query *tgbotapi.CallbackQuery, itemID string) {
	if _, ok := b.store.Item(itemID); !ok {
		session.answerCallback(query.ID, MsgScanNotFound)
		return
	}
	b.store.Select(itemID)
	b.sendItem(session, itemID)
	session.answerCallback(query.ID, "")
}

// sendItem sends the photo with its risk line, then the full report.
func (b *Bot) sendItem(session *UserSession, itemID string) {
	item, ok := b.store.Item(itemID)
	if !ok {
		session.reply(MsgScanNotFound)
		return
	}
	if item.Status == scan.StatusPending {
		session.reply(MsgStillScanning)
		return
	}

	data, mimeType, err := llm.DecodeImage(item.ImageData)
	if err != nil {
		session.replyWithError(fmt.Errorf("failed to decode stored image: %w", err))
		return
	}
	photo := tgbotapi.NewPhoto(session.userId, tgbotapi.FileBytes{
		Name:  "scan." + strings.TrimPrefix(mimeType, "image/"),
		Bytes: data,
	})
	if item.Result != nil {
		photo.Caption = riskLine(item.Result.RiskLevel)
	}
	if _, err := b.tg.Send(photo); err != nil {
		log.Error().Err(err).Str("itemID", itemID).Msg("failed to send photo")
	}

	msg := tgbotapi.NewMessage(session.userId, formatReport(item))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnDelete, callbackDelete+":"+itemID),
		),
	)
	session.replyWithMessage(msg)
}

func (b *Bot) deleteItem(session *UserSession, query *tgbotapi.CallbackQuery, itemID string) {
	b.store.Delete(itemID)
	delete(session.scanMessages, itemID)
	if query.Message != nil {
		session.editMessage(query.Message.MessageID, MsgScanDeleted, nil)
	}
	session.answerCallback(query.ID, MsgScanDeleted)
}

func (b *Bot) handleCommand(session *UserSession, message *tgbotapi.Message) {
	command, _ := parseCommand(message.Text)
	switch command {
	case "/start":
		session.reply(MsgWelcome)
	case "/list":
		b.sendList(session)
	case "/stats":
		session.reply(MsgStats, b.store.ScannedCount(), b.store.ThreatCount())
	default:
		session.reply(MsgNotAnImage)
	}
}

func (b *Bot) sendList(session *UserSession) {
	items := b.store.Items()
	if len(items) == 0 {
		session.reply(MsgNoScans)
		return
	}
	if len(items) > maxListedItems {
		items = items[:maxListedItems]
	}

	lines := make([]string, 0, len(items)+1)
	lines = append(lines, MsgListHeader)
	for i, item := range items {
		lines = append(lines, listLine(i+1, item))
	}

	msg := tgbotapi.NewMessage(session.userId, strings.Join(lines, "\n"))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = listKeyboard(items)
	session.replyWithMessage(msg)
}
