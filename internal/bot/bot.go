package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vlad-lazar/sokrati/internal/models"
	"github.com/vlad-lazar/sokrati/internal/notes"
	"go.uber.org/zap"
)

const (
	historySize        = 5
	telegramFileScheme = "tg://file/"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	notes  *notes.Service
	logger *zap.Logger
}

func New(token string, svc *notes.Service, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:    api,
		notes:  svc,
		logger: logger,
	}, nil
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// callerFor maps a Telegram sender onto a note owner id.
func callerFor(message *tgbotapi.Message) string {
	return fmt.Sprintf("telegram:%d", message.From.ID)
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	in := models.CreateNoteInput{Text: message.Text}
	if message.Caption != "" {
		in.Text = message.Caption
	}
	if len(message.Photo) > 0 {
		in.Attachments = append(in.Attachments, photoAttachment(message.Photo))
	}

	note, err := b.notes.CreateNote(ctx, callerFor(message), in)
	if err != nil {
		b.logger.Error("Failed to save note",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, userMessage(err, "Sorry, I couldn't save your note. Please try again."))
		return
	}

	b.sendReply(message.Chat.ID, message.MessageID, formatSaved(note))
}

// photoAttachment references the largest size by file id. Download URLs
// embed the bot token, so they are never stored; holders of the token
// resolve the id with getFile.
func photoAttachment(sizes []tgbotapi.PhotoSize) models.Attachment {
	// Telegram lists sizes smallest first.
	photo := sizes[len(sizes)-1]
	return models.Attachment{
		URL:      telegramFileScheme + photo.FileID,
		Name:     photo.FileUniqueID + ".jpg",
		MimeType: "image/jpeg",
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "notes":
		b.handleList(ctx, message, false)
	case "favourites":
		b.handleList(ctx, message, true)
	case "fav":
		b.handleFavourite(ctx, message, true)
	case "unfav":
		b.handleFavourite(ctx, message, false)
	case "edit":
		b.handleEdit(ctx, message)
	case "delete":
		b.handleDelete(ctx, message)
	case "mood":
		b.handleMood(ctx, message)
	case "photos":
		b.handlePhotos(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to Sokrati! 📝
Send me anything on your mind and I'll keep it in your journal, along with how it sounds.

Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/notes - Show your latest notes
/favourites - Show your favourite notes
/fav <id> - Mark a note as favourite
/unfav <id> - Remove a note from favourites
/edit <id> <text> - Replace the text of a note
/delete <id> - Delete a note
/mood [day|week|month|year] - Show your mood over time
/photos <id> - Send back the photos attached to a note

Any other message or photo becomes a new note.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleList(ctx context.Context, message *tgbotapi.Message, favourites bool) {
	list, err := b.notes.ListNotes(ctx, callerFor(message), notes.ListFilter{FavouritesOnly: favourites})
	if err != nil {
		b.logger.Error("Failed to list notes",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your notes.")
		return
	}

	if len(list) == 0 {
		if favourites {
			b.sendMessage(message.Chat.ID, "You don't have any favourite notes yet.")
		} else {
			b.sendMessage(message.Chat.ID, "You don't have any notes yet.")
		}
		return
	}
	if len(list) > historySize {
		list = list[:historySize]
	}

	b.sendMarkdown(message.Chat.ID, formatNoteList(list))
}

func (b *Bot) handleFavourite(ctx context.Context, message *tgbotapi.Message, favourite bool) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Usage: /%s <note id>", message.Command()))
		return
	}

	_, err := b.notes.UpdateNote(ctx, callerFor(message), id, models.UpdateNoteInput{IsFavourite: &favourite})
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, userMessage(err, "Sorry, I couldn't update that note."))
		return
	}
	if favourite {
		b.sendMessage(message.Chat.ID, "⭐ Added to favourites.")
	} else {
		b.sendMessage(message.Chat.ID, "Removed from favourites.")
	}
}

func (b *Bot) handleEdit(ctx context.Context, message *tgbotapi.Message) {
	id, text, _ := strings.Cut(strings.TrimSpace(message.CommandArguments()), " ")
	if id == "" {
		b.sendMessage(message.Chat.ID, "Usage: /edit <note id> <new text>")
		return
	}

	note, err := b.notes.UpdateNote(ctx, callerFor(message), id, models.UpdateNoteInput{Text: &text})
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, userMessage(err, "Sorry, I couldn't update that note."))
		return
	}
	b.sendMessage(message.Chat.ID, "✏️ Note updated. "+describeSentiment(note.Sentiment))
}

func (b *Bot) handleDelete(ctx context.Context, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.sendMessage(message.Chat.ID, "Usage: /delete <note id>")
		return
	}

	if err := b.notes.DeleteNote(ctx, callerFor(message), id); err != nil {
		b.sendErrorMessage(message.Chat.ID, userMessage(err, "Sorry, I couldn't delete that note."))
		return
	}
	b.sendMessage(message.Chat.ID, "🗑 Note deleted.")
}

func (b *Bot) handleMood(ctx context.Context, message *tgbotapi.Message) {
	rng := notes.ParseRange(message.CommandArguments())
	points, err := b.notes.AggregateSentimentOverTime(ctx, callerFor(message), rng)
	if err != nil {
		b.logger.Error("Failed to aggregate sentiment",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't work out your mood right now.")
		return
	}
	if len(points) == 0 {
		b.sendMessage(message.Chat.ID, "No scored notes in that period yet.")
		return
	}
	b.sendMessage(message.Chat.ID, formatMood(rng, points))
}

func (b *Bot) handlePhotos(ctx context.Context, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.sendMessage(message.Chat.ID, "Usage: /photos <note id>")
		return
	}

	note, err := b.notes.GetNote(ctx, callerFor(message), id)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, userMessage(err, "Sorry, I couldn't load that note."))
		return
	}

	sent := 0
	for _, a := range note.Attachments {
		fileID, ok := strings.CutPrefix(a.URL, telegramFileScheme)
		if !ok {
			continue
		}
		if _, err := b.api.Send(tgbotapi.NewPhoto(message.Chat.ID, tgbotapi.FileID(fileID))); err != nil {
			b.logger.Error("Failed to send photo",
				zap.Error(err),
				zap.String("note_id", note.ID))
			continue
		}
		sent++
	}
	if sent == 0 {
		b.sendMessage(message.Chat.ID, "That note has no Telegram photos.")
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendReply(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = replyToID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send reply",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
