package telegram

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ArticlesClassifier/internal/ports"
)

// maxMessageLen is the Bot API limit for a single text message.
const maxMessageLen = 4096

// Sender is the subset of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends batch digests to a Telegram chat.
type Notifier struct {
	sender Sender
	chatID int64
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier authenticates the bot token against the Bot API.
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	if strings.TrimSpace(botToken) == "" || chatID == 0 {
		return nil, errors.New("telegram notifier misconfigured: bot token and chat id are required")
	}
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, errors.Wrap(err, "telegram login")
	}
	return NewNotifierWithSender(api, chatID), nil
}

func NewNotifierWithSender(sender Sender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

// PublishDigest posts the digest as plain text, split at line boundaries when too long.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n == nil || n.sender == nil {
		return errors.New("telegram notifier misconfigured")
	}
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return nil
	}

	for i, part := range splitMessage(digest, maxMessageLen) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := n.sender.Send(msg); err != nil {
			return errors.Wrapf(err, "send digest part %d", i+1)
		}
	}
	return nil
}

func splitMessage(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
