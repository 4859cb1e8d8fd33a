// Package telegram pushes offline-operator alerts through the Telegram Bot
// API. When a customer opens or continues a conversation while no operator
// connection is online, the staff chat gets a heads-up so someone picks up
// the dashboard.
package telegram

import (
	"fmt"
	"log"
	"strconv"

	"supportchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Directory resolves the operators enrolled for direct alerts.
type Directory interface {
	GetOperatorTelegramIDs() ([]string, error)
}

// AlertService implements chathub.AlertSink over a bot account posting into
// a staff chat plus a DM per enrolled operator. Delivery is fire-and-forget:
// failures are logged, never surfaced to the customer path.
type AlertService struct {
	BotAPI      *tgbotapi.BotAPI
	StaffChatID int64
	// Directory is optional; nil limits alerts to the staff chat.
	Directory Directory
}

// NewAlertService authorizes the bot account.
func NewAlertService(token string, staffChatID int64) (*AlertService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &AlertService{
		BotAPI:      bot,
		StaffChatID: staffChatID,
	}, nil
}

// NotifyNewConversation announces a conversation created while no operator
// was online.
func (a *AlertService) NotifyNewConversation(conv models.Conversation, customerName string) {
	subject := conv.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	text := fmt.Sprintf("New support conversation from %s\nSubject: %s\nID: %s", customerName, subject, conv.ID)
	a.send(text)
}

// NotifyUnattendedMessage announces a customer message that landed while no
// operator was online.
func (a *AlertService) NotifyUnattendedMessage(conv models.Conversation, msg models.Message, senderName string) {
	content := msg.Content
	if len(content) > 200 {
		content = content[:200] + "…"
	}
	text := fmt.Sprintf("Unattended message from %s in conversation %s:\n%s", senderName, conv.ID, content)
	a.send(text)
}

func (a *AlertService) send(text string) {
	msg := tgbotapi.NewMessage(a.StaffChatID, text)
	if _, err := a.BotAPI.Send(msg); err != nil {
		log.Printf("ERROR: Failed to send staff alert: %v", err)
	}

	if a.Directory == nil {
		return
	}
	ids, err := a.Directory.GetOperatorTelegramIDs()
	if err != nil {
		log.Printf("ERROR: Failed to load operator Telegram ids: %v", err)
		return
	}
	for _, raw := range ids {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Printf("WARNING: Skipping malformed operator Telegram id %q", raw)
			continue
		}
		if chatID == a.StaffChatID {
			continue
		}
		if _, err := a.BotAPI.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			log.Printf("ERROR: Failed to send operator alert to %d: %v", chatID, err)
		}
	}
}
