package service

import (
	"context"
	"fmt"
	"time"

	"lottery-panel/codec"
	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/logger"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// StateChange is the side-channel event emitted on every committed
// ticket transition. Delivery and formatting are the notifier's
// problem; emitting never blocks or fails the transition itself.
type StateChange struct {
	TicketId string
	DrawId   string
	OwnerRef string
	NewState model.TicketState
	At       time.Time
}

type Notifier interface {
	Notify(change StateChange)
}

// NotifyService fans a state change out to every registered notifier
// and records it in the notification log.
type NotifyService struct {
	notifiers []Notifier
}

func NewNotifyService(notifiers ...Notifier) *NotifyService {
	return &NotifyService{notifiers: notifiers}
}

func (s *NotifyService) Register(n Notifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *NotifyService) Emit(change StateChange) {
	entry := &model.NotificationLog{
		TicketId:  change.TicketId,
		DrawId:    change.DrawId,
		OwnerRef:  change.OwnerRef,
		NewState:  string(change.NewState),
		Message:   messageFor(change),
		CreatedAt: change.At,
	}
	if err := database.AddNotificationLog(entry); err != nil {
		logger.Warning("save notification log:", err)
	}

	for _, n := range s.notifiers {
		go n.Notify(change)
	}
}

func messageFor(change StateChange) string {
	switch change.NewState {
	case model.Entered:
		return "You joined the waiting list."
	case model.Won:
		return "You were selected in the lottery draw!"
	case model.Lost:
		return "You were not selected in this draw, but you may still be chosen if a spot opens."
	case model.Redeemed:
		return "Your ticket has been redeemed."
	case model.Void:
		return "Your ticket was voided."
	}
	return "Ticket state changed to " + string(change.NewState) + "."
}

// TgNotifier forwards state changes to a Telegram chat. Wins attach
// the ticket's QR code so the holder can present it at redemption.
type TgNotifier struct {
	bot    *telego.Bot
	chatId int64
}

func NewTgNotifier(token string, chatId int64) (*TgNotifier, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, err
	}
	return &TgNotifier{bot: bot, chatId: chatId}, nil
}

func (t *TgNotifier) Notify(change StateChange) {
	caption := fmt.Sprintf("🎟 Ticket `%s`\nDraw: `%s`\n%s",
		change.TicketId, change.DrawId, messageFor(change))

	if change.NewState == model.Won {
		qrBytes, err := codec.EncodePNG(change.TicketId, 256)
		if err == nil && len(qrBytes) > 0 {
			photoParams := tu.Photo(
				tu.ID(t.chatId),
				tu.FileFromBytes(qrBytes, "ticket.png"),
			).WithCaption(caption).WithParseMode(telego.ModeMarkdown)
			if _, err := t.bot.SendPhoto(context.Background(), photoParams); err == nil {
				return
			}
			logger.Warning("send ticket QR to telegram failed, falling back to text")
		}
	}

	params := tu.Message(tu.ID(t.chatId), caption).WithParseMode(telego.ModeMarkdown)
	if _, err := t.bot.SendMessage(context.Background(), params); err != nil {
		logger.Warningf("send telegram notification for %s failed: %v", change.TicketId, err)
	}
}

// SendText pushes a plain operational message (used by jobs for
// backlog warnings).
func (t *TgNotifier) SendText(msg string) error {
	_, err := t.bot.SendMessage(context.Background(), tu.Message(tu.ID(t.chatId), msg))
	return err
}
