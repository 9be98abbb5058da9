package service

import (
	"fmt"
	"time"

	"github.com/andersonmia/nbr/logger"
	"github.com/andersonmia/nbr/model"
	"github.com/andersonmia/nbr/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// NotificationSink delivers a rendered message to a recipient. Delivery
// failure is never fatal to the operation that produced the message.
type NotificationSink interface {
	Send(recipient, subject, body string) error
}

const notificationSubject = "National Bank of Rwanda - Account Transactions"

// Notifier renders and dispatches customer notifications after a commit.
// It also stores a copy of every rendered message. All of its work is
// best-effort: errors are logged and swallowed.
type Notifier struct {
	sink        NotificationSink
	messageRepo repository.IMessageRepository
	userRepo    repository.IUserRepository
}

func NewNotifier(sink NotificationSink, messageRepo repository.IMessageRepository, userRepo repository.IUserRepository) *Notifier {
	return &Notifier{
		sink:        sink,
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// NotifyTransaction informs an account owner about a committed deposit or
// withdrawal. The body states the operation amount and the resulting
// balance.
func (n *Notifier) NotifyTransaction(userID int, accountNumber int64, kind model.TransactionKind, amount, newBalance decimal.Decimal, at time.Time) {
	body := fmt.Sprintf(
		"Dear customer, your %s of %s on your account %d has been completed at %s successfully. Your new balance is %s.",
		kindLabel(kind), amount.StringFixed(2), accountNumber,
		at.Format("2006-01-02 15:04:05"), newBalance.StringFixed(2))

	n.dispatch(userID, body)
}

// NotifyTransferSent informs the sender of a committed transfer.
func (n *Notifier) NotifyTransferSent(userID int, counterpartyNumber int64, amount, newBalance decimal.Decimal, at time.Time) {
	body := fmt.Sprintf(
		"Dear customer, your transfer of %s to account %d has been completed at %s successfully. Your new balance is %s.",
		amount.StringFixed(2), counterpartyNumber,
		at.Format("2006-01-02 15:04:05"), newBalance.StringFixed(2))

	n.dispatch(userID, body)
}

// NotifyTransferReceived informs the receiver of a committed transfer.
func (n *Notifier) NotifyTransferReceived(userID int, counterpartyNumber int64, amount, newBalance decimal.Decimal, at time.Time) {
	body := fmt.Sprintf(
		"Dear customer, you have received a transfer of %s from account %d at %s. Your new balance is %s.",
		amount.StringFixed(2), counterpartyNumber,
		at.Format("2006-01-02 15:04:05"), newBalance.StringFixed(2))

	n.dispatch(userID, body)
}

func (n *Notifier) dispatch(userID int, body string) {
	log := logger.Log.WithField("user_id", userID)

	user, err := n.userRepo.GetUserByID(userID)
	if err != nil {
		log.WithError(err).Warn("Could not resolve notification recipient")
		return
	}

	if err := n.sink.Send(user.Email, notificationSubject, body); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"recipient": user.Email,
		}).Warn("Notification delivery failed")
	}

	message := &model.Message{UserID: userID, Body: body}
	if err := n.messageRepo.CreateMessage(message); err != nil {
		log.WithError(err).Warn("Failed to persist notification message")
	}
}

func kindLabel(kind model.TransactionKind) string {
	switch kind {
	case model.KindDeposit:
		return "deposit"
	case model.KindWithdraw:
		return "withdrawal"
	default:
		return "transfer"
	}
}
