package notify

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPNotifier sends order-confirmation mail. net/smtp covers the plain
// relay setup used in local composition; no auth is attempted.
type SMTPNotifier struct {
	addr string
	from string
}

func NewSMTPNotifier(addr, from string) *SMTPNotifier {
	return &SMTPNotifier{addr: addr, from: from}
}

func (n *SMTPNotifier) Notify(ctx context.Context, email, orderID string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your Order Confirmation\r\n\r\nYour order %s has been received and is being processed.\r\n",
		n.from, email, orderID)

	if err := smtp.SendMail(n.addr, nil, n.from, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", email, err)
	}
	return nil
}
