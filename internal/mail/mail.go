// Package mail delivers reset PINs to users. SMTPSender is used when SMTP is
// configured; LogSender stands in for local development.
package mail

import (
	"context"
	"log"
)

// Sender delivers a newly generated PIN to its owner. Implementations must not log the PIN.
type Sender interface {
	SendResetPIN(ctx context.Context, to, pin string) error
}

// LogSender records that a reset PIN was produced without delivering it.
type LogSender struct{}

// SendResetPIN logs the recipient only. Always succeeds.
func (LogSender) SendResetPIN(ctx context.Context, to, pin string) error {
	log.Printf("mail: SMTP not configured; reset PIN for %s not delivered", to)
	return nil
}
