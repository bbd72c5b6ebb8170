package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now    func() time.Time
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, send: smtp.SendMail, now: time.Now, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, recipient, sessionID, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	err := n.send(addr, nil, n.from, []string{recipient}, n.compose(recipient, sessionID, errorMsg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", recipient),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", recipient),
		zap.String("session_id", sessionID),
	)
	return nil
}

func (n *SMTPNotifier) compose(recipient, sessionID, errorMsg string) []byte {
	subject := fmt.Sprintf("Frame extraction failed [Session %s]", sessionID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"Frame extraction for your video could not be completed.\r\n\r\n"+
			"Session ID: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"Frames sampled before the failure are still available. "+
			"Upload the video again to start a new session.\r\n\r\n"+
			"-- Frame Extraction Service",
		sessionID, errorMsg,
	)

	headers := []string{
		"From: " + n.from,
		"To: " + recipient,
		"Subject: " + subject,
		"Date: " + n.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}
