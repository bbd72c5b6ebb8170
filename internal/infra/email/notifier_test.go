package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifyFailureComposesMessage(t *testing.T) {
	n := NewSMTPNotifier("mailhog", 1025, "noreply@framelab.local", zap.NewNop())
	n.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.Equal(t, "noreply@framelab.local", from)
		return nil
	}

	require.NoError(t, n.NotifyFailure(context.Background(), "user@example.com", "4b1d", "decode: truncated frame"))
	assert.Equal(t, "mailhog:1025", gotAddr)
	assert.Equal(t, []string{"user@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Frame extraction failed [Session 4b1d]")
	assert.Contains(t, string(gotMsg), "Error: decode: truncated frame")
	assert.Contains(t, string(gotMsg), "Date: Fri, 01 Mar 2024 12:00:00 +0000\r\n")
	assert.Contains(t, string(gotMsg), "Content-Type: text/plain; charset=UTF-8\r\n\r\nHello,")
}

func TestNotifyFailureReturnsSendError(t *testing.T) {
	n := NewSMTPNotifier("mailhog", 1025, "noreply@framelab.local", zap.NewNop())
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := n.NotifyFailure(context.Background(), "user@example.com", "4b1d", "boom")
	assert.ErrorContains(t, err, "connection refused")
}
