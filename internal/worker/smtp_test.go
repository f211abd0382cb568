package worker

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSender(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.example.org", Port: 587, User: "u", Password: "p", From: "calendar@example.org"})
	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.NotNil(t, a)
		assert.Equal(t, "calendar@example.org", from)
		return nil
	}

	err := s.Send(context.Background(), Message{To: "a@example.org", Subject: "Hi\nthere", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "mail.example.org:587", gotAddr)
	assert.Equal(t, []string{"a@example.org"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Hi there\r\n")
	assert.Contains(t, string(gotMsg), "line1\r\nline2")
}

func TestSMTPSenderError(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.example.org", Port: 25})
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	err := s.Send(context.Background(), Message{To: "a@example.org"})
	assert.ErrorContains(t, err, "refused")
}
