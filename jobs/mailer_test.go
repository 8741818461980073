package jobs

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSMTPMailerEncodesHeaders(t *testing.T) {
	m := NewSMTPMailer("127.0.0.1", 1025, "no-reply@cserv.local")
	msg, err := m.message("ritu@example.com", "[Desk] leave.approved by Jürgen Åsa", "Your short leave on 2026-03-10 was approved by Jürgen")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "Subject: =?UTF-8?")
	require.NotContains(t, out, "Subject: [Desk] leave.approved by Jürgen")
	require.Contains(t, out, "To: <ritu@example.com>")
}

func TestSMTPMailerRejectsBadHeaders(t *testing.T) {
	m := NewSMTPMailer("127.0.0.1", 1025, "no-reply@cserv.local")
	_, err := m.message("ritu@example.com\r\nBcc: all@example.com", "hi", "body")
	require.Error(t, err)
	_, err = m.message("ritu@example.com", "hi\r\nBcc: all@example.com", "body")
	require.Error(t, err)
}

func TestSMTPMailerHonoursContext(t *testing.T) {
	// Nothing listens on the discard port; a cancelled context returns at once.
	m := NewSMTPMailer("127.0.0.1", 9, "no-reply@cserv.local")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.Error(t, m.Send(ctx, "ritu@example.com", "hi", "body"))
	require.Less(t, time.Since(start), 5*time.Second)
}
