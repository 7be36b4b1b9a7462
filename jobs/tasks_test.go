package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sent []SendEmailPayload
	err  error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, SendEmailPayload{To: to, Subject: subject, Body: body})
	return nil
}

type fakeSweeper struct {
	swept int64
	err   error
}

func (f *fakeSweeper) SweepExpiredSessions(_ context.Context) (int64, error) {
	return f.swept, f.err
}

func TestSendEmailHandler(t *testing.T) {
	mailer := &fakeMailer{}
	handler := NewSendEmailHandler(mailer, slog.Default())

	task, err := NewSendEmailTask(SendEmailPayload{To: "ana@example.com", Subject: "hi", Body: "body"})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ana@example.com", mailer.sent[0].To)
}

func TestSendEmailHandlerSkipsBadPayload(t *testing.T) {
	handler := NewSendEmailHandler(&fakeMailer{}, slog.Default())

	err := handler(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSendEmailHandlerPropagatesMailerError(t *testing.T) {
	handler := NewSendEmailHandler(&fakeMailer{err: errors.New("relay down")}, slog.Default())

	task, err := NewSendEmailTask(SendEmailPayload{To: "x@example.com"})
	require.NoError(t, err)

	err = handler(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSessionSweepHandler(t *testing.T) {
	handler := NewSessionSweepHandler(&fakeSweeper{swept: 3}, slog.Default())
	assert.NoError(t, handler(context.Background(), NewSessionSweepTask()))

	failing := NewSessionSweepHandler(&fakeSweeper{err: errors.New("db down")}, slog.Default())
	assert.Error(t, failing(context.Background(), NewSessionSweepTask()))
}
