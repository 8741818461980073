package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/cserv-ai/cserv/internal/jobs"
	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/jobs"
	_ "github.com/cserv-ai/cserv/testing"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakePurger struct {
	retention time.Duration
	purged    int64
}

func (p *fakePurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	p.retention = olderThan
	return p.purged, nil
}

func emailTask(t *testing.T, payload jobs.NotifyEmailPayload) *asynq.Task {
	t.Helper()
	task, err := jobs.NewNotifyEmailTask(payload)
	require.NoError(t, err)
	return task
}

func TestNotifyEmailJobSendsMessage(t *testing.T) {
	mailer := &fakeMailer{}
	job := &jobs.NotifyEmailJob{Mailer: mailer, AppName: "Desk", Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}

	err := job.Handle(context.Background(), emailTask(t, jobs.NotifyEmailPayload{
		NotificationID: 4, RecipientID: 7, To: "u7@example.com", Name: "Agent Seven",
		Category: "leave.approved", Message: "Your leave on 2025-03-10 was approved",
	}))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "u7@example.com", mailer.sent[0].to)
	require.Equal(t, "[Desk] leave.approved", mailer.sent[0].subject)
	require.Contains(t, mailer.sent[0].body, "Agent Seven")
	require.Contains(t, mailer.sent[0].body, "2025-03-10")
}

func TestNotifyEmailJobFailures(t *testing.T) {
	job := &jobs.NotifyEmailJob{Mailer: &fakeMailer{err: errors.New("smtp down")}}
	err := job.Handle(context.Background(), emailTask(t, jobs.NotifyEmailPayload{To: "x@example.com"}))
	require.Error(t, err)

	err = job.Handle(context.Background(), asynq.NewTask(jobs.TaskNotifyEmail, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	mailer := &fakeMailer{}
	job = &jobs.NotifyEmailJob{Mailer: mailer}
	require.NoError(t, job.Handle(context.Background(), emailTask(t, jobs.NotifyEmailPayload{RecipientID: 3})))
	require.Empty(t, mailer.sent)
}

func TestIdempotencyCleanupJob(t *testing.T) {
	purger := &fakePurger{purged: 12}
	job := &jobs.IdempotencyCleanupJob{Store: purger}
	require.NoError(t, job.Handle(context.Background(), jobs.NewIdempotencyCleanupTask()))
	require.Equal(t, 7*24*time.Hour, purger.retention)

	job.Retention = time.Hour
	require.NoError(t, job.Handle(context.Background(), jobs.NewIdempotencyCleanupTask()))
	require.Equal(t, time.Hour, purger.retention)
}

func TestClientDeliverEnqueuesOnlyWithAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	client := jobs.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := notify.Notification{ID: 9, RecipientID: 7, Category: notify.CategoryLeaveApproved, Message: "approved"}
	require.NoError(t, client.Deliver(context.Background(), rbac.Principal{ID: 7, Username: "u7"}, n))
	require.False(t, mr.Exists("asynq:{default}:pending"))

	require.NoError(t, client.Deliver(context.Background(), rbac.Principal{ID: 7, Username: "u7", Email: "u7@example.com"}, n))
	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(nil, nil).MountRoutes)

	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Equal(t, "default", body["queue"])
	require.EqualValues(t, 0, body["pending"])
}
