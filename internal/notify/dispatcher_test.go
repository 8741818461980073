package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/notify"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
	_ "github.com/cserv-ai/cserv/testing"
)

type directory []rbac.Principal

func (d directory) ListPrincipals(_ context.Context, roles ...rbac.Role) ([]rbac.Principal, error) {
	var out []rbac.Principal
	for _, p := range d {
		for _, r := range roles {
			if p.Role == r {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (d directory) FindPrincipal(_ context.Context, id int64) (rbac.Principal, error) {
	for _, p := range d {
		if p.ID == id {
			return p, nil
		}
	}
	return rbac.Principal{}, shared.NotFound("user", id)
}

type failingDeliverer struct {
	mu    sync.Mutex
	calls int
}

func (f *failingDeliverer) Deliver(context.Context, rbac.Principal, notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("smtp down")
}

type failingRepo struct{ notify.MemoryRepository }

func (*failingRepo) InsertBatch(context.Context, []notify.Notification, int) ([]notify.Notification, error) {
	return nil, shared.Storage("insert", errors.New("disk full"))
}

func people() directory {
	return directory{
		{ID: 1, Role: rbac.RoleSuperAdmin, Active: true},
		{ID: 2, Role: rbac.RoleAdmin, Active: true},
		{ID: 3, Role: rbac.RoleAdmin, Active: false},
		{ID: 7, Role: rbac.RoleOperator, Active: true},
		{ID: 8, Role: rbac.RoleOperator, Active: true},
	}
}

func TestRecipientsPerCategory(t *testing.T) {
	d := notify.NewDispatcher(notify.DispatcherConfig{Repository: notify.NewMemoryRepository(), Directory: people()})
	ctx := context.Background()
	cases := []struct {
		name string
		evt  notify.Event
		want []int64
	}{
		{"created", notify.Event{Category: notify.CategoryLeaveCreated, ActorID: 7, SubjectID: 7}, []int64{1, 2}},
		{"created by an administrator", notify.Event{Category: notify.CategoryLeaveCreated, ActorID: 2, SubjectID: 2}, []int64{1, 2}},
		{"approved", notify.Event{Category: notify.CategoryLeaveApproved, ActorID: 2, SubjectID: 7}, []int64{7}},
		{"rejected", notify.Event{Category: notify.CategoryLeaveRejected, ActorID: 1, SubjectID: 8}, []int64{8}},
		{"cancelled by admin", notify.Event{Category: notify.CategoryLeaveCancelled, ActorID: 1, SubjectID: 7}, []int64{7}},
		{"cancelled by requester", notify.Event{Category: notify.CategoryLeaveCancelled, ActorID: 7, SubjectID: 7}, []int64{1, 2}},
		{"roster approved", notify.Event{Category: notify.CategoryRosterApproved, ActorID: 2}, []int64{7, 8}},
		{"roster approved by an operator", notify.Event{Category: notify.CategoryRosterApproved, ActorID: 7}, []int64{7, 8}},
		{"registered", notify.Event{Category: notify.CategoryUserRegistered, ActorID: 9}, []int64{1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Recipients(ctx, tc.evt)
			require.NoError(t, err)
			require.ElementsMatch(t, tc.want, got)
		})
	}
	_, err := d.Recipients(ctx, notify.Event{Category: "unknown"})
	require.Error(t, err)
}

func TestNotifyCreatesOneUnreadRecordPerRecipient(t *testing.T) {
	repo := notify.NewMemoryRepository()
	d := notify.NewDispatcher(notify.DispatcherConfig{Repository: repo, Directory: people()})
	stored, err := d.Notify(context.Background(), []int64{2, 1, 2}, "hello", notify.CategoryLeaveCreated, notify.Ref{Type: notify.RefLeave, ID: 42})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, n := range stored {
		require.False(t, n.Read)
		require.Equal(t, int64(42), n.Ref.ID)
	}
	require.Equal(t, 2, repo.Len())
}

func TestGlobalRetentionCap(t *testing.T) {
	repo := notify.NewMemoryRepository()
	d := notify.NewDispatcher(notify.DispatcherConfig{Repository: repo, Directory: people()})
	ctx := context.Background()
	for i := 0; i < 150; i++ {
		_, err := d.Notify(ctx, []int64{7, 8}, "roster", notify.CategoryRosterApproved, notify.Ref{Type: notify.RefRoster, ID: int64(i)})
		require.NoError(t, err)
	}
	require.Equal(t, notify.DefaultRetention, repo.Len())

	inbox, err := notify.NewService(repo).List(ctx, rbac.Principal{ID: 7})
	require.NoError(t, err)
	require.Len(t, inbox.Items, 100)
	require.Equal(t, int64(149), inbox.Items[0].Ref.ID)
	require.Greater(t, inbox.Items[0].ID, inbox.Items[1].ID)
}

func TestDispatchSwallowsFailures(t *testing.T) {
	deliverer := &failingDeliverer{}
	d := notify.NewDispatcher(notify.DispatcherConfig{
		Repository: notify.NewMemoryRepository(),
		Directory:  people(),
		Deliverers: []notify.Deliverer{deliverer},
	})
	stored := d.Dispatch(context.Background(), notify.Event{Category: notify.CategoryLeaveApproved, ActorID: 2, SubjectID: 7})
	require.Len(t, stored, 1)
	d.Wait()
	require.Equal(t, 1, deliverer.calls)

	broken := notify.NewDispatcher(notify.DispatcherConfig{Repository: &failingRepo{}, Directory: people()})
	require.Nil(t, broken.Dispatch(context.Background(), notify.Event{Category: notify.CategoryLeaveApproved, SubjectID: 7}))
}

func TestRedisPublisherDelivers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()
	sub := client.Subscribe(ctx, notify.Channel(7))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	d := notify.NewDispatcher(notify.DispatcherConfig{
		Repository: notify.NewMemoryRepository(),
		Directory:  people(),
		Deliverers: []notify.Deliverer{notify.NewRedisPublisher(client)},
	})
	d.Dispatch(ctx, notify.Event{Category: notify.CategoryLeaveApproved, ActorID: 2, SubjectID: 7, Message: "approved"})
	d.Wait()

	select {
	case msg := <-sub.Channel():
		require.Contains(t, msg.Payload, `"message":"approved"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestMarkReadIsRecipientScoped(t *testing.T) {
	repo := notify.NewMemoryRepository()
	svc := notify.NewService(repo)
	ctx := context.Background()
	stored, err := repo.InsertBatch(ctx, []notify.Notification{{RecipientID: 7}, {RecipientID: 7}, {RecipientID: 8}}, 200)
	require.NoError(t, err)

	require.ErrorIs(t, svc.MarkRead(ctx, rbac.Principal{ID: 8}, stored[0].ID), shared.ErrNotFound)
	require.NoError(t, svc.MarkRead(ctx, rbac.Principal{ID: 7}, stored[0].ID))

	inbox, err := svc.List(ctx, rbac.Principal{ID: 7})
	require.NoError(t, err)
	require.Equal(t, 1, inbox.Unread)

	n, err := svc.MarkAllRead(ctx, rbac.Principal{ID: 7})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
