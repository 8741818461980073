package roster_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cserv-ai/cserv/internal/platform/db/dbtest"
	"github.com/cserv-ai/cserv/internal/roster"
	"github.com/cserv-ai/cserv/internal/shared"
)

func TestPostgresConcurrentApproveReportsApprovedState(t *testing.T) {
	pool := dbtest.Pool(t)
	ctx := context.Background()
	svc := roster.NewService(roster.NewRepository(pool), nil, nil, roster.ServiceConfig{})

	saved, err := svc.Save(ctx, op1, roster.SaveInput{Month: 3, Year: 2026, Document: doc})
	require.NoError(t, err)

	errs := make([]error, 4)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Approve(ctx, admin, saved.ID)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		require.ErrorIs(t, err, shared.ErrInvalidState)
		require.Contains(t, err.Error(), "Approved")
	}
	require.Equal(t, 1, won)

	got, err := svc.Get(ctx, op2, saved.ID)
	require.NoError(t, err)
	require.True(t, got.Approved)
}
