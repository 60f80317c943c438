package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/forma-lms/gradebook-api/internal/dto"
)

func TestSyncServiceLocalBroadcast(t *testing.T) {
	svc := NewSyncService(nil, nil, "", testLogger())

	events, cancel := svc.Subscribe(3)
	defer cancel()

	svc.PublishChange(context.Background(), dto.ChangeEvent{
		Scope: 3,
		Table: dto.ChangeTableGrades,
		Event: dto.ChangeEventUpdate,
	})

	select {
	case event := <-events:
		require.Equal(t, uint(3), event.Scope)
		require.Equal(t, dto.ChangeTableGrades, event.Table)
		require.False(t, event.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}
}

func TestSyncServiceScopeIsolation(t *testing.T) {
	svc := NewSyncService(nil, nil, "", testLogger())

	other, cancel := svc.Subscribe(4)
	defer cancel()

	svc.PublishChange(context.Background(), dto.ChangeEvent{
		Scope: 3,
		Table: dto.ChangeTableSubmissions,
		Event: dto.ChangeEventInsert,
	})

	select {
	case event := <-other:
		t.Fatalf("unexpected event for other session: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSyncServiceUnsubscribeClosesChannel(t *testing.T) {
	svc := NewSyncService(nil, nil, "", testLogger())

	events, cancel := svc.Subscribe(3)
	cancel()

	_, open := <-events
	require.False(t, open)
}

func TestSyncServiceProgressBroadcast(t *testing.T) {
	svc := NewSyncService(nil, nil, "", testLogger())

	pings, cancel := svc.SubscribeProgress(3)
	defer cancel()

	svc.PublishProgress(dto.ProgressPing{SessionID: 3, UserID: 9, ActivityID: 2})

	select {
	case ping := <-pings:
		require.Equal(t, uint(9), ping.UserID)
		require.Equal(t, uint(2), ping.ActivityID)
	case <-time.After(time.Second):
		t.Fatal("expected a progress ping")
	}
}

func TestSyncServiceFansOutAcrossNodes(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	nodeA := NewSyncService(redisClient, nil, "gradebook", testLogger())
	nodeB := NewSyncService(redisClient, nil, "gradebook", testLogger())
	nodeA.Start(ctx)
	nodeB.Start(ctx)

	remote, cancel := nodeB.Subscribe(3)
	defer cancel()

	// Give the subscriber loops a moment to attach.
	time.Sleep(50 * time.Millisecond)

	nodeA.PublishChange(ctx, dto.ChangeEvent{
		Scope: 3,
		Table: dto.ChangeTableGrades,
		Event: dto.ChangeEventUpdate,
	})

	select {
	case event := <-remote:
		require.Equal(t, dto.ChangeTableGrades, event.Table)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the change event to cross nodes")
	}
}

func TestSyncServiceSuppressesOwnEcho(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	node := NewSyncService(redisClient, nil, "gradebook", testLogger())
	node.Start(ctx)

	events, cancel := node.Subscribe(3)
	defer cancel()

	time.Sleep(50 * time.Millisecond)

	node.PublishChange(ctx, dto.ChangeEvent{
		Scope: 3,
		Table: dto.ChangeTableGrades,
		Event: dto.ChangeEventUpdate,
	})

	first := <-events
	require.Equal(t, dto.ChangeTableGrades, first.Table)

	// The redis echo of our own publish must not be delivered twice.
	select {
	case event := <-events:
		t.Fatalf("unexpected duplicate event: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}
