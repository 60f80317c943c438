package handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/forma-lms/gradebook-api/internal/dto"
	"github.com/forma-lms/gradebook-api/internal/handler"
	"github.com/forma-lms/gradebook-api/internal/service"
)

func setupSyncApp(t *testing.T) (*fiber.App, service.SyncService) {
	t.Helper()

	syncService := service.NewSyncService(nil, nil, "", zerolog.Nop())
	syncService.Start(context.Background())

	syncHandler := handler.NewSyncHandler(syncService, 2*time.Second, zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v1/sync", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(9))
		c.Locals("user_role", "learner")
		return c.Next()
	})
	syncHandler.Register(group)

	return app, syncService
}

func startTestServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

func TestSyncHandlerStreamDeliversChangeEvents(t *testing.T) {
	app, syncService := setupSyncApp(t)
	baseURL, shutdown := startTestServer(t, app)
	defer shutdown()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/sync/sessions/3/stream", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The subscription attaches inside the stream writer, shortly after the
	// response headers arrive.
	time.Sleep(100 * time.Millisecond)

	syncService.PublishChange(context.Background(), dto.ChangeEvent{
		Scope: 3,
		Table: dto.ChangeTableGrades,
		Event: dto.ChangeEventUpdate,
	})

	reader := bufio.NewReader(resp.Body)
	deadline := time.Now().Add(3 * time.Second)

	for {
		require.False(t, time.Now().After(deadline), "timed out waiting for change event")

		line, err := reader.ReadString('\n')
		require.NoError(t, err)

		if !strings.HasPrefix(line, "data:") {
			continue
		}

		var event dto.ChangeEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &event))
		require.Equal(t, uint(3), event.Scope)
		require.Equal(t, dto.ChangeTableGrades, event.Table)
		require.Equal(t, dto.ChangeEventUpdate, event.Event)
		return
	}
}

func TestSyncHandlerProgressWebsocket(t *testing.T) {
	app, syncService := setupSyncApp(t)
	baseURL, shutdown := startTestServer(t, app)
	defer shutdown()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/sync/sessions/3/progress"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	syncService.PublishProgress(dto.ProgressPing{
		SessionID:  3,
		UserID:     12,
		ActivityID: 5,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var ping dto.ProgressPing
	require.NoError(t, conn.ReadJSON(&ping))
	require.Equal(t, uint(3), ping.SessionID)
	require.Equal(t, uint(12), ping.UserID)
	require.Equal(t, uint(5), ping.ActivityID)
	require.False(t, ping.At.IsZero())
}

func TestSyncHandlerWebsocketHeartbeatFansOut(t *testing.T) {
	app, syncService := setupSyncApp(t)
	baseURL, shutdown := startTestServer(t, app)
	defer shutdown()

	pings, cancel := syncService.SubscribeProgress(3)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/sync/sessions/3/progress"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	// The session and user on the wire are pinned server side; the client
	// cannot spoof them.
	require.NoError(t, conn.WriteJSON(dto.ProgressPing{SessionID: 99, UserID: 99, ActivityID: 5}))

	select {
	case ping := <-pings:
		require.Equal(t, uint(3), ping.SessionID)
		require.Equal(t, uint(9), ping.UserID)
		require.Equal(t, uint(5), ping.ActivityID)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for heartbeat fan-out")
	}
}
