package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/forma-lms/gradebook-api/internal/dto"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeNotifier struct {
	changes []dto.ChangeEvent
	pings   []dto.ProgressPing
}

func (f *fakeNotifier) PublishChange(ctx context.Context, event dto.ChangeEvent) {
	f.changes = append(f.changes, event)
}

func (f *fakeNotifier) PublishProgress(ping dto.ProgressPing) {
	f.pings = append(f.pings, ping)
}

type fakeRecomputer struct {
	calls []struct{ sessionID, userID uint }
}

func (f *fakeRecomputer) Recompute(ctx context.Context, sessionID, userID uint) (dto.SummaryResponse, error) {
	f.calls = append(f.calls, struct{ sessionID, userID uint }{sessionID, userID})
	return dto.SummaryResponse{SessionID: sessionID, UserID: userID}, nil
}

type fakeAuditRecorder struct {
	entries []AuditEntry
}

func (f *fakeAuditRecorder) Record(ctx context.Context, entry AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}
