package exec

import (
	"context"
	"sync"
	"time"

	"collabroom/client/rlog"
	"collabroom/client/session"
	"collabroom/internal/entity"
)

type runner interface {
	Execute(ctx context.Context, roomID entity.UUID, params session.ExecuteParams) (*entity.ExecutionResult, error)
}

// Bridge forwards run requests for one room and keeps the last outcome
// around for display. One run at a time; a second request while one is in
// flight is rejected rather than queued.
type Bridge struct {
	roomID entity.UUID
	api    runner
	logger rlog.Logger

	mu        sync.Mutex
	executing bool
	last      *entity.ExecutionResult
	lastAt    time.Time
}

func New(roomID entity.UUID, api runner, logger rlog.Logger) *Bridge {
	if logger == nil {
		logger = rlog.Nop()
	}
	return &Bridge{roomID: roomID, api: api, logger: logger}
}

// ExecuteCode runs the given source remotely and records the result. A
// failed run still produces a result: the error text lands in the output
// slot the same way a runtime error from the code itself would.
func (b *Bridge) ExecuteCode(ctx context.Context, code, language string, fileID entity.UUID) (*entity.ExecutionResult, error) {
	if !entity.IsKnownLanguage(language) {
		return nil, &session.APIError{Kind: session.KindValidation, Message: "unknown language " + language}
	}

	b.mu.Lock()
	if b.executing {
		b.mu.Unlock()
		return nil, &session.APIError{Kind: session.KindConflict, Message: "an execution is already running"}
	}
	b.executing = true
	b.mu.Unlock()

	started := time.Now()
	result, err := b.api.Execute(ctx, b.roomID, session.ExecuteParams{
		Code:     code,
		Language: language,
		FileID:   fileID,
	})
	if err != nil {
		b.logger.Logf("Execution request failed {%s, %v}", language, err)
		result = &entity.ExecutionResult{
			Error:           err.Error(),
			ExecutionTimeMs: time.Since(started).Milliseconds(),
		}
	}

	b.mu.Lock()
	b.executing = false
	b.last = result
	b.lastAt = time.Now()
	b.mu.Unlock()

	if err != nil {
		return result, err
	}
	return result, nil
}

func (b *Bridge) Executing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.executing
}

// LastResult returns the most recent outcome and when it finished, or nil
// when nothing has run yet.
func (b *Bridge) LastResult() (*entity.ExecutionResult, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return nil, time.Time{}
	}
	copied := *b.last
	return &copied, b.lastAt
}

func (b *Bridge) Clear() {
	b.mu.Lock()
	b.last = nil
	b.lastAt = time.Time{}
	b.mu.Unlock()
}
