package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"collabroom/client/rlog"
	"collabroom/internal/entity"
)

type ExecutionRequest struct {
	Code     string      `json:"code"`
	Language string      `json:"language"`
	FileID   entity.UUID `json:"fileId,omitempty"`
}

// ExecutionService hands a code+language pair to the out-of-process
// executor and relays its result. The sandbox itself lives elsewhere.
type ExecutionService interface {
	Execute(ctx context.Context, req *ExecutionRequest) (*entity.ExecutionResult, error)
}

type remoteExecutionService struct {
	executorAddr string
	httpClient   *http.Client
	logger       rlog.Logger
}

func NewRemoteExecutionService(executorAddr string, logger rlog.Logger) ExecutionService {
	return &remoteExecutionService{
		executorAddr: executorAddr,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

func (e *remoteExecutionService) Logf(format string, v ...any) {
	e.logger.Logf(format, v...)
}

func (e *remoteExecutionService) Execute(ctx context.Context, req *ExecutionRequest) (*entity.ExecutionResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	if !entity.IsKnownLanguage(req.Language) {
		return nil, fmt.Errorf("%w: unknown language %q", ErrValidation, req.Language)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.executorAddr+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	response, err := e.httpClient.Do(httpReq)
	if err != nil {
		e.Logf("Executor request failed {%v}", err)
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor answered %d", response.StatusCode)
	}

	var result entity.ExecutionResult
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.ExecutionTimeMs == 0 {
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
	}

	e.Logf("Execution finished in %dms", result.ExecutionTimeMs)
	return &result, nil
}
