package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/service"
)

// IngestHandler handles POST /api/v1/data/ingest. Each call runs under a
// deadline so a stalled backing store bounds the batch instead of hanging it;
// the server itself carries no read/write timeouts because websockets share
// the listener.
type IngestHandler struct {
	processor *service.BatchProcessor
	timeout   time.Duration
	logger    *zap.Logger
}

// NewIngestHandler returns handler. A non-positive timeout disables the
// per-call deadline.
func NewIngestHandler(processor *service.BatchProcessor, timeout time.Duration, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{processor: processor, timeout: timeout, logger: logger}
}

type ingestSummary struct {
	TotalMachines int       `json:"total_machines"`
	TotalReadings int       `json:"total_readings"`
	ProcessedAt   time.Time `json:"processed_at"`
	GatewayID     string    `json:"gateway_id"`
}

type ingestResponse struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Summary *ingestSummary        `json:"summary,omitempty"`
	Details []service.GroupDetail `json:"details,omitempty"`
	Errors  []service.IngestError `json:"errors,omitempty"`
}

// ServeHTTP decodes the batch, runs it through the processor and maps the
// three-way outcome onto 201 / 207 / 400.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req service.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ingestResponse{
			Status:  "error",
			Message: "Invalid request format",
		})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.processor.Ingest(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyBatch) {
			writeJSON(w, http.StatusBadRequest, ingestResponse{
				Status:  "error",
				Message: "Validation failed",
				Errors:  []service.IngestError{{Field: "batch", Error: err.Error()}},
			})
			return
		}
		h.logger.Error("batch ingestion failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ingestResponse{
			Status:  "error",
			Message: "Internal server error",
		})
		return
	}

	resp := ingestResponse{
		Status:  result.Status,
		Message: result.Message,
		Details: result.Details,
		Errors:  result.Errors,
	}

	switch result.Status {
	case service.OutcomeSuccess:
		resp.Summary = summaryOf(result)
		writeJSON(w, http.StatusCreated, resp)
	case service.OutcomePartial:
		resp.Summary = summaryOf(result)
		writeJSON(w, http.StatusMultiStatus, resp)
	default:
		writeJSON(w, http.StatusBadRequest, resp)
	}
}

func summaryOf(result *service.IngestResult) *ingestSummary {
	return &ingestSummary{
		TotalMachines: result.TotalMachines,
		TotalReadings: result.TotalReadings,
		ProcessedAt:   result.ProcessedAt,
		GatewayID:     result.GatewayID,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
