package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/cache"
	"github.com/denzueee/gonsters-backend-assessment/internal/models"
	"github.com/denzueee/gonsters-backend-assessment/internal/repository"
	"github.com/denzueee/gonsters-backend-assessment/internal/service"
	"github.com/denzueee/gonsters-backend-assessment/internal/timeseries"
)

const (
	historyPrefix = "/api/v1/data/machine/"
	defaultLimit  = 1000
	maxLimit      = 10000
	defaultWindow = 24 * time.Hour
)

// HistoryQuerier reads raw samples back out of the time-series store.
type HistoryQuerier interface {
	QueryRange(ctx context.Context, machineID string, start, stop time.Time, limit int) ([]timeseries.FieldSample, error)
}

// MachineHistoryHandler handles GET /api/v1/data/machine/{id}.
type MachineHistoryHandler struct {
	resolver service.MachineResolver
	querier  HistoryQuerier
	logger   *zap.Logger
}

// NewMachineHistoryHandler returns handler.
func NewMachineHistoryHandler(resolver service.MachineResolver, querier HistoryQuerier, logger *zap.Logger) *MachineHistoryHandler {
	return &MachineHistoryHandler{resolver: resolver, querier: querier, logger: logger}
}

type historyPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature,omitempty"`
	Pressure    *float64  `json:"pressure,omitempty"`
	Speed       *float64  `json:"speed,omitempty"`
}

func (h *MachineHistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	machineID := strings.TrimPrefix(r.URL.Path, historyPrefix)
	if machineID == "" || strings.Contains(machineID, "/") {
		http.NotFound(w, r)
		return
	}
	if _, err := uuid.Parse(machineID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":     "error",
			"message":    "Invalid machine ID format",
			"machine_id": machineID,
		})
		return
	}

	machine, err := h.resolver.Resolve(r.Context(), machineID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":     "error",
			"message":    "Machine not found",
			"machine_id": machineID,
		})
		return
	}

	now := time.Now().UTC()
	start := now.Add(-defaultWindow)
	if raw := r.URL.Query().Get("start_time"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status":  "error",
				"message": "Invalid start_time, expected ISO 8601",
			})
			return
		}
		start = parsed
	}
	stop := now
	if raw := r.URL.Query().Get("end_time"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status":  "error",
				"message": "Invalid end_time, expected ISO 8601",
			})
			return
		}
		stop = parsed
	}
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status":  "error",
				"message": "limit must be an integer between 1 and 10000",
			})
			return
		}
		limit = parsed
	}

	samples, err := h.querier.QueryRange(r.Context(), machineID, start, stop, limit)
	if err != nil {
		h.logger.Error("history query failed", zap.String("machine_id", machineID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Internal server error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"machine": map[string]string{
			"machine_id":  machine.ID,
			"name":        machine.Name,
			"location":    machine.Location,
			"sensor_type": machine.SensorType,
		},
		"query": map[string]interface{}{
			"start_time": start,
			"end_time":   stop,
		},
		"data": groupSamples(samples),
	})
}

// groupSamples folds per-field samples into one point per timestamp.
func groupSamples(samples []timeseries.FieldSample) []historyPoint {
	byTime := make(map[time.Time]*historyPoint)
	for _, sample := range samples {
		point, ok := byTime[sample.Time]
		if !ok {
			point = &historyPoint{Timestamp: sample.Time}
			byTime[sample.Time] = point
		}
		v := sample.Value
		switch sample.Field {
		case "temperature":
			point.Temperature = &v
		case "pressure":
			point.Pressure = &v
		case "speed":
			point.Speed = &v
		}
	}

	points := make([]historyPoint, 0, len(byTime))
	for _, p := range byTime {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points
}

// MachineLister lists registry machines.
type MachineLister interface {
	List(ctx context.Context, filter repository.MachineFilter) ([]models.Machine, error)
}

// MachineListHandler handles GET /api/v1/data/machines, with a short-TTL
// redis cache on the rendered response.
type MachineListHandler struct {
	machines MachineLister
	cache    *cache.ResponseCache
	logger   *zap.Logger
}

// NewMachineListHandler returns handler.
func NewMachineListHandler(machines MachineLister, responseCache *cache.ResponseCache, logger *zap.Logger) *MachineListHandler {
	return &MachineListHandler{machines: machines, cache: responseCache, logger: logger}
}

func (h *MachineListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cacheKey := "machines_list:" + r.URL.RawQuery
	if h.cache != nil {
		if payload, ok := h.cache.Get(r.Context(), cacheKey); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(payload)
			return
		}
	}

	filter := repository.MachineFilter{
		Location:   r.URL.Query().Get("location"),
		Status:     r.URL.Query().Get("status"),
		SensorType: r.URL.Query().Get("sensor_type"),
	}
	machines, err := h.machines.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("machine list failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Internal server error",
		})
		return
	}

	body := map[string]interface{}{
		"status":   "success",
		"count":    len(machines),
		"machines": machines,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "Internal server error"})
		return
	}
	if h.cache != nil {
		h.cache.Set(r.Context(), cacheKey, payload)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
