package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
	"github.com/denzueee/gonsters-backend-assessment/internal/timeseries"
)

// ErrEmptyBatch rejects a structurally invalid payload before any processing.
var ErrEmptyBatch = errors.New("batch is required and must not be empty")

// MachineResolver resolves machine identity (registry cache-aside).
type MachineResolver interface {
	Resolve(ctx context.Context, id string) (*models.Machine, error)
}

// ReadingEvaluator checks one accepted reading against current thresholds.
type ReadingEvaluator interface {
	Evaluate(machine *models.Machine, reading models.Reading) []models.AlertEvent
}

// EventPublisher fans accepted readings and alerts out to subscribers.
type EventPublisher interface {
	PublishReading(reading models.Reading)
	PublishAlert(alert models.AlertEvent)
}

// SensorReading is one raw measurement inside a batch. The timestamp stays a
// string so a malformed value fails only its own reading, not the decode of
// the whole request.
type SensorReading struct {
	Timestamp   string   `json:"timestamp"`
	Temperature *float64 `json:"temperature,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
}

// MachineGroup carries readings for one machine. SensorType and Location fall
// back to the resolved machine's own metadata when omitted.
type MachineGroup struct {
	MachineID  string          `json:"machine_id"`
	SensorType string          `json:"sensor_type"`
	Location   string          `json:"location"`
	Readings   []SensorReading `json:"readings"`
}

// IngestRequest is the transient batch payload from one gateway. It is never
// persisted as a unit; only its surviving readings are.
type IngestRequest struct {
	GatewayID string         `json:"gateway_id"`
	Timestamp string         `json:"timestamp"`
	Batch     []MachineGroup `json:"batch"`
}

// Batch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial_success"
	OutcomeFailure = "error"
)

// GroupDetail is the per-machine-group result line.
type GroupDetail struct {
	MachineID       string `json:"machine_id"`
	ReadingsWritten int    `json:"readings_count"`
	Status          string `json:"status"`
}

// IngestError locates one failed item inside the batch.
type IngestError struct {
	Field string `json:"field"`
	Error string `json:"error"`
	Value string `json:"value,omitempty"`
}

// IngestResult aggregates the batch outcome. Status is derived from the
// counters alone, never re-derived from the request shape.
type IngestResult struct {
	Status            string        `json:"status"`
	Message           string        `json:"message"`
	GatewayID         string        `json:"gateway_id"`
	ProcessedAt       time.Time     `json:"processed_at"`
	TotalMachines     int           `json:"total_machines"`
	TotalReadings     int           `json:"total_readings"`
	RequestedReadings int           `json:"-"`
	Details           []GroupDetail `json:"details"`
	Errors            []IngestError `json:"errors,omitempty"`
}

// BatchProcessor implements the batched HTTP ingestion path.
type BatchProcessor struct {
	resolver  MachineResolver
	writer    timeseries.Writer
	evaluator ReadingEvaluator
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewBatchProcessor returns processor.
func NewBatchProcessor(resolver MachineResolver, writer timeseries.Writer, evaluator ReadingEvaluator, publisher EventPublisher, logger *zap.Logger) *BatchProcessor {
	return &BatchProcessor{
		resolver:  resolver,
		writer:    writer,
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest processes one batch. Machine groups are handled in request order but
// independently; no single item's failure aborts its siblings. Only a missing
// batch sequence rejects the call wholesale.
func (p *BatchProcessor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if len(req.Batch) == 0 {
		return nil, ErrEmptyBatch
	}

	result := &IngestResult{
		GatewayID:     req.GatewayID,
		TotalMachines: len(req.Batch),
		Details:       make([]GroupDetail, 0, len(req.Batch)),
	}

	for i, group := range req.Batch {
		result.RequestedReadings += len(group.Readings)

		if len(group.Readings) == 0 {
			result.Errors = append(result.Errors, IngestError{
				Field: fmt.Sprintf("batch[%d].readings", i),
				Error: "at least one reading is required",
			})
			result.Details = append(result.Details, GroupDetail{MachineID: group.MachineID, Status: "failed"})
			continue
		}

		machine, err := p.resolver.Resolve(ctx, group.MachineID)
		if err != nil {
			result.Errors = append(result.Errors, IngestError{
				Field: fmt.Sprintf("batch[%d].machine_id", i),
				Error: "machine id not found in registry",
				Value: group.MachineID,
			})
			result.Details = append(result.Details, GroupDetail{MachineID: group.MachineID, Status: "failed"})
			continue
		}

		sensorType := group.SensorType
		if sensorType == "" {
			sensorType = machine.SensorType
		}
		location := group.Location
		if location == "" {
			location = machine.Location
		}

		groupWritten := 0
		for j, raw := range group.Readings {
			reading, verr := buildReading(machine.ID, sensorType, location, raw)
			if verr != nil {
				result.Errors = append(result.Errors, IngestError{
					Field: fmt.Sprintf("batch[%d].readings[%d]", i, j),
					Error: verr.reason,
					Value: verr.value,
				})
				continue
			}

			if err := p.writer.WritePoint(ctx, reading); err != nil {
				p.logger.Error("time-series write failed",
					zap.String("machine_id", machine.ID),
					zap.Time("reading_ts", reading.Timestamp),
					zap.Error(err))
				result.Errors = append(result.Errors, IngestError{
					Field: fmt.Sprintf("batch[%d].readings[%d]", i, j),
					Error: "failed to write reading to time-series store",
				})
				continue
			}

			groupWritten++
			result.TotalReadings++

			alerts := p.evaluator.Evaluate(machine, reading)
			p.publisher.PublishReading(reading)
			for _, alert := range alerts {
				p.publisher.PublishAlert(alert)
			}
		}

		status := "success"
		if groupWritten == 0 {
			status = "failed"
		}
		result.Details = append(result.Details, GroupDetail{
			MachineID:       machine.ID,
			ReadingsWritten: groupWritten,
			Status:          status,
		})
	}

	result.ProcessedAt = p.now().UTC()
	p.finalize(result)
	return result, nil
}

// finalize derives the three-way outcome from the counters.
func (p *BatchProcessor) finalize(result *IngestResult) {
	switch {
	case result.TotalReadings == 0 && len(result.Errors) > 0:
		result.Status = OutcomeFailure
		result.Message = "Batch ingestion failed"
	case len(result.Errors) > 0 || result.TotalReadings < result.RequestedReadings:
		result.Status = OutcomePartial
		result.Message = "Batch ingestion completed with errors"
	default:
		result.Status = OutcomeSuccess
		result.Message = "Batch ingestion completed"
	}
}

type validationError struct {
	reason string
	value  string
}

func buildReading(machineID, sensorType, location string, raw SensorReading) (models.Reading, *validationError) {
	if raw.Temperature == nil && raw.Pressure == nil && raw.Speed == nil {
		return models.Reading{}, &validationError{reason: "at least one of temperature, pressure or speed is required"}
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return models.Reading{}, &validationError{reason: "invalid ISO 8601 timestamp", value: raw.Timestamp}
	}

	return models.Reading{
		MachineID:   machineID,
		SensorType:  sensorType,
		Location:    location,
		Timestamp:   ts,
		Temperature: raw.Temperature,
		Pressure:    raw.Pressure,
		Speed:       raw.Speed,
	}, nil
}
