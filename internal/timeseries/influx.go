package timeseries

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

const measurement = "sensor_readings"

// Writer appends tagged, timestamped measurements to the time-series store.
type Writer interface {
	WritePoint(ctx context.Context, r models.Reading) error
}

// FieldSample is one raw record returned by a history query.
type FieldSample struct {
	Time  time.Time
	Field string
	Value float64
}

// InfluxStore is the InfluxDB-backed Writer plus the read-side history query.
type InfluxStore struct {
	client       influxdb2.Client
	write        api.WriteAPIBlocking
	query        api.QueryAPI
	bucket       string
	writeTimeout time.Duration
}

// NewInfluxStore connects to InfluxDB.
func NewInfluxStore(url, token, org, bucket string, writeTimeout time.Duration) *InfluxStore {
	client := influxdb2.NewClient(url, token)
	return &InfluxStore{
		client:       client,
		write:        client.WriteAPIBlocking(org, bucket),
		query:        client.QueryAPI(org),
		bucket:       bucket,
		writeTimeout: writeTimeout,
	}
}

// WritePoint persists one reading. Tags index machine/sensor/location; only the
// numeric fields present on the reading are written. Nanosecond precision.
func (s *InfluxStore) WritePoint(ctx context.Context, r models.Reading) error {
	point := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("machine_id", r.MachineID).
		AddTag("sensor_type", r.SensorType).
		AddTag("location", r.Location).
		SetTime(r.Timestamp)

	if r.Temperature != nil {
		point.AddField("temperature", *r.Temperature)
	}
	if r.Pressure != nil {
		point.AddField("pressure", *r.Pressure)
	}
	if r.Speed != nil {
		point.AddField("speed", *r.Speed)
	}

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return s.write.WritePoint(ctx, point)
}

// QueryRange returns raw field samples for one machine in [start, stop).
func (s *InfluxStore) QueryRange(ctx context.Context, machineID string, start, stop time.Time, limit int) ([]FieldSample, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r.machine_id == %q)
  |> sort(columns: ["_time"])
  |> limit(n: %d)`,
		s.bucket,
		start.UTC().Format(time.RFC3339Nano),
		stop.UTC().Format(time.RFC3339Nano),
		measurement,
		machineID,
		limit,
	)

	result, err := s.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var samples []FieldSample
	for result.Next() {
		record := result.Record()
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}
		samples = append(samples, FieldSample{
			Time:  record.Time(),
			Field: record.Field(),
			Value: value,
		})
	}
	if result.Err() != nil {
		return nil, result.Err()
	}
	return samples, nil
}

// Close releases the underlying client.
func (s *InfluxStore) Close() {
	s.client.Close()
}
