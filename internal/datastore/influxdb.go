package datastore

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxDBStore implements telemetry storage using InfluxDB
type InfluxDBStore struct {
	client   influxdb2.Client
	org      string
	bucket   string
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
}

// NewInfluxDBStore creates a new InfluxDB-backed store
func NewInfluxDBStore(url, token, org, bucket string) (*InfluxDBStore, error) {
	client := influxdb2.NewClient(url, token)

	store := &InfluxDBStore{
		client:   client,
		org:      org,
		bucket:   bucket,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		queryAPI: client.QueryAPI(org),
	}

	// Test connection
	if _, err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	return store, nil
}

// SaveTelemetry writes one telemetry line as a point, with one field
// per present key in data.Fields. This mirrors the JSON emitter's
// "only valid fields" rule: a field absent from data.Fields is simply
// absent from the point rather than written as zero.
func (s *InfluxDBStore) SaveTelemetry(vin string, data *TelemetryData) error {
	values := make(map[string]interface{}, len(data.Fields))
	for name, v := range data.Fields {
		values[name] = v
	}

	point := influxdb2.NewPoint(
		"vehicle_telemetry",
		map[string]string{
			"vin": vin,
		},
		values,
		data.Timestamp,
	)

	if err := s.writeAPI.WritePoint(context.Background(), point); err != nil {
		return fmt.Errorf("failed to write telemetry data: %w", err)
	}

	return nil
}

func (s *InfluxDBStore) queryTelemetryRange(query, vin string) ([]*TelemetryData, error) {
	result, err := s.queryAPI.Query(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer result.Close()

	var data []*TelemetryData
	for result.Next() {
		record := result.Record()
		td := &TelemetryData{
			Timestamp: record.Time(),
			VIN:       vin,
			Fields:    make(map[string]float64),
		}
		for key, raw := range record.Values() {
			switch key {
			case "_time", "_measurement", "_start", "_stop", "vin", "result", "table":
				continue
			}
			if v, ok := raw.(float64); ok {
				td.Fields[key] = v
			}
		}
		data = append(data, td)
	}

	return data, result.Err()
}

func (s *InfluxDBStore) GetTelemetry(vin string, start, end time.Time) ([]*TelemetryData, error) {
	query := fmt.Sprintf(`
		from(bucket:"%s")
			|> range(start: %s, stop: %s)
			|> filter(fn: (r) => r["_measurement"] == "vehicle_telemetry" and r["vin"] == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
	`, s.bucket, start.Format(time.RFC3339), end.Format(time.RFC3339), vin)

	return s.queryTelemetryRange(query, vin)
}

func (s *InfluxDBStore) GetLatestTelemetry(vin string) (*TelemetryData, error) {
	query := fmt.Sprintf(`
		from(bucket:"%s")
			|> range(start: -1h)
			|> filter(fn: (r) => r["_measurement"] == "vehicle_telemetry" and r["vin"] == "%s")
			|> last()
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
	`, s.bucket, vin)

	data, err := s.queryTelemetryRange(query, vin)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no telemetry data found for VIN: %s", vin)
	}

	return data[0], nil
}

func (s *InfluxDBStore) Close() error {
	s.client.Close()
	return nil
}
