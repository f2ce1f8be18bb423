// Command query is local tooling over the historical Datastore: the
// only network-free surface for reading back telemetry, alerts, and
// vehicle records that cmd/agent persisted.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"evtelemetry/internal/datastore"
)

func main() {
	var (
		vin        string
		queryType  string
		sqlitePath string
		influxURL  string
		influxOrg  string
		influxTok  string
		influxBkt  string
		since      time.Duration
		outputFile string
	)

	flag.StringVar(&vin, "vin", "", "Vehicle VIN to query")
	flag.StringVar(&queryType, "query", "latest", "Type of query: latest, telemetry, alerts, vehicle")
	flag.StringVar(&sqlitePath, "sqlite", "evtelemetry.db", "SQLite database path")
	flag.StringVar(&influxURL, "influx-url", "http://localhost:8086", "InfluxDB URL")
	flag.StringVar(&influxOrg, "influx-org", "", "InfluxDB organization")
	flag.StringVar(&influxTok, "influx-token", "", "InfluxDB token")
	flag.StringVar(&influxBkt, "influx-bucket", "", "InfluxDB bucket")
	flag.DurationVar(&since, "since", time.Hour, "How far back to query for range queries")
	flag.StringVar(&outputFile, "output", "", "Output file (defaults to stdout)")
	flag.Parse()

	if vin == "" {
		fmt.Println("Please specify a VIN with -vin")
		os.Exit(1)
	}

	store, err := datastore.NewStore(&datastore.Config{
		SQLitePath:     sqlitePath,
		InfluxDBURL:    influxURL,
		InfluxDBOrg:    influxOrg,
		InfluxDBToken:  influxTok,
		InfluxDBBucket: influxBkt,
	})
	if err != nil {
		log.Fatalf("Failed to open datastore: %v", err)
	}
	defer store.Close()

	now := time.Now()
	start := now.Add(-since)

	var result interface{}
	switch queryType {
	case "latest":
		result, err = store.GetLatestTelemetry(vin)
	case "telemetry":
		result, err = store.GetTelemetry(vin, start, now)
	case "alerts":
		result, err = store.GetAlerts(vin, start, now)
	case "vehicle":
		result, err = store.GetVehicle(vin)
	default:
		log.Fatalf("Unknown query type: %s", queryType)
	}
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("Failed to write result: %v", err)
	}
}
