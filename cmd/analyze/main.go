// Command analyze runs the trip analyzer over a capture session file
// and prints its session, performance, driving-behavior and charging
// stats (or the full analysis as JSON with -json).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"evtelemetry/internal/analysis"
	"evtelemetry/internal/capture"
)

func main() {
	var (
		inputFile  string
		jsonOutput bool
	)

	flag.StringVar(&inputFile, "file", "", "Capture file to analyze")
	flag.BoolVar(&jsonOutput, "json", false, "Print the full analysis as JSON")
	flag.Parse()

	if inputFile == "" {
		fmt.Println("Please specify a capture file with -file")
		os.Exit(1)
	}

	session, err := capture.LoadSession(inputFile)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}

	analyzer := analysis.NewAnalyzer(session, analysis.DefaultOptions())

	result, err := analyzer.Analyze()
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("Failed to encode analysis: %v", err)
		}
		return
	}

	fmt.Printf("\nSession Analysis for %s\n", filepath.Base(inputFile))
	fmt.Printf("=================================\n")
	fmt.Printf("Duration: %s\n", result.SessionInfo.Duration)
	fmt.Printf("Total Frames: %d\n", result.SessionInfo.TotalFrames)
	fmt.Printf("Unique CAN IDs: %d\n", result.CANActivity.UniqueIDs)
	fmt.Printf("\nPerformance Metrics:\n")
	fmt.Printf("- Max SOC: %.2f%%\n", result.Performance.SOC.Max)
	fmt.Printf("- Min SOC: %.2f%%\n", result.Performance.SOC.Min)
	fmt.Printf("- Max Speed: %.2f km/h\n", result.Performance.Speed.Max)
	fmt.Printf("- Average Speed: %.2f km/h\n", result.Performance.Speed.Mean)
	fmt.Printf("- Data Rate: %.2f frames/sec\n", result.Performance.DataRate)
	fmt.Printf("\nDriving Behavior:\n")
	fmt.Printf("- Idle Time: %.1f%%\n", result.DrivingBehavior.IdleTime)
	fmt.Printf("- Rapid Accelerations: %d\n", result.DrivingBehavior.RapidAccel)
	fmt.Printf("- Rapid Decelerations: %d\n", result.DrivingBehavior.RapidDecel)
	fmt.Printf("\nCharging:\n")
	fmt.Printf("- Charging Events: %d\n", result.Charging.ChargingEvents)
	fmt.Printf("- DC Fast Charging Events: %d\n", result.Charging.DCFCEvents)
	fmt.Printf("- Charging Time: %s\n", result.Charging.ChargingTime)
}
