// Benchmark tool for testing Harrier against labeled entity screening data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/entities.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled entity data (name, jurisdiction, is_risky)
//   2. Sends each entity to Harrier for assessment
//   3. Compares Harrier's verdict (High vs Medium/Low) with actual labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledEntity represents a row from the screening dataset
type LabeledEntity struct {
	Name         string
	Jurisdiction string
	EntityType   string
	IsRisky      bool
}

// AssessRequest is the Harrier API request format
type AssessRequest struct {
	Query Query `json:"query"`
}

type Query struct {
	Name             string `json:"name"`
	JurisdictionHint string `json:"jurisdictionHint,omitempty"`
	EntityType       string `json:"entityType,omitempty"`
}

// AssessResponse is the Harrier API response format
type AssessResponse struct {
	AssessmentID   string   `json:"assessmentId"`
	CompositeScore int      `json:"compositeScore"`
	RiskLevel      string   `json:"riskLevel"` // "low", "medium", or "high"
	Confidence     float64  `json:"confidence"`
	RedFlags       []string `json:"redFlags"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Risky entity assessed High
	FalsePositives int64 // Clean entity assessed High
	TrueNegatives  int64 // Clean entity assessed Medium/Low
	FalseNegatives int64 // Risky entity assessed Medium/Low (missed!)

	TotalProcessed int64
	TotalRisky     int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled entity CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum entities to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	riskyOnly := flag.Bool("risky-only", false, "Only test labeled-risky entities")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for clean entities (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each entity result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/entities.csv [-url http://localhost:8080]")
		fmt.Println("\nExpected CSV columns: name, jurisdiction, entity_type, is_risky")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          HARRIER BENCHMARK - Entity Risk Screening            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Harrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Risky Only:  %v\n", *riskyOnly)
	fmt.Printf("Sample Rate: %.2f\n", *sampleRate)
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  cd harrier && go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	// Read labeled data
	fmt.Printf("\nReading entity data from %s...\n", *csvPath)
	entities, err := readEntityCSV(*csvPath, *limit, *riskyOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d entities\n", len(entities))

	// Count risky vs clean
	riskyCount := 0
	for _, e := range entities {
		if e.IsRisky {
			riskyCount++
		}
	}
	fmt.Printf("  - Risky: %d (%.2f%%)\n", riskyCount, 100*float64(riskyCount)/float64(len(entities)))
	fmt.Printf("  - Clean: %d (%.2f%%)\n", len(entities)-riskyCount, 100*float64(len(entities)-riskyCount)/float64(len(entities)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(entities, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readEntityCSV(path string, limit int, riskyOnly bool, sampleRate float64) ([]LabeledEntity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := colIndex["name"]; !ok {
		return nil, fmt.Errorf("missing required column: name")
	}
	if _, ok := colIndex["is_risky"]; !ok {
		return nil, fmt.Errorf("missing required column: is_risky")
	}

	var entities []LabeledEntity
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isRisky := record[colIndex["is_risky"]] == "1"

		// Apply filters
		if riskyOnly && !isRisky {
			continue
		}

		// Sample clean entities
		if !isRisky && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		e := LabeledEntity{
			Name:    record[colIndex["name"]],
			IsRisky: isRisky,
		}
		if idx, ok := colIndex["jurisdiction"]; ok {
			e.Jurisdiction = record[idx]
		}
		if idx, ok := colIndex["entity_type"]; ok {
			e.EntityType = record[idx]
		}

		entities = append(entities, e)

		if limit > 0 && len(entities) >= limit {
			break
		}
	}

	return entities, nil
}

func runBenchmark(entities []LabeledEntity, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledEntity, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for e := range work {
				start := time.Now()
				result, err := assessEntity(client, baseURL, tenantID, e)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", e.Name, err)
					}
					continue
				}

				// Track actual labels
				if e.IsRisky {
					atomic.AddInt64(&metrics.TotalRisky, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				// Calculate confusion matrix
				predicted := result.RiskLevel == "high"
				actual := e.IsRisky

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					name := e.Name
					if len(name) > 24 {
						name = name[:24]
					}
					fmt.Printf("%s %-24s | Juris: %-4s | Risky: %-5v | Harrier: %-6s (score %3d) | Flags: %d\n",
						status,
						name,
						e.Jurisdiction,
						e.IsRisky,
						result.RiskLevel,
						result.CompositeScore,
						len(result.RedFlags),
					)
				}
			}
		}()
	}

	// Send work
	for _, e := range entities {
		work <- e
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func assessEntity(client *http.Client, baseURL, tenantID string, e LabeledEntity) (*AssessResponse, error) {
	req := AssessRequest{
		Query: Query{
			Name:             e.Name,
			JurisdictionHint: e.Jurisdiction,
			EntityType:       e.EntityType,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/assess", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AssessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Risky:      %d\n", m.TotalRisky)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    High        Not High")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  R  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of High verdicts, how many were actually risky)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of risky entities, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalRisky > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalRisky) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalRisky) * 100
		fmt.Printf("   Risky Detected:    %d / %d (%.2f%%)\n", m.TruePositives, m.TotalRisky, detectionRate)
		fmt.Printf("   Risky Missed:      %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalRisky, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		eps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f entities/sec\n", eps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most risky entities")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some risky entities")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant risk being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most risky entities are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - High verdicts are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
