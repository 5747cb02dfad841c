// seed_population.go: standalone script to upload a reference population CSV
// to the RiskScore admin API.
//
// Usage:
//
//	go run scripts/seed_population.go -csv data/final_data.csv -api http://localhost:8700 -token $RISKSCORE_ADMIN_TOKEN
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/MikeSquared-Agency/RiskScore/internal/population"
	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

func main() {
	csvPath := flag.String("csv", "data/final_data.csv", "path to the population CSV")
	apiURL := flag.String("api", "http://localhost:8700", "RiskScore API base URL")
	token := flag.String("token", os.Getenv("RISKSCORE_ADMIN_TOKEN"), "admin bearer token")
	dryRun := flag.Bool("dry-run", false, "parse and summarize without uploading")
	flag.Parse()

	data, err := os.ReadFile(*csvPath)
	if err != nil {
		log.Fatalf("read %s: %v", *csvPath, err)
	}

	sheet, err := population.ReadSheet(bytes.NewReader(data))
	if err != nil {
		log.Fatalf("parse %s: %v", *csvPath, err)
	}
	records, err := sheet.Records()
	if err != nil {
		log.Fatalf("parse %s: %v", *csvPath, err)
	}

	log.Printf("parsed %d records from %s", len(records), *csvPath)
	for _, field := range scoring.KnownFields {
		present, nulls := 0, 0
		for _, rec := range records {
			if !rec.Has(field) {
				continue
			}
			present++
			if _, ok := rec.Value(field); !ok {
				nulls++
			}
		}
		if present == 0 {
			fmt.Printf("  %-26s missing\n", field)
			continue
		}
		fmt.Printf("  %-26s %d values, %d null\n", field, present-nulls, nulls)
	}

	if *dryRun {
		return
	}

	req, err := http.NewRequest("PUT", *apiURL+"/api/v1/population", bytes.NewReader(data))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("upload: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Records int `json:"records"`
	}
	_ = json.Unmarshal(body, &out)
	log.Printf("done: %d records loaded", out.Records)
}
