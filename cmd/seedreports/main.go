// Command seedreports submits synthetic outage reports to a running server,
// useful for demos and for exercising the aggregation endpoints under data.
//
// Usage:
//
//	go run ./cmd/seedreports -addr http://localhost:8080 -count 50
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/opensampa/outage-map/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080", "base URL of the outage-map server")
	count := flag.Int("count", 25, "number of reports to submit")
	pause := flag.Duration("pause", 50*time.Millisecond, "pause between submissions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	intervals := domain.SaoPauloTable().Intervals()
	types := []domain.IncidentType{domain.NoPower, domain.NoWater}

	client := &http.Client{Timeout: 10 * time.Second}
	accepted := 0
	for i := 0; i < *count; i++ {
		iv := intervals[rng.Intn(len(intervals))]
		prefix := iv.MinPrefix + rng.Intn(iv.MaxPrefix-iv.MinPrefix+1)
		cep := fmt.Sprintf("%05d%03d", prefix, rng.Intn(1000))

		body, err := json.Marshal(map[string]string{
			"cep":           cep,
			"incident_type": string(types[rng.Intn(len(types))]),
		})
		if err != nil {
			return err
		}

		req, err := http.NewRequest(http.MethodPost, *addr+"/api/reports", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		// Distinct sessions keep the per-session rate limit out of the way.
		req.Header.Set("X-Session-ID", fmt.Sprintf("seed-%d", i))

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("submit %s: %w", cep, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusCreated {
			accepted++
		} else {
			log.Printf("cep %s rejected: %s", cep, resp.Status)
		}

		time.Sleep(*pause)
	}

	fmt.Printf("submitted %d reports, %d accepted\n", *count, accepted)
	return nil
}
