package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lfarias/rodovia/internal/httputil"
	"github.com/lfarias/rodovia/internal/models"
)

// Fetcher downloads DATATRAN exports over HTTP with retry on transient
// failures.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = httputil.NewClient()
	}
	return &Fetcher{client: client}
}

// Fetch downloads and parses the export at url. Rate limiting and server
// errors are retried with exponential backoff; anything else fails fast.
func (f *Fetcher) Fetch(url string) ([]models.IncidentRecord, error) {
	var body []byte
	operation := func() error {
		resp, err := f.client.Get(url)
		if err != nil {
			return fmt.Errorf("fetch export: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch export: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch export: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	var records []models.IncidentRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("ingest: parse export: %w", err)
	}
	return records, nil
}
