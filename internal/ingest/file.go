// Package ingest brings consolidated DATATRAN exports into the store, from
// local files, HTTP endpoints or the open-data FTP mirror.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lfarias/rodovia/internal/models"
)

// LoadFile parses a consolidated DATATRAN JSON export from disk.
func LoadFile(path string) ([]models.IncidentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	var records []models.IncidentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	return records, nil
}
