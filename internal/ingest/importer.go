package ingest

import (
	"log"

	"github.com/lfarias/rodovia/internal/metrics"
	"github.com/lfarias/rodovia/internal/models"
	"github.com/lfarias/rodovia/internal/store"
)

// Importer persists fetched records.
type Importer struct {
	store *store.Store
}

func NewImporter(st *store.Store) *Importer {
	return &Importer{store: st}
}

// Import stores the batch and returns how many records were new. source
// labels the ingestion path (file, http, ftp) for metrics.
func (im *Importer) Import(records []models.IncidentRecord, source string) (int, error) {
	inserted, err := im.store.InsertIncidents(records)
	if err != nil {
		return 0, err
	}
	metrics.RecordsIngested.WithLabelValues(source).Add(float64(inserted))
	log.Printf("ingest: %s: %d records, %d new", source, len(records), inserted)
	return inserted, nil
}
