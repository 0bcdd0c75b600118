package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/lfarias/rodovia/internal/models"
)

const defaultMirrorHost = "ftp.dados.prf.gov.br:21"

// Mirror fetches DATATRAN exports from the open-data FTP mirror.
type Mirror struct {
	host string
}

func NewMirror(host string) *Mirror {
	if host == "" {
		host = defaultMirrorHost
	}
	return &Mirror{host: host}
}

// Fetch retrieves and parses the export at path on the mirror.
func (m *Mirror) Fetch(path string) ([]models.IncidentRecord, error) {
	conn, err := ftp.Dial(m.host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var records []models.IncidentRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("ingest: parse mirror export: %w", err)
	}
	return records, nil
}
