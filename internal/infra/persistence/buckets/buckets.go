// Package buckets splits a domain.Document into the named JSON payloads kept
// in the SQL state table and reassembles them on load.
package buckets

import (
	"encoding/json"
	"fmt"

	"medtracker/pkg/domain"
)

// Bucket names in write order.
const (
	Meta         = "meta"
	Patients     = "patients"
	Medications  = "medications"
	Doses        = "doses"
	Temperatures = "temperatures"
)

// Names lists every bucket written by Encode.
var Names = []string{Meta, Patients, Medications, Doses, Temperatures}

type meta struct {
	Version    int      `json:"version"`
	RetiredIDs []string `json:"retired_ids,omitempty"`
}

// Row is one encoded bucket.
type Row struct {
	Bucket  string
	Payload []byte
}

// Encode renders doc as one row per bucket, in Names order.
func Encode(doc domain.Document) ([]Row, error) {
	doc, err := doc.Normalize()
	if err != nil {
		return nil, err
	}
	values := map[string]any{
		Meta:         meta{Version: doc.Version, RetiredIDs: doc.RetiredIDs},
		Patients:     doc.Patients,
		Medications:  doc.Medications,
		Doses:        doc.Doses,
		Temperatures: doc.Temperatures,
	}
	rows := make([]Row, 0, len(Names))
	for _, name := range Names {
		data, err := json.Marshal(values[name])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		rows = append(rows, Row{Bucket: name, Payload: data})
	}
	return rows, nil
}

// Decode rebuilds a document from stored rows. Unknown buckets are ignored
// and missing ones stay empty, so an empty table yields NewDocument.
func Decode(rows []Row) (domain.Document, error) {
	var (
		doc domain.Document
		m   meta
	)
	targets := map[string]any{
		Meta:         &m,
		Patients:     &doc.Patients,
		Medications:  &doc.Medications,
		Doses:        &doc.Doses,
		Temperatures: &doc.Temperatures,
	}
	for _, r := range rows {
		target, ok := targets[r.Bucket]
		if !ok || len(r.Payload) == 0 {
			continue
		}
		if err := json.Unmarshal(r.Payload, target); err != nil {
			return domain.Document{}, fmt.Errorf("decode %s: %w", r.Bucket, err)
		}
	}
	doc.Version = m.Version
	doc.RetiredIDs = m.RetiredIDs
	return doc.Normalize()
}
