package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tender-cli/internal/model"
)

// marshalDoc encodes rec as the stored document. Timestamps live in their
// own columns and are left out.
func marshalDoc(rec *model.TenderRecord) (string, error) {
	cp := *rec
	cp.CreatedAt = time.Time{}
	cp.UpdatedAt = time.Time{}
	if cp.FindRequests == nil {
		cp.FindRequests = []model.FindRequest{}
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal record")
	}
	return string(b), nil
}

func unmarshalDoc(doc []byte, createdAt, updatedAt time.Time) (*model.TenderRecord, error) {
	var rec model.TenderRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal record")
	}
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return &rec, nil
}

func marshalValue(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal value")
	}
	return string(b), nil
}
