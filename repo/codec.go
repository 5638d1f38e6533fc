package repo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Skryldev/proofing-amp/models"
)

// Documents outside MongoDB are kept as canonical extended JSON so that
// object ids, dates and integer widths survive a round trip.

func encodeDocument(r models.Record) ([]byte, error) {
	if r == nil {
		r = models.Record{}
	}
	data, err := bson.MarshalExtJSON(map[string]any(r), true, false)
	if err != nil {
		return nil, fmt.Errorf("repo: encode document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (models.Record, error) {
	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, true, &doc); err != nil {
		return nil, fmt.Errorf("repo: decode document: %w", err)
	}
	return models.NewRecord(doc), nil
}
