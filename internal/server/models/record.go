package models

import (
	"fmt"
	"time"
)

// DataType is the declared category of an upload.
type DataType string

const (
	DataTypeProductionOrder DataType = "production_order"
	DataTypeInventory       DataType = "inventory"
	DataTypeQualityReport   DataType = "quality_report"
)

func ParseDataType(s string) (DataType, error) {
	switch d := DataType(s); d {
	case DataTypeProductionOrder, DataTypeInventory, DataTypeQualityReport:
		return d, nil
	default:
		return "", fmt.Errorf("unknown data type %q", s)
	}
}

// IngestRecord is one accepted upload. Small payloads are kept inline in
// Payload; large ones live in the blob store under BlobKey.
type IngestRecord struct {
	ID         string
	PlantID    string
	PlantEmail string
	IPAddress  string
	DataType   DataType
	Payload    []byte
	BlobKey    string
	Size       int64
	CreatedAt  time.Time
}
