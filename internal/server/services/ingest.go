package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/cryptox"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/dmitrijs2005/plantgate/internal/server/blobs"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type Decrypter interface {
	Open(env *cryptox.Envelope) ([]byte, error)
}

// IngestRequest is one encrypted upload as received from the wire.
type IngestRequest struct {
	Token      string
	PlantEmail string
	Origin     string
	DataType   string
	Envelope   cryptox.Source
}

// IngestService authorizes, decrypts and stores uploads. Nothing is
// written unless authorization and decryption both succeed.
type IngestService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	gate          *access.Gate
	crypto        Decrypter
	blobs         blobs.Store
	blobThreshold int64
	now           func() time.Time
	log           logging.Logger
}

// NewIngestService wires the pipeline. store may be nil, in which case every
// payload is kept inline regardless of blobThreshold.
func NewIngestService(db *sql.DB, m repomanager.RepositoryManager, gate *access.Gate, crypto Decrypter, store blobs.Store, blobThreshold int64, log logging.Logger) *IngestService {
	return &IngestService{
		db:            db,
		repomanager:   m,
		gate:          gate,
		crypto:        crypto,
		blobs:         store,
		blobThreshold: blobThreshold,
		now:           time.Now,
		log:           log.With("module", "ingest"),
	}
}

// Authorize runs the access checks of Ingest on their own, so a transport
// can refuse an upload before reading its body.
func (s *IngestService) Authorize(ctx context.Context, token, plantEmail, origin string) (*models.Plant, error) {
	declared := models.NormalizeEmail(plantEmail)
	return s.gate.AuthorizeIngest(ctx, token, declared, origin, s.repomanager.Plants(s.db))
}

func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*models.IngestRecord, error) {
	plant, err := s.Authorize(ctx, req.Token, req.PlantEmail, req.Origin)
	if err != nil {
		return nil, err
	}

	dataType, err := models.ParseDataType(req.DataType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	if req.Envelope == nil {
		return nil, fmt.Errorf("%w: missing envelope", common.ErrorValidation)
	}

	env, err := req.Envelope.Decode()
	if err != nil {
		return nil, err
	}
	plaintext, err := s.crypto.Open(env)
	if err != nil {
		return nil, err
	}
	if !isJSONObject(plaintext) {
		return nil, fmt.Errorf("%w: payload must be a JSON object", common.ErrorValidation)
	}

	// AuthorizeIngest only admits parseable origins
	origin, _ := access.NormalizeOrigin(req.Origin)

	rec := &models.IngestRecord{
		ID:         uuid.NewString(),
		PlantID:    plant.ID,
		PlantEmail: plant.Email,
		IPAddress:  origin,
		DataType:   dataType,
		Size:       int64(len(plaintext)),
	}

	if s.blobs != nil && rec.Size > s.blobThreshold {
		key := blobs.NewKey(plant.ID, s.now())
		if err := s.blobs.Put(ctx, key, plaintext, "application/json"); err != nil {
			return nil, fmt.Errorf("store payload: %w", err)
		}
		rec.BlobKey = key
	} else {
		rec.Payload = plaintext
	}

	saved, err := s.repomanager.Records(s.db).Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}

	s.log.Info(ctx, "data ingested", "plant", plant.Email, "record", saved.ID, "type", string(dataType), "size", saved.Size)
	return saved, nil
}

func isJSONObject(b []byte) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(b, &obj) == nil && obj != nil
}

