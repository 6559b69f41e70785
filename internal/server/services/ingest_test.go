package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/cryptox"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/dmitrijs2005/plantgate/internal/server/auth"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	managerOnce sync.Once
	manager     *cryptox.Manager
)

func testManager(t *testing.T) *cryptox.Manager {
	t.Helper()
	managerOnce.Do(func() {
		m, err := cryptox.GenerateManager(cryptox.KeyBits)
		if err != nil {
			panic(err)
		}
		manager = m
	})
	return manager
}

type countingDecrypter struct {
	inner Decrypter
	calls int
}

func (c *countingDecrypter) Open(env *cryptox.Envelope) ([]byte, error) {
	c.calls++
	return c.inner.Open(env)
}

type fakeBlobStore struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (f *fakeBlobStore) Put(_ context.Context, key string, body []byte, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.bodies = append(f.bodies, append([]byte(nil), body...))
	return nil
}

type ingestFixture struct {
	svc     *IngestService
	plants  *fakePlantsRepo
	records *fakeRecordsRepo
	crypto  *countingDecrypter
	blobs   *fakeBlobStore
	tokens  *auth.TokenService
}

func newIngestFixture(t *testing.T, threshold int64) *ingestFixture {
	t.Helper()
	db, _ := newSQLMockDB(t)
	tokens, _ := newTokens()
	plants := newFakePlants(&models.Plant{
		ID: "id-1", Email: "p1@example.com", WhitelistedIPs: []string{"203.0.113.5"}, IsVerified: true,
	})
	records := &fakeRecordsRepo{}
	rm := &fakeRepoManager{p: plants, r: records}
	dec := &countingDecrypter{inner: testManager(t)}
	store := &fakeBlobStore{}

	svc := NewIngestService(db, rm, access.NewGate(tokens), dec, store, threshold, logging.Nop{})
	svc.now = func() time.Time { return epoch }

	return &ingestFixture{svc: svc, plants: plants, records: records, crypto: dec, blobs: store, tokens: tokens}
}

func (f *ingestFixture) request(t *testing.T, payload []byte) IngestRequest {
	t.Helper()
	tok, err := f.tokens.IssueSession("p1@example.com", auth.RolePlant)
	require.NoError(t, err)
	env, err := cryptox.Seal(testManager(t).PublicKey(), payload)
	require.NoError(t, err)
	return IngestRequest{
		Token:      tok,
		PlantEmail: "p1@example.com",
		Origin:     "203.0.113.5",
		DataType:   "inventory",
		Envelope:   env,
	}
}

func TestIngest_StoresDecryptedPayload(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	payload := []byte(`{"sku":"A-1","qty":3}`)

	rec, err := f.svc.Ingest(context.Background(), f.request(t, payload))
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "id-1", rec.PlantID)
	assert.Equal(t, "p1@example.com", rec.PlantEmail)
	assert.Equal(t, "203.0.113.5", rec.IPAddress)
	assert.Equal(t, models.DataTypeInventory, rec.DataType)
	assert.Equal(t, payload, rec.Payload)
	assert.Equal(t, int64(len(payload)), rec.Size)
	assert.Empty(t, rec.BlobKey)
	require.Len(t, f.records.saved, 1)
	assert.Empty(t, f.blobs.keys)
}

func TestIngest_OriginNotWhitelisted(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	req := f.request(t, []byte(`{"qty":1}`))
	req.Origin = "198.51.100.9"

	_, err := f.svc.Ingest(context.Background(), req)
	requireDenied(t, err, access.OriginNotWhitelisted)
	assert.Empty(t, f.records.saved)
	assert.Zero(t, f.crypto.calls)
}

func TestIngest_SubjectMismatch(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	req := f.request(t, []byte(`{"qty":1}`))
	req.PlantEmail = "b@x.com"

	_, err := f.svc.Ingest(context.Background(), req)
	requireDenied(t, err, access.SubjectMismatch)
	assert.Empty(t, f.plants.lookupEmails)
	assert.Empty(t, f.records.saved)
}

func TestIngest_DeclaredEmailIsNormalized(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	req := f.request(t, []byte(`{"qty":1}`))
	req.PlantEmail = " P1@Example.com"

	_, err := f.svc.Ingest(context.Background(), req)
	require.NoError(t, err)
}

func TestIngest_CorruptedCiphertextWritesNothing(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	req := f.request(t, []byte(`{"qty":1}`))
	req.Envelope.(*cryptox.Envelope).Ciphertext[0] ^= 0x01

	_, err := f.svc.Ingest(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, cryptox.ErrDecryption)
	assert.Equal(t, cryptox.AuthenticationFailed, cryptox.KindOf(err))
	assert.Empty(t, f.records.saved)
	assert.Empty(t, f.blobs.keys)
}

func TestIngest_UnknownDataType(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	req := f.request(t, []byte(`{"qty":1}`))
	req.DataType = "invoice"

	_, err := f.svc.Ingest(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Zero(t, f.crypto.calls)
	assert.Empty(t, f.records.saved)
}

func TestIngest_PayloadMustBeJSONObject(t *testing.T) {
	f := newIngestFixture(t, 1<<20)

	for _, p := range []string{"plain text", "[1,2]", "null", `"str"`} {
		_, err := f.svc.Ingest(context.Background(), f.request(t, []byte(p)))
		assert.ErrorIs(t, err, common.ErrorValidation, p)
	}
	assert.Empty(t, f.records.saved)
}

func TestIngest_MalformedEnvelopeAfterAuthorization(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	req := f.request(t, []byte(`{}`))
	req.Envelope = cryptox.Encoded{EncryptedKey: "!!", IV: "??", Ciphertext: "**"}

	_, err := f.svc.Ingest(context.Background(), req)
	assert.Equal(t, cryptox.MalformedEncoding, cryptox.KindOf(err))

	req.Token = "garbage"
	_, err = f.svc.Ingest(context.Background(), req)
	requireDenied(t, err, access.TokenInvalid)
	assert.Empty(t, f.records.saved)
}

func TestIngest_MissingEnvelope(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	req := f.request(t, []byte(`{}`))
	req.Envelope = nil

	_, err := f.svc.Ingest(context.Background(), req)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestIngest_LargePayloadGoesToBlobStore(t *testing.T) {
	f := newIngestFixture(t, 64)
	payload := []byte(`{"rows":"` + strings.Repeat("x", 200) + `"}`)

	rec, err := f.svc.Ingest(context.Background(), f.request(t, payload))
	require.NoError(t, err)

	require.Len(t, f.blobs.keys, 1)
	assert.Equal(t, f.blobs.keys[0], rec.BlobKey)
	assert.True(t, strings.HasPrefix(rec.BlobKey, "plants/id-1/2025/03/01/"))
	assert.True(t, bytes.Equal(payload, f.blobs.bodies[0]))
	assert.Nil(t, rec.Payload)
	assert.Equal(t, int64(len(payload)), rec.Size)
}

func TestIngest_BlobFailureWritesNoRecord(t *testing.T) {
	f := newIngestFixture(t, 8)
	f.blobs.err = errors.New("s3 down")

	_, err := f.svc.Ingest(context.Background(), f.request(t, []byte(`{"qty":100}`)))
	require.Error(t, err)
	assert.Empty(t, f.records.saved)
}

func TestIngest_NoBlobStoreKeepsInline(t *testing.T) {
	f := newIngestFixture(t, 8)
	f.svc.blobs = nil

	rec, err := f.svc.Ingest(context.Background(), f.request(t, []byte(`{"qty":100}`)))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"qty":100}`), rec.Payload)
}

func TestIngest_RecordStoreError(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	f.records.createErr = errors.New("db down")

	_, err := f.svc.Ingest(context.Background(), f.request(t, []byte(`{}`)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestIngest_AuthorizeWithoutBody(t *testing.T) {
	f := newIngestFixture(t, 1<<20)
	tok, err := f.tokens.IssueSession("p1@example.com", auth.RolePlant)
	require.NoError(t, err)

	plant, err := f.svc.Authorize(context.Background(), tok, " P1@Example.com", "203.0.113.5")
	require.NoError(t, err)
	assert.Equal(t, "id-1", plant.ID)

	_, err = f.svc.Authorize(context.Background(), tok, "p1@example.com", "198.51.100.9")
	requireDenied(t, err, access.OriginNotWhitelisted)

	_, err = f.svc.Authorize(context.Background(), "", "p1@example.com", "203.0.113.5")
	requireDenied(t, err, access.TokenInvalid)

	assert.Zero(t, f.crypto.calls)
	assert.Empty(t, f.records.saved)
}
