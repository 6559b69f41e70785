package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/dbx"
	"github.com/dmitrijs2005/plantgate/internal/server/auth"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/plants"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/records"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTokens() (*auth.TokenService, *clock) {
	c := &clock{t: epoch}
	return auth.NewTokenServiceWithNow([]byte("test-secret"), 24*time.Hour, 10*time.Minute, c.now), c
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fakePlantsRepo is an in-memory plants.Repository.
type fakePlantsRepo struct {
	mu     sync.Mutex
	byMail map[string]*models.Plant

	getErr       error
	addErr       error
	markErr      error
	createErr    error
	listErr      error
	addCalls     int
	markCalls    int
	lookupEmails []string
}

func newFakePlants(ps ...*models.Plant) *fakePlantsRepo {
	f := &fakePlantsRepo{byMail: map[string]*models.Plant{}}
	for _, p := range ps {
		f.byMail[p.Email] = p
	}
	return f
}

func (f *fakePlantsRepo) Create(_ context.Context, p *models.Plant) (*models.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byMail[p.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	cp := *p
	cp.CreatedAt = epoch
	f.byMail[p.Email] = &cp
	return &cp, nil
}

func (f *fakePlantsRepo) GetByEmail(_ context.Context, email string) (*models.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupEmails = append(f.lookupEmails, email)
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byMail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *p
	cp.WhitelistedIPs = append([]string(nil), p.WhitelistedIPs...)
	return &cp, nil
}

func (f *fakePlantsRepo) List(context.Context) ([]*models.Plant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Plant
	for _, p := range f.byMail {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakePlantsRepo) AddWhitelistedIP(_ context.Context, plantID, ip string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return false, f.addErr
	}
	p := f.byID(plantID)
	if p == nil {
		return false, errors.New("fk violation")
	}
	if p.IsWhitelisted(ip) {
		return false, nil
	}
	p.WhitelistedIPs = append(p.WhitelistedIPs, ip)
	return true, nil
}

func (f *fakePlantsRepo) MarkVerified(_ context.Context, plantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return f.markErr
	}
	p := f.byID(plantID)
	if p == nil {
		return common.ErrorNotFound
	}
	p.IsVerified = true
	return nil
}

func (f *fakePlantsRepo) byID(id string) *models.Plant {
	for _, p := range f.byMail {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakePlantsRepo) get(email string) *models.Plant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byMail[email]
}

type fakeRecordsRepo struct {
	mu        sync.Mutex
	saved     []*models.IngestRecord
	createErr error
	listErr   error
	gotLimit  int
}

func (f *fakeRecordsRepo) Create(_ context.Context, rec *models.IngestRecord) (*models.IngestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	rec.CreatedAt = epoch
	f.saved = append(f.saved, rec)
	return rec, nil
}

func (f *fakeRecordsRepo) ListByPlant(_ context.Context, plantID string, limit int) ([]*models.IngestRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.IngestRecord
	for i := len(f.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if f.saved[i].PlantID == plantID {
			out = append(out, f.saved[i])
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	p *fakePlantsRepo
	r *fakeRecordsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Plants(dbx.DBTX) plants.Repository           { return m.p }
func (m *fakeRepoManager) Records(dbx.DBTX) records.Repository         { return m.r }

type capturedMail struct {
	to, link string
}

type fakeMailer struct {
	sent []capturedMail
	err  error
}

func (m *fakeMailer) Deliver(_ context.Context, to, link string) error {
	m.sent = append(m.sent, capturedMail{to: to, link: link})
	return m.err
}
