package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/repositories"
)

// ---- Mocks wrapping the sqlite repositories used in unit tests ----

type mockReturnRepository struct {
	repositories.ReturnRepository
	failFor string
}

func (m *mockReturnRepository) UpsertBatch(ctx context.Context, rows []models.ReturnRow) error {
	if len(rows) > 0 && rows[0].PortfolioID == m.failFor {
		return errors.New("return rows unavailable")
	}
	return m.ReturnRepository.UpsertBatch(ctx, rows)
}

type mockSnapshotRepository struct {
	repositories.SnapshotRepository
	mu      sync.Mutex
	batches int
	delay   time.Duration
	active  int
	peak    int
}

func (m *mockSnapshotRepository) UpsertBatch(ctx context.Context, snaps []models.NAVSnapshot) error {
	m.mu.Lock()
	m.batches++
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
	m.mu.Unlock()

	time.Sleep(m.delay)
	err := m.SnapshotRepository.UpsertBatch(ctx, snaps)

	m.mu.Lock()
	m.active--
	m.mu.Unlock()
	return err
}
