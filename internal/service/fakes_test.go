package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chatpanel/learning-hub/internal/huberrors"
	"github.com/chatpanel/learning-hub/internal/models"
	"github.com/chatpanel/learning-hub/internal/vectorindex"
)

// fixedNow is 2026-03-14 15:04:05 local time.
func fixedNow() time.Time {
	return time.Date(2026, time.March, 14, 15, 4, 5, 0, time.Local)
}

// snapshotter is a fake store that can undo every write made after snapshot.
type snapshotter interface {
	snapshot() (restore func())
}

// memoryTx rolls the fake stores back when fn fails, standing in for a database transaction.
type memoryTx struct {
	stores    []snapshotter
	rollbacks atomic.Int32
}

func newMemoryTx(stores ...snapshotter) *memoryTx {
	return &memoryTx{stores: stores}
}

func (m *memoryTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	restores := make([]func(), 0, len(m.stores))
	for _, st := range m.stores {
		restores = append(restores, st.snapshot())
	}

	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}

		m.rollbacks.Add(1)

		return err
	}

	return nil
}

type mockLearningRepo struct {
	mu          sync.Mutex
	records     map[uuid.UUID]*models.LearningRecord
	createErr   error
	setVecErr   error
	createCalls int
	updates     []helpfulnessUpdate
}

type helpfulnessUpdate struct {
	id      uuid.UUID
	helpful bool
	score   *float64
}

func newMockLearningRepo() *mockLearningRepo {
	return &mockLearningRepo{records: map[uuid.UUID]*models.LearningRecord{}}
}

func (m *mockLearningRepo) add(r models.LearningRecord) *models.LearningRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[r.ID] = &r

	return &r
}

func (m *mockLearningRepo) Create(_ context.Context, req *models.CreateLearningRecordRequest) (*models.LearningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++

	if m.createErr != nil {
		return nil, m.createErr
	}

	r := &models.LearningRecord{
		ID:          uuid.New(),
		UserMessage: req.UserMessage,
		BotResponse: req.BotResponse,
		Intent:      req.Intent,
		Category:    req.Category,
		OriginID:    req.OriginID,
		Context:     req.Context,
		WasHelpful:  req.WasHelpful,
	}
	m.records[r.ID] = r

	cp := *r

	return &cp, nil
}

func (m *mockLearningRepo) GetByID(_ context.Context, id uuid.UUID) (*models.LearningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("learning record", "learning record not found")
	}

	cp := *r

	return &cp, nil
}

func (m *mockLearningRepo) List(context.Context, *models.ListLearningRecordsFilters) ([]models.LearningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.LearningRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}

	return out, nil
}

func (m *mockLearningRepo) Count(context.Context, *models.ListLearningRecordsFilters) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.records)), nil
}

func (m *mockLearningRepo) SetVectorID(_ context.Context, id uuid.UUID, vectorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setVecErr != nil {
		return m.setVecErr
	}

	m.records[id].VectorID = &vectorID

	return nil
}

func (m *mockLearningRepo) Delete(_ context.Context, id uuid.UUID) (*models.LearningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("learning record", "learning record not found")
	}

	delete(m.records, id)

	return r, nil
}

func (m *mockLearningRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make(map[uuid.UUID]models.LearningRecord, len(m.records))
	for id, r := range m.records {
		saved[id] = *r
	}

	updates := len(m.updates)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.records = make(map[uuid.UUID]*models.LearningRecord, len(saved))
		for id, r := range saved {
			m.records[id] = &r
		}

		m.updates = m.updates[:updates]
	}
}

func (m *mockLearningRepo) LockForReference(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return huberrors.NewNotFoundError("learning record", "learning record not found")
	}

	return nil
}

func (m *mockLearningRepo) UpdateHelpfulness(
	_ context.Context, id uuid.UUID, helpful bool, score *float64,
) (*models.LearningRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, huberrors.NewNotFoundError("learning record", "learning record not found")
	}

	m.updates = append(m.updates, helpfulnessUpdate{id: id, helpful: helpful, score: score})

	r.WasHelpful = &helpful
	if score != nil {
		r.HelpfulScore = score
	}

	cp := *r

	return &cp, nil
}

type mockFeedbackRepo struct {
	mu      sync.Mutex
	created []models.FeedbackRecord
	summary map[string]int64
}

func (m *mockFeedbackRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.created)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.created = m.created[:n]
	}
}

func (m *mockFeedbackRepo) Create(
	_ context.Context, req *models.CreateFeedbackRequest, ft models.FeedbackType,
) (*models.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := models.FeedbackRecord{
		ID:           uuid.New(),
		LearningID:   req.LearningID,
		FeedbackType: ft,
		Rating:       req.Rating,
		Comment:      req.Comment,
		Source:       "api",
	}
	m.created = append(m.created, r)

	return &r, nil
}

func (m *mockFeedbackRepo) List(context.Context, *models.ListFeedbackFilters) ([]models.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.FeedbackRecord(nil), m.created...), nil
}

func (m *mockFeedbackRepo) Count(context.Context, *models.ListFeedbackFilters) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.created)), nil
}

func (m *mockFeedbackRepo) CountByType(context.Context, *models.ListFeedbackFilters) (map[string]int64, error) {
	return m.summary, nil
}

// memoryDailyStats increments under a mutex, standing in for the atomic SQL upsert.
type memoryDailyStats struct {
	mu   sync.Mutex
	rows map[time.Time]models.DailyStats
	err  error
}

func newMemoryDailyStats() *memoryDailyStats {
	return &memoryDailyStats{rows: map[time.Time]models.DailyStats{}}
}

func (m *memoryDailyStats) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make(map[time.Time]models.DailyStats, len(m.rows))
	for day, row := range m.rows {
		saved[day] = row
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.rows = saved
	}
}

func (m *memoryDailyStats) Increment(_ context.Context, day time.Time, d models.StatsDelta) error {
	if m.err != nil {
		return m.err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.rows[day]
	row.Date = day
	row.TotalLearnings += d.TotalLearnings
	row.PositiveFeedback += d.PositiveFeedback
	row.NegativeFeedback += d.NegativeFeedback
	m.rows[day] = row

	return nil
}

func (m *memoryDailyStats) ListSince(_ context.Context, since time.Time) ([]models.DailyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.DailyStats

	for day, row := range m.rows {
		if !day.Before(since) {
			out = append(out, row)
		}
	}

	return out, nil
}

func (m *memoryDailyStats) day(t time.Time) models.DailyStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rows[DayOf(t)]
}

type mockGateway struct {
	storeFunc  func(ctx context.Context, req vectorindex.StoreRequest) (string, error)
	updateFunc func(ctx context.Context, vectorID string, helpful bool) error
	deleteFunc func(ctx context.Context, vectorID string) error
	searchFunc func(ctx context.Context, req vectorindex.SearchRequest) (*vectorindex.SearchResponse, error)
}

func (m *mockGateway) Store(ctx context.Context, req vectorindex.StoreRequest) (string, error) {
	if m.storeFunc == nil {
		return "", vectorindex.ErrUnavailable
	}

	return m.storeFunc(ctx, req)
}

func (m *mockGateway) Update(ctx context.Context, vectorID string, helpful bool) error {
	if m.updateFunc == nil {
		return vectorindex.ErrUnavailable
	}

	return m.updateFunc(ctx, vectorID, helpful)
}

func (m *mockGateway) Delete(ctx context.Context, vectorID string) error {
	if m.deleteFunc == nil {
		return vectorindex.ErrUnavailable
	}

	return m.deleteFunc(ctx, vectorID)
}

func (m *mockGateway) Search(ctx context.Context, req vectorindex.SearchRequest) (*vectorindex.SearchResponse, error) {
	if m.searchFunc == nil {
		return nil, vectorindex.ErrUnavailable
	}

	return m.searchFunc(ctx, req)
}

// unavailableGateway fails every call the way the HTTP backend does when the service is down.
var unavailableGateway = &mockGateway{}

func newStats(daily *memoryDailyStats) *StatsService {
	return NewStatsService(StatsServiceParams{Daily: daily, Now: fixedNow})
}
