package entitlement

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fibli/story-service/internal/domain"
	"github.com/fibli/story-service/internal/ports/persistence"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCounterStore потокобезопасное in-memory хранилище счётчиков
type fakeCounterStore struct {
	mu           sync.Mutex
	values       map[string]string
	failing      bool
	failSetMulti bool
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{values: make(map[string]string)}
}

func (s *fakeCounterStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return "", false, domain.ErrStorageUnavailable
	}
	value, found := s.values[key]
	return value, found, nil
}

func (s *fakeCounterStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return domain.ErrStorageUnavailable
	}
	s.values[key] = value
	return nil
}

// SetMulti пишет все ключи или ни одного, как MSET в настоящем хранилище
func (s *fakeCounterStore) SetMulti(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing || s.failSetMulti {
		return domain.ErrStorageUnavailable
	}
	for key, value := range values {
		s.values[key] = value
	}
	return nil
}

func (s *fakeCounterStore) Close() error { return nil }

// fakePurchaseRepo in-memory записи покупок и множество применённых транзакций
type fakePurchaseRepo struct {
	mu              sync.Mutex
	records         map[uuid.UUID][]domain.PurchaseRecord
	applied         map[string]bool
	failing         bool
	failMarkApplied int
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{
		records: make(map[uuid.UUID][]domain.PurchaseRecord),
		applied: make(map[string]bool),
	}
}

func (r *fakePurchaseRepo) GetRecordsByProduct(_ context.Context, userID uuid.UUID, productID domain.ProductID) ([]domain.PurchaseRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return nil, domain.ErrStorageUnavailable
	}
	var result []domain.PurchaseRecord
	for _, record := range r.records[userID] {
		if record.ProductID == productID {
			result = append(result, record)
		}
	}
	return result, nil
}

func (r *fakePurchaseRepo) ListUserIDs(context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userIDs := make([]uuid.UUID, 0, len(r.records))
	for userID := range r.records {
		userIDs = append(userIDs, userID)
	}
	return userIDs, nil
}

func (r *fakePurchaseRepo) IsApplied(_ context.Context, transactionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return false, domain.ErrStorageUnavailable
	}
	return r.applied[transactionID], nil
}

// WithTransaction откатывает состояние при ошибке, как настоящая транзакция
func (r *fakePurchaseRepo) WithTransaction(ctx context.Context, fn func(context.Context, persistence.Transaction) error) error {
	r.mu.Lock()
	savedRecords := make(map[uuid.UUID][]domain.PurchaseRecord, len(r.records))
	for userID, list := range r.records {
		savedRecords[userID] = append([]domain.PurchaseRecord(nil), list...)
	}
	savedApplied := make(map[string]bool, len(r.applied))
	for transactionID, value := range r.applied {
		savedApplied[transactionID] = value
	}
	r.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		r.mu.Lock()
		r.records = savedRecords
		r.applied = savedApplied
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakePurchaseRepo) SaveRecordTx(_ context.Context, _ persistence.Transaction, userID uuid.UUID, record domain.PurchaseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return domain.ErrStorageUnavailable
	}
	for _, existing := range r.records[userID] {
		if existing.TransactionID == record.TransactionID {
			return nil
		}
	}
	r.records[userID] = append(r.records[userID], record)
	return nil
}

func (r *fakePurchaseRepo) MarkAppliedTx(_ context.Context, _ persistence.Transaction, transactionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMarkApplied > 0 {
		r.failMarkApplied--
		return false, domain.ErrStorageUnavailable
	}
	if r.failing {
		return false, domain.ErrStorageUnavailable
	}
	if r.applied[transactionID] {
		return false, nil
	}
	r.applied[transactionID] = true
	return true, nil
}

// fakePlatform платёжная платформа с программируемыми ответами
type fakePlatform struct {
	mu sync.Mutex

	supported bool
	connected bool

	available map[uuid.UUID][]domain.PurchaseRecord
	pending   []domain.PurchaseEvent
	finalized []string

	subscriptionErr error
	oneTimeErr      error

	subscriptionRequests []domain.ProductID
	oneTimeRequests      []domain.ProductID
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		supported: true,
		available: make(map[uuid.UUID][]domain.PurchaseRecord),
	}
}

func (p *fakePlatform) InitConnection(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *fakePlatform) EndConnection(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *fakePlatform) Supported() bool { return p.supported }

func (p *fakePlatform) GetAvailablePurchases(_ context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available[userID], nil
}

func (p *fakePlatform) GetPendingPurchases(context.Context) ([]domain.PurchaseEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending, nil
}

func (p *fakePlatform) RequestSubscriptionPurchase(_ context.Context, _ uuid.UUID, productID domain.ProductID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptionRequests = append(p.subscriptionRequests, productID)
	return p.subscriptionErr
}

func (p *fakePlatform) RequestOneTimePurchase(_ context.Context, _ uuid.UUID, productID domain.ProductID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.oneTimeRequests = append(p.oneTimeRequests, productID)
	return p.oneTimeErr
}

func (p *fakePlatform) FinalizeTransaction(_ context.Context, record domain.PurchaseRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalized = append(p.finalized, record.TransactionID)
	return nil
}

func (p *fakePlatform) finalizedCount(transactionID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, id := range p.finalized {
		if id == transactionID {
			count++
		}
	}
	return count
}

// fakeAuditProducer накапливает отправленные события аудита
type fakeAuditProducer struct {
	mu     sync.Mutex
	events []domain.EntitlementEvent
}

func (p *fakeAuditProducer) SendEntitlementEvent(_ context.Context, event domain.EntitlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakeAuditProducer) Close() error { return nil }

func newTestLedger() (*Ledger, *fakeCounterStore, *fakePurchaseRepo, *fakePlatform, *fakeAuditProducer) {
	counters := newFakeCounterStore()
	repo := newFakePurchaseRepo()
	platform := newFakePlatform()
	producer := &fakeAuditProducer{}
	ledger := New(counters, repo, platform, producer, &Config{}, testLogger())
	return ledger, counters, repo, platform, producer
}
