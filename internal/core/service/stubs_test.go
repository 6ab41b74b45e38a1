package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Clock
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Session cache
// ---------------------------------------------------------------------------

type stubCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	putErr  error
	failGet func(key string) bool
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (c *stubCache) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[key] = append([]byte(nil), value...)
	c.ttls[key] = ttl
	return nil
}

func (c *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.failGet != nil && c.failGet(key) {
		return nil, errors.New("cache unavailable")
	}
	v, ok := c.entries[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *stubCache) Evict(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	delete(c.ttls, key)
	return nil
}

func (c *stubCache) EvictPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			delete(c.ttls, k)
		}
	}
	return nil
}

func (c *stubCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// ---------------------------------------------------------------------------
// Directories
// ---------------------------------------------------------------------------

type stubCustomers struct {
	profiles map[domain.PartyID]domain.CustomerProfile
	err      error
	delay    time.Duration
}

func (s *stubCustomers) GetParty(ctx context.Context, partyID domain.PartyID) (domain.CustomerProfile, error) {
	if err := wait(ctx, s.delay); err != nil {
		return domain.CustomerProfile{}, err
	}
	if s.err != nil {
		return domain.CustomerProfile{}, s.err
	}
	p, ok := s.profiles[partyID]
	if !ok {
		return domain.CustomerProfile{}, domain.ErrNotFound
	}
	return p, nil
}

type stubContracts struct {
	mu        sync.Mutex
	parties   map[domain.PartyID][]domain.ContractParty
	details   map[uuid.UUID]domain.ContractDetail
	listErr   error
	detailErr map[uuid.UUID]error
	calls     int
}

func (s *stubContracts) ListActiveContractParties(_ context.Context, partyID domain.PartyID) ([]domain.ContractParty, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.parties[partyID], nil
}

func (s *stubContracts) GetContract(_ context.Context, contractID uuid.UUID) (domain.ContractDetail, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if err := s.detailErr[contractID]; err != nil {
		return domain.ContractDetail{}, err
	}
	d, ok := s.details[contractID]
	if !ok {
		return domain.ContractDetail{}, domain.ErrNotFound
	}
	return d, nil
}

type stubRoles struct {
	mu        sync.Mutex
	roles     map[uuid.UUID]domain.RoleBinding
	scopes    map[uuid.UUID][]domain.PermissionScope
	roleErr   error
	scopesErr error
	calls     int
}

func (s *stubRoles) GetRole(_ context.Context, roleID uuid.UUID) (domain.RoleBinding, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.roleErr != nil {
		return domain.RoleBinding{}, s.roleErr
	}
	r, ok := s.roles[roleID]
	if !ok {
		return domain.RoleBinding{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *stubRoles) ListActiveScopes(_ context.Context, roleID uuid.UUID) ([]domain.PermissionScope, error) {
	if s.scopesErr != nil {
		return nil, s.scopesErr
	}
	return s.scopes[roleID], nil
}

type stubProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.ProductInfo
	err      error
	calls    int
}

func (s *stubProducts) GetProduct(_ context.Context, productID uuid.UUID) (domain.ProductInfo, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return domain.ProductInfo{}, s.err
	}
	p, ok := s.products[productID]
	if !ok {
		return domain.ProductInfo{}, domain.ErrNotFound
	}
	return p, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	records []string
}

func (o *recordingObserver) RecordFallback(resolver string, reason ports.FallbackReason) {
	o.mu.Lock()
	o.records = append(o.records, resolver+":"+string(reason))
	o.mu.Unlock()
}

func (o *recordingObserver) count(resolver string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, r := range o.records {
		if strings.HasPrefix(r, resolver+":") {
			n++
		}
	}
	return n
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ---------------------------------------------------------------------------
// Fixture: party P1 holding contract C1 for product PX with role R1.
// ---------------------------------------------------------------------------

var (
	fixtureParty    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	fixtureContract = uuid.MustParse("c1c1c1c1-0000-0000-0000-000000000001")
	fixtureProduct  = uuid.MustParse("a0a0a0a0-0000-0000-0000-00000000000f")
	fixtureRole     = uuid.MustParse("e1e1e1e1-0000-0000-0000-000000000001")
	fixtureScope    = uuid.MustParse("5c000000-0000-0000-0000-000000000001")
)

type fixture struct {
	customers *stubCustomers
	contracts *stubContracts
	roles     *stubRoles
	products  *stubProducts
	observer  *recordingObserver
}

func newFixture() *fixture {
	return &fixture{
		customers: &stubCustomers{profiles: map[domain.PartyID]domain.CustomerProfile{
			fixtureParty: {PartyID: fixtureParty, PartyKind: "INDIVIDUAL", FullName: "Ada Lovelace", Email: "ada@example.com", IsActive: true},
		}},
		contracts: &stubContracts{
			parties: map[domain.PartyID][]domain.ContractParty{
				fixtureParty: {{ContractID: fixtureContract, PartyID: fixtureParty, RoleID: fixtureRole, ProductID: fixtureProduct, IsActive: true}},
			},
			details: map[uuid.UUID]domain.ContractDetail{
				fixtureContract: {ContractID: fixtureContract, ContractNumber: "CTR-001", Status: "ACTIVE"},
			},
			detailErr: map[uuid.UUID]error{},
		},
		roles: &stubRoles{
			roles: map[uuid.UUID]domain.RoleBinding{
				fixtureRole: {RoleID: fixtureRole, Code: "OWNER", Name: "Owner", IsActive: true},
			},
			scopes: map[uuid.UUID][]domain.PermissionScope{
				fixtureRole: {{ScopeID: fixtureScope, ActionType: "READ", ResourceType: "BALANCE", IsActive: true}},
			},
		},
		products: &stubProducts{products: map[uuid.UUID]domain.ProductInfo{
			fixtureProduct: {ProductID: fixtureProduct, Name: "Current Account", Status: "ACTIVE"},
		}},
		observer: &recordingObserver{},
	}
}

func (f *fixture) aggregator(clock *fakeClock, ttl time.Duration) *SessionAggregator {
	log := zerolog.Nop()
	timeout := 200 * time.Millisecond
	roles := NewRoleResolver(f.roles, timeout, f.observer, log)
	products := NewProductResolver(f.products, timeout, f.observer, log)
	return NewSessionAggregator(
		NewProfileResolver(f.customers, timeout, f.observer, log),
		NewRelationshipResolver(f.contracts, roles, products, timeout, f.observer, log),
		ttl,
		log,
		WithClock(clock.Now),
	)
}
