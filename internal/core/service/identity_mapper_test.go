package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/firefly/security-center/internal/core/domain"
)

type stubPartyDirectory struct {
	byEmail map[string]domain.PartyID
	err     error
	delay   time.Duration
	queried []string
}

func (d *stubPartyDirectory) FindPartyByEmail(ctx context.Context, email string) (domain.PartyID, error) {
	d.queried = append(d.queried, email)
	if err := wait(ctx, d.delay); err != nil {
		return uuid.Nil, err
	}
	if d.err != nil {
		return uuid.Nil, d.err
	}
	id, ok := d.byEmail[email]
	if !ok {
		return uuid.Nil, domain.ErrPartyNotFound
	}
	return id, nil
}

type stubLinks struct {
	byUsername map[string]domain.PartyID
	bySubject  map[string]domain.PartyID
	err        error
}

func (l *stubLinks) FindByUsername(_ context.Context, username string) (domain.PartyID, error) {
	if l.err != nil {
		return uuid.Nil, l.err
	}
	if id, ok := l.byUsername[username]; ok {
		return id, nil
	}
	return uuid.Nil, domain.ErrPartyNotFound
}

func (l *stubLinks) FindBySubject(_ context.Context, subject string) (domain.PartyID, error) {
	if l.err != nil {
		return uuid.Nil, l.err
	}
	if id, ok := l.bySubject[subject]; ok {
		return id, nil
	}
	return uuid.Nil, domain.ErrPartyNotFound
}

func TestIdentityMapper_EmailIsNormalized(t *testing.T) {
	dir := &stubPartyDirectory{byEmail: map[string]domain.PartyID{"ada@example.com": fixtureParty}}
	m := NewIdentityMapper(dir, &stubLinks{}, zerolog.Nop())

	got, err := m.MapToParty(context.Background(), domain.ExternalIdentity{Subject: "sub-1", Email: "  Ada@Example.COM "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PartyID != fixtureParty || got.Source != domain.MappingByEmail || !got.DirectoryBacked {
		t.Fatalf("unexpected mapping: %+v", got)
	}
	if dir.queried[0] != "ada@example.com" {
		t.Fatalf("expected normalized email lookup, got %q", dir.queried[0])
	}
}

func TestIdentityMapper_FallsThroughToUsernameThenSubject(t *testing.T) {
	byUser := uuid.New()
	bySub := uuid.New()
	links := &stubLinks{
		byUsername: map[string]domain.PartyID{"ada": byUser},
		bySubject:  map[string]domain.PartyID{"sub-2": bySub},
	}
	m := NewIdentityMapper(&stubPartyDirectory{}, links, zerolog.Nop())

	got, err := m.MapToParty(context.Background(), domain.ExternalIdentity{Subject: "sub-1", Email: "x@example.com", PreferredUsername: "ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PartyID != byUser || got.Source != domain.MappingByUsername {
		t.Fatalf("expected username mapping, got %+v", got)
	}

	got, err = m.MapToParty(context.Background(), domain.ExternalIdentity{Subject: "sub-2", PreferredUsername: "nobody"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PartyID != bySub || got.Source != domain.MappingBySubject {
		t.Fatalf("expected subject mapping, got %+v", got)
	}
}

func TestIdentityMapper_LookupFailureFallsThrough(t *testing.T) {
	dir := &stubPartyDirectory{err: errors.New("directory down")}
	links := &stubLinks{byUsername: map[string]domain.PartyID{"ada": fixtureParty}}
	m := NewIdentityMapper(dir, links, zerolog.Nop())

	got, err := m.MapToParty(context.Background(), domain.ExternalIdentity{Subject: "s", Email: "ada@example.com", PreferredUsername: "ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != domain.MappingByUsername {
		t.Fatalf("expected username mapping after directory failure, got %s", got.Source)
	}
}

func TestIdentityMapper_SlowLookupTimesOutAndFallsThrough(t *testing.T) {
	dir := &stubPartyDirectory{delay: time.Second, byEmail: map[string]domain.PartyID{"ada@example.com": uuid.New()}}
	m := NewIdentityMapper(dir, &stubLinks{}, zerolog.Nop(), WithLookupTimeout(20*time.Millisecond))

	got, err := m.MapToParty(context.Background(), domain.ExternalIdentity{Subject: "sub-9", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Source != domain.MappingDeterministic {
		t.Fatalf("expected deterministic fallback, got %s", got.Source)
	}
}

func TestIdentityMapper_DeterministicFallbackIsStable(t *testing.T) {
	var sources []domain.MappingSource
	m := NewIdentityMapper(&stubPartyDirectory{}, &stubLinks{}, zerolog.Nop(),
		WithMappingHook(func(s domain.MappingSource) { sources = append(sources, s) }))

	id := domain.ExternalIdentity{Subject: "kc-1234"}
	first, err := m.MapToParty(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.MapToParty(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.PartyID != second.PartyID {
		t.Fatalf("fallback not stable: %s vs %s", first.PartyID, second.PartyID)
	}
	if first.PartyID != DeterministicPartyID("kc-1234") {
		t.Fatalf("fallback id does not match DeterministicPartyID")
	}
	if first.DirectoryBacked {
		t.Fatalf("deterministic mapping must not be directory backed")
	}
	if DeterministicPartyID("kc-1234") == DeterministicPartyID("kc-1235") {
		t.Fatalf("different subjects must map to different parties")
	}
	if len(sources) != 2 || sources[0] != domain.MappingDeterministic {
		t.Fatalf("unexpected mapping hook calls: %v", sources)
	}
}

func TestIdentityMapper_FallbackDisabled(t *testing.T) {
	m := NewIdentityMapper(&stubPartyDirectory{}, &stubLinks{}, zerolog.Nop(), WithFallback(false))

	_, err := m.MapToParty(context.Background(), domain.ExternalIdentity{Subject: "kc-1"})
	if !errors.Is(err, domain.ErrPartyNotResolved) {
		t.Fatalf("expected ErrPartyNotResolved, got %v", err)
	}
}

func TestIdentityMapper_NoSubject(t *testing.T) {
	m := NewIdentityMapper(&stubPartyDirectory{}, &stubLinks{}, zerolog.Nop())

	_, err := m.MapToParty(context.Background(), domain.ExternalIdentity{Email: "nobody@example.com"})
	if !errors.Is(err, domain.ErrPartyNotResolved) {
		t.Fatalf("expected ErrPartyNotResolved, got %v", err)
	}
}

func TestIdentityMapper_CancelledContextFailsHard(t *testing.T) {
	dir := &stubPartyDirectory{delay: time.Second}
	m := NewIdentityMapper(dir, &stubLinks{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.MapToParty(ctx, domain.ExternalIdentity{Subject: "kc-1", Email: "a@example.com"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
