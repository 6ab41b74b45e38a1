package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/firefly/security-center/internal/core/domain"
)

const linkCollection = "identity_links"

// Link kinds stored in the identity_links collection.
const (
	LinkUsername = "username"
	LinkSubject  = "subject"
)

// IdentityLinkRepository keeps correlation keys (usernames, external subjects)
// linked to a party id. One document per (kind, key).
type IdentityLinkRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewIdentityLinkRepository(db *mongo.Database) *IdentityLinkRepository {
	return &IdentityLinkRepository{coll: db.Collection(linkCollection), now: time.Now}
}

type mongoLink struct {
	Kind      string `bson:"kind"`
	Key       string `bson:"key"`
	PartyID   string `bson:"party_id"`
	UpdatedAt int64  `bson:"updated_at"`
}

// EnsureIndexes creates the unique (kind, key) index.
func (r *IdentityLinkRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("identity link index: %w", err)
	}
	return nil
}

// Link upserts a correlation key for partyID.
func (r *IdentityLinkRepository) Link(ctx context.Context, kind, key string, partyID domain.PartyID) error {
	key = normalizeLinkKey(kind, key)
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"kind": kind, "key": key},
		bson.M{"$set": mongoLink{Kind: kind, Key: key, PartyID: partyID.String(), UpdatedAt: r.now().Unix()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("link %s: %w", kind, err)
	}
	return nil
}

func (r *IdentityLinkRepository) FindByUsername(ctx context.Context, username string) (domain.PartyID, error) {
	return r.find(ctx, LinkUsername, username)
}

func (r *IdentityLinkRepository) FindBySubject(ctx context.Context, subject string) (domain.PartyID, error) {
	return r.find(ctx, LinkSubject, subject)
}

func (r *IdentityLinkRepository) find(ctx context.Context, kind, key string) (domain.PartyID, error) {
	var doc mongoLink
	err := r.coll.FindOne(ctx, bson.M{"kind": kind, "key": normalizeLinkKey(kind, key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return uuid.Nil, domain.ErrPartyNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("find %s link: %w", kind, err)
	}
	partyID, err := uuid.Parse(doc.PartyID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("find %s link: bad party id %q: %w", kind, doc.PartyID, err)
	}
	return partyID, nil
}

// Usernames are matched case-insensitively; subjects are opaque.
func normalizeLinkKey(kind, key string) string {
	key = strings.TrimSpace(key)
	if kind == LinkUsername {
		return strings.ToLower(key)
	}
	return key
}
