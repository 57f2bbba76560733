package oidcauth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/casemgmt/portal-gateway/cache"
	"github.com/casemgmt/portal-gateway/internal/errors"
)

const (
	transactionKeyPrefix = "oidc-tx:"
	transactionTimeout   = 15 * time.Minute
)

// Transaction is the ephemeral pre-login scratch state: the PKCE verifier,
// the nonce when PKCE is unsupported, and the referrer to return to after
// login. Generated at pre-login, consumed exactly once at post-login.
type Transaction struct {
	CodeVerifier string `json:"codeVerifier"`
	Nonce        string `json:"nonce,omitempty"`
	Referrer     string `json:"referrer"`
}

// TransactionStore keeps transactions server-side, keyed by an opaque id
// that round-trips through the authorization request's state parameter.
type TransactionStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewTransactionStore creates a transaction store. Entries expire after the
// authorization-code timeout.
func NewTransactionStore(c cache.Cache) *TransactionStore {
	return &TransactionStore{cache: c, ttl: transactionTimeout}
}

// Save stores a transaction and returns its id.
func (t *TransactionStore) Save(ctx context.Context, tx Transaction) (string, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return "", errors.Wrapf(err, "[TransactionStore.Save] encode")
	}
	id := uuid.New().String()
	if err := t.cache.Set(ctx, transactionKeyPrefix+id, raw, t.ttl); err != nil {
		return "", errors.Wrapf(err, "[TransactionStore.Save] cache")
	}
	return id, nil
}

// Consume returns the transaction for id and removes it, whatever the
// caller's outcome: verifier and nonce are single-use.
func (t *TransactionStore) Consume(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, errors.ErrTransactionNotFound
	}

	raw, err := t.cache.Get(ctx, transactionKeyPrefix+id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, errors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[TransactionStore.Consume] cache")
	}

	if err := t.cache.Drop(ctx, transactionKeyPrefix+id); err != nil {
		return nil, errors.Wrapf(err, "[TransactionStore.Consume] drop")
	}

	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, errors.Wrapf(err, "[TransactionStore.Consume] decode")
	}
	return &tx, nil
}
