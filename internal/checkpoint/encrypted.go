package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextlevelbuilder/hitlchat/internal/crypto"
)

// EncryptedStore seals checkpoint state before it reaches the inner store.
// The sealed state is stored as a JSON string so every driver keeps valid
// JSON. Plain state written before encryption was enabled is read as is.
type EncryptedStore struct {
	inner  Store
	sealer *crypto.Sealer
}

func NewEncryptedStore(inner Store, key string) (*EncryptedStore, error) {
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &EncryptedStore{inner: inner, sealer: sealer}, nil
}

func (s *EncryptedStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	cp, err := s.inner.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := s.open(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (s *EncryptedStore) Put(ctx context.Context, cp *Checkpoint) error {
	sealed, err := s.sealer.Seal(cp.State)
	if err != nil {
		return fmt.Errorf("checkpoint: seal %q: %w", cp.ThreadID, err)
	}
	data, err := json.Marshal(sealed)
	if err != nil {
		return err
	}

	stored := *cp
	stored.State = data
	if err := s.inner.Put(ctx, &stored); err != nil {
		return err
	}
	cp.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *EncryptedStore) Delete(ctx context.Context, threadID string) error {
	return s.inner.Delete(ctx, threadID)
}

func (s *EncryptedStore) List(ctx context.Context) ([]Checkpoint, error) {
	cps, err := s.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cps {
		if err := s.open(&cps[i]); err != nil {
			return nil, err
		}
	}
	return cps, nil
}

func (s *EncryptedStore) Close() error { return s.inner.Close() }

func (s *EncryptedStore) open(cp *Checkpoint) error {
	var sealed string
	if json.Unmarshal(cp.State, &sealed) != nil || !crypto.IsSealed(sealed) {
		return nil
	}
	plain, err := s.sealer.Open(sealed)
	if err != nil {
		return fmt.Errorf("checkpoint: open %q: %w", cp.ThreadID, err)
	}
	cp.State = plain
	return nil
}
