package consulapi

import (
	"errors"

	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

var _ KVAPI = (*KV)(nil)

// KV is the fake counterpart of *api.KV
type KV struct {
	client *Client
}

func (k *KV) pair(key string) *api.KVPair {
	return &api.KVPair{Key: key, Value: []byte(k.client.store.Get(key))}
}

// Get returns the pair stored under key or a nil pair if
// there is none
func (k *KV) Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	logger, err := k.client.begin(q.Context(), "kv.get")

	if err != nil {
		return nil, nil, err
	}

	if !k.client.store.Contains(key) {
		logger.Debug("not found", zap.String("key", key))

		return nil, queryMeta(), nil
	}

	return k.pair(key), queryMeta(), nil
}

// List returns every pair whose key starts with prefix
func (k *KV) List(prefix string, q *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error) {
	if _, err := k.client.begin(q.Context(), "kv.list"); err != nil {
		return nil, nil, err
	}

	pairs := api.KVPairs{}

	for _, key := range k.client.store.Keys(prefix, "") {
		pairs = append(pairs, k.pair(key))
	}

	return pairs, queryMeta(), nil
}

// Keys lists the keys starting with prefix, cut off after
// the first separator following prefix
func (k *KV) Keys(prefix, separator string, q *api.QueryOptions) ([]string, *api.QueryMeta, error) {
	if _, err := k.client.begin(q.Context(), "kv.keys"); err != nil {
		return nil, nil, err
	}

	return k.client.store.Keys(prefix, separator), queryMeta(), nil
}

// Put stores p. A pair with a nil Value removes the key.
func (k *KV) Put(p *api.KVPair, q *api.WriteOptions) (*api.WriteMeta, error) {
	if _, err := k.client.begin(q.Context(), "kv.put"); err != nil {
		return nil, err
	}

	if p == nil {
		return nil, errors.New("pair is required")
	}

	var value *string

	if p.Value != nil {
		s := string(p.Value)
		value = &s
	}

	if err := k.client.store.Put(p.Key, value); err != nil {
		return nil, err
	}

	return &api.WriteMeta{}, nil
}

// Delete removes key
func (k *KV) Delete(key string, w *api.WriteOptions) (*api.WriteMeta, error) {
	if _, err := k.client.begin(w.Context(), "kv.delete"); err != nil {
		return nil, err
	}

	if err := k.client.store.Delete(key); err != nil {
		return nil, err
	}

	return &api.WriteMeta{}, nil
}

// DeleteTree removes every key starting with prefix
func (k *KV) DeleteTree(prefix string, w *api.WriteOptions) (*api.WriteMeta, error) {
	if _, err := k.client.begin(w.Context(), "kv.delete_tree"); err != nil {
		return nil, err
	}

	if err := k.client.store.DeleteTree(prefix); err != nil {
		return nil, err
	}

	return &api.WriteMeta{}, nil
}
