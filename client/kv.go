package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/internal/jsonutil"
	"pkt.systems/consulate/query"
)

// MaxValueSize is the largest value the agent stores under one key.
const MaxValueSize = 512 * 1024

// KV reads and writes the key/value store.
type KV struct {
	c *Client
}

// PutOptions modify a write. Options.CAS turns the write into a
// check-and-set against that ModifyIndex (0 means create only).
type PutOptions struct {
	Flags   uint64
	Acquire string
	Release string
	Options query.Options
}

// DeleteOptions modify a delete.
type DeleteOptions struct {
	Recurse bool
	Options query.Options
}

func normalizeKey(key string, allowEmpty bool) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" && !allowEmpty {
		return "", fmt.Errorf("consulate: key required")
	}
	return key, nil
}

func (kv *KV) source(key string, params query.Params) *query.Source[api.KVPair] {
	return &query.Source[api.KVPair]{
		Engine:         kv.c.engine,
		Path:           "/v1/kv/" + escapePath(key),
		Params:         params,
		Decode:         api.DecodeKVPairs,
		MissingIsEmpty: true,
	}
}

// Get reads key and applies policy. With NotFound set to wait, Get blocks
// until the key is written or timeout passes.
func (kv *KV) Get(ctx context.Context, key string, policy query.Policy, timeout time.Duration, opts query.Options) (api.KVPair, query.Meta, error) {
	key, err := normalizeKey(key, false)
	if err != nil {
		return api.KVPair{}, query.Meta{}, err
	}
	kv.c.logTraceCtx(ctx, "client.kv.get.start", "key", key, "policy", policy.String())
	res, err := query.GetOne(ctx, kv.source(key, kv.c.params(opts)), key, query.First, policy, timeout)
	if err != nil {
		kv.c.logDebugCtx(ctx, "client.kv.get.error", "key", key, "error", err)
		return api.KVPair{}, res.Snapshot.Meta, err
	}
	kv.c.logTraceCtx(ctx, "client.kv.get.success", "key", key, "modify_index", res.Entry.ModifyIndex)
	return res.Entry, res.Snapshot.Meta, nil
}

// GetAll reads every key under prefix and applies policy. An empty prefix is
// "absent".
func (kv *KV) GetAll(ctx context.Context, prefix string, policy query.Policy, timeout time.Duration, opts query.Options) (query.Snapshot[api.KVPair], error) {
	prefix, _ = normalizeKey(prefix, true)
	src := kv.source(prefix, kv.c.params(opts).AddFlag("recurse"))
	kv.c.logTraceCtx(ctx, "client.kv.get_all.start", "prefix", prefix, "policy", policy.String())
	return query.GetAll(ctx, src, prefix, policy, timeout)
}

// List reads every key under prefix once.
func (kv *KV) List(ctx context.Context, prefix string, opts query.Options) ([]api.KVPair, query.Meta, error) {
	prefix, _ = normalizeKey(prefix, true)
	snap, err := kv.source(prefix, kv.c.params(opts).AddFlag("recurse")).Poll(ctx)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return snap.Entries, snap.Meta, nil
}

// Keys lists key names under prefix. A non-empty separator folds keys below
// it into one entry ending in separator.
func (kv *KV) Keys(ctx context.Context, prefix, separator string, opts query.Options) ([]string, query.Meta, error) {
	prefix, _ = normalizeKey(prefix, true)
	params := kv.c.params(opts).AddFlag("keys")
	if separator != "" {
		params = params.Add("separator", separator)
	}
	src := &query.Source[string]{
		Engine:         kv.c.engine,
		Path:           "/v1/kv/" + escapePath(prefix),
		Params:         params,
		Decode:         api.DecodeKeys,
		MissingIsEmpty: true,
	}
	snap, err := src.Poll(ctx)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return snap.Entries, snap.Meta, nil
}

// Watch blocks until key (or every key under it when recurse is set) moves
// past lastIndex, or timeout passes. On timeout the unchanged snapshot is
// returned without error.
func (kv *KV) Watch(ctx context.Context, key string, recurse bool, lastIndex uint64, timeout time.Duration, opts query.Options) (query.Snapshot[api.KVPair], error) {
	key, _ = normalizeKey(key, true)
	params := kv.c.params(opts)
	if recurse {
		params = params.AddFlag("recurse")
	}
	kv.c.logTraceCtx(ctx, "client.kv.watch.start", "key", key, "recurse", recurse, "index", lastIndex)
	return kv.source(key, params).WaitForChange(ctx, lastIndex, timeout)
}

// Put writes value under key. The result is false when a CAS, acquire or
// release condition did not hold.
func (kv *KV) Put(ctx context.Context, key string, value []byte, opts PutOptions) (bool, error) {
	key, err := normalizeKey(key, false)
	if err != nil {
		return false, err
	}
	if len(value) > MaxValueSize {
		return false, fmt.Errorf("consulate: value for %s is %d bytes, limit is %d", key, len(value), MaxValueSize)
	}
	params := kv.c.params(opts.Options)
	if opts.Flags != 0 {
		params = params.Add("flags", strconv.FormatUint(opts.Flags, 10))
	}
	if opts.Acquire != "" {
		params = params.Add("acquire", opts.Acquire)
	}
	if opts.Release != "" {
		params = params.Add("release", opts.Release)
	}
	ok, err := kv.c.callBool(ctx, http.MethodPut, "/v1/kv/"+escapePath(key), key, params, value)
	if err != nil {
		kv.c.logDebugCtx(ctx, "client.kv.put.error", "key", key, "error", err)
		return false, err
	}
	kv.c.logTraceCtx(ctx, "client.kv.put.complete", "key", key, "bytes", len(value), "ok", ok)
	return ok, nil
}

// PutJSON compacts the JSON document read from r and stores it under key.
func (kv *KV) PutJSON(ctx context.Context, key string, r io.Reader, opts PutOptions) (bool, error) {
	value, err := jsonutil.Compact(r, MaxValueSize)
	if err != nil {
		return false, fmt.Errorf("consulate: %s: %w", key, err)
	}
	return kv.Put(ctx, key, value, opts)
}

// Delete removes key, or every key under it with Recurse. The result is
// false when a CAS condition did not hold.
func (kv *KV) Delete(ctx context.Context, key string, opts DeleteOptions) (bool, error) {
	key, err := normalizeKey(key, opts.Recurse)
	if err != nil {
		return false, err
	}
	params := kv.c.params(opts.Options)
	if opts.Recurse {
		params = params.AddFlag("recurse")
	}
	ok, err := kv.c.callBool(ctx, http.MethodDelete, "/v1/kv/"+escapePath(key), key, params, nil)
	if err != nil {
		return false, err
	}
	kv.c.logTraceCtx(ctx, "client.kv.delete.complete", "key", key, "recurse", opts.Recurse, "ok", ok)
	return ok, nil
}
