// Package client provides the Go SDK for a Consul-compatible agent's HTTP
// API. A Client is an explicit facade: each API area is a component reached
// through an accessor (KV, Events, Sessions, Locks, Catalog, Health, ACL,
// Status) and every component is built once at construction time.
//
// Copyright (C) 2025 Michel Blomgren <https://pkt.systems>
//
// # Quick start
//
//	cli, err := client.New(client.Config{Address: "127.0.0.1:8500"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cli.Close()
//
//	ok, err := cli.KV().Put(ctx, "app/config", []byte(`{"debug":true}`), client.PutOptions{})
//	pair, meta, err := cli.KV().Get(ctx, "app/config", query.Policy{Found: query.FoundReturn}, 0, query.Options{})
//
// The address accepts host:port, http(s)://host:port and
// unix:///path/to/agent.sock. The ACL token comes from Config.Token or from
// Config.TokenFile, which is watched and reloaded when it changes.
//
// # Waiting for data
//
// Reads that take a query.Policy resolve through the blocking-query engine
// in package query. With NotFound set to query.NotFoundWait a Get parks on a
// long poll until the key appears or the timeout passes:
//
//	policy := query.Policy{NotFound: query.NotFoundWait, Found: query.FoundReturn}
//	pair, _, err := cli.KV().Get(ctx, "jobs/42/result", policy, time.Minute, query.Options{})
//	if errors.Is(err, query.ErrNotFound) {
//	    // still absent after a minute
//	}
//
// Timeouts are clamped to Config.WaitCeiling (five minutes by default).
//
// # Events
//
// Events are consumed with cursors. query.Next waits for the first event
// fired after the call; the returned Cursor continues from there:
//
//	res, err := cli.Events().Get(ctx, "deploy", query.Next, policy, time.Minute, query.Options{})
//	next, err := cli.Events().Get(ctx, "deploy", query.At(res.Cursor), policy, time.Minute, query.Options{})
//
// # Locks
//
// Locks.Lock creates a session (unless one is supplied), then acquires the
// key, waiting on blocking queries while another session holds it:
//
//	lock, err := cli.Locks().Lock(ctx, "service/leader", client.LockOptions{Timeout: 30 * time.Second})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer lock.Unlock(context.Background())
//
// # Errors
//
// Failures are the typed errors from package query and match its sentinels
// with errors.Is: ErrNotFound, ErrAlreadyExists, ErrTransport, ErrDecoding,
// ErrUnexpectedStatus, ErrUnknownCursor and ErrInvalidPolicy.
//
// # Logging
//
// Pass WithLogger to receive structured diagnostics tagged sys=client.sdk.
// Correlation identifiers attached with WithCorrelationID are forwarded in
// the X-Correlation-Id header and included in every log entry for the call.
package client
