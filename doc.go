// Package consulate is a Go client and CLI for a Consul-style service
// discovery and key/value agent. Its core is the blocking-query protocol:
// reads carry the last seen index, the agent holds the request until the
// resource moves past it, and callers declare up front what should happen
// when the thing they ask for is absent or already present.
//
// Copyright (C) 2025 Michel Blomgren <https://pkt.systems>
//
// # Packages
//
//   - `client` is the SDK facade. One `client.Client` exposes KV, Events,
//     Sessions, Locks, Catalog, Health, ACL and Status components.
//   - `query` holds the blocking-query engine, resolution policies, event
//     cursors and the typed error taxonomy shared by every component.
//   - `api` holds the wire types.
//   - `transport` is the HTTP boundary; tests substitute `transport.Func`.
//   - this package carries the process-level `Config` and the telemetry
//     bundle used by `cmd/consulate`.
//
// # Reading with a policy
//
// Every lookup takes a `query.Policy`: what to do when the target is absent
// (reject or wait) and when it is present (reject, return, or for whole lists
// wait for the next change).
//
//	cli, err := client.New(client.Config{Address: "127.0.0.1:8500"})
//	if err != nil { log.Fatal(err) }
//	defer cli.Close()
//	pair, _, err := cli.KV().Get(ctx, "app/config",
//	    query.Policy{NotFound: query.NotFoundWait, Found: query.FoundReturn},
//	    30*time.Second, query.Options{})
//	switch {
//	case errors.Is(err, query.ErrNotFound):
//	    // nobody wrote the key within 30s
//	case err != nil:
//	    log.Fatal(err)
//	}
//
// Waits are bounded by the timeout, by `Config.WaitCeiling` (default five
// minutes) and by the context, whichever ends first. A wait that runs out
// returns the last snapshot it saw; `KV.Get` and `Events.Get` turn that into
// a `*query.NotFoundError` with `Expired` set.
//
// # Following events
//
// User events form an append-only list. `query.First`, `query.Last`,
// `query.Next` and `query.At(id)` address it; `At(id)` resolves to the event
// after id, so a consumer follows the stream by feeding each result's
// `Cursor` back in:
//
//	cursor := query.Next
//	for {
//	    res, err := cli.Events().Get(ctx, "deploy", cursor, waitPolicy, time.Minute, query.Options{})
//	    if errors.Is(err, query.ErrNotFound) { continue }
//	    if err != nil { return err }
//	    handle(res.Event)
//	    cursor = query.At(res.Cursor)
//	}
//
// # Locks
//
// `Locks.Lock` creates a session, tries to acquire the key and, while another
// session holds it, blocks on the key's index instead of polling. `Unlock`
// releases the key and destroys the session it created.
//
// # Telemetry
//
// `SetupTelemetry` installs OTLP tracing and a Prometheus endpoint as the
// global otel providers. The query engine records wait durations and
// spurious wake-ups against whatever meter provider is installed.
package consulate
