// Package query implements the read side of the agent protocol: blocking
// queries, event-sequence cursors and resolution policies.
//
// # Blocking queries
//
// Every read response carries an X-Consul-Index header. Passing that value
// back as ?index=N together with ?wait=D makes the server hold the request
// until the index moves past N or D elapses. Engine.Poll performs a plain
// read; Engine.WaitForChange performs the long-poll and re-issues it when the
// server wakes without progress (the index did not move, or moved
// backwards). Waits are always bounded: the effective deadline is the
// smaller of the caller's timeout and the engine's ceiling
// (DefaultWaitCeiling unless overridden). When the deadline passes the last
// observed page is returned as-is; that is a normal outcome, not an error.
// Transport failures are never retried.
//
// # Cursors
//
// Event lists are append-only. A Cursor names a position in the current
// snapshot of such a list:
//
//	First        position 0
//	Last         position len-1 (absent when the list is empty)
//	Next         position len (always absent)
//	At(id)       the position right after the entry whose ID is id
//
// An At cursor whose identifier is not in the snapshot fails with
// ErrUnknownCursor.
//
// # Resolution policies
//
// GetOne and GetAll combine a cursor (GetOne only) with a Policy that says
// what to do when the target is absent (reject or wait) and when it is
// present (reject, return, or, for GetAll, wait for the next change):
//
//	src := &query.Source[api.UserEvent]{Engine: eng, Path: "/v1/event/list", Decode: api.DecodeUserEvents, IndexMode: query.IndexOpaque}
//	res, err := query.GetOne(ctx, src, "deploy", query.Next, query.Policy{NotFound: query.NotFoundWait, Found: query.FoundReturn}, time.Minute)
//
// The policy {NotFound: Wait, Found: Reject} is accepted but can only ever end
// in ErrAlreadyExists (or an expired wait); it is a caller mistake.
//
// Copyright (C) 2025 Michel Blomgren <https://pkt.systems>
package query
