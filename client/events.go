package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/query"
)

// Events fires and consumes user events.
type Events struct {
	c *Client
}

// EventResult is one resolved event plus the cursor that continues after it.
type EventResult struct {
	Event api.UserEvent
	// Cursor is the event ID; pass query.At(Cursor) to read the next event.
	Cursor string
	// Position is the event's offset in the list it was found in.
	Position int
	Index    uint64
}

// Fire broadcasts an event named name carrying payload.
func (e *Events) Fire(ctx context.Context, name string, payload []byte, filters api.EventFilters, opts query.Options) (api.UserEvent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return api.UserEvent{}, fmt.Errorf("consulate: event name required")
	}
	params := e.c.params(opts)
	if filters.Node != "" {
		params = params.Add("node", filters.Node)
	}
	if filters.Service != "" {
		params = params.Add("service", filters.Service)
	}
	if filters.Tag != "" {
		params = params.Add("tag", filters.Tag)
	}
	path := "/v1/event/fire/" + escapePath(name)
	resp, err := e.c.do(ctx, http.MethodPut, path, params, payload)
	if err != nil {
		return api.UserEvent{}, err
	}
	if err := checkStatus(http.MethodPut, path, name, resp); err != nil {
		return api.UserEvent{}, err
	}
	ev, err := api.DecodeUserEvent(resp.Body)
	if err != nil {
		return api.UserEvent{}, &query.DecodingError{Key: name, Err: err}
	}
	e.c.logInfoCtx(ctx, "client.event.fired", "name", name, "id", ev.ID, "bytes", len(payload))
	return ev, nil
}

// source reads the event list, optionally narrowed to one name. The list
// index is derived from event identifiers and is not ordered, so waits treat
// any new index as a change.
func (e *Events) source(name string, opts query.Options) *query.Source[api.UserEvent] {
	params := e.c.params(opts)
	if name != "" {
		params = params.Add("name", name)
	}
	return &query.Source[api.UserEvent]{
		Engine:    e.c.engine,
		Path:      "/v1/event/list",
		Params:    params,
		Decode:    api.DecodeUserEvents,
		IndexMode: query.IndexOpaque,
	}
}

func eventKey(name string) string {
	if name == "" {
		return "events"
	}
	return name
}

// List returns the events the agent currently remembers, oldest first.
func (e *Events) List(ctx context.Context, name string, opts query.Options) (query.Snapshot[api.UserEvent], error) {
	return e.source(strings.TrimSpace(name), opts).Poll(ctx)
}

// Get resolves cursor against the events named name and applies policy.
// query.Next waits for the first event fired after the call; query.At(id)
// selects the event following id.
func (e *Events) Get(ctx context.Context, name string, cursor query.Cursor, policy query.Policy, timeout time.Duration, opts query.Options) (EventResult, error) {
	name = strings.TrimSpace(name)
	e.c.logTraceCtx(ctx, "client.event.get.start", "name", name, "cursor", cursor.String(), "policy", policy.String())
	res, err := query.GetOne(ctx, e.source(name, opts), eventKey(name), cursor, policy, timeout)
	if err != nil {
		e.c.logDebugCtx(ctx, "client.event.get.error", "name", name, "cursor", cursor.String(), "error", err)
		return EventResult{}, err
	}
	return EventResult{
		Event:    res.Entry,
		Cursor:   res.Entry.ID,
		Position: res.Position,
		Index:    res.Snapshot.Index,
	}, nil
}

// GetAll returns the events named name and applies policy. With Found set to
// wait it returns the list after the next event arrives.
func (e *Events) GetAll(ctx context.Context, name string, policy query.Policy, timeout time.Duration, opts query.Options) (query.Snapshot[api.UserEvent], error) {
	name = strings.TrimSpace(name)
	return query.GetAll(ctx, e.source(name, opts), eventKey(name), policy, timeout)
}
