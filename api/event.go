package api

import (
	"bytes"
	"encoding/json"
)

// UserEvent is a broadcast event as reported by the agent's event list.
type UserEvent struct {
	// ID uniquely identifies the event. Cursors anchor on it.
	ID string `json:"ID"`
	// Name is the event name.
	Name string `json:"Name"`
	// Payload is the decoded event body.
	Payload []byte `json:"Payload"`
	// NodeFilter is a regular expression restricting delivery by node name.
	NodeFilter string `json:"NodeFilter"`
	// ServiceFilter is a regular expression restricting delivery by service.
	ServiceFilter string `json:"ServiceFilter"`
	// TagFilter is a regular expression restricting delivery by service tag.
	TagFilter string `json:"TagFilter"`
	// Version is the event format version.
	Version int `json:"Version"`
	// LTime is the Lamport time of the event, its position in the global
	// sequence.
	LTime uint64 `json:"LTime"`
}

// CursorID identifies an event by its ID.
func (e UserEvent) CursorID() string { return e.ID }

type eventWire struct {
	ID            string  `json:"ID"`
	Name          string  `json:"Name"`
	Payload       *string `json:"Payload"`
	NodeFilter    string  `json:"NodeFilter"`
	ServiceFilter string  `json:"ServiceFilter"`
	TagFilter     string  `json:"TagFilter"`
	Version       int     `json:"Version"`
	LTime         uint64  `json:"LTime"`
}

func (w eventWire) event() (UserEvent, error) {
	e := UserEvent{
		ID:            w.ID,
		Name:          w.Name,
		NodeFilter:    w.NodeFilter,
		ServiceFilter: w.ServiceFilter,
		TagFilter:     w.TagFilter,
		Version:       w.Version,
		LTime:         w.LTime,
	}
	if w.Payload != nil {
		payload, err := DecodeValue(*w.Payload)
		if err != nil {
			return UserEvent{}, &ValueError{Key: w.ID, Err: err}
		}
		e.Payload = payload
	}
	return e, nil
}

// DecodeUserEvents decodes an event list body, oldest event first.
func DecodeUserEvents(body []byte) ([]UserEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var wire []eventWire
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, err
	}
	out := make([]UserEvent, 0, len(wire))
	for _, w := range wire {
		e, err := w.event()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// DecodeUserEvent decodes the single event returned when firing.
func DecodeUserEvent(body []byte) (UserEvent, error) {
	var w eventWire
	if err := json.Unmarshal(body, &w); err != nil {
		return UserEvent{}, err
	}
	return w.event()
}

// EventFilters restrict which agents deliver a fired event.
type EventFilters struct {
	Node    string
	Service string
	Tag     string
}
