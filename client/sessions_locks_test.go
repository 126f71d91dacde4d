package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/query"
)

func TestSessionsLifecycle(t *testing.T) {
	a := newFakeAgent(t)
	cli := newTestClient(t, a)
	ctx := context.Background()

	id, err := cli.Sessions().Create(ctx, api.SessionRequest{Name: "worker", TTL: "30s", Behavior: api.SessionBehaviorDelete}, query.Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	info, _, err := cli.Sessions().Info(ctx, id, query.Options{})
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.ID != id || info.Name != "worker" || info.TTL != "30s" || info.Behavior != api.SessionBehaviorDelete {
		t.Fatalf("unexpected session %+v", info)
	}
	if time.Duration(info.LockDelay) != 15*time.Second {
		t.Fatalf("lock delay = %v", info.LockDelay)
	}
	if _, err := cli.Sessions().Renew(ctx, id, query.Options{}); err != nil {
		t.Fatalf("renew: %v", err)
	}
	list, _, err := cli.Sessions().List(ctx, query.Options{})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	byNode, _, err := cli.Sessions().Node(ctx, "node-1", query.Options{})
	if err != nil || len(byNode) != 1 {
		t.Fatalf("node: %v %v", byNode, err)
	}
	if err := cli.Sessions().Destroy(ctx, id, query.Options{}); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	_, _, err = cli.Sessions().Info(ctx, id, query.Options{})
	if !errors.Is(err, query.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after destroy, got %v", err)
	}
}

func TestSessionsValidateInput(t *testing.T) {
	a := newFakeAgent(t)
	cli := newTestClient(t, a)
	ctx := context.Background()
	if _, err := cli.Sessions().Create(ctx, api.SessionRequest{TTL: "1s"}, query.Options{}); err == nil {
		t.Fatal("expected TTL validation error")
	}
	if err := cli.Sessions().Destroy(ctx, "not-a-uuid", query.Options{}); err == nil {
		t.Fatal("expected id validation error")
	}
	if n := len(a.recorded()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestLockAcquireAndUnlock(t *testing.T) {
	a := newFakeAgent(t)
	cli := newTestClient(t, a)
	ctx := context.Background()

	lock, err := cli.Locks().Lock(ctx, "locks/job", LockOptions{Holder: "runner-1", Timeout: time.Second})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	holder, _, err := cli.Locks().Holder(ctx, "locks/job", query.Options{})
	if err != nil {
		t.Fatalf("holder: %v", err)
	}
	if holder != lock.Session() {
		t.Fatalf("holder = %q, want %q", holder, lock.Session())
	}
	pair, _, err := cli.KV().Get(ctx, "locks/job", policyReturn, 0, query.Options{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(pair.Value) != "runner-1" || !pair.Locked() {
		t.Fatalf("unexpected pair %+v", pair)
	}

	if err := lock.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := lock.Unlock(ctx); err != nil {
		t.Fatalf("second unlock: %v", err)
	}
	holder, _, err = cli.Locks().Holder(ctx, "locks/job", query.Options{})
	if err != nil || holder != "" {
		t.Fatalf("expected free lock, holder=%q err=%v", holder, err)
	}
	sessions, _, err := cli.Sessions().List(ctx, query.Options{})
	if err != nil || len(sessions) != 0 {
		t.Fatalf("expected owned session destroyed, got %v %v", sessions, err)
	}
}

func TestLockTimesOutWhileHeld(t *testing.T) {
	a := newFakeAgent(t)
	cli := newTestClient(t, a)
	ctx := context.Background()

	held, err := cli.Locks().Lock(ctx, "locks/busy", LockOptions{})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer held.Unlock(ctx)

	_, err = cli.Locks().Lock(ctx, "locks/busy", LockOptions{Timeout: 200 * time.Millisecond})
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
	sessions, _, err := cli.Sessions().List(ctx, query.Options{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != held.Session() {
		t.Fatalf("expected only the holder's session to remain, got %+v", sessions)
	}
}

func TestLockWaitsForRelease(t *testing.T) {
	a := newFakeAgent(t)
	cli := newTestClient(t, a)
	ctx := context.Background()

	first, err := cli.Locks().Lock(ctx, "locks/shared", LockOptions{})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	done := make(chan *Lock, 1)
	go func() {
		l, err := cli.Locks().Lock(ctx, "locks/shared", LockOptions{Timeout: 5 * time.Second})
		if err != nil {
			t.Errorf("second lock: %v", err)
		}
		done <- l
	}()
	waitForRequest(t, a, blockingRead("/v1/kv/locks/shared"))
	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	select {
	case second := <-done:
		if second == nil {
			t.Fatal("second lock not acquired")
		}
		if second.Session() == first.Session() {
			t.Fatal("second lock reused the first session")
		}
		if err := second.Unlock(ctx); err != nil {
			t.Fatalf("unlock second: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second Lock did not return after release")
	}
}

func TestLockWithCallerSession(t *testing.T) {
	a := newFakeAgent(t)
	cli := newTestClient(t, a)
	ctx := context.Background()

	session, err := cli.Sessions().Create(ctx, api.SessionRequest{TTL: "20s"}, query.Options{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	lock, err := cli.Locks().Lock(ctx, "locks/mine", LockOptions{Session: session})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if lock.Holder() == "" || lock.Key() != "locks/mine" {
		t.Fatalf("unexpected lock %+v", lock)
	}
	if err := lock.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, _, err := cli.Sessions().Info(ctx, session, query.Options{}); err != nil {
		t.Fatalf("caller session should survive unlock: %v", err)
	}
}
