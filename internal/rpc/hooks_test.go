package rpc

import (
	"errors"
	"testing"
)

func TestRequestHooksMergeOrder(t *testing.T) {
	var order []string

	first := RequestHooks{
		OnRequestStart: func(RequestContext) { order = append(order, "first-start") },
		OnRequestDone:  func(RequestContext) { order = append(order, "first-done") },
		OnRequestError: func(RequestContext, error) { order = append(order, "first-error") },
	}
	second := RequestHooks{
		OnRequestStart: func(RequestContext) { order = append(order, "second-start") },
		OnRequestDone:  func(RequestContext) { order = append(order, "second-done") },
		OnRequestError: func(RequestContext, error) { order = append(order, "second-error") },
	}

	merged := first.Merge(second)
	merged.start(RequestContext{})
	merged.done(RequestContext{})
	merged.fail(RequestContext{}, errors.New("boom"))

	want := []string{"first-start", "second-start", "first-done", "second-done", "first-error", "second-error"}
	if len(order) != len(want) {
		t.Fatalf("got %d hook invocations, want %d: %v", len(order), len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestRequestHooksMergePartial(t *testing.T) {
	var started int
	withStart := RequestHooks{OnRequestStart: func(RequestContext) { started++ }}

	merged := withStart.Merge(RequestHooks{})
	merged.start(RequestContext{})
	if started != 1 {
		t.Errorf("started = %d, want 1", started)
	}

	merged = RequestHooks{}.Merge(withStart)
	merged.start(RequestContext{})
	if started != 2 {
		t.Errorf("started = %d, want 2", started)
	}
}

func TestRequestHooksZeroValueIsSafe(t *testing.T) {
	var hooks RequestHooks
	hooks.start(RequestContext{})
	hooks.done(RequestContext{})
	hooks.fail(RequestContext{}, errors.New("boom"))
}
