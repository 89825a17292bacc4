package exec

import (
	"context"

	"github.com/loomworks/loom/runtime/workflow/values"
)

// Trigger is the executor for plain trigger kinds (INITIAL and
// MANUAL_TRIGGER): the run context passes through unchanged.
func Trigger() Executor {
	return Func(func(context.Context, *Request) (values.Object, error) {
		return nil, nil
	})
}

// payloadKey is where run submission places a raw webhook body before the
// owning trigger claims it.
const payloadKey = "payload"

// NamespacedTrigger is the executor for webhook trigger kinds. The raw
// payload seeded into the context under "payload" is re-published under the
// trigger's namespace ("googleForm" or "stripe") so later nodes reference
// fields as {{googleForm.answers.email}}. The raw key stays in place; the
// context contract forbids deletions.
func NamespacedTrigger(namespace string) Executor {
	return Func(func(_ context.Context, req *Request) (values.Object, error) {
		payload, ok := req.Context.Resolve(payloadKey)
		if !ok {
			return nil, nil
		}
		if _, claimed := req.Context[namespace]; claimed {
			return nil, nil
		}
		return req.Context.Merge(values.Object{namespace: payload}), nil
	})
}
