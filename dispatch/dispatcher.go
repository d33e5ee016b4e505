// Package dispatch forwards authorized tool invocations to the
// downstream operation and packages the outcome together with the
// payment receipt. It performs no payment logic: callers must hold an
// accepted authorization before dispatching.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adamanz/payment-gateway-mcp/types"
)

// Executor is the downstream operation collaborator. The dispatcher
// calls it exactly once per accepted authorization; it is not assumed
// to be safe to retry.
type Executor interface {
	Execute(ctx context.Context, tool string, args interface{}) (json.RawMessage, error)
}

// Result is the transient outcome of one dispatched invocation. The
// receipt is always present: the charge already occurred by the time
// dispatch runs, and it must remain visible even when the downstream
// operation fails.
type Result struct {
	Tool    string
	Output  json.RawMessage
	Err     error
	Receipt *types.SettlementReceipt
}

// Dispatcher forwards calls to the downstream executor.
type Dispatcher struct {
	exec Executor
}

// NewDispatcher creates a Dispatcher over the given executor.
func NewDispatcher(exec Executor) *Dispatcher {
	return &Dispatcher{exec: exec}
}

// Dispatch runs the downstream operation for an invocation whose
// payment already settled. Downstream errors are wrapped as
// downstream_failure but never drop the receipt.
func (d *Dispatcher) Dispatch(ctx context.Context, tool string, args interface{}, receipt *types.SettlementReceipt) *Result {
	out, err := d.exec.Execute(ctx, tool, args)
	if err != nil {
		return &Result{
			Tool:    tool,
			Err:     types.NewGatewayError(types.ErrDownstreamFailure, fmt.Sprintf("downstream call failed: %v", err)),
			Receipt: receipt,
		}
	}
	return &Result{
		Tool:    tool,
		Output:  out,
		Receipt: receipt,
	}
}
