package rover

import (
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// boundaryRetryMs is how long to back off before retrying when the
// motor controller's target cell is contended
// (original_source/src/state_machine/boundary_detected_state.rs:
// `wait_time_ms = 5` on a failed try_borrow_mut).
const boundaryRetryMs = 5

// boundarySettleMs is how long to wait after successfully reversing
// targets before resuming exploration.
const boundarySettleMs = 100

func (r *Rover) boundaryFuture() sched.Future[Mode] {
	return &boundaryOp{r: r}
}

type boundaryOp struct {
	r      *Rover
	waiter *sched.Waiter
	next   Mode
}

func (op *boundaryOp) Poll(w waker.Waker) (Mode, bool) {
	if op.waiter == nil {
		waitMs := uint32(boundarySettleMs)
		next := Mode{Kind: BoundaryDetected}
		if op.r.Motor.ScaleTargets(-1) {
			next = Mode{Kind: Exploration, FoundEdge: true}
		} else {
			waitMs = boundaryRetryMs
		}
		op.next = next
		op.waiter = sched.NewWaiter(op.r.Clock, waitMs)
	}
	if _, ready := op.waiter.Poll(w); !ready {
		return Mode{}, false
	}
	return op.next, true
}
