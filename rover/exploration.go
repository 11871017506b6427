package rover

import (
	"groundrover.dev/firmware/driver/irsensor"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// TriggeredThreshold is the calibrated reading above which a channel is
// considered to be over the boundary line
// (original_source/src/state_machine/exploration_state.rs: `x > 500`).
const TriggeredThreshold = 500

// EdgeChannelCount is the number of triggered channels that must be
// exceeded to count as "found the edge" (the original's
// `triggered_count > 1`).
const EdgeChannelCount = 1

func (r *Rover) explorationFuture(foundEdge bool) sched.Future[Mode] {
	if foundEdge {
		r.Motor.SetTargets(-0.5, -0.5)
	} else {
		r.Motor.SetTargets(0.5, 0.5)
	}
	return &explorationOp{r: r, foundEdge: foundEdge}
}

const (
	expPhaseRead = iota
	expPhaseWait
)

type explorationOp struct {
	r         *Rover
	foundEdge bool
	phase     int
	read      sched.Future[[irsensor.NumChannels]uint16]
	waiter    *sched.Waiter
}

func (op *explorationOp) Poll(w waker.Waker) (Mode, bool) {
	r := op.r
	for {
		switch op.phase {
		case expPhaseRead:
			if op.read == nil {
				op.read = r.IR.ReadCalibrated()
			}
			vals, ready := op.read.Poll(w)
			if !ready {
				return Mode{}, false
			}
			op.read = nil

			triggered := 0
			for _, v := range vals {
				if v > TriggeredThreshold {
					triggered++
				}
			}
			if triggered > EdgeChannelCount {
				if !op.foundEdge {
					// Hand off to BoundaryDetected to reverse the
					// targets, rather than flipping FoundEdge inline
					// (original_source/src/state_machine.rs's commented
					// BoundaryDetected path, kept reachable here).
					return Mode{Kind: BoundaryDetected}, true
				}
			} else if op.foundEdge {
				return Mode{Kind: Rotation, Angle: 90}, true
			}

			if op.waiter == nil {
				op.waiter = sched.NewWaiter(r.Clock, UpdateDelayMs)
			}
			op.phase = expPhaseWait
		case expPhaseWait:
			if _, ready := op.waiter.Poll(w); !ready {
				return Mode{}, false
			}
			op.waiter.Reset()
			op.waiter = nil
			op.phase = expPhaseRead
		}
	}
}
