package rover

import (
	"groundrover.dev/firmware/internal/diag"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// Rotation constants (original_source/src/state_machine/rotation_state.rs).
const (
	RotationTolerance = 5.0
	RotationBaseSpeed = 0.0
	// RotationUpdateMs matches the IMU's 50Hz output data rate.
	RotationUpdateMs = 20
	// motorStopSettleMs is how long it takes the motors to fully stop
	// once commanded to zero, so the IMU isn't read under vibration.
	motorStopSettleMs = 500
	rotationDoneSettleMs = 100
)

func (r *Rover) rotationFuture(angle float32) sched.Future[Mode] {
	r.Motor.SetTargets(0, 0)
	return &rotationOp{r: r, angle: angle, waiter: sched.NewWaiter(r.Clock, motorStopSettleMs)}
}

const (
	rotPhaseSettle = iota
	rotPhaseComputeTarget
	rotPhaseCorrect
	rotPhaseCorrecting
	rotPhaseDone
)

type rotationOp struct {
	r          *Rover
	angle      float32
	phase      int
	waiter     *sched.Waiter
	newHeading float32
}

func (op *rotationOp) heading() float32 {
	h, err := op.r.IMU.GetCurrentHeadingDegrees()
	if err != nil {
		diag.Fatal("rover: IMU heading read failed")
	}
	return h
}

func (op *rotationOp) Poll(w waker.Waker) (Mode, bool) {
	r := op.r
	for {
		switch op.phase {
		case rotPhaseSettle:
			if _, ready := op.waiter.Poll(w); !ready {
				return Mode{}, false
			}
			op.phase = rotPhaseComputeTarget
		case rotPhaseComputeTarget:
			newHeading := op.heading() + op.angle
			if newHeading > 360 {
				newHeading -= 360
			}
			op.newHeading = newHeading
			op.phase = rotPhaseCorrect
		case rotPhaseCorrect:
			delta := degreesDelta(op.heading(), op.newHeading)
			if absDegrees(delta) <= RotationTolerance {
				r.Motor.SetTargets(0, 0)
				op.waiter = sched.NewWaiter(r.Clock, rotationDoneSettleMs)
				op.phase = rotPhaseDone
				continue
			}
			speed := 0.6 * delta / 180
			if speed < 0 {
				speed -= RotationBaseSpeed
			} else {
				speed += RotationBaseSpeed
			}
			r.Motor.SetTargets(speed, -speed)
			op.waiter = sched.NewWaiter(r.Clock, RotationUpdateMs)
			op.phase = rotPhaseCorrecting
		case rotPhaseCorrecting:
			if _, ready := op.waiter.Poll(w); !ready {
				return Mode{}, false
			}
			op.phase = rotPhaseCorrect
		case rotPhaseDone:
			if _, ready := op.waiter.Poll(w); !ready {
				return Mode{}, false
			}
			return Mode{Kind: Exploration, FoundEdge: false}, true
		}
	}
}
