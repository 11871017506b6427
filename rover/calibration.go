package rover

import (
	"groundrover.dev/firmware/driver/eeprom"
	"groundrover.dev/firmware/driver/irsensor"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

func (r *Rover) calibrationFuture() sched.Future[Mode] {
	return &calibrationOp{r: r}
}

const (
	calPhaseStart = iota
	calPhaseSampling
	calPhaseWriteXMin
	calPhaseWriteXMax
	calPhaseWriteYMin
	calPhaseWriteYMax
	calPhaseDarkBlink
	calPhaseDarkWaitPress
	calPhaseDarkCalibrate
	calPhaseDarkPersist
	calPhaseLightBlink
	calPhaseLightWaitPress
	calPhaseLightCalibrate
	calPhaseLightPersist
	calPhaseDone
)

// calibrationOp is scenario S3: calibrate the IMU by spinning in
// place, persist the four extremes, then calibrate the IR sensors in
// two operator-signalled stages (dark surface under the chassis, then
// light) and persist those six-channel extremes too
// (original_source/src/state_machine/calibration_state.rs leaves the
// IR half as an explicit TODO; this resolves it the way
// original_source/src/uno/ir_sensors.rs's calibrate(dark) is meant to
// be driven — one operator-confirmed surface per polarity).
type calibrationOp struct {
	r     *Rover
	phase int

	sample sched.Future[[4]int16]
	write  sched.Future[struct{}]

	xMin, xMax, yMin, yMax int16

	press     sched.Future[struct{}]
	irSample  sched.Future[[irsensor.NumChannels]uint16]
	darkVals  [irsensor.NumChannels]uint16 // calibrate(dark=true) -> per-channel max
	lightVals [irsensor.NumChannels]uint16 // calibrate(dark=false) -> per-channel min
	persistIx int
}

func (op *calibrationOp) Poll(w waker.Waker) (Mode, bool) {
	r := op.r
	for {
		switch op.phase {
		case calPhaseStart:
			r.LED.Toggle()
			r.Motor.SetTargets(-1.0, 1.0)
			op.sample = r.IMU.GetCalibrationVector()
			op.phase = calPhaseSampling
		case calPhaseSampling:
			vec, ready := op.sample.Poll(w)
			if !ready {
				return Mode{}, false
			}
			r.Motor.SetTargets(0.0, 0.0)
			op.xMin, op.xMax, op.yMin, op.yMax = vec[0], vec[1], vec[2], vec[3]
			op.write = r.EEPROM.WriteU16(eeprom.IMUXMinAddr, uint16(op.xMin))
			op.phase = calPhaseWriteXMin
		case calPhaseWriteXMin:
			if _, ready := op.write.Poll(w); !ready {
				return Mode{}, false
			}
			op.write = r.EEPROM.WriteU16(eeprom.IMUXMaxAddr, uint16(op.xMax))
			op.phase = calPhaseWriteXMax
		case calPhaseWriteXMax:
			if _, ready := op.write.Poll(w); !ready {
				return Mode{}, false
			}
			op.write = r.EEPROM.WriteU16(eeprom.IMUYMinAddr, uint16(op.yMin))
			op.phase = calPhaseWriteYMin
		case calPhaseWriteYMin:
			if _, ready := op.write.Poll(w); !ready {
				return Mode{}, false
			}
			op.write = r.EEPROM.WriteU16(eeprom.IMUYMaxAddr, uint16(op.yMax))
			op.phase = calPhaseWriteYMax
		case calPhaseWriteYMax:
			if _, ready := op.write.Poll(w); !ready {
				return Mode{}, false
			}
			op.phase = calPhaseDarkBlink

		case calPhaseDarkBlink:
			r.LED.Toggle()
			op.press = r.Button.WaitForPress()
			op.phase = calPhaseDarkWaitPress
		case calPhaseDarkWaitPress:
			if _, ready := op.press.Poll(w); !ready {
				return Mode{}, false
			}
			op.irSample = r.IR.Calibrate(true)
			op.phase = calPhaseDarkCalibrate
		case calPhaseDarkCalibrate:
			vals, ready := op.irSample.Poll(w)
			if !ready {
				return Mode{}, false
			}
			op.darkVals = vals
			op.persistIx = 0
			op.write = r.EEPROM.WriteU16(eeprom.IRMaxAddrs[0], op.darkVals[0])
			op.phase = calPhaseDarkPersist
		case calPhaseDarkPersist:
			if _, ready := op.write.Poll(w); !ready {
				return Mode{}, false
			}
			op.persistIx++
			if op.persistIx >= irsensor.NumChannels {
				op.phase = calPhaseLightBlink
			} else {
				op.write = r.EEPROM.WriteU16(eeprom.IRMaxAddrs[op.persistIx], op.darkVals[op.persistIx])
			}

		case calPhaseLightBlink:
			r.LED.Toggle()
			op.press = r.Button.WaitForPress()
			op.phase = calPhaseLightWaitPress
		case calPhaseLightWaitPress:
			if _, ready := op.press.Poll(w); !ready {
				return Mode{}, false
			}
			op.irSample = r.IR.Calibrate(false)
			op.phase = calPhaseLightCalibrate
		case calPhaseLightCalibrate:
			vals, ready := op.irSample.Poll(w)
			if !ready {
				return Mode{}, false
			}
			op.lightVals = vals
			op.persistIx = 0
			op.write = r.EEPROM.WriteU16(eeprom.IRMinAddrs[0], op.lightVals[0])
			op.phase = calPhaseLightPersist
		case calPhaseLightPersist:
			if _, ready := op.write.Poll(w); !ready {
				return Mode{}, false
			}
			op.persistIx++
			if op.persistIx >= irsensor.NumChannels {
				r.IR.SetCalibrationVector(op.lightVals, op.darkVals)
				op.phase = calPhaseDone
			} else {
				op.write = r.EEPROM.WriteU16(eeprom.IRMinAddrs[op.persistIx], op.lightVals[op.persistIx])
			}

		case calPhaseDone:
			r.LED.Toggle()
			return Mode{Kind: Initialization}, true
		}
	}
}
