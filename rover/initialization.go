package rover

import (
	"groundrover.dev/firmware/driver/eeprom"
	"groundrover.dev/firmware/driver/irsensor"
	"groundrover.dev/firmware/internal/sched"
	"groundrover.dev/firmware/internal/waker"
)

// ConfigExtraPresses is the number of additional button presses, beyond
// the initial press-release that wakes the rover, required to enter
// Calibration instead of Exploration (original_source/src/state_
// machine/initialization_state.rs: CONFIG_EXTRA_PRESSES).
const ConfigExtraPresses = 2

// ConfigWindowMs is how long after the wake press the rover keeps
// counting additional presses.
const ConfigWindowMs = 1000

func (r *Rover) initializationFuture() sched.Future[Mode] {
	return &initializationOp{r: r}
}

const (
	initPhaseWaitWake = iota
	initPhaseCountExtra
	initPhaseLoadCalibration
)

type initializationOp struct {
	r       *Rover
	phase   int
	press   sched.Future[struct{}]
	counter sched.Future[uint8]
	load    sched.Future[struct{}]
}

func (op *initializationOp) Poll(w waker.Waker) (Mode, bool) {
	r := op.r
	for {
		switch op.phase {
		case initPhaseWaitWake:
			if op.press == nil {
				op.press = r.Button.WaitForPress()
			}
			if _, ready := op.press.Poll(w); !ready {
				return Mode{}, false
			}
			op.counter = r.Button.CountPressesBefore(r.Clock.Millis() + ConfigWindowMs)
			op.phase = initPhaseCountExtra
		case initPhaseCountExtra:
			n, ready := op.counter.Poll(w)
			if !ready {
				return Mode{}, false
			}
			if n >= ConfigExtraPresses {
				return Mode{Kind: Calibration}, true
			}
			op.load = r.loadCalibrationData()
			op.phase = initPhaseLoadCalibration
		case initPhaseLoadCalibration:
			if _, ready := op.load.Poll(w); !ready {
				return Mode{}, false
			}
			return Mode{Kind: Exploration, FoundEdge: false}, true
		}
	}
}

// loadCalibrationData reads the IMU's four stored extremes and the IR
// sensors' twelve stored extremes out of EEPROM and applies both,
// matching original_source's Uno::load_calibration_data (extended here
// to cover the IR half, which that function never touches because the
// distilled calibration stage never persisted it either — see
// rover/calibration.go).
func (r *Rover) loadCalibrationData() sched.Future[struct{}] {
	return &loadCalibrationOp{r: r}
}

const (
	loadPhaseXMin = iota
	loadPhaseXMax
	loadPhaseYMin
	loadPhaseYMax
	loadPhaseIRMin
	loadPhaseIRMinLoop
	loadPhaseIRMaxLoop
)

type loadCalibrationOp struct {
	r          *Rover
	phase      int
	read       sched.Future[uint16]
	xMin, xMax int16
	yMin, yMax int16
	readIx     int
	irMins     [irsensor.NumChannels]uint16
	irMaxes    [irsensor.NumChannels]uint16
}

func (op *loadCalibrationOp) Poll(w waker.Waker) (struct{}, bool) {
	r := op.r
	for {
		switch op.phase {
		case loadPhaseXMin:
			op.read = r.EEPROM.ReadU16(eeprom.IMUXMinAddr)
			op.phase = loadPhaseXMax
		case loadPhaseXMax:
			v, ready := op.read.Poll(w)
			if !ready {
				return struct{}{}, false
			}
			op.xMin = int16(v)
			op.read = r.EEPROM.ReadU16(eeprom.IMUXMaxAddr)
			op.phase = loadPhaseYMin
		case loadPhaseYMin:
			v, ready := op.read.Poll(w)
			if !ready {
				return struct{}{}, false
			}
			op.xMax = int16(v)
			op.read = r.EEPROM.ReadU16(eeprom.IMUYMinAddr)
			op.phase = loadPhaseYMax
		case loadPhaseYMax:
			v, ready := op.read.Poll(w)
			if !ready {
				return struct{}{}, false
			}
			op.yMin = int16(v)
			op.read = r.EEPROM.ReadU16(eeprom.IMUYMaxAddr)
			op.phase = loadPhaseIRMin
		case loadPhaseIRMin:
			v, ready := op.read.Poll(w)
			if !ready {
				return struct{}{}, false
			}
			op.yMax = int16(v)
			r.IMU.SetCalibrationVector(op.xMin, op.xMax, op.yMin, op.yMax)
			op.readIx = 0
			op.read = r.EEPROM.ReadU16(eeprom.IRMinAddrs[0])
			op.phase = loadPhaseIRMinLoop
		case loadPhaseIRMinLoop:
			v, ready := op.read.Poll(w)
			if !ready {
				return struct{}{}, false
			}
			op.irMins[op.readIx] = v
			op.readIx++
			if op.readIx < irsensor.NumChannels {
				op.read = r.EEPROM.ReadU16(eeprom.IRMinAddrs[op.readIx])
				break
			}
			op.readIx = 0
			op.read = r.EEPROM.ReadU16(eeprom.IRMaxAddrs[0])
			op.phase = loadPhaseIRMaxLoop
		case loadPhaseIRMaxLoop:
			v, ready := op.read.Poll(w)
			if !ready {
				return struct{}{}, false
			}
			op.irMaxes[op.readIx] = v
			op.readIx++
			if op.readIx < irsensor.NumChannels {
				op.read = r.EEPROM.ReadU16(eeprom.IRMaxAddrs[op.readIx])
				break
			}
			r.IR.SetCalibrationVector(op.irMins, op.irMaxes)
			return struct{}{}, true
		}
	}
}
