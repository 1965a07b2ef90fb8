// Package emu wires a memory image and a CPU into a runnable machine with a
// step-budgeted run loop and optional per-step tracing.
package emu

import (
	"log"

	"github.com/pkg/errors"

	"github.com/dmgtools/sm83/internal/cpu"
	"github.com/dmgtools/sm83/internal/mem"
)

var (
	// ErrNoImage is returned when stepping a machine before a successful Load.
	ErrNoImage = errors.New("no image loaded")
	// ErrStepBudget is returned by Run when the budget runs out before a halt.
	ErrStepBudget = errors.New("step budget exhausted")
)

// Machine owns one memory image and one CPU. Instances are single-threaded
// and share nothing with each other.
type Machine struct {
	cfg Config
	img *mem.Image
	cpu *cpu.CPU
}

func New(cfg Config) *Machine {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Machine{cfg: cfg}
}

// Load builds a fresh image from the sections and attaches a new CPU to it.
// A failed load leaves the previous machine state in place.
func (m *Machine) Load(sections ...mem.Section) error {
	img, err := mem.NewImage(sections...)
	if err != nil {
		return errors.Wrap(err, "load image")
	}
	m.img = img
	m.cpu = cpu.New(img)
	m.applyEntry()
	return nil
}

func (m *Machine) applyEntry() {
	if m.cfg.Entry >= 0 {
		m.cpu.Regs.PC = uint16(m.cfg.Entry)
	}
}

// Step executes one instruction.
func (m *Machine) Step() (cpu.StepResult, error) {
	if m.cpu == nil {
		return cpu.StepResult{}, ErrNoImage
	}
	if m.cfg.Trace {
		m.trace()
	}
	return m.cpu.Step()
}

func (m *Machine) trace() {
	r := &m.cpu.Regs
	log.Printf("PC=%04X OP=%02X AF=%04X BC=%04X DE=%04X HL=%04X SP=%04X",
		r.PC, m.img.Read(r.PC), r.AF(), r.BC(), r.DE(), r.HL(), r.SP)
}

// RunResult reports how far a run got and the final step outcome.
type RunResult struct {
	Steps int            // instructions executed
	Last  cpu.StepResult // outcome of the final step
}

// Run steps until the CPU halts, a decode fault latches, or maxSteps
// instructions have executed. maxSteps <= 0 falls back to the configured
// budget. A decode fault comes back wrapped with the step number;
// budget exhaustion reports ErrStepBudget.
func (m *Machine) Run(maxSteps int) (RunResult, error) {
	if m.cpu == nil {
		return RunResult{}, ErrNoImage
	}
	if maxSteps <= 0 {
		maxSteps = m.cfg.MaxSteps
	}
	var rr RunResult
	for rr.Steps < maxSteps {
		res, err := m.Step()
		rr.Steps++
		rr.Last = res
		if err != nil {
			return rr, errors.Wrapf(err, "step %d", rr.Steps)
		}
		if res.Halted {
			return rr, nil
		}
	}
	return rr, errors.Wrapf(ErrStepBudget, "after %d steps", rr.Steps)
}

// Reset restores the post-boot register state (plus the configured entry
// override) and clears any halt or fault latch. The image is kept, stack
// writes included.
func (m *Machine) Reset() {
	if m.cpu == nil {
		return
	}
	m.cpu.Reset()
	m.applyEntry()
}

// CPU exposes the machine's CPU for register inspection. Nil before Load.
func (m *Machine) CPU() *cpu.CPU { return m.cpu }

// Image exposes the loaded memory image. Nil before Load.
func (m *Machine) Image() *mem.Image { return m.img }
