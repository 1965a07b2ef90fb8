// Command sm83run executes a flat SM83 binary image headlessly and reports
// the final machine state.
//
// Exit codes: 0 halted, 1 usage or load error, 2 decode fault, 3 step budget
// or wall-clock timeout exhausted.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dmgtools/sm83/internal/cpu"
	"github.com/dmgtools/sm83/internal/emu"
	"github.com/dmgtools/sm83/internal/mem"
)

// stepChunk is how many instructions run between wall-clock checks.
const stepChunk = 65536

func main() {
	imgPath := flag.String("image", "", "path to a flat binary image")
	origin := flag.Int("origin", 0x0000, "load address of the image")
	entry := flag.Int("entry", -1, "initial PC; -1 starts at the load origin")
	steps := flag.Int("steps", emu.DefaultMaxSteps, "max instructions to execute")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s); 0 disables")
	trace := flag.Bool("trace", false, "log each instruction before it executes")
	watch := flag.String("watch", "", "comma-separated hex addresses to print after the run")
	flag.Parse()

	if *imgPath == "" {
		log.Fatal("-image is required")
	}
	if *steps <= 0 {
		log.Fatal("-steps must be positive")
	}
	if *origin < 0 || *origin > 0xFFFF {
		log.Fatalf("origin %#x out of range", *origin)
	}
	watched, err := parseWatch(*watch)
	if err != nil {
		log.Fatalf("parse watch: %v", err)
	}
	data, err := os.ReadFile(*imgPath)
	if err != nil {
		log.Fatalf("read image: %v", err)
	}

	start := *entry
	if start < 0 {
		start = *origin
	}
	m := emu.New(emu.Config{Entry: start, MaxSteps: *steps, Trace: *trace})
	if err := m.Load(mem.Section{Name: "image", Origin: uint16(*origin), Data: data}); err != nil {
		log.Fatalf("load: %v", err)
	}

	begin := time.Now()
	var deadline time.Time
	if *timeout > 0 {
		deadline = begin.Add(*timeout)
	}

	exit := 0
	total := 0
	remaining := *steps
	var last cpu.StepResult
loop:
	for {
		n := remaining
		if !deadline.IsZero() && n > stepChunk {
			n = stepChunk
		}
		rr, err := m.Run(n)
		total += rr.Steps
		last = rr.Last
		remaining -= rr.Steps
		switch {
		case err == nil:
			break loop
		case errors.Is(err, emu.ErrStepBudget):
			if remaining <= 0 {
				fmt.Println("step budget exhausted")
				exit = 3
				break loop
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				fmt.Printf("timeout after %s\n", time.Since(begin).Truncate(time.Millisecond))
				exit = 3
				break loop
			}
		default:
			fmt.Printf("%v\n", err)
			exit = 2
			break loop
		}
	}

	r := m.CPU().Regs
	fmt.Printf("done: steps=%d elapsed=%s halted=%t\n",
		total, time.Since(begin).Truncate(time.Millisecond), last.Halted)
	fmt.Printf("PC=%04X SP=%04X AF=%04X BC=%04X DE=%04X HL=%04X\n",
		r.PC, r.SP, r.AF(), r.BC(), r.DE(), r.HL())
	for _, addr := range watched {
		fmt.Printf("[%04X]=%02X\n", addr, m.Image().Read(addr))
	}
	os.Exit(exit)
}

func parseWatch(s string) ([]uint16, error) {
	if s == "" {
		return nil, nil
	}
	var out []uint16
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tok), "0x"))
		if tok == "" {
			continue
		}
		addr, err := strconv.ParseUint(tok, 16, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "address %q", tok)
		}
		out = append(out, uint16(addr))
	}
	return out, nil
}
