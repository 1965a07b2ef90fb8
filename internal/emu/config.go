package emu

// DefaultMaxSteps bounds Run when the config carries no explicit budget.
const DefaultMaxSteps = 5_000_000

// Config contains settings that affect how a Machine executes.
type Config struct {
	Entry    int  // PC applied after Load and Reset; negative keeps the post-boot 0x0100
	MaxSteps int  // default step budget for Run; 0 means DefaultMaxSteps
	Trace    bool // log each instruction before it executes
}
