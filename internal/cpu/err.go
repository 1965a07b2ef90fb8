package cpu

import "fmt"

// DecodeError reports an opcode byte with no defined encoding. The engine
// latches the error and returns it from every subsequent Step until Reset;
// registers freeze at the faulting instruction.
type DecodeError struct {
	Addr   uint16 // address the opcode was fetched from
	Opcode byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("illegal opcode %#02x at %#04x", e.Opcode, e.Addr)
}
