// Package mem provides the byte-addressable memory image the CPU core
// executes from: fixed-origin sections loaded once, plus a sparse overlay
// for writes that land outside every section (reserved stack space).
package mem

import (
	"fmt"
	"sort"
)

// Fill is what unloaded, unwritten addresses read as.
const Fill byte = 0x00

// Section is a contiguous byte range placed at a fixed origin. The name
// only appears in diagnostics.
type Section struct {
	Name   string
	Origin uint16
	Data   []byte
}

// OverlapError reports two sections claiming the same address. The load
// fails as a whole; no partial image is built.
type OverlapError struct {
	First  string // section with the lower origin
	Second string
	Addr   uint16 // first address both sections claim
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("section %q overlaps section %q at %#04x", e.Second, e.First, e.Addr)
}

// span is a section after wrap splitting: start+len(data) never exceeds
// 0x10000.
type span struct {
	name  string
	start uint16
	data  []byte
}

func (s *span) end() uint32 { return uint32(s.start) + uint32(len(s.data)) }

// Image is a sparse 16-bit address space. Reads and writes are total for
// every address, matching the hardware bus.
type Image struct {
	spans   []span          // sorted by start, non-overlapping
	overlay map[uint16]byte // writes outside any span
}

// NewImage validates the given sections and builds the image. Section data
// is copied, so callers may reuse their buffers. A section running past
// 0xFFFF wraps to 0x0000; the wrapped tail takes part in overlap checking
// like any other range.
func NewImage(sections ...Section) (*Image, error) {
	img := &Image{overlay: make(map[uint16]byte)}
	for _, s := range sections {
		if len(s.Data) == 0 {
			continue
		}
		if len(s.Data) > 0x10000 {
			// longer than the address space: wraps onto itself
			return nil, &OverlapError{First: s.Name, Second: s.Name, Addr: s.Origin}
		}
		data := make([]byte, len(s.Data))
		copy(data, s.Data)
		head := 0x10000 - int(s.Origin)
		if len(data) <= head {
			img.spans = append(img.spans, span{name: s.Name, start: s.Origin, data: data})
		} else {
			img.spans = append(img.spans, span{name: s.Name, start: s.Origin, data: data[:head]})
			img.spans = append(img.spans, span{name: s.Name, start: 0, data: data[head:]})
		}
	}
	sort.SliceStable(img.spans, func(i, j int) bool { return img.spans[i].start < img.spans[j].start })
	for i := 1; i < len(img.spans); i++ {
		prev, cur := &img.spans[i-1], &img.spans[i]
		if uint32(cur.start) < prev.end() {
			return nil, &OverlapError{First: prev.name, Second: cur.name, Addr: cur.start}
		}
	}
	return img, nil
}

// find returns the span containing addr, or nil.
func (m *Image) find(addr uint16) *span {
	i := sort.Search(len(m.spans), func(i int) bool { return m.spans[i].end() > uint32(addr) })
	if i < len(m.spans) && addr >= m.spans[i].start {
		return &m.spans[i]
	}
	return nil
}

// Read never fails; unloaded addresses yield the fill value.
func (m *Image) Read(addr uint16) byte {
	if s := m.find(addr); s != nil {
		return s.data[addr-s.start]
	}
	if v, ok := m.overlay[addr]; ok {
		return v
	}
	return Fill
}

// Write never fails; writes inside a section mutate it, writes anywhere
// else stick in the overlay.
func (m *Image) Write(addr uint16, v byte) {
	if s := m.find(addr); s != nil {
		s.data[addr-s.start] = v
		return
	}
	m.overlay[addr] = v
}

// Read16 reads a little-endian word. The bytes are read independently, so a
// word starting at 0xFFFF wraps to 0x0000.
func (m *Image) Read16(addr uint16) uint16 {
	lo := uint16(m.Read(addr))
	hi := uint16(m.Read(addr + 1))
	return lo | hi<<8
}

// Write16 writes a little-endian word, low byte first.
func (m *Image) Write16(addr uint16, v uint16) {
	m.Write(addr, byte(v))
	m.Write(addr+1, byte(v>>8))
}
