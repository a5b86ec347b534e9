package interp

import (
	"fmt"
	"sort"
)

const (
	// redZone is the gap left between allocations,
	// so that an off-by-some access does not land in a neighbor.
	redZone = 16
	// poison fills the bytes of newly live temporaries.
	poison = 0xDE
)

// memory is a flat, byte-addressed store.
// Address 0 is never allocated.
type memory struct {
	bytes  []byte
	allocs []*alloc
}

type alloc struct {
	addr int64
	size int64
	live bool
	name string
}

func (a *alloc) String() string { return fmt.Sprintf("%s@%d+%d", a.name, a.addr, a.size) }

func newMemory() *memory {
	return &memory{bytes: make([]byte, redZone)}
}

// allocate returns a new allocation of size bytes aligned to align.
func (m *memory) allocate(name string, size, align int64, live bool) *alloc {
	addr := int64(len(m.bytes)) + redZone
	if align > 1 {
		addr = (addr + align - 1) / align * align
	}
	end := addr + size
	m.bytes = append(m.bytes, make([]byte, end-int64(len(m.bytes)))...)
	a := &alloc{addr: addr, size: size, live: live, name: name}
	m.allocs = append(m.allocs, a)
	return a
}

// find returns the allocation containing [addr, addr+n).
// It panics if there is none or if it is dead.
func (m *memory) find(addr, n int64) *alloc {
	i := sort.Search(len(m.allocs), func(i int) bool {
		return m.allocs[i].addr+m.allocs[i].size >= addr+n
	})
	if i == len(m.allocs) || addr < m.allocs[i].addr || n < 0 {
		panic(fmt.Sprintf("access [%d, %d) is outside of any allocation", addr, addr+n))
	}
	a := m.allocs[i]
	if !a.live {
		panic(fmt.Sprintf("access [%d, %d) of dead %s", addr, addr+n, a))
	}
	return a
}

func (m *memory) read(addr, n int64) []byte {
	m.find(addr, n)
	return append([]byte{}, m.bytes[addr:addr+n]...)
}

func (m *memory) write(addr int64, b []byte) {
	m.find(addr, int64(len(b)))
	copy(m.bytes[addr:], b)
}

func (m *memory) fill(a *alloc, v byte) {
	for i := a.addr; i < a.addr+a.size; i++ {
		m.bytes[i] = v
	}
}

func getUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putUint(b []byte, v uint64) []byte {
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// truncate returns the low n bytes of v.
func truncate(v uint64, n int64) uint64 {
	if n >= 8 {
		return v
	}
	return v & (1<<(8*uint(n)) - 1)
}
