package source

import (
	"errors"
	"fmt"

	"golang.org/x/net/bpf"
)

const (
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	protoTCP      = 6
	protoUDP      = 17

	ethHeaderLen  = 14
	ipv6HeaderLen = 40

	// MaxFilterPorts bounds each port list so conditional jumps stay within
	// their 8-bit range.
	MaxFilterPorts = 16
)

// ErrNoPorts is returned when a port filter would match nothing.
var ErrNoPorts = errors.New("source: port filter needs at least one port")

// PortFilter builds a classic BPF program accepting unfragmented IPv4 and
// IPv6 packets whose UDP or TCP source or destination port is listed.
// Accepted packets are truncated to snapLen. IPv6 extension headers are not
// walked.
func PortFilter(udpPorts, tcpPorts []uint16, snapLen uint32) ([]bpf.Instruction, error) {
	if len(udpPorts) == 0 && len(tcpPorts) == 0 {
		return nil, ErrNoPorts
	}
	if len(udpPorts) > MaxFilterPorts || len(tcpPorts) > MaxFilterPorts {
		return nil, fmt.Errorf("source: at most %d ports per protocol", MaxFilterPorts)
	}

	a := newAssembler()
	a.emit(bpf.LoadAbsolute{Off: 12, Size: 2})
	a.jumpIf(bpf.JumpEqual, etherTypeIPv4, "ipv4", "")
	a.jumpIf(bpf.JumpEqual, etherTypeIPv6, "ipv6", "drop")

	a.label("ipv4")
	a.emit(bpf.LoadAbsolute{Off: ethHeaderLen + 6, Size: 2})
	a.jumpIf(bpf.JumpBitsSet, 0x1FFF, "drop", "")
	a.emit(bpf.LoadMemShift{Off: ethHeaderLen})
	a.emit(bpf.LoadAbsolute{Off: ethHeaderLen + 9, Size: 1})
	a.protocols("ipv4", len(udpPorts) > 0, len(tcpPorts) > 0)
	a.ports("ipv4.udp", udpPorts, func(off uint32) bpf.Instruction {
		return bpf.LoadIndirect{Off: ethHeaderLen + off, Size: 2}
	})
	a.ports("ipv4.tcp", tcpPorts, func(off uint32) bpf.Instruction {
		return bpf.LoadIndirect{Off: ethHeaderLen + off, Size: 2}
	})

	a.label("ipv6")
	a.emit(bpf.LoadAbsolute{Off: ethHeaderLen + 6, Size: 1})
	a.protocols("ipv6", len(udpPorts) > 0, len(tcpPorts) > 0)
	a.ports("ipv6.udp", udpPorts, func(off uint32) bpf.Instruction {
		return bpf.LoadAbsolute{Off: ethHeaderLen + ipv6HeaderLen + off, Size: 2}
	})
	a.ports("ipv6.tcp", tcpPorts, func(off uint32) bpf.Instruction {
		return bpf.LoadAbsolute{Off: ethHeaderLen + ipv6HeaderLen + off, Size: 2}
	})

	a.label("drop")
	a.emit(bpf.RetConstant{Val: 0})
	a.label("accept")
	a.emit(bpf.RetConstant{Val: snapLen})

	return a.resolve()
}

// CompilePortFilter assembles PortFilter for a socket.
func CompilePortFilter(udpPorts, tcpPorts []uint16, snapLen uint32) ([]bpf.RawInstruction, error) {
	prog, err := PortFilter(udpPorts, tcpPorts, snapLen)
	if err != nil {
		return nil, err
	}
	return bpf.Assemble(prog)
}

// assembler resolves symbolic jump targets. An empty label means the next
// instruction.
type assembler struct {
	prog     []bpf.Instruction
	labels   map[string]int
	branches []branch
}

type branch struct {
	at              int
	cond            bpf.JumpTest
	val             uint32
	onTrue, onFalse string
	always          bool
}

func newAssembler() *assembler {
	return &assembler{labels: make(map[string]int)}
}

func (a *assembler) emit(ins bpf.Instruction) {
	a.prog = append(a.prog, ins)
}

func (a *assembler) label(name string) {
	a.labels[name] = len(a.prog)
}

func (a *assembler) jumpIf(cond bpf.JumpTest, val uint32, onTrue, onFalse string) {
	a.branches = append(a.branches, branch{at: len(a.prog), cond: cond, val: val, onTrue: onTrue, onFalse: onFalse})
	a.emit(nil)
}

func (a *assembler) jump(to string) {
	a.branches = append(a.branches, branch{at: len(a.prog), onTrue: to, always: true})
	a.emit(nil)
}

// protocols dispatches on the protocol number in A to the per-protocol
// port blocks of family.
func (a *assembler) protocols(family string, udp, tcp bool) {
	switch {
	case udp && tcp:
		a.jumpIf(bpf.JumpEqual, protoUDP, family+".udp", "")
		a.jumpIf(bpf.JumpEqual, protoTCP, family+".tcp", "drop")
	case udp:
		a.jumpIf(bpf.JumpEqual, protoUDP, family+".udp", "drop")
	default:
		a.jumpIf(bpf.JumpEqual, protoTCP, family+".tcp", "drop")
	}
}

// ports matches the source then destination port against list. load
// fetches the half-word at a transport header offset.
func (a *assembler) ports(name string, list []uint16, load func(off uint32) bpf.Instruction) {
	if len(list) == 0 {
		return
	}
	a.label(name)
	for _, off := range []uint32{0, 2} {
		a.emit(load(off))
		for _, p := range list {
			a.jumpIf(bpf.JumpEqual, uint32(p), "accept", "")
		}
	}
	a.jump("drop")
}

func (a *assembler) resolve() ([]bpf.Instruction, error) {
	target := func(b branch, name string) (int, error) {
		if name == "" {
			return 0, nil
		}
		pos, ok := a.labels[name]
		if !ok {
			return 0, fmt.Errorf("source: undefined label %q", name)
		}
		skip := pos - b.at - 1
		if skip < 0 || (!b.always && skip > 0xFF) {
			return 0, fmt.Errorf("source: jump to %q out of range (%d)", name, skip)
		}
		return skip, nil
	}

	for _, b := range a.branches {
		st, err := target(b, b.onTrue)
		if err != nil {
			return nil, err
		}
		if b.always {
			a.prog[b.at] = bpf.Jump{Skip: uint32(st)}
			continue
		}
		sf, err := target(b, b.onFalse)
		if err != nil {
			return nil, err
		}
		a.prog[b.at] = bpf.JumpIf{Cond: b.cond, Val: b.val, SkipTrue: uint8(st), SkipFalse: uint8(sf)}
	}
	return a.prog, nil
}
