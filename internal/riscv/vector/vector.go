/*
   RISC-V vector extension engine.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package vector implements the RISC-V "V" vector extension's
// configuration and memory-access semantics (§4.4): vsetvl/vsetvli,
// generic SEW/mask-policy lane iteration, vxrm-driven fixed-point
// rounding, and unit-stride/strided/fault-first/mask/whole-register
// load-store. Ported from the helper-template shape of tlib's
// vector_helper_template.h, despecialised from its C-preprocessor
// per-width instantiation into one width-parameterised Go walk.
package vector

import (
	"github.com/rcornwell/dbtcore/internal/state"
	"github.com/rcornwell/dbtcore/util/debug"
)

func init() {
	debug.RegisterFlags("VECTOR", "SETVL", "FAULT")
}

// Mem is the external qemu_ld*/st*-equivalent collaborator for vector
// element access (§6).
type Mem interface {
	Load(addr uint64, width int) (uint64, error)
	Store(addr uint64, width int, val uint64) error
}

// Config mirrors state.VectorConfig but is the mutable view vsetvl/vsetvli
// hand back; callers copy the result into cpu.Vec.
type Config = state.VectorConfig

// illegalVType is the sentinel LMUL8 value meaning "no valid encoding".
const illegalVType = -1

// lmul8FromVlmul decodes the 3-bit vlmul field into eighths: values 0-3
// are LMUL=1,2,4,8; values 5-7 are fractional LMUL=1/8,1/4,1/2 (§4.4).
func lmul8FromVlmul(vlmul uint) int {
	switch vlmul {
	case 0:
		return 8
	case 1:
		return 16
	case 2:
		return 32
	case 3:
		return 64
	case 5:
		return 1
	case 6:
		return 2
	case 7:
		return 4
	}
	return illegalVType
}

// EEWFromField decodes a vector load/store instruction's 3-bit width
// field into an effective element width in bits (§4.4): the standard
// integer encodings are 0b000/101/110/111 -> 8/16/32/64; the remaining
// values are reserved for floating-point-only widths this port does not
// implement.
func EEWFromField(field uint32) (int, bool) {
	switch field {
	case 0:
		return 8, true
	case 5:
		return 16, true
	case 6:
		return 32, true
	case 7:
		return 64, true
	}
	return 0, false
}

// VLMax computes VLMAX = LMUL * VLEN / SEW given the core's VLEN (in
// bits) and the decoded vtype fields.
func VLMax(vlenBits uint64, sew uint, lmul8 int) uint64 {
	if lmul8 <= 0 {
		return 0
	}
	return (vlenBits * uint64(lmul8)) / (8 * uint64(sew))
}

// SetVL implements vsetvli/vsetvl (§4.4): decodes vtype, computes VLMAX,
// clamps the requested length, and returns the new configuration. avl is
// the caller's requested AVL (already resolved: rs1 value, or a sentinel
// indicating "set vl to VLMAX" when rs1==x0 and rd!=x0).
func SetVL(vlenBits uint64, avl uint64, sew uint, vlmul uint, vta, vma bool, setToMax bool) (Config, bool) {
	lmul8 := lmul8FromVlmul(vlmul)
	if lmul8 == illegalVType || (sew != 8 && sew != 16 && sew != 32 && sew != 64) {
		return Config{VIll: true}, false
	}
	vlmax := VLMax(vlenBits, sew, lmul8)
	if vlmax == 0 {
		return Config{VIll: true}, false
	}

	var vl uint64
	switch {
	case setToMax:
		vl = vlmax
	case avl <= vlmax:
		vl = avl
	case avl < 2*vlmax:
		vl = (avl + 1) / 2 // ceil(AVL/2), per the spec's "evenly distribute" rule
	default:
		vl = vlmax
	}

	cfg := Config{
		VL:     vl,
		VStart: 0,
		VSEW:   sew,
		VLMul8: lmul8,
		VTA:    vta,
		VMA:    vma,
		VLenB:  vlenBits / 8,
	}
	debug.Logf("VECTOR", "SETVL", "avl=%d sew=%d lmul8=%d -> vl=%d vlmax=%d", avl, sew, lmul8, vl, vlmax)
	return cfg, true
}

// roundoffU implements the unsigned fixed-point rounding-increment
// computation selected by vxrm, shared by narrowing/averaging vector
// arithmetic (§4.4).
func roundoffU(v uint64, d uint, vxrm uint) uint64 {
	if d == 0 {
		return v
	}
	var r uint64
	switch vxrm & 0x3 {
	case 0: // rnu: round-to-nearest-up
		r = (v >> (d - 1)) & 1
	case 1: // rne: round-to-nearest-even
		bit := (v >> (d - 1)) & 1
		rest := v & ((uint64(1) << (d - 1)) - 1)
		above := (v >> d) & 1
		if bit != 0 && (above != 0 || rest != 0) {
			r = 1
		}
	case 2: // rdn: round-down (truncate)
		r = 0
	case 3: // rod: round-to-odd
		if (v>>d)&1 == 0 && v&((uint64(1)<<d)-1) != 0 {
			r = 1
		}
	}
	return (v >> d) + r
}

// roundoffI is roundoffU's signed counterpart.
func roundoffI(v int64, d uint, vxrm uint) int64 {
	if d == 0 {
		return v
	}
	r := roundoffU(uint64(v), d, vxrm) - uint64(v)>>d
	return v>>d + int64(r)
}

// RoundoffU exports roundoffU for use by arithmetic kernels outside this
// file (narrowing shifts, averaging add/subtract).
func RoundoffU(v uint64, d uint, vxrm uint) uint64 { return roundoffU(v, d, vxrm) }

// RoundoffI exports roundoffI.
func RoundoffI(v int64, d uint, vxrm uint) int64 { return roundoffI(v, d, vxrm) }

// maskBit reports whether lane ei is active under v0's mask register,
// addressed one bit per lane as the byte-packed mask group (§4.4).
func maskBit(mask []byte, ei int) bool {
	return mask[ei>>3]&(1<<uint(ei&0x7)) != 0
}

// Engine drives the lane-iteration loop shared by every vector
// load/store/arithmetic instruction, bound to one core's VectorConfig and
// register file plus a memory collaborator.
type Engine struct {
	mem  Mem
	cfg  *Config
	regs []byte // cpu.VRegBase
}

// NewEngine binds an Engine to the live vector config and register file
// of one core.
func NewEngine(mem Mem, cfg *Config, regs []byte) *Engine {
	return &Engine{mem: mem, cfg: cfg, regs: regs}
}

func (e *Engine) laneOffset(vreg int, ei int, widthBytes int) int {
	return vreg*int(e.cfg.VLenB) + ei*widthBytes
}

func (e *Engine) putLane(vreg, ei, widthBytes int, val uint64) {
	off := e.laneOffset(vreg, ei, widthBytes)
	for i := 0; i < widthBytes; i++ {
		e.regs[off+i] = byte(val >> (8 * i))
	}
}

func (e *Engine) getLane(vreg, ei, widthBytes int) uint64 {
	off := e.laneOffset(vreg, ei, widthBytes)
	var v uint64
	for i := 0; i < widthBytes; i++ {
		v |= uint64(e.regs[off+i]) << (8 * i)
	}
	return v
}

// UnitStrideLoad implements vle<eew>.v / vle<eew>ff.v's non-fault-first
// path (§4.4): walk lanes [vstart,vl), honouring the mask unless masked
// is false, depositing nf fields per element.
func (e *Engine) UnitStrideLoad(vd int, rs1Addr uint64, nf int, masked bool, mask []byte) error {
	widthBytes := int(e.cfg.VSEW) / 8
	for ei := int(e.cfg.VStart); ei < int(e.cfg.VL); ei++ {
		if masked && !maskBit(mask, ei) {
			continue
		}
		e.cfg.VStart = uint64(ei)
		for fi := 0; fi <= nf; fi++ {
			addr := rs1Addr + uint64(ei*widthBytes)
			val, err := e.mem.Load(addr, int(e.cfg.VSEW))
			if err != nil {
				return err
			}
			e.putLane(vd+fi*lmulRegs(e.cfg.VLMul8), ei, widthBytes, val)
		}
	}
	e.cfg.VStart = 0
	return nil
}

// FaultFirstLoad implements vle<eew>ff.v (§4.4, §8 scenario 8): on a
// fault past the first active element, vl is clamped to the elements
// already loaded and the fault is swallowed rather than raised; a fault
// on the very first active element still raises, with vstart published.
func (e *Engine) FaultFirstLoad(vd int, rs1Addr uint64, nf int, masked bool, mask []byte) error {
	widthBytes := int(e.cfg.VSEW) / 8
	first := true
	for ei := int(e.cfg.VStart); ei < int(e.cfg.VL); ei++ {
		if masked && !maskBit(mask, ei) {
			continue
		}
		for fi := 0; fi <= nf; fi++ {
			addr := rs1Addr + uint64(ei*widthBytes)
			val, err := e.mem.Load(addr, int(e.cfg.VSEW))
			if err != nil {
				if first {
					e.cfg.VStart = uint64(ei)
					debug.Logf("VECTOR", "FAULT", "first-element fault at %#x, raising", addr)
					return err
				}
				debug.Logf("VECTOR", "FAULT", "fault at %#x clamps vl to %d", addr, ei)
				e.cfg.VL = uint64(ei)
				return nil
			}
			e.putLane(vd+fi*lmulRegs(e.cfg.VLMul8), ei, widthBytes, val)
		}
		first = false
	}
	e.cfg.VStart = 0
	return nil
}

// StridedLoad implements vlse<eew>.v: like UnitStrideLoad but each
// element's address advances by an explicit signed byte stride rather
// than the natural element width.
func (e *Engine) StridedLoad(vd int, rs1Addr uint64, stride int64, nf int, masked bool, mask []byte) error {
	widthBytes := int(e.cfg.VSEW) / 8
	for ei := int(e.cfg.VStart); ei < int(e.cfg.VL); ei++ {
		if masked && !maskBit(mask, ei) {
			continue
		}
		e.cfg.VStart = uint64(ei)
		addr := uint64(int64(rs1Addr) + int64(ei)*stride)
		for fi := 0; fi <= nf; fi++ {
			val, err := e.mem.Load(addr+uint64(fi*widthBytes), int(e.cfg.VSEW))
			if err != nil {
				return err
			}
			e.putLane(vd+fi*lmulRegs(e.cfg.VLMul8), ei, widthBytes, val)
		}
	}
	e.cfg.VStart = 0
	return nil
}

// UnitStrideStore implements vse<eew>.v.
func (e *Engine) UnitStrideStore(vs int, rs1Addr uint64, nf int, masked bool, mask []byte) error {
	widthBytes := int(e.cfg.VSEW) / 8
	for ei := int(e.cfg.VStart); ei < int(e.cfg.VL); ei++ {
		if masked && !maskBit(mask, ei) {
			continue
		}
		e.cfg.VStart = uint64(ei)
		for fi := 0; fi <= nf; fi++ {
			addr := rs1Addr + uint64(ei*widthBytes)
			val := e.getLane(vs+fi*lmulRegs(e.cfg.VLMul8), ei, widthBytes)
			if err := e.mem.Store(addr, int(e.cfg.VSEW), val); err != nil {
				return err
			}
		}
	}
	e.cfg.VStart = 0
	return nil
}

// MaskLoad/MaskStore implement vlm.v/vsm.v: always byte-element, EEW=8,
// EMUL=1, never masked by v0 itself (§4.4).
func (e *Engine) MaskLoad(vd int, rs1Addr uint64) error {
	n := (int(e.cfg.VL) + 7) / 8
	for i := 0; i < n; i++ {
		val, err := e.mem.Load(rs1Addr+uint64(i), 8)
		if err != nil {
			return err
		}
		e.putLane(vd, i, 1, val)
	}
	return nil
}

func (e *Engine) MaskStore(vs int, rs1Addr uint64) error {
	n := (int(e.cfg.VL) + 7) / 8
	for i := 0; i < n; i++ {
		val := e.getLane(vs, i, 1)
		if err := e.mem.Store(rs1Addr+uint64(i), 8, val); err != nil {
			return err
		}
	}
	return nil
}

// WholeRegisterLoad/Store implement vl<nf>re<eew>.v / vs<nf>r.v: exactly
// VLENB*(nf+1) bytes, ignoring vl/vstart/vtype entirely (§4.4).
func (e *Engine) WholeRegisterLoad(vd int, rs1Addr uint64, nf int) error {
	total := int(e.cfg.VLenB) * (nf + 1)
	for i := 0; i < total; i++ {
		val, err := e.mem.Load(rs1Addr+uint64(i), 8)
		if err != nil {
			return err
		}
		e.regs[vd*int(e.cfg.VLenB)+i] = byte(val)
	}
	return nil
}

func (e *Engine) WholeRegisterStore(vs int, rs1Addr uint64, nf int) error {
	total := int(e.cfg.VLenB) * (nf + 1)
	for i := 0; i < total; i++ {
		val := uint64(e.regs[vs*int(e.cfg.VLenB)+i])
		if err := e.mem.Store(rs1Addr+uint64(i), 8, val); err != nil {
			return err
		}
	}
	return nil
}

// BinaryOp implements the OPIVV/OPIVX element-wise binary-arithmetic shape
// shared by vadd.vv and its siblings (§4.4, §8 scenario 6): walks lanes
// [vstart,vl), applying op(vs2[ei], vs1[ei]) into vd[ei] unless masked,
// in which case the destination lane is left undisturbed.
func (e *Engine) BinaryOp(vd, vs1, vs2 int, masked bool, mask []byte, op func(a, b uint64) uint64) error {
	widthBytes := int(e.cfg.VSEW) / 8
	for ei := int(e.cfg.VStart); ei < int(e.cfg.VL); ei++ {
		if masked && !maskBit(mask, ei) {
			continue
		}
		a := e.getLane(vs2, ei, widthBytes)
		b := e.getLane(vs1, ei, widthBytes)
		e.putLane(vd, ei, widthBytes, op(a, b))
	}
	e.cfg.VStart = 0
	return nil
}

// IndexedLoad implements vlxei<eew>.v (§4.4): each element's address is
// rs1Addr plus the byte offset held in the corresponding lane of vs2, read
// at idxWidthBytes, the instruction's index EEW (independent of data SEW).
func (e *Engine) IndexedLoad(vd int, rs1Addr uint64, vs2, idxWidthBytes, nf int, masked bool, mask []byte) error {
	widthBytes := int(e.cfg.VSEW) / 8
	for ei := int(e.cfg.VStart); ei < int(e.cfg.VL); ei++ {
		if masked && !maskBit(mask, ei) {
			continue
		}
		e.cfg.VStart = uint64(ei)
		addr := rs1Addr + e.getLane(vs2, ei, idxWidthBytes)
		for fi := 0; fi <= nf; fi++ {
			val, err := e.mem.Load(addr+uint64(fi*widthBytes), int(e.cfg.VSEW))
			if err != nil {
				return err
			}
			e.putLane(vd+fi*lmulRegs(e.cfg.VLMul8), ei, widthBytes, val)
		}
	}
	e.cfg.VStart = 0
	return nil
}

// IndexedStore implements vsxei<eew>.v, the store counterpart of IndexedLoad.
func (e *Engine) IndexedStore(vs int, rs1Addr uint64, vs2, idxWidthBytes, nf int, masked bool, mask []byte) error {
	widthBytes := int(e.cfg.VSEW) / 8
	for ei := int(e.cfg.VStart); ei < int(e.cfg.VL); ei++ {
		if masked && !maskBit(mask, ei) {
			continue
		}
		e.cfg.VStart = uint64(ei)
		addr := rs1Addr + e.getLane(vs2, ei, idxWidthBytes)
		for fi := 0; fi <= nf; fi++ {
			val := e.getLane(vs+fi*lmulRegs(e.cfg.VLMul8), ei, widthBytes)
			if err := e.mem.Store(addr+uint64(fi*widthBytes), int(e.cfg.VSEW), val); err != nil {
				return err
			}
		}
	}
	e.cfg.VStart = 0
	return nil
}

// StridedStore implements vsse<eew>.v, the store counterpart of StridedLoad.
func (e *Engine) StridedStore(vs int, rs1Addr uint64, stride int64, nf int, masked bool, mask []byte) error {
	widthBytes := int(e.cfg.VSEW) / 8
	for ei := int(e.cfg.VStart); ei < int(e.cfg.VL); ei++ {
		if masked && !maskBit(mask, ei) {
			continue
		}
		e.cfg.VStart = uint64(ei)
		addr := uint64(int64(rs1Addr) + int64(ei)*stride)
		for fi := 0; fi <= nf; fi++ {
			val := e.getLane(vs+fi*lmulRegs(e.cfg.VLMul8), ei, widthBytes)
			if err := e.mem.Store(addr+uint64(fi*widthBytes), int(e.cfg.VSEW), val); err != nil {
				return err
			}
		}
	}
	e.cfg.VStart = 0
	return nil
}

// lmulRegs reports how many consecutive vector registers one logical
// group spans for register-group-striding field loads (nf>0); fractional
// LMUL still occupies a single register.
func lmulRegs(lmul8 int) int {
	if lmul8 <= 8 {
		return 1
	}
	return lmul8 / 8
}
