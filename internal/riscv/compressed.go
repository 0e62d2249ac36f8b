package riscv

import "fmt"

// ReservedEncoding is raised when a compressed parcel matches a pattern
// the C extension reserves (e.g. c.addi4spn with an all-zero immediate),
// per §4.1 "Compressed reserved patterns".
type ReservedEncoding struct {
	Parcel uint16
}

func (e *ReservedEncoding) Error() string {
	return fmt.Sprintf("reserved compressed encoding: %#x", e.Parcel)
}

// ExpandCompressed rewrites a 16-bit RVC parcel into its equivalent
// 32-bit base-ISA word. Only a representative subset of the C extension
// is modeled: c.nop, c.addi, c.li, c.lui, c.addi16sp, c.addi4spn, c.mv,
// c.add, c.jr, c.jalr, c.beqz/c.bnez, c.j.
func ExpandCompressed(parcel uint16) (uint32, error) {
	op := parcel & 0x3
	funct3 := (parcel >> 13) & 0x7

	switch op {
	case 0x0:
		switch funct3 {
		case 0x0: // c.addi4spn
			rd := rvcRegPrime(parcel, 2)
			imm := cAddi4spnImm(parcel)
			if imm == 0 {
				return 0, &ReservedEncoding{Parcel: parcel}
			}
			return encodeIType(0x13, rd, 2, uint32(imm)), nil
		}

	case 0x1:
		switch funct3 {
		case 0x0: // c.nop / c.addi
			rd := rvcReg(parcel, 7)
			imm := cAddiImm(parcel)
			return encodeIType(0x13, rd, rd, uint32(imm)&0xFFF), nil

		case 0x2: // c.li
			rd := rvcReg(parcel, 7)
			imm := cAddiImm(parcel) // same 6-bit signed immediate shape
			return encodeIType(0x13, rd, 0, uint32(imm)&0xFFF), nil

		case 0x3: // c.lui / c.addi16sp
			rd := rvcReg(parcel, 7)
			if rd == 2 {
				imm := cAddi16spImm(parcel)
				if imm == 0 {
					return 0, &ReservedEncoding{Parcel: parcel}
				}
				return encodeIType(0x13, 2, 2, uint32(imm)&0xFFF), nil
			}
			imm := cLuiImm(parcel)
			if imm == 0 {
				return 0, &ReservedEncoding{Parcel: parcel}
			}
			return encodeUType(0x37, rd, uint32(imm)), nil

		case 0x5: // c.j
			offset := cJImm(parcel)
			return encodeJType(0x6F, 0, offset), nil

		case 0x6: // c.beqz
			rs1 := rvcRegPrime(parcel, 7)
			offset := cBImm(parcel)
			return encodeBType(0x63, 0, rs1, 0, offset), nil

		case 0x7: // c.bnez
			rs1 := rvcRegPrime(parcel, 7)
			offset := cBImm(parcel)
			return encodeBType(0x63, 1, rs1, 0, offset), nil
		}

	case 0x2:
		switch funct3 {
		case 0x4: // c.mv / c.add / c.jr / c.jalr
			rd := rvcReg(parcel, 7)
			rs2 := rvcReg(parcel, 2)
			bit12 := (parcel >> 12) & 1
			if rs2 == 0 {
				if rd == 0 {
					return 0, &ReservedEncoding{Parcel: parcel}
				}
				if bit12 == 0 { // c.jr
					return encodeIType(0x67, 0, rd, 0), nil
				}
				// c.jalr: rd(=ra)=1, rs1=rd field, imm=0
				return encodeIType(0x67, 1, rd, 0), nil
			}
			if bit12 == 0 { // c.mv
				return encodeRType(0x33, rd, 0, rs2, 0, 0), nil
			}
			// c.add
			return encodeRType(0x33, rd, rd, rs2, 0, 0), nil
		}
	}

	return 0, &ReservedEncoding{Parcel: parcel}
}

func rvcReg(parcel uint16, shift uint) int {
	return int((parcel >> shift) & 0x1F)
}

// rvcRegPrime decodes the compacted 3-bit register field (x8-x15) used by
// the "quadrant 0" and some quadrant-1 compressed forms.
func rvcRegPrime(parcel uint16, shift uint) int {
	return 8 + int((parcel>>shift)&0x7)
}

func cAddiImm(parcel uint16) int32 {
	imm5 := (parcel >> 12) & 1
	imm40 := (parcel >> 2) & 0x1F
	raw := uint32(imm5)<<5 | uint32(imm40)
	return int32(signExtend(raw, 6))
}

func cAddi16spImm(parcel uint16) int32 {
	b9 := (parcel >> 12) & 1
	b4 := (parcel >> 6) & 1
	b6 := (parcel >> 5) & 1
	b87 := (parcel >> 3) & 0x3
	b5 := (parcel >> 2) & 1
	raw := uint32(b9)<<9 | uint32(b87)<<7 | uint32(b6)<<6 | uint32(b5)<<5 | uint32(b4)<<4
	return int32(signExtend(raw, 10))
}

func cAddi4spnImm(parcel uint16) uint32 {
	b96 := (parcel >> 7) & 0xF
	b54 := (parcel >> 11) & 0x3
	b3 := (parcel >> 5) & 1
	b2 := (parcel >> 6) & 1
	return uint32(b96)<<6 | uint32(b54)<<4 | uint32(b3)<<3 | uint32(b2)<<2
}

func cLuiImm(parcel uint16) int32 {
	b17 := (parcel >> 12) & 1
	b1612 := (parcel >> 2) & 0x1F
	raw := uint32(b17)<<17 | uint32(b1612)<<12
	return int32(signExtend(raw, 18))
}

func cJImm(parcel uint16) int64 {
	b11 := (parcel >> 12) & 1
	b4 := (parcel >> 11) & 1
	b98 := (parcel >> 9) & 0x3
	b10 := (parcel >> 8) & 1
	b6 := (parcel >> 7) & 1
	b7 := (parcel >> 6) & 1
	b31 := (parcel >> 3) & 0x7
	b5 := (parcel >> 2) & 1
	raw := uint32(b11)<<11 | uint32(b10)<<10 | uint32(b98)<<8 | uint32(b7)<<7 |
		uint32(b6)<<6 | uint32(b5)<<5 | uint32(b4)<<4 | uint32(b31)<<1
	return signExtend(raw, 12)
}

func cBImm(parcel uint16) int64 {
	b8 := (parcel >> 12) & 1
	b43 := (parcel >> 10) & 0x3
	b76 := (parcel >> 5) & 0x3
	b21 := (parcel >> 3) & 0x3
	b5 := (parcel >> 2) & 1
	raw := uint32(b8)<<8 | uint32(b76)<<6 | uint32(b5)<<5 | uint32(b43)<<3 | uint32(b21)<<1
	return signExtend(raw, 9)
}

func encodeIType(opcode uint32, rd, rs1 int, imm uint32) uint32 {
	return (imm&0xFFF)<<20 | uint32(rs1)<<15 | uint32(rd)<<7 | opcode
}

func encodeUType(opcode uint32, rd int, imm uint32) uint32 {
	return (imm & 0xFFFFF000) | uint32(rd)<<7 | opcode
}

func encodeRType(opcode uint32, rd, rs1, rs2 int, funct3, funct7 uint32) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func encodeJType(opcode uint32, rd int, offset int64) uint32 {
	raw := uint32(offset)
	b20 := (raw >> 20) & 1
	b19_12 := (raw >> 12) & 0xFF
	b11 := (raw >> 11) & 1
	b10_1 := (raw >> 1) & 0x3FF
	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | uint32(rd)<<7 | opcode
}

func encodeBType(opcode uint32, funct3 uint32, rs1, rs2 int, offset int64) uint32 {
	raw := uint32(offset)
	b12 := (raw >> 12) & 1
	b11 := (raw >> 11) & 1
	b10_5 := (raw >> 5) & 0x3F
	b4_1 := (raw >> 1) & 0xF
	return b12<<31 | b10_5<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | b4_1<<8 | b11<<7 | opcode
}
