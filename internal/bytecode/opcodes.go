// Package bytecode defines Ape's instruction set and the compiled-file
// artifact (bytecode + parallel source map) that the compiler produces
// and the VM executes.
package bytecode

// Op is a single-byte instruction opcode.
type Op byte

const (
	OpConstant Op = iota
	OpPop
	OpDup
	OpTrue
	OpFalse
	OpNull
	OpNumber // u64 operand: big-endian IEEE-754 bit pattern

	OpArray    // u16 count
	OpMapStart // u16 count (reserve capacity, push onto this-stack)
	OpMapEnd   // u16 kvp count

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitOr
	OpBitXor
	OpBitAnd
	OpLShift
	OpRShift
	OpMinus
	OpNot

	OpComparePlain // ordered comparison -> signed number
	OpCompareEq    // equality-only comparison -> 0/1
	OpEqual
	OpNotEqual
	OpGreaterThan
	OpGreaterEqual

	OpJump        // u16 ip
	OpJumpIfFalse // u16 ip
	OpJumpIfTrue  // u16 ip

	OpDefineModuleGlobal // u16 index
	OpSetModuleGlobal    // u16 index
	OpGetModuleGlobal    // u16 index
	OpGetContextGlobal   // u16 index

	OpDefineLocal // u8 slot
	OpSetLocal    // u8 slot
	OpGetLocal    // u8 slot

	OpGetFree // u8 slot
	OpSetFree // u8 slot

	OpCurrentFunction
	OpGetThis

	OpGetIndex
	OpSetIndex
	OpGetValueAt

	OpCall // u8 argc

	OpReturnValue
	OpReturnNothing

	OpFunction // u16 const index, u8 nfree

	OpLen

	OpSetRecover // u16 ip
)

// operandWidths gives the number of operand bytes following each opcode,
// used to walk bytecode instruction-by-instruction.
var operandWidths = map[Op]int{
	OpConstant:           2,
	OpNumber:             8,
	OpArray:              2,
	OpMapStart:           2,
	OpMapEnd:             2,
	OpJump:               2,
	OpJumpIfFalse:        2,
	OpJumpIfTrue:         2,
	OpDefineModuleGlobal: 2,
	OpSetModuleGlobal:    2,
	OpGetModuleGlobal:    2,
	OpGetContextGlobal:   2,
	OpDefineLocal:        1,
	OpSetLocal:           1,
	OpGetLocal:           1,
	OpGetFree:            1,
	OpSetFree:            1,
	OpCall:               1,
	OpFunction:           3, // u16 const + u8 nfree
	OpSetRecover:         2,
}

// OperandWidth returns the number of operand bytes following op, or 0.
func OperandWidth(op Op) int { return operandWidths[op] }

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return "UNKNOWN"
}

var opNames = map[Op]string{
	OpConstant: "OpConstant", OpPop: "OpPop", OpDup: "OpDup",
	OpTrue: "OpTrue", OpFalse: "OpFalse", OpNull: "OpNull", OpNumber: "OpNumber",
	OpArray: "OpArray", OpMapStart: "OpMapStart", OpMapEnd: "OpMapEnd",
	OpAdd: "OpAdd", OpSub: "OpSub", OpMul: "OpMul", OpDiv: "OpDiv", OpMod: "OpMod",
	OpBitOr: "OpBitOr", OpBitXor: "OpBitXor", OpBitAnd: "OpBitAnd",
	OpLShift: "OpLShift", OpRShift: "OpRShift", OpMinus: "OpMinus", OpNot: "OpNot",
	OpComparePlain: "OpComparePlain", OpCompareEq: "OpCompareEq",
	OpEqual: "OpEqual", OpNotEqual: "OpNotEqual",
	OpGreaterThan: "OpGreaterThan", OpGreaterEqual: "OpGreaterEqual",
	OpJump: "OpJump", OpJumpIfFalse: "OpJumpIfFalse", OpJumpIfTrue: "OpJumpIfTrue",
	OpDefineModuleGlobal: "OpDefineModuleGlobal", OpSetModuleGlobal: "OpSetModuleGlobal",
	OpGetModuleGlobal: "OpGetModuleGlobal", OpGetContextGlobal: "OpGetContextGlobal",
	OpDefineLocal: "OpDefineLocal", OpSetLocal: "OpSetLocal", OpGetLocal: "OpGetLocal",
	OpGetFree: "OpGetFree", OpSetFree: "OpSetFree",
	OpCurrentFunction: "OpCurrentFunction", OpGetThis: "OpGetThis",
	OpGetIndex: "OpGetIndex", OpSetIndex: "OpSetIndex", OpGetValueAt: "OpGetValueAt",
	OpCall: "OpCall", OpReturnValue: "OpReturnValue", OpReturnNothing: "OpReturnNothing",
	OpFunction: "OpFunction", OpLen: "OpLen", OpSetRecover: "OpSetRecover",
}
