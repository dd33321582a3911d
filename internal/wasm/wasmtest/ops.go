package wasmtest

const (
	opBlockEmpty = 0x40
	opIf         = 0x04
	opEnd        = 0x0b
	opReturn     = 0x0f
	opCall       = 0x10
	opDrop       = 0x1a
	opLocalGet   = 0x20
	opI32Load    = 0x28
	opI32Load8U  = 0x2d
	opI32Store   = 0x36
	opMemorySize = 0x3f
	opMemoryGrow = 0x40
	opI32Const   = 0x41
	opI32Eqz     = 0x45
	opI32Eq      = 0x46
	opI32Ne      = 0x47
	opI32Add     = 0x6a
	opI32Or      = 0x72
	opI32Shl     = 0x74
)

// I32Const pushes v.
func I32Const(v int32) []byte {
	return appendS32([]byte{opI32Const}, v)
}

// Call calls function idx.
func Call(idx uint32) []byte {
	return appendU32([]byte{opCall}, idx)
}

// LocalGet pushes local idx.
func LocalGet(idx uint32) []byte {
	return appendU32([]byte{opLocalGet}, idx)
}

// I32Load loads an aligned i32 from the address on the stack.
func I32Load() []byte {
	return []byte{opI32Load, 0x02, 0x00}
}

// I32Load8U loads a byte from the address on the stack.
func I32Load8U() []byte {
	return []byte{opI32Load8U, 0x00, 0x00}
}

// I32Store stores an aligned i32: [addr, value] -> [].
func I32Store() []byte {
	return []byte{opI32Store, 0x02, 0x00}
}

// MemoryGrow grows memory 0 by the page count on the stack.
func MemoryGrow() []byte {
	return []byte{opMemoryGrow, 0x00}
}

// MemorySize pushes the memory size in pages.
func MemorySize() []byte {
	return []byte{opMemorySize, 0x00}
}

// If opens a block without results, executed when the top of stack is non-zero.
func If() []byte {
	return []byte{opIf, opBlockEmpty}
}

// End closes a block.
func End() []byte {
	return []byte{opEnd}
}

// Return returns from the current function.
func Return() []byte {
	return []byte{opReturn}
}

// Drop discards the top of stack.
func Drop() []byte {
	return []byte{opDrop}
}

// I32Eqz tests the top of stack for zero.
func I32Eqz() []byte {
	return []byte{opI32Eqz}
}

// I32Eq compares two i32 values for equality.
func I32Eq() []byte {
	return []byte{opI32Eq}
}

// I32Ne compares two i32 values.
func I32Ne() []byte {
	return []byte{opI32Ne}
}

// I32Add adds two i32 values.
func I32Add() []byte {
	return []byte{opI32Add}
}

// I32Or ors two i32 values.
func I32Or() []byte {
	return []byte{opI32Or}
}

// I32Shl shifts left: [value, count] -> [value << count].
func I32Shl() []byte {
	return []byte{opI32Shl}
}
