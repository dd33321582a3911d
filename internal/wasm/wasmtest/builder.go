// Package wasmtest assembles small WebAssembly binaries for tests.
//
// It covers only what the host tests need: function types, function imports,
// one memory, exports, code and active data segments.
package wasmtest

// ValType is a Wasm value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	exportFunc   = 0x00
	exportMemory = 0x02
)

type funcType struct {
	params, results []ValType
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type funcDef struct {
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type segment struct {
	offset uint32
	data   []byte
}

// Module is a Wasm module under construction.
type Module struct {
	types   []funcType
	imports []funcImport
	funcs   []funcDef
	exports []export
	data    []segment

	hasMemory bool
	memMin    uint32
	memMax    uint32
	memHasMax bool
}

// New returns an empty module.
func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(params, results []ValType) uint32 {
	for i, t := range m.types {
		if equal(t.params, params) && equal(t.results, results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

// Import adds a function import and returns its function index.
// All imports must be added before the first Func.
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: imports must precede function definitions")
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typeIdx: m.typeIndex(params, results)})
	return uint32(len(m.imports) - 1)
}

// Func adds a function definition and returns its function index.
// body is the instruction sequence without the trailing end opcode.
func (m *Module) Func(params, results, locals []ValType, body ...[]byte) uint32 {
	var code []byte
	for _, b := range body {
		code = append(code, b...)
	}
	m.funcs = append(m.funcs, funcDef{typeIdx: m.typeIndex(params, results), locals: locals, body: code})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// Export exports a function under name.
func (m *Module) Export(name string, funcIdx uint32) {
	m.exports = append(m.exports, export{name: name, kind: exportFunc, idx: funcIdx})
}

// Memory declares the module memory with minPages and exports it as name
// when name is not empty.
func (m *Module) Memory(minPages uint32, name string) {
	m.hasMemory = true
	m.memMin = minPages
	if name != "" {
		m.exports = append(m.exports, export{name: name, kind: exportMemory, idx: 0})
	}
}

// MaxPages caps the memory.
func (m *Module) MaxPages(maxPages uint32) {
	m.memMax = maxPages
	m.memHasMax = true
}

// Data adds an active data segment at offset.
func (m *Module) Data(offset uint32, data []byte) {
	m.data = append(m.data, segment{offset: offset, data: data})
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	if len(m.types) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.types)))
		for _, t := range m.types {
			s = append(s, 0x60)
			s = appendValTypes(s, t.params)
			s = appendValTypes(s, t.results)
		}
		out = appendSection(out, sectionType, s)
	}

	if len(m.imports) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.imports)))
		for _, imp := range m.imports {
			s = appendName(s, imp.module)
			s = appendName(s, imp.name)
			s = append(s, 0x00)
			s = appendU32(s, imp.typeIdx)
		}
		out = appendSection(out, sectionImport, s)
	}

	if len(m.funcs) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			s = appendU32(s, f.typeIdx)
		}
		out = appendSection(out, sectionFunction, s)
	}

	if m.hasMemory {
		var s []byte
		s = appendU32(s, 1)
		if m.memHasMax {
			s = append(s, 0x01)
			s = appendU32(s, m.memMin)
			s = appendU32(s, m.memMax)
		} else {
			s = append(s, 0x00)
			s = appendU32(s, m.memMin)
		}
		out = appendSection(out, sectionMemory, s)
	}

	if len(m.exports) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.exports)))
		for _, e := range m.exports {
			s = appendName(s, e.name)
			s = append(s, e.kind)
			s = appendU32(s, e.idx)
		}
		out = appendSection(out, sectionExport, s)
	}

	if len(m.funcs) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.funcs)))
		for _, f := range m.funcs {
			var fn []byte
			fn = appendU32(fn, uint32(len(f.locals)))
			for _, l := range f.locals {
				fn = appendU32(fn, 1)
				fn = append(fn, byte(l))
			}
			fn = append(fn, f.body...)
			fn = append(fn, opEnd)
			s = appendU32(s, uint32(len(fn)))
			s = append(s, fn...)
		}
		out = appendSection(out, sectionCode, s)
	}

	if len(m.data) > 0 {
		var s []byte
		s = appendU32(s, uint32(len(m.data)))
		for _, d := range m.data {
			s = append(s, 0x00)
			s = append(s, I32Const(int32(d.offset))...)
			s = append(s, opEnd)
			s = appendU32(s, uint32(len(d.data)))
			s = append(s, d.data...)
		}
		out = appendSection(out, sectionData, s)
	}

	return out
}

func appendSection(out []byte, id byte, contents []byte) []byte {
	out = append(out, id)
	out = appendU32(out, uint32(len(contents)))
	return append(out, contents...)
}

func appendValTypes(out []byte, types []ValType) []byte {
	out = appendU32(out, uint32(len(types)))
	for _, t := range types {
		out = append(out, byte(t))
	}
	return out
}

func appendName(out []byte, name string) []byte {
	out = appendU32(out, uint32(len(name)))
	return append(out, name...)
}

// appendU32 appends v as unsigned LEB128.
func appendU32(out []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

// appendS32 appends v as signed LEB128.
func appendS32(out []byte, v int32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func equal(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
