// Package wasm provides WebAssembly binary format parsing and encoding.
//
// The decoder covers the core module format: type, import, function,
// table, memory, global, export, start, element, data count, code, data
// and custom sections. Function bodies and constant expressions are
// decoded into structured instruction trees, so block, loop and if carry
// their nested bodies and the engine never sees raw bytecode.
//
// # Parsing
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Parse with structural validation:
//
//	module, err := wasm.ParseModuleValidate(data)
//
// # Building and encoding
//
// Modules can be built in Go and encoded; tests use this to produce
// binaries without a text-format toolchain:
//
//	m := &wasm.Module{
//	    Types: []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
//	    Funcs: []uint32{0},
//	    Code: []wasm.FuncBody{{Body: []wasm.Instruction{
//	        {Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 42}},
//	    }}},
//	    Exports: []wasm.Export{{Name: "answer", Kind: wasm.KindFunc}},
//	}
//	bin := m.Encode()
//
// # Instructions
//
// Instruction.Body holds the body of block and loop and the then-arm of
// if; Instruction.Else holds the else-arm. Immediates are typed values in
// Instruction.Imm (BlockImm, BranchImm, MemoryImm, SIMDImm, ...).
//
//	instrs, err := wasm.DecodeExpr(code)
//	encoded := wasm.EncodeExpr(instrs)
//
// # Validation
//
// Module.Validate checks index spaces, export uniqueness, the start
// function signature and limits. Type checking of instruction sequences
// is done by the validate package.
package wasm
