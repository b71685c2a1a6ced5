package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/wippyai/wasm-vm/wasm"
)

func TestBranch_CarriesArityValues(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := NewExecutor(NewStore(), DefaultOptions())
		s := e.stack
		s.Push(I32(-1))
		frame := &Frame{}
		s.Push(frame)

		depth := rapid.IntRange(0, 3).Draw(t, "depth")
		arity := rapid.IntRange(0, 3).Draw(t, "arity")
		s.Push(&Label{Arity: arity})
		target := s.Len() - 1

		for i := 0; i < depth; i++ {
			junk := rapid.IntRange(0, 3).Draw(t, "junk")
			for j := 0; j < junk; j++ {
				s.Push(I32(j))
			}
			s.Push(&Label{Arity: rapid.IntRange(0, 2).Draw(t, "innerArity")})
		}
		extra := rapid.IntRange(0, 3).Draw(t, "extra")
		for j := 0; j < extra; j++ {
			s.Push(I64(j))
		}
		want := []Entry{I32(-1), frame}
		for j := 0; j < arity; j++ {
			v := I32(rapid.Int32().Draw(t, "v"))
			s.Push(v)
			want = append(want, v)
		}

		exit, err := e.branch(depth)
		if err != nil {
			t.Fatalf("branch: %v", err)
		}
		if exit != (Exit{Kind: ExitBranch, Depth: depth}) {
			t.Fatalf("exit = %+v", exit)
		}
		if s.Len() != target+arity {
			t.Fatalf("depth %d, want %d", s.Len(), target+arity)
		}
		if diff := cmp.Diff(want, s.Entries()); diff != "" {
			t.Fatalf("stack mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestBrTable_SelectsDefault(t *testing.T) {
	e := NewExecutor(NewStore(), DefaultOptions())
	s := e.stack
	s.Push(&Frame{})
	s.Push(&Label{}) // L2
	s.Push(&Label{}) // L1
	s.Push(&Label{}) // L0
	s.Push(I32(5))

	in := wasm.Instruction{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0, 1}, Default: 2}}
	exit, err := execBrTable(e, &in)
	if err != nil {
		t.Fatalf("br_table: %v", err)
	}
	if exit != (Exit{Kind: ExitBranch, Depth: 2}) {
		t.Errorf("exit = %+v, want Branch(2)", exit)
	}
	if s.Len() != 1 {
		t.Errorf("stack has %d entries, want only the frame", s.Len())
	}
}

func TestBrTableTarget(t *testing.T) {
	labels := []uint32{10, 11, 12}
	tests := []struct {
		name string
		idx  uint32
		want uint32
	}{
		{"first", 0, 10},
		{"last", 2, 12},
		{"length", 3, 99},
		{"far beyond", 1 << 31, 99},
		{"max", ^uint32(0), 99},
	}
	for _, tt := range tests {
		if got := BrTableTarget(labels, 99, tt.idx); got != tt.want {
			t.Errorf("%s: BrTableTarget(%d) = %d, want %d", tt.name, tt.idx, got, tt.want)
		}
	}
}

func TestSelect_PopOrder(t *testing.T) {
	tests := []struct {
		name  string
		order SelectOrder
		cond  int32
		want  Value
	}{
		{"top on true, false", SelectTopOnTrue, 0, I32(200)},
		{"top on true, true", SelectTopOnTrue, 1, I32(100)},
		{"bottom on true, false", SelectBottomOnTrue, 0, I32(100)},
		{"bottom on true, true", SelectBottomOnTrue, 7, I32(200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Select = tt.order
			e := NewExecutor(NewStore(), opts)
			e.stack.PushValues([]Value{I32(200), I32(100), I32(tt.cond)})

			if _, err := execSelect(e, &wasm.Instruction{Opcode: wasm.OpSelect}); err != nil {
				t.Fatalf("select: %v", err)
			}
			if diff := cmp.Diff([]Entry{tt.want}, e.stack.Entries()); diff != "" {
				t.Errorf("stack mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelect_Underflow(t *testing.T) {
	e := NewExecutor(NewStore(), DefaultOptions())
	e.stack.PushValues([]Value{I32(1), I32(0)})
	if _, err := execSelect(e, &wasm.Instruction{Opcode: wasm.OpSelect}); !errors.Is(err, ErrTrap) {
		t.Errorf("expected trap, got %v", err)
	}
}

func TestReturn_UnwindsToFrame(t *testing.T) {
	e := NewExecutor(NewStore(), DefaultOptions())
	s := e.stack
	s.Push(I32(99))
	s.Push(&Frame{Arity: 2})
	s.Push(&Label{Arity: 0})
	s.Push(I32(1))
	s.Push(I32(2))

	exit, err := execReturn(e, &wasm.Instruction{Opcode: wasm.OpReturn})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if exit.Kind != ExitReturned {
		t.Errorf("exit = %+v, want Returned", exit)
	}
	if diff := cmp.Diff([]Entry{I32(99), I32(1), I32(2)}, s.Entries()); diff != "" {
		t.Errorf("stack mismatch (-want +got):\n%s", diff)
	}
}

func TestReturn_WithoutFrame(t *testing.T) {
	e := NewExecutor(NewStore(), DefaultOptions())
	if _, err := execReturn(e, &wasm.Instruction{Opcode: wasm.OpReturn}); !errors.Is(err, ErrTrap) {
		t.Errorf("expected trap, got %v", err)
	}
}

func TestUnreachable_LeavesStack(t *testing.T) {
	e := NewExecutor(NewStore(), DefaultOptions())
	e.stack.Push(&Frame{})
	e.stack.Push(I32(3))
	before := e.stack.Entries()

	_, err := execUnreachable(e, &wasm.Instruction{})
	if !errors.Is(err, ErrTrap) {
		t.Fatalf("expected trap, got %v", err)
	}
	if diff := cmp.Diff(before, e.stack.Entries()); diff != "" {
		t.Errorf("unreachable changed the stack (-want +got):\n%s", diff)
	}
}

func TestControlFlow(t *testing.T) {
	pair := int32(0) // type index of [] -> [i32 i32]
	tests := []struct {
		name    string
		results []wasm.ValType
		body    []wasm.Instruction
		want    []Value
	}{
		{
			name:    "block result",
			results: types(i32),
			body:    []wasm.Instruction{block(wasm.BlockTypeI32, i32c(4))},
			want:    []Value{I32(4)},
		},
		{
			name:    "br out of nested block",
			results: types(i32),
			body: []wasm.Instruction{
				block(wasm.BlockTypeI32,
					block(wasm.BlockTypeVoid, i32c(7), br(1)),
					i32c(8),
				),
			},
			want: []Value{I32(7)},
		},
		{
			name:    "br keeps only arity values",
			results: types(i32, i32),
			body: []wasm.Instruction{
				block(pair, i32c(1), i32c(2), i32c(3), br(0)),
			},
			want: []Value{I32(2), I32(3)},
		},
		{
			name:    "br_if not taken",
			results: types(i32),
			body: []wasm.Instruction{
				block(wasm.BlockTypeI32, i32c(1), i32c(0), brIf(0), op(wasm.OpDrop), i32c(2)),
			},
			want: []Value{I32(2)},
		},
		{
			name:    "return from inside loop",
			results: types(i32),
			body: []wasm.Instruction{
				loop(wasm.BlockTypeVoid, block(wasm.BlockTypeVoid, i32c(42), op(wasm.OpReturn))),
				i32c(0),
			},
			want: []Value{I32(42)},
		},
		{
			name:    "br to function label",
			results: types(i32),
			body:    []wasm.Instruction{i32c(5), br(0), i32c(6)},
			want:    []Value{I32(5)},
		},
		{
			name:    "if else",
			results: types(i32),
			body: []wasm.Instruction{
				i32c(0),
				ifElse(wasm.BlockTypeI32, []wasm.Instruction{i32c(1)}, []wasm.Instruction{i32c(2)}),
			},
			want: []Value{I32(2)},
		},
		{
			name:    "if without else",
			results: types(i32),
			body: []wasm.Instruction{
				i32c(3), i32c(0),
				ifElse(wasm.BlockTypeVoid, []wasm.Instruction{op(wasm.OpDrop), i32c(9)}, nil),
			},
			want: []Value{I32(3)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModule(DefaultOptions())
			m.inst.Types = append(m.inst.Types, sig(nil, types(i32, i32)))
			idx := m.addFunc(sig(nil, tt.results), nil, tt.body...)

			got, err := m.invoke(t, idx)
			if err != nil {
				t.Fatalf("invoke: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
			if m.exec.Stack().Len() != 0 {
				t.Errorf("stack left with %d entries", m.exec.Stack().Len())
			}
		})
	}
}

func TestLoop_Factorial(t *testing.T) {
	m := newTestModule(DefaultOptions())
	fac := m.addFunc(sig(types(i64), types(i64)), types(i64),
		i64c(1), localSet(1),
		block(wasm.BlockTypeVoid,
			loop(wasm.BlockTypeVoid,
				localGet(0), op(wasm.OpI64Eqz), brIf(1),
				localGet(1), localGet(0), op(wasm.OpI64Mul), localSet(1),
				localGet(0), i64c(1), op(wasm.OpI64Sub), localSet(0),
				br(0),
			),
		),
		localGet(1),
	)

	got, err := m.invoke(t, fac, I64(10))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if diff := cmp.Diff([]Value{I64(3628800)}, got); diff != "" {
		t.Errorf("fac(10) mismatch (-want +got):\n%s", diff)
	}
}

func TestCall_RecursiveFib(t *testing.T) {
	m := newTestModule(DefaultOptions())
	// fib(n) = n < 2 ? n : fib(n-1) + fib(n-2); the function is index 0.
	fib := m.addFunc(sig(types(i32), types(i32)), nil,
		localGet(0), i32c(2), op(wasm.OpI32LtS),
		ifElse(wasm.BlockTypeI32,
			[]wasm.Instruction{localGet(0)},
			[]wasm.Instruction{
				localGet(0), i32c(1), op(wasm.OpI32Sub), call(0),
				localGet(0), i32c(2), op(wasm.OpI32Sub), call(0),
				op(wasm.OpI32Add),
			},
		),
	)

	got, err := m.invoke(t, fib, I32(15))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if diff := cmp.Diff([]Value{I32(610)}, got); diff != "" {
		t.Errorf("fib(15) mismatch (-want +got):\n%s", diff)
	}
}

func TestCall_DepthLimit(t *testing.T) {
	m := newTestModule(Options{MaxCallDepth: 50})
	f := m.addFunc(sig(nil, nil), nil, call(0))

	_, err := m.invoke(t, f)
	if !errors.Is(err, ErrTrap) {
		t.Fatalf("expected trap, got %v", err)
	}
	if !strings.Contains(err.Error(), "call stack exhausted") {
		t.Errorf("error = %v", err)
	}
	if m.exec.Stack().Len() != 0 {
		t.Errorf("trap left %d stack entries", m.exec.Stack().Len())
	}
}

func TestCall_Host(t *testing.T) {
	m := newTestModule(DefaultOptions())
	double := m.addHost("double", sig(types(i32), types(i32)), func(_ context.Context, args []Value) ([]Value, error) {
		return []Value{args[0].(I32) * 2}, nil
	})
	failure := errors.New("boom")
	fail := m.addHost("fail", sig(nil, nil), func(context.Context, []Value) ([]Value, error) {
		return nil, failure
	})
	badResult := m.addHost("bad", sig(nil, types(i32)), func(context.Context, []Value) ([]Value, error) {
		return []Value{I64(1)}, nil
	})
	caller := m.addFunc(sig(types(i32), types(i32)), nil, localGet(0), call(double), i32c(1), op(wasm.OpI32Add))

	got, err := m.invoke(t, caller, I32(20))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if diff := cmp.Diff([]Value{I32(41)}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = m.invoke(t, fail)
	if !errors.Is(err, ErrTrap) || !errors.Is(err, failure) {
		t.Errorf("host error should trap and wrap the cause, got %v", err)
	}
	if _, err := m.invoke(t, badResult); !errors.Is(err, ErrTrap) {
		t.Errorf("mistyped host result should trap, got %v", err)
	}
}

func TestCallIndirect(t *testing.T) {
	m := newTestModule(DefaultOptions())
	target := m.addFunc(sig(nil, types(i32)), nil, i32c(77))
	other := m.addFunc(sig(nil, types(i64)), nil, i64c(1))

	tab := m.store.AllocTable(wasm.TableType{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 3}})
	m.inst.TableAddrs = append(m.inst.TableAddrs, tab)
	m.store.Tables[tab].Elems[0] = FuncRef(m.inst.FuncAddrs[target])
	m.store.Tables[tab].Elems[1] = FuncRef(m.inst.FuncAddrs[other])

	callIndirect := func(i int32) uint32 {
		return m.addFunc(sig(nil, types(i32)), nil,
			i32c(i),
			wasm.Instruction{Opcode: wasm.OpCallIndirect, Imm: wasm.CallIndirectImm{TypeIdx: 0}},
		)
	}

	got, err := m.invoke(t, callIndirect(0))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if diff := cmp.Diff([]Value{I32(77)}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name    string
		idx     int32
		wantErr string
	}{
		{"type mismatch", 1, "type mismatch"},
		{"null entry", 2, "uninitialized element"},
		{"out of range", 3, "undefined element"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.invoke(t, callIndirect(tt.idx))
			if !errors.Is(err, ErrTrap) {
				t.Fatalf("expected trap, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestInvoke_ArgumentCheck(t *testing.T) {
	m := newTestModule(DefaultOptions())
	f := m.addFunc(sig(types(i32), nil), nil)

	_, err := m.invoke(t, f, I64(1))
	if err == nil || errors.Is(err, ErrTrap) {
		t.Errorf("mistyped arguments should be rejected before execution, got %v", err)
	}
	if _, err := m.exec.Invoke(context.Background(), 1000, nil); err == nil {
		t.Error("out of range address should fail")
	}
}

func TestInvoke_TrapRestoresStack(t *testing.T) {
	m := newTestModule(DefaultOptions())
	f := m.addFunc(sig(nil, nil), nil,
		i32c(1), block(wasm.BlockTypeVoid, i32c(2), loop(wasm.BlockTypeVoid, i32c(3), op(wasm.OpUnreachable))),
	)
	if _, err := m.invoke(t, f); !errors.Is(err, ErrTrap) {
		t.Fatalf("expected trap, got %v", err)
	}
	if n := m.exec.Stack().Len(); n != 0 {
		t.Errorf("stack has %d entries after trap", n)
	}
}

func TestInvoke_TrapLogsFaultingOp(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	m := newTestModule(DefaultOptions())
	f := m.addFunc(sig(nil, types(i32)), nil,
		block(wasm.BlockTypeVoid, i32c(1), i32c(0), op(wasm.OpI32DivS), op(wasm.OpDrop)),
		i32c(0),
	)
	if _, err := m.invoke(t, f); !errors.Is(err, ErrTrap) {
		t.Fatalf("expected trap, got %v", err)
	}

	traps := logs.FilterMessage("trap").All()
	if len(traps) != 1 {
		t.Fatalf("got %d trap entries, want 1", len(traps))
	}
	if got := traps[0].ContextMap()["op"]; got != "i32.div_s" {
		t.Errorf("op = %v, want i32.div_s", got)
	}
}

func TestLogger_Default(t *testing.T) {
	if Logger() == nil {
		t.Fatal("Logger returned nil")
	}
	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger returned nil after reset")
	}
}
