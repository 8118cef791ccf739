package ir

import "testing"

func TestBuildAllReduceIR_Rank0(t *testing.T) {
	p := BuildAllReduceIR(0)
	if p.InputChunkCount != 1 || p.OutputChunkCount != 1 {
		t.Fatalf("chunk counts = (%d,%d), want (1,1)", p.InputChunkCount, p.OutputChunkCount)
	}
	if len(p.Instructions) != 2 {
		t.Fatalf("len(Instructions) = %d, want 2", len(p.Instructions))
	}
	if p.Instructions[0].Op != D2H || len(p.Instructions[0].Deps) != 0 {
		t.Fatalf("instr0 = %+v, want a dependency-free D2H", p.Instructions[0])
	}
	if p.Instructions[1].Op != H2D || len(p.Instructions[1].Deps) != 1 {
		t.Fatalf("instr1 = %+v, want an H2D waiting on one dep", p.Instructions[1])
	}
}

func TestBuildAllReduceIR_Rank1(t *testing.T) {
	p := BuildAllReduceIR(1)
	if len(p.Instructions) != 3 {
		t.Fatalf("len(Instructions) = %d, want 3", len(p.Instructions))
	}
	ops := []OpCode{p.Instructions[0].Op, p.Instructions[1].Op, p.Instructions[2].Op}
	want := []OpCode{D2H, H2HReduce, H2D}
	for i := range ops {
		if ops[i] != want[i] {
			t.Fatalf("Instructions[%d].Op = %v, want %v", i, ops[i], want[i])
		}
	}
	if len(p.Instructions[1].Effects) != 1 || p.Instructions[1].Effects[0] != 0 {
		t.Fatalf("reduce instruction effects = %v, want [0] (unblocks rank 0's H2D)", p.Instructions[1].Effects)
	}
}

func TestBuildAllGatherIR_Symmetric(t *testing.T) {
	r0 := BuildAllGatherIR(0)
	r1 := BuildAllGatherIR(1)

	if r0.OutputChunkCount != 2 || r1.OutputChunkCount != 2 {
		t.Fatalf("OutputChunkCount = (%d,%d), want (2,2)", r0.OutputChunkCount, r1.OutputChunkCount)
	}
	if len(r0.Instructions) != 3 || len(r1.Instructions) != 3 {
		t.Fatalf("instruction counts = (%d,%d), want (3,3)", len(r0.Instructions), len(r1.Instructions))
	}
	// Rank 0 publishes its chunk as effect 0 and waits on effect-carrying
	// dep referencing chunk 1 (the peer's); rank 1 is the mirror image.
	if r0.Instructions[0].Effects[0] != 0 || r1.Instructions[0].Effects[0] != 1 {
		t.Fatalf("published effects = (%v,%v), want (0,1)", r0.Instructions[0].Effects, r1.Instructions[0].Effects)
	}
	if r0.Instructions[2].DstChunkIdx != 1 || r1.Instructions[2].DstChunkIdx != 0 {
		t.Fatalf("cross-rank H2D dst chunk = (%d,%d), want (1,0)", r0.Instructions[2].DstChunkIdx, r1.Instructions[2].DstChunkIdx)
	}
}

func TestOpCodeString(t *testing.T) {
	cases := map[OpCode]string{D2H: "D2H", D2D: "D2D", H2D: "H2D", H2HReduce: "H2H_REDUCE"}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("OpCode(%d).String() = %q, want %q", op, got, want)
		}
	}
}
