package metadata

import (
	"encoding/binary"
	"testing"
)

func TestSpecializationMapEntriesFormula(t *testing.T) {
	var c SpecializationConstants
	n := c.Count()
	if n != 20+7*MaxShaderTextureStages {
		t.Fatalf("count = %d", n)
	}
	entries := SpecializationMapEntries(n)
	for i, e := range entries {
		if e.ConstantID != uint32(i) || e.Offset != uint32(i*4) || e.Size != 4 {
			t.Fatalf("entry %d = %+v", i, e)
		}
	}
	if len(c.Bytes()) != n*SpecializationElementSize {
		t.Fatalf("blob size = %d", len(c.Bytes()))
	}
}

func TestSpecializationBytesOrder(t *testing.T) {
	c := SpecializationConstants{LightingEnabled: 1, LightCount: 3}
	c.StageColorOp[0] = int32(TOP_MODULATE)
	b := c.Bytes()
	if binary.LittleEndian.Uint32(b[0:]) != 1 || binary.LittleEndian.Uint32(b[4:]) != 3 {
		t.Fatalf("leading constants wrong: %x", b[:8])
	}
	if binary.LittleEndian.Uint32(b[20*4:]) != uint32(TOP_MODULATE) {
		t.Fatalf("stage 0 colour op not at id 20")
	}
}
