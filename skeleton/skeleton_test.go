package skeleton_test

import (
	"testing"

	"github.com/oxyanim/animgraph/skeleton"
)

func chainSkeleton(t *testing.T, n int) *skeleton.Skeleton {
	t.Helper()
	bones := make([]skeleton.Bone, n)
	for i := range bones {
		parent := int32(i - 1)
		if i == 0 {
			parent = skeleton.InvalidBoneIndex
		}
		bones[i] = skeleton.Bone{Name: name(i), ParentIndex: parent}
	}
	return skeleton.New(bones)
}

func name(i int) string {
	return string(rune('a' + i))
}

func TestBoneIndexLookup(t *testing.T) {
	s := chainSkeleton(t, 5)
	idx, ok := s.BoneIndex("c")
	if !ok || idx != 2 {
		t.Fatalf("expected bone c at index 2, got %d ok=%v", idx, ok)
	}
	if _, ok := s.BoneIndex("missing"); ok {
		t.Fatalf("expected missing bone lookup to fail")
	}
}

func TestParentPrecedesChild(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-order parent index")
		}
	}()
	skeleton.New([]skeleton.Bone{
		{Name: "root", ParentIndex: 1},
		{Name: "child", ParentIndex: skeleton.InvalidBoneIndex},
	})
}

func TestRegisterAndLookupMask(t *testing.T) {
	s := chainSkeleton(t, 3)
	idx := s.RegisterMask("upper_body", []float32{1, 1, 0})
	got, ok := s.MaskByIndex(idx)
	if !ok || got.Name != "upper_body" {
		t.Fatalf("expected registered mask to round-trip, got %+v ok=%v", got, ok)
	}
	byName, ok := s.MaskIndex("upper_body")
	if !ok || byName != idx {
		t.Fatalf("expected mask index lookup by name to match, got %d ok=%v", byName, ok)
	}
}

func TestBoneIndexBitWidth(t *testing.T) {
	cases := []struct {
		bones int
		want  int
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{16, 4},
		{17, 5},
	}
	for _, c := range cases {
		s := chainSkeleton(t, c.bones)
		if got := s.BoneIndexBitWidth(); got != c.want {
			t.Errorf("bones=%d: got width %d want %d", c.bones, got, c.want)
		}
	}
}
