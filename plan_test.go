package dispatch

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gogpu/dispatch/vec"
)

func mustPlan(t *testing.T, shape reflect.Type) *Plan {
	t.Helper()
	members, err := Members(shape)
	if err != nil {
		t.Fatalf("Members(%v) error = %v", shape, err)
	}
	plan, err := BuildPlan(shape, members)
	if err != nil {
		t.Fatalf("BuildPlan(%v) error = %v", shape, err)
	}
	return plan
}

// offsets returns the value offsets of plan, in member order.
func offsets(plan *Plan) []int {
	var out []int
	for _, pl := range plan.Values() {
		out = append(out, pl.Offset)
	}
	return out
}

func TestPackOffset(t *testing.T) {
	tests := []struct {
		offset, size, want int
	}{
		{12, 4, 12},
		{12, 8, 16},
		{12, 12, 16},
		{12, 16, 16},
		{16, 16, 16},
		{20, 12, 20},
		{24, 8, 24},
		{28, 8, 32},
		{16, 32, 16},
		{20, 32, 32},
	}
	for _, tt := range tests {
		if got := packOffset(tt.offset, tt.size); got != tt.want {
			t.Errorf("packOffset(%d, %d) = %d, want %d", tt.offset, tt.size, got, tt.want)
		}
	}
}

func TestBuildPlanValues(t *testing.T) {
	tests := []struct {
		name    string
		shape   reflect.Type
		offsets []int
		size    int
	}{
		{
			name:  "empty",
			shape: reflect.TypeFor[struct{}](),
			size:  12,
		},
		{
			name:    "scalar fills first row",
			shape:   reflect.TypeFor[struct{ A float32 }](),
			offsets: []int{12},
			size:    16,
		},
		{
			name: "two scalars",
			shape: reflect.TypeFor[struct {
				A float32
				B float32
			}](),
			offsets: []int{12, 16},
			size:    20,
		},
		{
			name:    "double moves to next row",
			shape:   reflect.TypeFor[struct{ A float64 }](),
			offsets: []int{16},
			size:    24,
		},
		{
			name: "float3 fits after two scalars",
			shape: reflect.TypeFor[struct {
				A float32
				B float32
				C vec.Float3
			}](),
			offsets: []int{12, 16, 20},
			size:    32,
		},
		{
			name: "float2 pair ends on row boundary",
			shape: reflect.TypeFor[struct {
				A vec.Float2
				B vec.Float2
			}](),
			offsets: []int{16, 24},
			size:    32,
		},
		{
			name: "float4 after scalar",
			shape: reflect.TypeFor[struct {
				A float32
				B float32
				C vec.Float4
			}](),
			offsets: []int{12, 16, 32},
			size:    48,
		},
		{
			name: "mixed",
			shape: reflect.TypeFor[struct {
				A float32
				B vec.Float3
				C bool
				D float64
				E vec.Float2
			}](),
			offsets: []int{12, 16, 28, 32, 40},
			size:    48,
		},
		{
			name: "wide value stays on aligned row",
			shape: reflect.TypeFor[struct {
				A float32
				B vec.Double4
			}](),
			offsets: []int{12, 16},
			size:    48,
		},
		{
			name: "bools are words",
			shape: reflect.TypeFor[struct {
				A bool
				B vec.Bool3
			}](),
			offsets: []int{12, 16},
			size:    28,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := mustPlan(t, tt.shape)
			if got := offsets(plan); !reflect.DeepEqual(got, tt.offsets) {
				t.Errorf("offsets = %v, want %v", got, tt.offsets)
			}
			if plan.ConstantBufferSize != tt.size {
				t.Errorf("ConstantBufferSize = %d, want %d", plan.ConstantBufferSize, tt.size)
			}
			if plan.ResourceCount != 0 {
				t.Errorf("ResourceCount = %d, want 0", plan.ResourceCount)
			}
		})
	}
}

func TestBuildPlanNoValueStraddlesRow(t *testing.T) {
	plan := mustPlan(t, reflect.TypeFor[struct {
		A bool
		B vec.Float3
		C float64
		D vec.Int2
		E uint32
		F vec.Float4
		G int64
		H vec.Uint3
	}]())
	prevEnd := DimensionsSize
	for _, pl := range plan.Values() {
		if pl.Offset < prevEnd {
			t.Errorf("%s at %d overlaps previous value ending at %d", pl.Member, pl.Offset, prevEnd)
		}
		if start := pl.Offset % RowSize; start+pl.Size > RowSize {
			t.Errorf("%s [%d:%d] straddles a row", pl.Member, pl.Offset, pl.Offset+pl.Size)
		}
		prevEnd = pl.Offset + pl.Size
	}
	if plan.ConstantBufferSize != prevEnd {
		t.Errorf("ConstantBufferSize = %d, want %d", plan.ConstantBufferSize, prevEnd)
	}
}

func TestBuildPlanResources(t *testing.T) {
	plan := mustPlan(t, reflect.TypeFor[struct {
		A *Buffer
		B Resource
		C *testResource `dispatch:"readonly"`
	}]())

	if plan.ResourceCount != 3 {
		t.Fatalf("ResourceCount = %d, want 3", plan.ResourceCount)
	}
	if plan.ConstantBufferSize != DimensionsSize {
		t.Errorf("ConstantBufferSize = %d, want %d", plan.ConstantBufferSize, DimensionsSize)
	}
	for i, pl := range plan.Resources() {
		if pl.Slot != i {
			t.Errorf("%s slot = %d, want %d", pl.Member, pl.Slot, i)
		}
	}
	if !plan.Placements[2].ReadOnly {
		t.Error("C not read-only")
	}
}

func TestBuildPlanInterleaved(t *testing.T) {
	plan := mustPlan(t, reflect.TypeFor[struct {
		In    *Buffer
		Scale float32
		Out   Resource
		Count uint32
		Tint  vec.Float4
	}]())

	want := []Placement{
		{Member: "In", Class: ClassResource, Slot: 0},
		{Member: "Scale", Class: ClassValue, Offset: 12, Size: 4},
		{Member: "Out", Class: ClassResource, Slot: 1},
		{Member: "Count", Class: ClassValue, Offset: 16, Size: 4},
		{Member: "Tint", Class: ClassValue, Offset: 32, Size: 16},
	}
	if !reflect.DeepEqual(plan.Placements, want) {
		t.Errorf("Placements = %+v\nwant %+v", plan.Placements, want)
	}
	if plan.ResourceCount != 2 || plan.ConstantBufferSize != 48 {
		t.Errorf("ResourceCount = %d, ConstantBufferSize = %d, want 2, 48",
			plan.ResourceCount, plan.ConstantBufferSize)
	}
}

func TestBuildPlanInvalidMember(t *testing.T) {
	type bad struct {
		Scale float32
		Count int
	}
	shape := reflect.TypeFor[bad]()
	members, err := Members(shape)
	if err != nil {
		t.Fatal(err)
	}

	_, err = BuildPlan(shape, members)
	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("BuildPlan() error = %v, want *ClassificationError", err)
	}
	if ce.Member != "Count" || ce.Type != reflect.TypeFor[int]() {
		t.Errorf("ClassificationError = %+v", ce)
	}
	if !errors.Is(err, ErrInvalidMember) {
		t.Error("error does not wrap ErrInvalidMember")
	}
	if !strings.Contains(err.Error(), "Count") {
		t.Errorf("Error() = %q, want member name", err.Error())
	}
}

func TestPlanString(t *testing.T) {
	plan := mustPlan(t, reflect.TypeFor[struct {
		Out   *Buffer
		Scale float32
	}]())
	s := plan.String()
	for _, want := range []string{"1 resources", "16 constant bytes", "slot 0: Out", "[12:16] Scale"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}
