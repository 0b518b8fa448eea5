package dispatch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/gogpu/dispatch/vec"
)

type copyShader struct {
	Src   *testResource `dispatch:"readonly"`
	Dst   *testResource
	Count uint32
}

func mustLoader(t *testing.T, shape reflect.Type) *Loader {
	t.Helper()
	l, err := NewLoaderCache().Loader(shape)
	if err != nil {
		t.Fatalf("Loader(%v) error = %v", shape, err)
	}
	return l
}

func loadBuffers(l *Loader) ([]uintptr, []byte) {
	return make([]uintptr, l.Plan().ResourceCount), make([]byte, l.Plan().ConstantBufferSize)
}

func TestLoaderValidationOrder(t *testing.T) {
	dev := &testDevice{name: "gpu0"}
	other := &testDevice{name: "gpu1"}

	tests := []struct {
		name      string
		src       *testResource
		want      error
		wantCalls []string
	}{
		{
			name:      "live on device",
			src:       &testResource{device: dev, handle: 7},
			wantCalls: []string{"IsReleased", "BelongsTo", "DescriptorHandle"},
		},
		{
			name:      "released",
			src:       &testResource{device: dev, released: true},
			want:      ErrResourceReleased,
			wantCalls: []string{"IsReleased"},
		},
		{
			name:      "released on other device",
			src:       &testResource{device: other, released: true},
			want:      ErrResourceReleased,
			wantCalls: []string{"IsReleased"},
		},
		{
			name:      "live on other device",
			src:       &testResource{device: other},
			want:      ErrDeviceMismatch,
			wantCalls: []string{"IsReleased", "BelongsTo"},
		},
		{
			name:      "handle failure",
			src:       &testResource{device: dev, bindErr: errors.New("no descriptor heap")},
			want:      ErrResourceBinding,
			wantCalls: []string{"IsReleased", "BelongsTo", "DescriptorHandle"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustLoader(t, reflect.TypeFor[copyShader]())
			handles, values := loadBuffers(l)
			dst := &testResource{device: dev, handle: 9}

			err := l.Load(dev, &copyShader{Src: tt.src, Dst: dst}, handles, values)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Load() error = %v", err)
				}
			} else if !errors.Is(err, tt.want) {
				t.Fatalf("Load() error = %v, want %v", err, tt.want)
			}
			if !reflect.DeepEqual(tt.src.calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", tt.src.calls, tt.wantCalls)
			}
			if tt.want != nil && len(dst.calls) != 0 {
				t.Errorf("later member examined after failure: %v", dst.calls)
			}
		})
	}
}

func TestLoaderResourceError(t *testing.T) {
	dev := &testDevice{}
	l := mustLoader(t, reflect.TypeFor[copyShader]())
	handles, values := loadBuffers(l)

	shader := &copyShader{
		Src: &testResource{device: dev},
		Dst: &testResource{device: dev, released: true},
	}
	err := l.Load(dev, shader, handles, values)

	var re *ResourceError
	if !errors.As(err, &re) {
		t.Fatalf("Load() error = %v, want *ResourceError", err)
	}
	if re.Member != "Dst" || re.Shape != reflect.TypeFor[copyShader]() {
		t.Errorf("ResourceError = %+v, want member Dst", re)
	}
	if !errors.Is(err, ErrResourceReleased) {
		t.Error("ResourceError does not wrap ErrResourceReleased")
	}
}

func TestLoaderBindingFailures(t *testing.T) {
	dev := &testDevice{}
	inner := errors.New("descriptor heap full")

	tests := []struct {
		name   string
		shader any
		also   error
	}{
		{
			name:   "nil resource",
			shader: &copyShader{Dst: &testResource{device: dev}},
		},
		{
			name:   "nil interface",
			shader: &struct{ R Resource }{},
		},
		{
			name:   "typed nil in interface",
			shader: &struct{ R Resource }{R: (*testResource)(nil)},
		},
		{
			name:   "no descriptor handle",
			shader: &struct{ R unboundResource }{R: unboundResource{device: dev}},
		},
		{
			name:   "handle error",
			shader: &struct{ R *testResource }{R: &testResource{device: dev, bindErr: inner}},
			also:   inner,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustLoader(t, ShapeOf(tt.shader))
			handles, values := loadBuffers(l)
			err := l.Load(dev, tt.shader, handles, values)
			if !errors.Is(err, ErrResourceBinding) {
				t.Fatalf("Load() error = %v, want ErrResourceBinding", err)
			}
			if tt.also != nil && !errors.Is(err, tt.also) {
				t.Errorf("Load() error = %v, want it to wrap %v", err, tt.also)
			}
		})
	}
}

func TestLoaderBufferResource(t *testing.T) {
	dev := &testDevice{}
	type shader struct {
		Data *Buffer
	}
	l := mustLoader(t, reflect.TypeFor[shader]())
	handles, values := loadBuffers(l)

	buf := NewBuffer(&mockHALBuffer{handle: 0x1234}, dev, nil)
	if err := l.Load(dev, &shader{Data: buf}, handles, values); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if handles[0] != 0x1234 {
		t.Errorf("handles[0] = %#x, want 0x1234", handles[0])
	}

	buf.Release()
	if err := l.Load(dev, &shader{Data: buf}, handles, values); !errors.Is(err, ErrResourceReleased) {
		t.Errorf("Load() after Release = %v, want ErrResourceReleased", err)
	}
	if err := l.Load(&testDevice{}, &shader{Data: NewBuffer(&mockHALBuffer{}, dev, nil)}, handles, values); !errors.Is(err, ErrDeviceMismatch) {
		t.Errorf("Load() on other device = %v, want ErrDeviceMismatch", err)
	}
}

type valueShader struct {
	B    bool
	I    int32
	U    uint32
	F    float32
	M    mode
	D    float64
	L    int64
	V3   vec.Float3
	BV   vec.Bool3
	I2   vec.Int2
	Dbl2 vec.Double2
}

func TestLoaderValueEncoding(t *testing.T) {
	l := mustLoader(t, reflect.TypeFor[valueShader]())
	handles, values := loadBuffers(l)

	shader := valueShader{
		B:    true,
		I:    -5,
		U:    0xdeadbeef,
		F:    1.5,
		M:    3,
		D:    -2.25,
		L:    -1 << 40,
		V3:   vec.F3(1, 2, 3),
		BV:   vec.Bool3{true, false, true},
		I2:   vec.I2(-1, 7),
		Dbl2: vec.Double2{0.5, 8},
	}
	if err := l.Load(&testDevice{}, shader, handles, values); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	le := binary.LittleEndian
	at := func(name string) []byte {
		for _, pl := range l.Plan().Values() {
			if pl.Member == name {
				return values[pl.Offset : pl.Offset+pl.Size]
			}
		}
		t.Fatalf("no placement for %s", name)
		return nil
	}
	u32 := func(vs ...uint32) []byte {
		b := make([]byte, 4*len(vs))
		for i, v := range vs {
			le.PutUint32(b[i*4:], v)
		}
		return b
	}
	u64 := func(vs ...uint64) []byte {
		b := make([]byte, 8*len(vs))
		for i, v := range vs {
			le.PutUint64(b[i*8:], v)
		}
		return b
	}
	neg5 := int32(-5)
	negI := int32(-1)
	negL := int64(-1 << 40)

	tests := []struct {
		member string
		want   []byte
	}{
		{"B", u32(1)},
		{"I", u32(uint32(neg5))},
		{"U", u32(0xdeadbeef)},
		{"F", u32(math.Float32bits(1.5))},
		{"M", u32(3)},
		{"D", u64(math.Float64bits(-2.25))},
		{"L", u64(uint64(negL))},
		{"V3", u32(math.Float32bits(1), math.Float32bits(2), math.Float32bits(3))},
		{"BV", u32(1, 0, 1)},
		{"I2", u32(uint32(negI), 7)},
		{"Dbl2", u64(math.Float64bits(0.5), math.Float64bits(8))},
	}
	for _, tt := range tests {
		if got := at(tt.member); !bytes.Equal(got, tt.want) {
			t.Errorf("%s = % x, want % x", tt.member, got, tt.want)
		}
	}
}

func TestLoaderLeavesHeaderAndPadding(t *testing.T) {
	type padded struct {
		A float32
		B float32
		C vec.Float4
	}
	l := mustLoader(t, reflect.TypeFor[padded]())
	handles, values := loadBuffers(l)
	for i := range values {
		values[i] = 0xAA
	}

	if err := l.Load(&testDevice{}, &padded{A: 1, B: 2, C: vec.Splat(3)}, handles, values); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// A at [12:16], B at [16:20], C at [32:48]; the header and [20:32] are untouched.
	for _, r := range [][2]int{{0, 12}, {20, 32}} {
		for i := r[0]; i < r[1]; i++ {
			if values[i] != 0xAA {
				t.Fatalf("values[%d] = %#x, want untouched", i, values[i])
			}
		}
	}
}

func TestLoaderShaderForms(t *testing.T) {
	l := mustLoader(t, reflect.TypeFor[valueShader]())
	handles, values := loadBuffers(l)
	dev := &testDevice{}

	if err := l.Load(dev, &valueShader{U: 1}, handles, values); err != nil {
		t.Errorf("Load(pointer) error = %v", err)
	}
	if err := l.Load(dev, valueShader{U: 1}, handles, values); err != nil {
		t.Errorf("Load(value) error = %v", err)
	}
	if err := l.Load(dev, (*valueShader)(nil), handles, values); !errors.Is(err, ErrNilShader) {
		t.Errorf("Load(nil pointer) = %v, want ErrNilShader", err)
	}
	if err := l.Load(dev, nil, handles, values); !errors.Is(err, ErrNilShader) {
		t.Errorf("Load(nil) = %v, want ErrNilShader", err)
	}
	if err := l.Load(dev, &copyShader{}, handles, values); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Load(other shape) = %v, want ErrShapeMismatch", err)
	}
	if err := l.Load(dev, copyShader{}, handles, values); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Load(other shape value) = %v, want ErrShapeMismatch", err)
	}
	if err := l.Load(nil, &valueShader{}, handles, values); !errors.Is(err, ErrNilDevice) {
		t.Errorf("Load(nil device) = %v, want ErrNilDevice", err)
	}
	if err := l.Load(dev, &valueShader{}, handles, values[:8]); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("Load(short buffer) = %v, want ErrBufferTooSmall", err)
	}
}

func TestLoaderStatics(t *testing.T) {
	orig := sharedGain
	t.Cleanup(func() { sharedGain = orig })

	dev := &testDevice{}
	l := mustLoader(t, reflect.TypeFor[staticShader]())
	handles, values := loadBuffers(l)
	gainOffset := l.Plan().Placements[3].Offset

	shader := &staticShader{Out: &testResource{device: dev, handle: 3}, Level: 2}
	for _, gain := range []float32{0.5, 4} {
		sharedGain = gain
		if err := l.Load(dev, shader, handles, values); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		got := math.Float32frombits(binary.LittleEndian.Uint32(values[gainOffset:]))
		if got != gain {
			t.Errorf("Gain = %v, want %v", got, gain)
		}
	}
}
