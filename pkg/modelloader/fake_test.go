package modelloader

import (
	"fmt"
	"log/slog"

	"github.com/samcharles93/modelgate/internal/device"
)

type fakeTensor struct {
	size  int64
	dims  []int32
	dtype device.DType
}

// fakeRuntime is a scripted device runtime. fail maps an operation key,
// such as "InputDataShape/1", to the status that call returns.
type fakeRuntime struct {
	inputs      []fakeTensor
	outputs     []fakeTensor
	inputTypes  []device.DType
	parallelism int
	stackReq    uint64
	stackMB     uint32
	fail        map[string]device.Status

	calls     []string
	models    int
	functions int
	dims      int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		inputs: []fakeTensor{
			{size: 120, dims: []int32{4, 1, 3, 10}, dtype: device.DTypeUint8},
			{size: 512, dims: []int32{2, 64}, dtype: device.DTypeFloat16},
		},
		outputs: []fakeTensor{
			{size: 4000, dims: []int32{1, 1, 1, 1000}, dtype: device.DTypeFloat32},
		},
		parallelism: 4,
		stackReq:    100,
		stackMB:     64,
		fail:        map[string]device.Status{},
	}
}

func (f *fakeRuntime) record(key string) device.Status {
	f.calls = append(f.calls, key)
	if st, ok := f.fail[key]; ok {
		return st
	}
	return device.StatusSuccess
}

func (f *fakeRuntime) Name() string { return "fake" }

func (f *fakeRuntime) LoadModel(path string) (device.Model, device.Status) {
	if st := f.record("LoadModel"); !st.OK() {
		return 0, st
	}
	f.models++
	return 1, device.StatusSuccess
}

func (f *fakeRuntime) LoadModelFromMem(image []byte) (device.Model, device.Status) {
	if st := f.record("LoadModelFromMem"); !st.OK() {
		return 0, st
	}
	f.models++
	return 1, device.StatusSuccess
}

func (f *fakeRuntime) UnloadModel(device.Model) device.Status {
	st := f.record("UnloadModel")
	f.models--
	return st
}

func (f *fakeRuntime) CreateFunction() (device.Function, device.Status) {
	if st := f.record("CreateFunction"); !st.OK() {
		return 0, st
	}
	f.functions++
	return 7, device.StatusSuccess
}

func (f *fakeRuntime) ExtractFunction(device.Function, device.Model, string) device.Status {
	return f.record("ExtractFunction")
}

func (f *fakeRuntime) DestroyFunction(device.Function) device.Status {
	st := f.record("DestroyFunction")
	f.functions--
	return st
}

func (f *fakeRuntime) QueryModelParallelism(device.Model) (int, device.Status) {
	return f.parallelism, f.record("QueryModelParallelism")
}

func (f *fakeRuntime) QueryModelStackSize(device.Model) (uint64, device.Status) {
	return f.stackReq, f.record("QueryModelStackSize")
}

func (f *fakeRuntime) InputDataSize(device.Function) ([]int64, device.Status) {
	return sizesOf(f.inputs), f.record("InputDataSize")
}

func (f *fakeRuntime) OutputDataSize(device.Function) ([]int64, device.Status) {
	return sizesOf(f.outputs), f.record("OutputDataSize")
}

func (f *fakeRuntime) InputDataShape(_ device.Function, i int) (device.DimArray, device.Status) {
	return f.shape(fmt.Sprintf("InputDataShape/%d", i), f.inputs, i)
}

func (f *fakeRuntime) OutputDataShape(_ device.Function, i int) (device.DimArray, device.Status) {
	return f.shape(fmt.Sprintf("OutputDataShape/%d", i), f.outputs, i)
}

func (f *fakeRuntime) shape(key string, ts []fakeTensor, i int) (device.DimArray, device.Status) {
	if st := f.record(key); !st.OK() {
		return nil, st
	}
	f.dims++
	return &fakeDims{rt: f, dims: append([]int32(nil), ts[i].dims...)}, device.StatusSuccess
}

func (f *fakeRuntime) InputDataType(device.Function) ([]device.DType, device.Status) {
	if f.inputTypes != nil {
		return f.inputTypes, f.record("InputDataType")
	}
	return typesOf(f.inputs), f.record("InputDataType")
}

func (f *fakeRuntime) OutputDataType(device.Function) ([]device.DType, device.Status) {
	return typesOf(f.outputs), f.record("OutputDataType")
}

func (f *fakeRuntime) StackMem() (uint32, device.Status) {
	return f.stackMB, f.record("StackMem")
}

func (f *fakeRuntime) SetStackMem(mb uint32) device.Status {
	st := f.record("SetStackMem")
	if st.OK() {
		f.stackMB = mb
	}
	return st
}

type fakeDims struct {
	rt   *fakeRuntime
	dims []int32
}

func (d *fakeDims) Dims() []int32 { return d.dims }
func (d *fakeDims) Release()      { d.rt.dims-- }

func sizesOf(ts []fakeTensor) []int64 {
	out := make([]int64, len(ts))
	for i, t := range ts {
		out[i] = t.size
	}
	return out
}

func typesOf(ts []fakeTensor) []device.DType {
	out := make([]device.DType, len(ts))
	for i, t := range ts {
		out[i] = t.dtype
	}
	return out
}

func quiet() Option {
	return WithLogger(slog.New(slog.DiscardHandler))
}
