package parsers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/tensorgen/internal/declarations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

const nativeSample = `
- func: add.Tensor(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor
  variants: function, method
  dispatch:
    CPU: add_cpu
    CUDA: add_cuda

- func: add_.Tensor(Tensor(a!) self, Tensor other) -> Tensor(a!)
  variants: method
  dispatch:
    CPU: add__cpu

- func: empty.memory_format(int[] size, *, TensorOptions options={}) -> Tensor

- func: max.dim(Tensor self, int dim) -> (Tensor values, Tensor indices)
  dispatch:
    CPU: max_dim_cpu
    SparseCPU: max_dim_sparse_cpu
`

func TestParseNative(t *testing.T) {
	path := writeFile(t, "native_functions.yaml", nativeSample)
	decls, err := ParseNative(path)
	require.NoError(t, err)
	require.Len(t, decls, 4)

	add := decls[0]
	assert.Equal(t, "add", add.Name)
	assert.Equal(t, "aten::add", add.OperatorName)
	assert.Equal(t, "Tensor", add.OverloadName)
	assert.Equal(t, "aten::add.Tensor(Tensor self, Tensor other, *, Scalar alpha=1) -> Tensor", add.SchemaString)
	assert.Equal(t, []string{"function", "method"}, add.Variants)
	assert.Equal(t, []string{"CPU", "CUDA"}, add.Backends)
	require.Len(t, add.Arguments, 3)
	assert.Equal(t, declarations.Argument{Name: "self", Type: "Tensor"}, add.Arguments[0])
	alpha := add.Arguments[2]
	assert.Equal(t, "alpha", alpha.Name)
	assert.True(t, alpha.HasDefault)
	assert.Equal(t, "1", alpha.Default)
	assert.True(t, alpha.KwargOnly)
	assert.False(t, add.Inplace)

	inplace := decls[1]
	assert.True(t, inplace.Inplace)
	assert.True(t, inplace.Arguments[0].IsOutput)
	assert.Equal(t, "Tensor", inplace.Arguments[0].Type)

	factory := decls[2]
	assert.Empty(t, factory.Backends)
	assert.Equal(t, "TensorOptions", factory.Arguments[1].Type)

	maxDim := decls[3]
	require.Len(t, maxDim.Returns, 2)
	assert.Equal(t, "values", maxDim.Returns[0].Name)
	assert.Equal(t, "indices", maxDim.Returns[1].Name)
	assert.Equal(t, []string{"CPU", "SparseCPU"}, maxDim.Backends)
	assert.Equal(t, []string{"Dense", "Sparse"}, maxDim.Densities)
}

const cwrapSample = `
# legacy wrapper declarations
[[
name: _th_addmv
cname: addmv
backends:
  - CPU
  - CUDA
variants:
  - function
return: argument 0
arguments:
  - THTensor* self
  - THTensor* mat
  - THTensor* vec
  - real beta=1
]]

some unrelated text between blocks

[[
name: _th_dot
cname: dot
backends:
  - CPU
return: accreal
arguments:
  - THTensor* self
  - THTensor* tensor
]]
`

func TestParseCwrap(t *testing.T) {
	path := writeFile(t, "Declarations.cwrap", cwrapSample)
	decls, err := ParseCwrap(path)
	require.NoError(t, err)
	require.Len(t, decls, 2)

	addmv := decls[0]
	assert.Equal(t, "_th_addmv", addmv.Name)
	assert.True(t, addmv.Legacy)
	assert.True(t, addmv.Inplace) // returns argument 0
	assert.True(t, addmv.Arguments[0].IsOutput)
	assert.Equal(t, []string{"CPU", "CUDA"}, addmv.Backends)
	assert.Equal(t, "Tensor", addmv.Arguments[0].Type)
	assert.Equal(t, "Scalar", addmv.Arguments[3].Type)
	assert.True(t, addmv.Arguments[3].HasDefault)
	assert.Equal(t, "addmv", addmv.KernelFor("CPU"))

	dot := decls[1]
	assert.Equal(t, "Scalar", dot.Returns[0].Type)
	assert.False(t, dot.Inplace)
}

const nnSample = `
- name: _thnn_elu(Tensor self, Scalar alpha=1)
  cname: ELU

- name: _thnn_conv2d(Tensor self, Tensor weight, int[] kernel_size)
  cname: SpatialConvolutionMM
  buffers:
    - finput
    - fgrad_input
`

func TestParseNN(t *testing.T) {
	path := writeFile(t, "nn.yaml", nnSample)
	decls, err := ParseNN(path)
	require.NoError(t, err)
	// Each module yields a forward and a backward declaration.
	require.Len(t, decls, 4)

	elu := decls[0]
	assert.Equal(t, "_thnn_elu", elu.Name)
	assert.True(t, elu.Legacy)
	assert.Equal(t, "ELU_updateOutput", elu.KernelFor("CPU"))
	require.Len(t, elu.Returns, 1)
	assert.Equal(t, "Tensor", elu.Returns[0].Type)

	eluBackward := decls[1]
	assert.Equal(t, "_thnn_elu_backward", eluBackward.Name)
	assert.Equal(t, "ELU_updateGradInput", eluBackward.KernelFor("CUDA"))
	require.NotEmpty(t, eluBackward.Arguments)
	assert.Equal(t, "grad_output", eluBackward.Arguments[0].Name)
	// The forward's alpha default does not carry over.
	alpha := eluBackward.Arguments[len(eluBackward.Arguments)-1]
	assert.Equal(t, "alpha", alpha.Name)
	assert.False(t, alpha.HasDefault)
	assert.Equal(t, "grad_input", eluBackward.Returns[0].Name)

	conv := decls[2]
	assert.Equal(t, []string{"finput", "fgrad_input"}, conv.Buffers)
	assert.Equal(t, "_thnn_conv2d_backward", decls[3].Name)
}

func TestParseNNHeaderYieldsNothing(t *testing.T) {
	path := writeFile(t, "THNN.h", "void THNN_FloatELU_updateOutput(void);\n")
	decls, err := ParseNN(path)
	require.NoError(t, err)
	assert.Empty(t, decls)
}

func TestParseFilesRouting(t *testing.T) {
	native := writeFile(t, "native_functions.yaml", nativeSample)
	cwrap := writeFile(t, "Declarations.cwrap", cwrapSample)
	nn := writeFile(t, "nn.yaml", nnSample)
	unknown := writeFile(t, "notes.txt", "nothing")

	decls, err := ParseFiles([]string{cwrap, nn, native, unknown})
	require.NoError(t, err)
	// Input order preserved: cwrap, nn, then native.
	require.Len(t, decls, 10)
	assert.Equal(t, "_th_addmv", decls[0].Name)
	assert.Equal(t, "_thnn_elu", decls[2].Name)
	assert.Equal(t, "add", decls[6].Name)
}
