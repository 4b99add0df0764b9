package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceType(t *testing.T) {
	assert.Equal(t, "CPU", CPU.DeviceType())
	assert.Equal(t, "CUDA", CUDA.DeviceType())
	assert.Equal(t, "CPU", QuantizedCPU.DeviceType())
	assert.Equal(t, "CUDA", QuantizedCUDA.DeviceType())
	assert.Equal(t, "Vulkan", Vulkan.DeviceType())
}

func TestIsCUDA(t *testing.T) {
	assert.False(t, CPU.IsCUDA())
	assert.True(t, CUDA.IsCUDA())
	assert.False(t, QuantizedCPU.IsCUDA())
	assert.True(t, QuantizedCUDA.IsCUDA())
	assert.False(t, Vulkan.IsCUDA())
}

func TestPairsOrder(t *testing.T) {
	pairs := Pairs(false)
	want := []Pair{
		{CPU, Dense}, {CPU, Sparse}, {CPU, Mkldnn},
		{CUDA, Dense}, {CUDA, Sparse},
		{QuantizedCPU, Dense}, {QuantizedCUDA, Dense},
	}
	require.Equal(t, want, pairs)

	// Mkldnn never pairs with a non-CPU backend.
	for _, pair := range pairs {
		if pair.Density == Mkldnn {
			assert.Equal(t, CPU, pair.Backend)
		}
	}
}

func TestPairsVulkan(t *testing.T) {
	withoutVulkan := Pairs(false)
	withVulkan := Pairs(true)
	require.Len(t, withVulkan, len(withoutVulkan)+1)
	assert.Equal(t, Pair{Vulkan, Dense}, withVulkan[len(withVulkan)-1])
}

func TestNames(t *testing.T) {
	assert.Equal(t, "CPU", Pair{CPU, Dense}.FullName())
	assert.Equal(t, "SparseCUDA", Pair{CUDA, Sparse}.FullName())
	assert.Equal(t, "MkldnnCPUType", Pair{CPU, Mkldnn}.TypeName())
	assert.Equal(t, "QuantizedCPUType", Pair{QuantizedCPU, Dense}.TypeName())
}
