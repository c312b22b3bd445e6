// Package optimizer - Chooses and runs a bilateral filter implementation.
//
// Selection looks at image size, spatial sigma, feature flags and whether a
// GPU device is usable. Execution falls back transparently when the GPU path
// fails, so callers only ever see slower latency.
package optimizer

// Implementation identifies a bilateral filter backend.
type Implementation int

const (
	// Auto asks the optimizer to select. It is the zero value.
	Auto Implementation = iota
	// StandardCPU is the direct O(r²) CPU filter.
	StandardCPU
	// FastApproximation filters a downsampled copy and upsamples the result.
	FastApproximation
	// GPUVulkan runs the compute shader.
	GPUVulkan
)

func (i Implementation) String() string {
	switch i {
	case Auto:
		return "auto"
	case StandardCPU:
		return "standard_cpu"
	case FastApproximation:
		return "fast_approximation"
	case GPUVulkan:
		return "gpu_vulkan"
	default:
		return "unknown"
	}
}

// ParseImplementation maps a name produced by String back to its value.
// Unknown names yield Auto and false.
func ParseImplementation(s string) (Implementation, bool) {
	for _, impl := range []Implementation{Auto, StandardCPU, FastApproximation, GPUVulkan} {
		if impl.String() == s {
			return impl, true
		}
	}
	return Auto, false
}
