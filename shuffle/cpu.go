package shuffle

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Capabilities describes the vector support detected on the running host and
// the shuffle path this package uses on it.
type Capabilities struct {
	// Arch is runtime.GOARCH.
	Arch string
	// SIMDWidth is the widest vector register width in bytes the CPU reports
	// (64 for AVX-512, 32 for AVX2, 16 for SSE2/NEON, 8 when only general
	// purpose registers are available).
	SIMDWidth int
	// Features lists the detected vector extensions, widest last.
	Features []string
	// Path names the shuffle implementation in use.
	Path string
}

// CheckCapabilities probes the CPU feature flags.
func CheckCapabilities() Capabilities {
	c := Capabilities{
		Arch:      runtime.GOARCH,
		SIMDWidth: 8,
		Path:      "swar64",
	}

	switch {
	case cpu.X86.HasSSE2:
		c.Features = append(c.Features, "sse2")
		c.SIMDWidth = 16
		if cpu.X86.HasAVX2 {
			c.Features = append(c.Features, "avx2")
			c.SIMDWidth = 32
		}
		if cpu.X86.HasAVX512F {
			c.Features = append(c.Features, "avx512f")
			c.SIMDWidth = 64
		}
	case cpu.ARM64.HasASIMD:
		c.Features = append(c.Features, "asimd")
		c.SIMDWidth = 16
	}

	return c
}
