package domain

import "testing"

func TestChooseResampling(t *testing.T) {
	tests := []struct {
		name      string
		dimension Dimension
		pixelType string
		want      Resampling
	}{
		{"status wins over float type", DimensionStatus, "Float32", ResampleNearest},
		{"status wins over header code", DimensionStatus, "FLT4S", ResampleNearest},
		{"no dimension, int type", DimensionNone, "Int16", ResampleNearest},
		{"no dimension, header int code", DimensionNone, "INT2S", ResampleNearest},
		{"no dimension, byte type", DimensionNone, "Byte", ResampleNearest},
		{"no dimension, float type", DimensionNone, "Float32", ResampleAverage},
		{"continuous dimension, float type", DimensionDomainScore, "FLT4S", ResampleAverage},
		{"continuous dimension defers to int type", DimensionResilience, "Int32", ResampleNearest},
		{"no signal at all", DimensionNone, "", ResampleAverage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChooseResampling(tt.dimension, tt.pixelType); got != tt.want {
				t.Errorf("ChooseResampling(%q, %q) = %q, want %q",
					tt.dimension, tt.pixelType, got, tt.want)
			}
		})
	}
}

func TestResamplingForDimensionOnlyCategoricalDecides(t *testing.T) {
	if _, ok := ResamplingForDimension(DimensionDomainScore); ok {
		t.Error("continuous dimension should not carry a decision")
	}
	r, ok := ResamplingForDimension(DimensionStatus)
	if !ok || r != ResampleNearest {
		t.Errorf("status dimension = (%q, %v), want (nearest, true)", r, ok)
	}
}
