package ffmpeg

import (
	"fmt"
	"strings"
)

// FilterBuilder helps construct ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// SelectFrame keeps only the frame with the given decode index
func (fb *FilterBuilder) SelectFrame(index int) *FilterBuilder {
	if index < 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf(`select=eq(n\,%d)`, index))
	return fb
}

// PixelFormat forces the output pixel format
func (fb *FilterBuilder) PixelFormat(format string) *FilterBuilder {
	if format == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+format)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}
