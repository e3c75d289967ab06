package services

import (
	"context"
	"sync"
	"testing"
)

// BenchmarkPipelineAssess benchmarks a full assessment of the two-account fixture.
func BenchmarkPipelineAssess(b *testing.B) {
	p := newTestPipeline(b, PipelineDeps{})
	req := fixtureRequest()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := p.Assess(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPipelineAssessConcurrent benchmarks concurrent assessments sharing one pipeline.
func BenchmarkPipelineAssessConcurrent(b *testing.B) {
	p := newTestPipeline(b, PipelineDeps{})
	req := fixtureRequest()

	var once sync.Once
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, _, err := p.Assess(ctx, req); err != nil {
				once.Do(func() { b.Error(err) })
				return
			}
		}
	})
}
