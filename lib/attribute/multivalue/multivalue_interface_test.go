package multivalue

import (
	"testing"

	"github.com/ValentinKolb/mvattr/lib/attribute"
	attrtesting "github.com/ValentinKolb/mvattr/lib/attribute/testing"
)

func Test(t *testing.T) {
	attrtesting.RunColumnTests(t, "Int32", func(name string, cfg attribute.Config) (attribute.Column[int32], error) {
		return New[int32](name, cfg, nil)
	})
	attrtesting.RunColumnTests(t, "Float64", func(name string, cfg attribute.Config) (attribute.Column[float64], error) {
		return New[float64](name, cfg, nil)
	})
	attrtesting.RunColumnTests(t, "Int8SmallChunks", func(name string, cfg attribute.Config) (attribute.Column[int8], error) {
		return New[int8](name, cfg, &Options{ChunkElems: 16})
	})
}

func Benchmark(b *testing.B) {
	attrtesting.RunColumnBenchmarks(b, "Int32", func(name string, cfg attribute.Config) (attribute.Column[int32], error) {
		return New[int32](name, cfg, nil)
	})
}
