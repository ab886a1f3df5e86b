package primlong

import "testing"

// BenchmarkMap_Put exercises the hot path the sequence-number lookup table
// runs on every inbound/outbound message: a Put with no allocation beyond
// the occasional resize.
func BenchmarkMap_Put(b *testing.B) {
	m := New()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Put(int64(i), int64(i))
	}
}

func BenchmarkMap_Get(b *testing.B) {
	m := New()
	for i := int64(0); i < 10000; i++ {
		m.Put(i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Get(int64(i % 10000))
	}
}
