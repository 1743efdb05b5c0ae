package authcore

import (
	"context"
	"testing"

	"github.com/MrEthical07/authcore/permission"
)

func BenchmarkValidate(b *testing.B) {
	env := newTestEnv(b, nil)
	env.seed(b, "alice", "correct-horse", permission.BasicUser)
	resp, err := env.engine.Login(context.Background(), "alice", "correct-horse", rc)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := env.engine.Validate(context.Background(), resp.AccessToken)
		if err != nil || !res.IsValid {
			b.Fatalf("validate failed: %+v, %v", res, err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	env := newTestEnv(b, func(c *Config) { c.Refresh.MaxActivePerPrincipal = 0 })
	env.seed(b, "alice", "correct-horse", permission.BasicUser)
	resp, err := env.engine.Login(context.Background(), "alice", "correct-horse", rc)
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}
	token := resp.RefreshToken

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := env.engine.Refresh(context.Background(), token, rc)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		token = next.RefreshToken
	}
}

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricValidateSuccess)
		}
	})
}
