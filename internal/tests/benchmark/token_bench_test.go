package benchmark

import (
	"context"
	"testing"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/pkg/token"
)

// BenchmarkTokenGenerate benchmarks raw token generation.
func BenchmarkTokenGenerate(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := token.GenerateWithPrefix(domain.SessionPrefix); err != nil {
			b.Fatalf("Generate failed: %v", err)
		}
	}
}

// BenchmarkTokenGenerateParallel benchmarks parallel token generation.
func BenchmarkTokenGenerateParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := token.GenerateWithPrefix(domain.SessionPrefix); err != nil {
				b.Fatalf("Generate failed: %v", err)
			}
		}
	})
}

// BenchmarkAuthorityIssueEphemeral benchmarks pairing token issuance.
func BenchmarkAuthorityIssueEphemeral(b *testing.B) {
	a := newAuthority()
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := a.IssueEphemeral(ctx); err != nil {
			b.Fatalf("IssueEphemeral failed: %v", err)
		}
	}
	reportMemory(b, "heap")
}

// BenchmarkAuthorityExchange benchmarks the full pairing flow: issue then
// exchange.
func BenchmarkAuthorityExchange(b *testing.B) {
	a := newAuthority()
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		eph, err := a.IssueEphemeral(ctx)
		if err != nil {
			b.Fatalf("IssueEphemeral failed: %v", err)
		}
		if _, err := a.Exchange(ctx, eph.Value); err != nil {
			b.Fatalf("Exchange failed: %v", err)
		}
	}
}

// BenchmarkAuthorityValidateSession benchmarks session validation against
// a populated store.
func BenchmarkAuthorityValidateSession(b *testing.B) {
	runWithCounts(b, "tokens", TokenCounts, func(b *testing.B, count int) {
		a := newAuthority()
		sessions := prefillSessions(b, a, count)
		ctx := context.Background()

		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if !a.ValidateSession(ctx, sessions[i%len(sessions)]) {
				b.Fatal("session rejected")
			}
		}
	})
}

// BenchmarkAuthorityValidateSessionParallel benchmarks concurrent
// validation, as done by the realtime hub and upload route at once.
func BenchmarkAuthorityValidateSessionParallel(b *testing.B) {
	a := newAuthority()
	sessions := prefillSessions(b, a, 10000)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if !a.ValidateSession(ctx, sessions[i%len(sessions)]) {
				b.Fatal("session rejected")
			}
			i++
		}
	})
}

// BenchmarkAuthorityLookupMiss benchmarks rejection of unknown values.
func BenchmarkAuthorityLookupMiss(b *testing.B) {
	a := newAuthority()
	prefillSessions(b, a, 10000)
	unknown, _ := token.GenerateWithPrefix(domain.SessionPrefix)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if a.Lookup(unknown, domain.TokenKindSession).Status != domain.LookupNotFound {
			b.Fatal("unknown token found")
		}
	}
}
