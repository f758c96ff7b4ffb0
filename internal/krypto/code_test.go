package krypto_test

import (
	"testing"

	"github.com/evdwaal/staylink/internal/krypto"
)

func Test_GenerateCode(t *testing.T) {
	t.Run("ok, always n digits", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			code, err := krypto.GenerateCode(krypto.CodeLen)
			if err != nil {
				t.Fatalf("failed to generate code: %v", err)
			}

			if len(code) != krypto.CodeLen {
				t.Fatalf("got code %q of length %d, want %d", code, len(code), krypto.CodeLen)
			}

			for _, r := range code {
				if r < '0' || r > '9' {
					t.Fatalf("code %q contains non-digit %q", code, r)
				}
			}
		}
	})

	t.Run("fail, non-positive length", func(t *testing.T) {
		if _, err := krypto.GenerateCode(0); err == nil {
			t.Fatal("expected error for zero length")
		}
	})
}
