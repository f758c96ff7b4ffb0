package krypto_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/evdwaal/staylink/internal/krypto"
)

func Test_GenerateToken(t *testing.T) {
	t.Run("ok, tokens are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			tok, err := krypto.GenerateToken()
			if err != nil {
				t.Fatalf("failed to generate token: %v", err)
			}

			if seen[tok.String()] {
				t.Fatalf("duplicate token generated: %s", tok)
			}
			seen[tok.String()] = true
		}
	})

	t.Run("ok, string roundtrip", func(t *testing.T) {
		tok, err := krypto.GenerateToken()
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		got, err := krypto.ParseToken(tok.String())
		if err != nil {
			t.Fatalf("failed to parse token: %v", err)
		}

		if got != tok {
			t.Errorf("got %v want %v", got, tok)
		}
	})
}

func Test_ParseToken(t *testing.T) {
	failTests := map[string]string{
		"fail, empty":             "",
		"fail, too short":         "abc",
		"fail, too long":          strings.Repeat("a", 44),
		"fail, invalid alphabet":  strings.Repeat("?", 43),
		"fail, standard base64 +": "+" + strings.Repeat("a", 42),
	}

	for name, raw := range failTests {
		t.Run(name, func(t *testing.T) {
			_, err := krypto.ParseToken(raw)
			if !errors.Is(err, krypto.ErrInvalidToken) {
				t.Fatalf("expected error %v, got %v (via errors.Is)", krypto.ErrInvalidToken, err)
			}
		})
	}
}

func Test_Token_LogValue(t *testing.T) {
	tok, err := krypto.GenerateToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if got := tok.LogValue().String(); got != krypto.SecretMarker {
		t.Errorf("token leaked into log value: %s", got)
	}
}
