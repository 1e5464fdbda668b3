package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func newTestIssuer(t *testing.T, key *rsa.PrivateKey) *Issuer {
	t.Helper()
	iss, err := NewIssuer(context.Background(), key, Options{
		Issuer:     "dataviz",
		AccessTTL:  5 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewIssuer() ошибка: %v", err)
	}
	return iss
}

func TestIssuePair_RoundTrip(t *testing.T) {
	iss := newTestIssuer(t, generateTestKey(t))
	ctx := context.Background()

	pair, err := iss.IssuePair(42, "alice")
	if err != nil {
		t.Fatalf("IssuePair() ошибка: %v", err)
	}

	claims, err := iss.Parse(ctx, pair.Access, TokenAccess)
	if err != nil {
		t.Fatalf("Parse(access) ошибка: %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Errorf("UserID() = %d, %v; хотели 42", id, err)
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q", claims.Username)
	}
	if claims.ID == "" {
		t.Error("jti не установлен")
	}

	if _, err := iss.Parse(ctx, pair.Refresh, TokenRefresh); err != nil {
		t.Errorf("Parse(refresh) ошибка: %v", err)
	}
}

func TestParse_WrongTokenType(t *testing.T) {
	iss := newTestIssuer(t, generateTestKey(t))
	ctx := context.Background()

	pair, err := iss.IssuePair(1, "bob")
	if err != nil {
		t.Fatalf("IssuePair() ошибка: %v", err)
	}

	if _, err := iss.Parse(ctx, pair.Refresh, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh как access: ошибка = %v, хотели ErrInvalidToken", err)
	}
	if _, err := iss.Refresh(ctx, pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Refresh(access) ошибка = %v, хотели ErrInvalidToken", err)
	}
}

func TestRefresh(t *testing.T) {
	iss := newTestIssuer(t, generateTestKey(t))
	ctx := context.Background()

	pair, err := iss.IssuePair(7, "carol")
	if err != nil {
		t.Fatalf("IssuePair() ошибка: %v", err)
	}

	access, err := iss.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh() ошибка: %v", err)
	}
	claims, err := iss.Parse(ctx, access, TokenAccess)
	if err != nil {
		t.Fatalf("Parse(новый access) ошибка: %v", err)
	}
	if claims.Subject != "7" || claims.Username != "carol" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParse_Expired(t *testing.T) {
	iss := newTestIssuer(t, generateTestKey(t))
	ctx := context.Background()

	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	pair, err := iss.IssuePair(1, "bob")
	if err != nil {
		t.Fatalf("IssuePair() ошибка: %v", err)
	}
	iss.now = time.Now

	if _, err := iss.Parse(ctx, pair.Access, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("просроченный access: ошибка = %v, хотели ErrInvalidToken", err)
	}
	// refresh живёт 24 часа
	if _, err := iss.Parse(ctx, pair.Refresh, TokenRefresh); err != nil {
		t.Errorf("refresh должен быть действителен: %v", err)
	}
}

func TestParse_ForeignKeyAndGarbage(t *testing.T) {
	ours := newTestIssuer(t, generateTestKey(t))
	foreign := newTestIssuer(t, generateTestKey(t))
	ctx := context.Background()

	pair, err := foreign.IssuePair(1, "mallory")
	if err != nil {
		t.Fatalf("IssuePair() ошибка: %v", err)
	}

	tests := map[string]string{
		"чужой ключ":    pair.Access,
		"мусор":         "not-a-jwt",
		"пустая строка": "",
		"подмена подписи": func() string {
			own, _ := ours.IssuePair(1, "alice")
			parts := strings.Split(own.Access, ".")
			return parts[0] + "." + parts[1] + "." + strings.Split(pair.Access, ".")[2]
		}(),
	}

	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ours.Parse(ctx, tok, TokenAccess); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ошибка = %v, хотели ErrInvalidToken", err)
			}
		})
	}
}

func TestParse_WrongIssuer(t *testing.T) {
	key := generateTestKey(t)
	a := newTestIssuer(t, key)
	b, err := NewIssuer(context.Background(), key, Options{
		Issuer: "other", AccessTTL: time.Minute, RefreshTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewIssuer() ошибка: %v", err)
	}

	pair, _ := b.IssuePair(1, "x")
	if _, err := a.Parse(context.Background(), pair.Access, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("чужой issuer: ошибка = %v, хотели ErrInvalidToken", err)
	}
}

func TestJWKS_PublicOnly(t *testing.T) {
	iss := newTestIssuer(t, generateTestKey(t))

	raw, err := iss.JWKS(context.Background())
	if err != nil {
		t.Fatalf("JWKS() ошибка: %v", err)
	}

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.Unmarshal(raw, &set); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if len(set.Keys) != 1 {
		t.Fatalf("ключей = %d, хотели 1", len(set.Keys))
	}
	k := set.Keys[0]
	if k["kid"] != iss.KeyID() || k["alg"] != "RS256" || k["kty"] != "RSA" {
		t.Errorf("JWK = %v", k)
	}
	if _, ok := k["d"]; ok {
		t.Error("JWKS не должен содержать приватную часть ключа")
	}
}

func TestLoadOrGenerateKey(t *testing.T) {
	key := generateTestKey(t)
	dir := t.TempDir()

	pkcs1 := filepath.Join(dir, "pkcs1.pem")
	if err := os.WriteFile(pkcs1, pem.EncodeToMemory(&pem.Block{
		Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), 0o600); err != nil {
		t.Fatal(err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pkcs8 := filepath.Join(dir, "pkcs8.pem")
	if err := os.WriteFile(pkcs8, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{pkcs1, pkcs8} {
		got, err := LoadOrGenerateKey(p, testLogger())
		if err != nil {
			t.Fatalf("LoadOrGenerateKey(%s) ошибка: %v", p, err)
		}
		if !got.Equal(key) {
			t.Errorf("LoadOrGenerateKey(%s): ключ не совпадает", p)
		}
	}

	generated, err := LoadOrGenerateKey("", testLogger())
	if err != nil || generated == nil {
		t.Fatalf("генерация ключа: %v", err)
	}

	if _, err := LoadOrGenerateKey(filepath.Join(dir, "missing.pem"), testLogger()); err == nil {
		t.Error("ожидалась ошибка для отсутствующего файла")
	}
	if _, err := ParsePrivateKeyPEM([]byte("не PEM")); err == nil {
		t.Error("ожидалась ошибка для не-PEM данных")
	}
}
