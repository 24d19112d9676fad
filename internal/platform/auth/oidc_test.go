package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signingKey bundles a generated RSA key with its JWKS representation so
// tests can stand up issuer endpoints with one call.
type signingKey struct {
	kid  string
	priv *rsa.PrivateKey
}

func newSigningKey(t *testing.T, kid string) signingKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	return signingKey{kid: kid, priv: priv}
}

func (k signingKey) jwk() JWKSKey {
	pub := &k.priv.PublicKey
	return JWKSKey{
		Kty: "RSA",
		Kid: k.kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// jwksServer serves a JWKS document whose key set is read from keys on
// every request, so a test can swap keys mid-flight to simulate rotation.
func jwksServer(t *testing.T, keys *[]JWKSKey, hits *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JWKSResponse{Keys: *keys})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// issuerServer serves a discovery document pointing at jwksURL, mimicking
// the Keycloak realm a clinic would configure as DENTIX_AUTH_ISSUER.
func issuerServer(t *testing.T, jwksURL string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 "https://login.dentix.example/realms/clinic",
			"authorization_endpoint": "https://login.dentix.example/realms/clinic/auth",
			"token_endpoint":         "https://login.dentix.example/realms/clinic/token",
			"userinfo_endpoint":      "https://login.dentix.example/realms/clinic/userinfo",
			"jwks_uri":               jwksURL,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOIDCDiscovery(t *testing.T) {
	keys := []JWKSKey{}
	jwks := jwksServer(t, &keys, nil)
	issuer := issuerServer(t, jwks.URL)

	provider, err := NewOIDCProvider(issuer.URL + "/") // trailing slash is tolerated
	if err != nil {
		t.Fatalf("discovery failed: %v", err)
	}
	if provider.Issuer != "https://login.dentix.example/realms/clinic" {
		t.Errorf("unexpected issuer %q", provider.Issuer)
	}
	if !strings.HasSuffix(provider.TokenEndpoint, "/token") {
		t.Errorf("unexpected token endpoint %q", provider.TokenEndpoint)
	}
	if provider.JWKSURI != jwks.URL {
		t.Errorf("expected jwks_uri %q, got %q", jwks.URL, provider.JWKSURI)
	}
	if provider.JWKSKeyFunc() == nil {
		t.Error("expected a usable key func from a discovered provider")
	}
}

func TestOIDCDiscovery_Failures(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer notFound.Close()
	if _, err := NewOIDCProvider(notFound.URL); err == nil {
		t.Error("expected error when the discovery document is missing")
	}

	if _, err := NewOIDCProvider("http://127.0.0.1:1"); err == nil {
		t.Error("expected error for an unreachable issuer")
	}

	// A document without jwks_uri is useless for token verification.
	noJWKS := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"issuer": "https://login.dentix.example"})
	}))
	defer noJWKS.Close()
	if _, err := NewOIDCProvider(noJWKS.URL); err == nil {
		t.Error("expected error when jwks_uri is absent")
	}
}

func TestJWKSCache_FetchAndHit(t *testing.T) {
	key := newSigningKey(t, "clinic-signing-2026")
	keys := []JWKSKey{key.jwk()}
	hits := 0
	srv := jwksServer(t, &keys, &hits)

	cache := NewJWKSCache(srv.URL, 5*time.Minute)

	got, err := cache.GetKey(key.kid)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got.N.Cmp(key.priv.PublicKey.N) != 0 || got.E != key.priv.PublicKey.E {
		t.Error("fetched key does not match the issuer's key")
	}

	if _, err := cache.GetKey(key.kid); err != nil {
		t.Fatalf("cache hit failed: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected a single JWKS fetch within the TTL, got %d", hits)
	}
}

func TestJWKSCache_RefreshOnRotation(t *testing.T) {
	oldKey := newSigningKey(t, "clinic-signing-2025")
	newKey := newSigningKey(t, "clinic-signing-2026")
	keys := []JWKSKey{oldKey.jwk()}
	hits := 0
	srv := jwksServer(t, &keys, &hits)

	cache := NewJWKSCache(srv.URL, time.Millisecond)
	if _, err := cache.GetKey(oldKey.kid); err != nil {
		t.Fatalf("fetch before rotation failed: %v", err)
	}

	// The issuer rotates; after the TTL lapses a lookup of the new kid
	// must trigger a re-fetch rather than failing on the stale set.
	keys = []JWKSKey{oldKey.jwk(), newKey.jwk()}
	time.Sleep(5 * time.Millisecond)

	got, err := cache.GetKey(newKey.kid)
	if err != nil {
		t.Fatalf("fetch after rotation failed: %v", err)
	}
	if got.N.Cmp(newKey.priv.PublicKey.N) != 0 {
		t.Error("expected the rotated key")
	}
	if hits < 2 {
		t.Errorf("expected a re-fetch after rotation, got %d fetches", hits)
	}
}

func TestJWKSCache_UnknownKid(t *testing.T) {
	key := newSigningKey(t, "clinic-signing-2026")
	keys := []JWKSKey{key.jwk()}
	srv := jwksServer(t, &keys, nil)

	cache := NewJWKSCache(srv.URL, 5*time.Minute)
	if _, err := cache.GetKey("retired-kid"); err == nil {
		t.Error("expected error for a kid the issuer does not publish")
	}
}

func TestJWKSCache_IssuerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := NewJWKSCache(srv.URL, 5*time.Minute)
	if _, err := cache.GetKey("any"); err == nil {
		t.Error("expected error when the JWKS endpoint is failing")
	}
}

func TestParseRSAPublicKey(t *testing.T) {
	key := newSigningKey(t, "parse-check")

	pub, err := parseRSAPublicKey(key.jwk())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if pub.N.Cmp(key.priv.PublicKey.N) != 0 || pub.E != key.priv.PublicKey.E {
		t.Error("parsed key does not round-trip")
	}

	bad := key.jwk()
	bad.N = "!!!not-base64!!!"
	if _, err := parseRSAPublicKey(bad); err == nil {
		t.Error("expected error for a corrupt modulus")
	}

	bad = key.jwk()
	bad.E = "!!!not-base64!!!"
	if _, err := parseRSAPublicKey(bad); err == nil {
		t.Error("expected error for a corrupt exponent")
	}
}

func TestJwksKeyFunc_RequiresKid(t *testing.T) {
	keys := []JWKSKey{}
	srv := jwksServer(t, &keys, nil)

	keyFunc := jwksKeyFunc(srv.URL)
	_, err := keyFunc(&jwt.Token{Header: map[string]interface{}{}})
	if err == nil {
		t.Fatal("expected error for a token without a kid header")
	}
}
