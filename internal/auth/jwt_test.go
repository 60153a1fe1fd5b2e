package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParseJWT(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateJWT(secret, "octocat", true, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseJWT(secret, token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "octocat" {
		t.Errorf("subject = %q, want octocat", claims.Subject)
	}
	if !claims.Admin {
		t.Error("admin flag lost in round trip")
	}
	if claims.Issuer != "gitbounty" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestParseJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("right-secret", "octocat", false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseJWT("wrong-secret", token); err == nil {
		t.Error("token signed with another secret must not parse")
	}
}

func TestParseJWTExpired(t *testing.T) {
	token, err := GenerateJWT("secret", "octocat", false, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := ParseJWT("secret", token); err == nil {
		t.Error("expired token must not parse")
	}
}

func TestParseJWTGarbage(t *testing.T) {
	if _, err := ParseJWT("secret", "not.a.token"); err == nil {
		t.Error("garbage must not parse")
	}
}
