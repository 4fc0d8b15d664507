package auth_test

import (
	"testing"

	"Praetorius/core/auth"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !auth.CheckPasswordHash("correct horse", hash) {
		t.Fatal("matching password rejected")
	}
	if auth.CheckPasswordHash("wrong", hash) {
		t.Fatal("wrong password accepted")
	}
	if auth.CheckPasswordHash("correct horse", "not-a-bcrypt-hash") {
		t.Fatal("corrupt hash accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	auth.SetJWTSecret("test-secret")

	token, err := auth.GenerateToken(7, "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	claims, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "admin" {
		t.Fatalf("claims round trip: %+v", claims)
	}

	auth.SetJWTSecret("another-secret")
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatal("token signed under a different secret should not parse")
	}
}
