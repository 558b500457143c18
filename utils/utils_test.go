package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("p@ss")
	if err != nil {
		t.Fatalf("hash err: %v", err)
	}
	if !CheckPasswordHash("p@ss", hashed) {
		t.Fatalf("should match")
	}
	if CheckPasswordHash("hahaha", hashed) {
		t.Fatalf("should not match")
	}
}

func TestTokens_GenerateAndVerify(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	token, err := tokens.Generate("a@b.com", 87)
	if err != nil {
		t.Fatalf("gen token err: %v", err)
	}
	id, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify err: %v", err)
	}
	if id != 87 {
		t.Fatalf("want 87 got %d", id)
	}
}

func TestTokens_TamperedFails(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	tok, err := tokens.Generate("x@x.com", 99)
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	if _, err := tokens.Verify(tok + "x"); err == nil {
		t.Fatalf("expect verify to fail on tampered token")
	}
}

func TestTokens_OtherSecretFails(t *testing.T) {
	tok, err := NewTokens("one", time.Hour).Generate("x@x.com", 1)
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	if _, err := NewTokens("two", time.Hour).Verify(tok); err == nil {
		t.Fatalf("expect verify to fail with a different secret")
	}
}

func TestTokens_ExpiredFails(t *testing.T) {
	tokens := NewTokens("s", -time.Minute)
	tok, err := tokens.Generate("x@x.com", 1)
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	if _, err := tokens.Verify(tok); err == nil {
		t.Fatalf("expect verify to fail on expired token")
	}
}

func TestCacheInvalidator_Purge(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inv := NewCacheInvalidator(rdb)

	ctx := context.Background()
	_ = rdb.Set(ctx, CachePrefixEvents+"current:abc", "x", 0).Err()
	_ = rdb.Set(ctx, CachePrefixVesselTypes+"list:abc", "x", 0).Err()
	_ = rdb.Set(ctx, "quota:registration:ip:1.2.3.4", "1", 0).Err()

	inv.PurgeEvents(ctx)
	if mr.Exists(CachePrefixEvents + "current:abc") {
		t.Fatalf("event key not purged")
	}
	if !mr.Exists(CachePrefixVesselTypes + "list:abc") {
		t.Fatalf("vessel type key purged too early")
	}

	inv.PurgeVesselTypes(ctx)
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "quota:registration:ip:1.2.3.4" {
		t.Fatalf("unexpected keys left: %v", keys)
	}
}
