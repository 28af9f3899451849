package main

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Workers != 4 {
		t.Fatalf("expected default worker count 4, got %d", cfg.Workers)
	}
	if cfg.PipelineVersion != 1 {
		t.Fatalf("expected default pipeline version 1, got %d", cfg.PipelineVersion)
	}
	if cfg.Neo4jUser != "neo4j" {
		t.Fatalf("expected default neo4j user, got %s", cfg.Neo4jUser)
	}
}

func TestEnvOrInt(t *testing.T) {
	t.Setenv("MENOS_WORKER_TEST_INT", "9")
	if v := envOrInt("MENOS_WORKER_TEST_INT", 2); v != 9 {
		t.Fatalf("expected 9, got %d", v)
	}
	if v := envOrInt("MENOS_WORKER_TEST_INT_UNSET", 2); v != 2 {
		t.Fatalf("expected fallback 2, got %d", v)
	}
}
