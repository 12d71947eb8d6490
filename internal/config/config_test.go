package config

import "testing"

// TestWithDefaults fills only the optional fields; locators are never
// defaulted silently.
func TestWithDefaults(t *testing.T) {
	t.Parallel()

	c := Config{SourcePath: "a.db", DatabaseURL: "postgres://x"}.WithDefaults()
	if c.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", c.BatchSize, DefaultBatchSize)
	}
	if c.Job != DefaultJob {
		t.Errorf("Job = %q, want %q", c.Job, DefaultJob)
	}

	c = Config{SourcePath: "a.db", DatabaseURL: "postgres://x", BatchSize: 500, Job: "nightly"}.WithDefaults()
	if c.BatchSize != 500 || c.Job != "nightly" {
		t.Errorf("WithDefaults overwrote explicit values: %+v", c)
	}
}

// TestValidate covers the error and warning paths.
func TestValidate(t *testing.T) {
	t.Parallel()

	if issues := Validate(Config{SourcePath: "a.db", DatabaseURL: "postgres://x", BatchSize: 10000}); len(issues) != 0 {
		t.Fatalf("valid config produced issues: %v", issues)
	}

	issues := Validate(Config{})
	if !HasError(issues) {
		t.Fatal("empty config must produce errors")
	}
	paths := map[string]bool{}
	for _, i := range issues {
		paths[i.Path] = true
	}
	if !paths["source_path"] || !paths["database_url"] {
		t.Fatalf("missing locator errors, got %v", issues)
	}

	issues = Validate(Config{SourcePath: "a.db", DatabaseURL: "postgres://x", BatchSize: 10})
	if HasError(issues) {
		t.Fatalf("tiny batch size must warn, not error: %v", issues)
	}
	if len(issues) != 1 || issues[0].Severity != SeverityWarning {
		t.Fatalf("expected one warning, got %v", issues)
	}

	if issues := Validate(Config{SourcePath: "a.db", DatabaseURL: "postgres://x", BatchSize: -1}); !HasError(issues) {
		t.Fatal("negative batch size must error")
	}
}
