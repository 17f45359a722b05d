package envconfig

import "testing"

func TestGet_Fallback(t *testing.T) {
	t.Setenv("TRACKER_TEST_VALUE", "")
	if got := Get("TRACKER_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("TRACKER_TEST_VALUE", "set")
	if got := Get("TRACKER_TEST_VALUE", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}

func TestGetInt(t *testing.T) {
	t.Setenv("TRACKER_TEST_INT", "42")
	got, err := GetInt("TRACKER_TEST_INT", 7)
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %d (%v)", got, err)
	}

	t.Setenv("TRACKER_TEST_INT", "abc")
	if _, err := GetInt("TRACKER_TEST_INT", 7); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	type sample struct {
		Port string `validate:"required"`
	}
	if err := Validate(sample{}); err == nil {
		t.Fatalf("expected required error")
	}
	if err := Validate(sample{Port: "8080"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
