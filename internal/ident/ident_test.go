package ident

import "testing"

func TestParseTarget(t *testing.T) {
	tg, err := ParseTarget("mitre/git/churn")
	if err != nil {
		t.Fatal(err)
	}
	if tg.Publisher != "mitre" || tg.Plugin != "git" || tg.Query != "churn" {
		t.Fatalf("unexpected target: %+v", tg)
	}
	if tg.String() != "mitre/git/churn" {
		t.Fatalf("round trip failed: %s", tg.String())
	}

	tg2, err := ParseTarget("mitre/git")
	if err != nil {
		t.Fatal(err)
	}
	if tg2.Query != "" {
		t.Fatalf("expected empty default query, got %q", tg2.Query)
	}

	if _, err := ParseTarget("bogus"); err == nil {
		t.Fatalf("expected error for malformed target")
	}
}

func TestIDString(t *testing.T) {
	id := ID{Publisher: "mitre", Name: "git", Version: "0.1.0"}
	if id.String() != "mitre/git@0.1.0" {
		t.Fatalf("unexpected: %s", id.String())
	}
	if id.Of() != (Key{Publisher: "mitre", Name: "git"}) {
		t.Fatalf("unexpected key projection: %+v", id.Of())
	}
}
