package arch

import "testing"

func TestParseRoundTrip(t *testing.T) {
	cases := []KnownArch{
		Aarch64AppleDarwin,
		X86_64AppleDarwin,
		X86_64PcWindowsMsvc,
		X86_64UnknownLinuxGnu,
		Aarch64UnknownLinuxGnu,
	}
	for _, k := range cases {
		a := Parse(k.String())
		if !a.IsKnown() {
			t.Fatalf("Parse(%s) not known", k.String())
		}
		got, _ := a.AsKnown()
		if got != k {
			t.Fatalf("Parse(%s) = %v, want %v", k.String(), got, k)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	a := Parse("riscv64-unknown-linux-musl")
	if a.IsKnown() {
		t.Fatalf("expected unknown arch")
	}
	if a.String() != "riscv64-unknown-linux-musl" {
		t.Fatalf("unexpected round trip: %s", a.String())
	}
}
