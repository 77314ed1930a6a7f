// Package arch identifies the target OS/CPU architecture used to select
// plugin archives from a download manifest.
package arch

import (
	"fmt"
	"runtime"
)

// KnownArch is one of the officially supported plugin target triples.
type KnownArch int

const (
	Aarch64AppleDarwin KnownArch = iota
	X86_64AppleDarwin
	X86_64PcWindowsMsvc
	X86_64UnknownLinuxGnu
	Aarch64UnknownLinuxGnu
)

func (k KnownArch) String() string {
	switch k {
	case Aarch64AppleDarwin:
		return "aarch64-apple-darwin"
	case X86_64AppleDarwin:
		return "x86_64-apple-darwin"
	case X86_64PcWindowsMsvc:
		return "x86_64-pc-windows-msvc"
	case X86_64UnknownLinuxGnu:
		return "x86_64-unknown-linux-gnu"
	case Aarch64UnknownLinuxGnu:
		return "aarch64-unknown-linux-gnu"
	default:
		return "unknown"
	}
}

var byTriple = map[string]KnownArch{
	"aarch64-apple-darwin":    Aarch64AppleDarwin,
	"x86_64-apple-darwin":     X86_64AppleDarwin,
	"x86_64-pc-windows-msvc":  X86_64PcWindowsMsvc,
	"x86_64-unknown-linux-gnu": X86_64UnknownLinuxGnu,
	"aarch64-unknown-linux-gnu": Aarch64UnknownLinuxGnu,
}

// Arch is either a known triple or an unrecognized one, preserved verbatim.
type Arch struct {
	known   KnownArch
	isKnown bool
	raw     string
}

// Known wraps a KnownArch.
func Known(k KnownArch) Arch { return Arch{known: k, isKnown: true, raw: k.String()} }

// Unknown wraps an arbitrary, unrecognized triple string.
func Unknown(triple string) Arch { return Arch{raw: triple} }

// Parse turns a target-triple string into an Arch, falling back to Unknown
// rather than failing, since an operator may configure a triple this build
// doesn't recognize yet.
func Parse(triple string) Arch {
	if k, ok := byTriple[triple]; ok {
		return Known(k)
	}
	return Unknown(triple)
}

// IsKnown reports whether the arch matched one of the officially supported triples.
func (a Arch) IsKnown() bool { return a.isKnown }

// AsKnown returns the underlying KnownArch and true, if IsKnown.
func (a Arch) AsKnown() (KnownArch, bool) { return a.known, a.isKnown }

func (a Arch) String() string { return a.raw }

// Detected returns the Arch corresponding to the Go runtime's GOOS/GOARCH,
// falling back to Unknown for combinations outside the supported set.
func Detected() Arch {
	triple := detectTriple(runtime.GOOS, runtime.GOARCH)
	return Parse(triple)
}

func detectTriple(goos, goarch string) string {
	switch {
	case goarch == "amd64" && goos == "darwin":
		return X86_64AppleDarwin.String()
	case goarch == "amd64" && goos == "linux":
		return X86_64UnknownLinuxGnu.String()
	case goarch == "amd64" && goos == "windows":
		return X86_64PcWindowsMsvc.String()
	case goarch == "arm64" && goos == "darwin":
		return Aarch64AppleDarwin.String()
	case goarch == "arm64" && goos == "linux":
		return Aarch64UnknownLinuxGnu.String()
	default:
		return fmt.Sprintf("%s-%s-unknown", goarch, goos)
	}
}
