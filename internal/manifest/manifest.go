// Package manifest loads a plugin's download manifest: the sequence of
// (version, arch, url, size, hash, format) entries a host uses to fetch and
// verify a plugin archive.
package manifest

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// HashAlgorithm is one of the two digest algorithms a manifest entry may declare.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	BLAKE3 HashAlgorithm = "blake3"
)

// ArchiveFormat is one of the archive container/compression schemes a manifest
// entry may declare.
type ArchiveFormat string

const (
	Tar    ArchiveFormat = "tar"
	TarGz  ArchiveFormat = "tar.gz"
	TarXz  ArchiveFormat = "tar.xz"
	TarZst ArchiveFormat = "tar.zst"
	Zip    ArchiveFormat = "zip"
)

// Entry is a single download manifest entry for one (version, arch) pair.
type Entry struct {
	Version  string        `yaml:"version"`
	Arch     string        `yaml:"arch"`
	URL      string        `yaml:"url"`
	Size     uint64        `yaml:"size"`
	HashAlgo HashAlgorithm `yaml:"hash_algorithm"`
	Digest   string        `yaml:"digest"`
	Format   ArchiveFormat `yaml:"format"`
}

// Validate checks the entry's invariants: hash-algorithm and archive-format
// must be from the known sets, enforced before any network I/O per spec.
func (e Entry) Validate() error {
	switch e.HashAlgo {
	case SHA256, BLAKE3:
	default:
		return fmt.Errorf("manifest: unknown hash algorithm %q", e.HashAlgo)
	}
	switch e.Format {
	case Tar, TarGz, TarXz, TarZst, Zip:
	default:
		return fmt.Errorf("manifest: unknown archive format %q", e.Format)
	}
	if e.URL == "" {
		return fmt.Errorf("manifest: entry for version %q missing url", e.Version)
	}
	return nil
}

// Manifest is the full sequence of entries published for one plugin.
type Manifest struct {
	Entries []Entry `yaml:"entries"`
}

// Load parses a manifest document, validating every entry up front so that
// an unknown hash-algorithm or archive-format fails before any network I/O.
func Load(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	for i, e := range m.Entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("manifest: entry %d: %w", i, err)
		}
	}
	return &m, nil
}

// Select returns the entry matching the given version and arch triple, or
// false if none matches.
func (m *Manifest) Select(version, archTriple string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Version == version && e.Arch == archTriple {
			return e, true
		}
	}
	return Entry{}, false
}
