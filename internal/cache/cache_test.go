package cache

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitre/hipcheck-sub002/internal/ident"
	"github.com/mitre/hipcheck-sub002/internal/manifest"
)

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestEnsureDownloadsVerifiesAndExtracts(t *testing.T) {
	archive := buildTarGz(t, map[string]string{"bin/plugin": "hello"})
	sum := sha256.Sum256(archive)
	digest := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	m := &manifest.Manifest{Entries: []manifest.Entry{{
		Version:  "1.0.0",
		Arch:     "x86_64-unknown-linux-gnu",
		URL:      srv.URL,
		Size:     uint64(len(archive)),
		HashAlgo: manifest.SHA256,
		Digest:   digest,
		Format:   manifest.TarGz,
	}}}

	dir := t.TempDir()
	c := New(dir)
	id := ident.ID{Publisher: "mitre", Name: "git", Version: "1.0.0"}

	out, err := c.Ensure(id, "x86_64-unknown-linux-gnu", m)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "plugins", "mitre", "git", "1.0.0"), out)

	data, err := os.ReadFile(filepath.Join(out, "bin", "plugin"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	// Second call is idempotent and returns without re-downloading.
	hits := 0
	srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(archive)
	})
	out2, err := c.Ensure(id, "x86_64-unknown-linux-gnu", m)
	require.NoError(t, err)
	require.Equal(t, out, out2)
	require.Equal(t, 0, hits)
}

func TestEnsureSizeMismatch(t *testing.T) {
	archive := []byte("not the right size")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	m := &manifest.Manifest{Entries: []manifest.Entry{{
		Version: "1.0.0", Arch: "x86_64-unknown-linux-gnu", URL: srv.URL,
		Size: 999, HashAlgo: manifest.SHA256, Digest: "00", Format: manifest.TarGz,
	}}}

	dir := t.TempDir()
	c := New(dir)
	id := ident.ID{Publisher: "mitre", Name: "git", Version: "1.0.0"}

	_, err := c.Ensure(id, "x86_64-unknown-linux-gnu", m)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, SizeMismatch, cerr.Kind)

	_, statErr := os.Stat(c.pluginDir(id))
	require.Error(t, statErr, "no directory should be created on size mismatch")
}

func TestEnsureHashMismatch(t *testing.T) {
	archive := buildTarGz(t, map[string]string{"bin/plugin": "hello"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	m := &manifest.Manifest{Entries: []manifest.Entry{{
		Version: "1.0.0", Arch: "x86_64-unknown-linux-gnu", URL: srv.URL,
		Size: uint64(len(archive)), HashAlgo: manifest.SHA256,
		Digest: "0000000000000000000000000000000000000000000000000000000000000000",
		Format: manifest.TarGz,
	}}}

	dir := t.TempDir()
	c := New(dir)
	id := ident.ID{Publisher: "mitre", Name: "git", Version: "1.0.0"}

	_, err := c.Ensure(id, "x86_64-unknown-linux-gnu", m)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, HashMismatch, cerr.Kind)

	_, statErr := os.Stat(c.pluginDir(id))
	require.Error(t, statErr, "no directory should be created on hash mismatch")
}

func TestEnsureUnsupportedArch(t *testing.T) {
	m := &manifest.Manifest{Entries: []manifest.Entry{{
		Version: "1.0.0", Arch: "x86_64-unknown-linux-gnu", URL: "https://example.com/x",
		Size: 1, HashAlgo: manifest.SHA256, Digest: "00", Format: manifest.TarGz,
	}}}
	c := New(t.TempDir())
	id := ident.ID{Publisher: "mitre", Name: "git", Version: "1.0.0"}
	_, err := c.Ensure(id, "aarch64-unknown-linux-gnu", m)
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, UnsupportedArch, cerr.Kind)
}
