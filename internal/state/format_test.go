package state

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JameZUK/fqdn-builder/internal/classify"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

func sampleState(c *classify.Classifier) models.PersistedState {
	return models.PersistedState{
		Domains:     domains(c, "example.com", "sub.example.com", "cdn.example.net"),
		Targets:     []string{"https://example.com/"},
		GeneratedAt: time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		Stats: models.RunStatistics{
			RunID:               "run-1",
			DomainsTotal:        3,
			OrganizationDomains: 2,
			Added:               []string{"cdn.example.net"},
			Removed:             []string{"dead.example.org"},
			TargetsCrawled:      1,
			Concurrency:         3,
			PageBudget:          10,
			Mode:                "ipv4",
		},
	}
}

func TestEncode(t *testing.T) {
	c := classify.New("example.com")
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleState(c), WriteOptions{AnnotateThirdParty: true}))
	out := buf.String()

	assert.Contains(t, out, "# Last updated: 2026-03-01 12:30:00 UTC\n")
	assert.Contains(t, out, "#   1. https://example.com/\n")
	assert.Contains(t, out, "#   - Added this run: 1\n")
	assert.Contains(t, out, "#   - Removed this run: 1\n")
	assert.Contains(t, out, "\nexample.com\nsub.example.com\ncdn.example.net  # third-party\n")

	buf.Reset()
	require.NoError(t, Encode(&buf, sampleState(c), WriteOptions{FQDNOnly: true}))
	assert.NotContains(t, buf.String(), "\ncdn.example.net")
	assert.Contains(t, buf.String(), "FQDN-only")
}

func TestDecode_RoundTrip(t *testing.T) {
	c := classify.New("example.com")
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleState(c), WriteOptions{AnnotateThirdParty: true}))

	st, err := Decode(&buf, c, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"example.com", "sub.example.com", "cdn.example.net"}, st.Domains.Names())
	assert.Equal(t, []string{"https://example.com/"}, st.Targets)
	assert.Equal(t, "run-1", st.Stats.RunID)
	assert.Equal(t, 3, st.Stats.Concurrency)
	assert.Equal(t, 10, st.Stats.PageBudget)
	assert.Equal(t, "ipv4", st.Stats.Mode)
	assert.True(t, st.GeneratedAt.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)))

	cdn, _ := st.Domains.Get("cdn.example.net")
	assert.False(t, cdn.Organization)
}

func TestDecode_Leniency(t *testing.T) {
	input := strings.Join([]string{
		"# hand edited",
		"- WWW.Example.com",
		"  - api.example.com   # internal",
		"example.com.",
		"not a domain",
		"",
		"www.example.com",
	}, "\n")

	st, err := Decode(strings.NewReader(input), classify.New("example.com"), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"www.example.com", "api.example.com", "example.com"}, st.Domains.Names())
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "binary", input: "example.com\n\xff\xfe\x00garbage"},
		{name: "nothing valid", input: "# header\n!!!\n???\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input), classify.New(), zerolog.Nop())
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}

	st, err := Decode(strings.NewReader("# only a header\n"), classify.New(), zerolog.Nop())
	require.NoError(t, err, "an empty list is not corrupt")
	assert.Equal(t, 0, st.Domains.Len())
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "fqdns.txt")
	c := classify.New("example.com")

	store := NewFileStore(path, WriteOptions{AnnotateThirdParty: true}, zerolog.Nop())

	st, err := store.Load(c)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Domains.Len())

	require.NoError(t, store.Save(sampleState(c)))

	st, err = store.Load(c)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Domains.Len())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFileStore_Backup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fqdns.txt")
	require.NoError(t, os.WriteFile(path, []byte("old.example.com\n"), 0o644))

	store := NewFileStore(path, WriteOptions{Backup: true}, zerolog.Nop())
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, store.Save(sampleState(classify.New("example.com"))))

	backup, err := os.ReadFile(path + ".backup_20260102_030405")
	require.NoError(t, err)
	assert.Equal(t, "old.example.com\n", string(backup))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(current), "sub.example.com")
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fqdns.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0o644))

	_, err := NewFileStore(path, WriteOptions{}, zerolog.Nop()).Load(classify.New())
	assert.ErrorIs(t, err, ErrCorrupt)
}
