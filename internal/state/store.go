package state

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/JameZUK/fqdn-builder/internal/classify"
	"github.com/JameZUK/fqdn-builder/pkg/models"
)

// FileStore keeps the persisted state in a single text file.
type FileStore struct {
	Path   string
	Opts   WriteOptions
	logger zerolog.Logger
	now    func() time.Time
}

func NewFileStore(path string, opts WriteOptions, logger zerolog.Logger) *FileStore {
	return &FileStore{
		Path:   path,
		Opts:   opts,
		logger: logger.With().Str("component", "state_store").Logger(),
		now:    time.Now,
	}
}

// Load reads the file. A missing file is empty state.
func (s *FileStore) Load(c *classify.Classifier) (models.PersistedState, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info().Str("path", s.Path).Msg("no existing output, starting fresh")
		return models.EmptyState(), nil
	}
	if err != nil {
		return models.EmptyState(), err
	}
	defer f.Close()

	st, err := Decode(f, c, s.logger)
	if err != nil {
		return models.EmptyState(), err
	}
	s.logger.Info().Str("path", s.Path).Int("domains", st.Domains.Len()).Msg("loaded existing domains")
	return st, nil
}

// Save writes st to a temporary file next to Path and renames it into
// place, so readers only ever see a complete file.
func (s *FileStore) Save(st models.PersistedState) error {
	var buf bytes.Buffer
	if err := Encode(&buf, st, s.Opts); err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if s.Opts.Backup {
		if err := s.backup(); err != nil {
			return fmt.Errorf("backup %s: %w", s.Path, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return err
	}
	s.logger.Info().Str("path", s.Path).Int("domains", st.Domains.Len()).Msg("wrote domain list")
	return nil
}

func (s *FileStore) backup() error {
	src, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	name := fmt.Sprintf("%s.backup_%s", s.Path, s.now().Format("20060102_150405"))
	dst, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	s.logger.Info().Str("backup", name).Msg("backed up previous list")
	return dst.Close()
}
