// Package storage owns the on-disk layout: generated artifacts under the
// output directory, uploaded assets under the upload directory, and the
// persisted brief. Artifact writes are atomic so a half-written deck is
// never visible at the published path.
package storage

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/pkg/errors"
	"github.com/germanilia/presentation-maker/pkg/util"
)

// ArtifactName is the fixed filename of the generated deck.
const ArtifactName = "presentation.pptx"

const configName = "presentation-config.json"

// Service resolves and persists files inside the configured directories.
type Service struct {
	outputDir string
	uploadDir string
	logger    *logger.Logger
}

func NewService(outputDir, uploadDir string, log *logger.Logger) (*Service, error) {
	for _, dir := range []string{outputDir, uploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to create directory "+dir)
		}
	}
	return &Service{outputDir: outputDir, uploadDir: uploadDir, logger: log}, nil
}

// SaveArtifact writes the deck produced by render under ArtifactName in
// dir, or in the configured output directory when dir is empty. The write
// goes to a temp file first and is renamed into place only when render
// succeeds, so failures and cancellations leave any previous artifact
// untouched.
func (s *Service) SaveArtifact(dir string, render func(io.Writer) error) (string, error) {
	if dir == "" {
		dir = s.outputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorage, "failed to create output directory "+dir)
	}
	final := filepath.Join(dir, ArtifactName)

	tmp, err := os.CreateTemp(dir, ArtifactName+".tmp-*")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorage, "failed to create temp artifact")
	}
	tmpName := tmp.Name()

	if err := render(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrap(err, errors.ErrCodeStorage, "failed to flush temp artifact")
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", errors.Wrap(err, errors.ErrCodeStorage, "failed to publish artifact")
	}

	s.logger.Info("artifact saved", "path", final)
	return final, nil
}

// FilePath resolves folder/filename to an absolute path inside one of the
// managed directories. folder is "output" or "uploads". The filename is
// sanitized, so path traversal cannot escape the directory.
func (s *Service) FilePath(folder, filename string) (string, error) {
	dir, err := s.dirFor(folder)
	if err != nil {
		return "", err
	}

	name := util.SanitizeFilename(filepath.Base(filename))
	if name == "" || name == "." || name == ".." {
		return "", errors.New(errors.ErrCodeInvalidReq, "invalid filename")
	}
	return filepath.Join(dir, name), nil
}

// FileExists reports whether folder/filename exists as a regular file.
func (s *Service) FileExists(folder, filename string) bool {
	path, err := s.FilePath(folder, filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SaveUpload stores data (a logo or similar asset) in the upload directory
// and returns the stored filename.
func (s *Service) SaveUpload(filename string, data []byte) (string, error) {
	name := util.SanitizeFilename(filepath.Base(filename))
	if name == "" || name == "." || name == ".." {
		return "", errors.New(errors.ErrCodeInvalidReq, "invalid filename")
	}

	path := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorage, "failed to save upload "+name)
	}
	return name, nil
}

// SaveBrief persists the raw brief JSON so the UI can reload it later.
func (s *Service) SaveBrief(raw json.RawMessage) error {
	if !json.Valid(raw) {
		return errors.New(errors.ErrCodeInvalidReq, "brief is not valid JSON")
	}
	path := filepath.Join(s.outputDir, configName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorage, "failed to save brief")
	}
	return nil
}

// LoadBrief returns the persisted brief JSON, or a NOT_FOUND error when
// nothing has been saved yet.
func (s *Service) LoadBrief() (json.RawMessage, error) {
	path := filepath.Join(s.outputDir, configName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeNotFound, "no saved brief")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to load brief")
	}
	return data, nil
}

func (s *Service) dirFor(folder string) (string, error) {
	switch folder {
	case "output":
		return s.outputDir, nil
	case "uploads":
		return s.uploadDir, nil
	default:
		return "", errors.Newf(errors.ErrCodeNotFound, "unknown folder %q", folder)
	}
}
