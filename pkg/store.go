package buildstamp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Store reads and writes the canonical version file and renders records into
// output targets.
type Store struct {
	path     string
	remote   *RemoteSource
	packages PackageVersioner
	objects  ObjectPutterFactory
	logger   zerolog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRemoteSource makes enriched loads take the build number from src.
func WithRemoteSource(src *RemoteSource) StoreOption {
	return func(s *Store) { s.remote = src }
}

// WithPackageVersioner replaces the manifest rewriter used by packageManager targets.
func WithPackageVersioner(p PackageVersioner) StoreOption {
	return func(s *Store) { s.packages = p }
}

// WithObjectPutter replaces the S3 client factory used by s3 targets.
func WithObjectPutter(f ObjectPutterFactory) StoreOption {
	return func(s *Store) { s.objects = f }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a Store backed by the canonical file at path.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:    path,
		objects: defaultObjectPutter,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the canonical version file path.
func (s *Store) Path() string {
	return s.path
}

// HasRemote reports whether a remote build-number source is configured.
func (s *Store) HasRemote() bool {
	return s.remote != nil
}

// Load reads the canonical version file. A missing, unreadable or empty file
// yields the zero record without consulting the remote source. Otherwise, when
// enrich is set and a remote source is configured, the build component comes
// from the remote source instead of the file.
func (s *Store) Load(ctx context.Context, enrich bool) (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Debug().Err(err).Str("path", s.path).Msg("version file not readable, starting from 0.0.0.0")
		return Record{}, nil
	}
	if strings.TrimSpace(string(data)) == "" {
		s.logger.Debug().Str("path", s.path).Msg("version file empty, starting from 0.0.0.0")
		return Record{}, nil
	}

	r, err := ParseRecord(string(data))
	if err != nil {
		return Record{}, err
	}

	if enrich && s.remote != nil {
		build, err := s.remote.FetchBuild(ctx)
		if err != nil {
			return Record{}, err
		}
		s.logger.Debug().Str("url", s.remote.URL).Uint64("build", build).Msg("build number fetched")
		r.Build = build
	}
	return r, nil
}

// Save persists r to the canonical version file.
func (s *Store) Save(ctx context.Context, r Record) error {
	return s.Write(ctx, Target{Type: TargetText, File: s.path}, r)
}

// Write renders r into target t.
func (s *Store) Write(ctx context.Context, t Target, r Record) error {
	switch t.Type {
	case TargetText:
		return writeFile(t.File, renderText(r))
	case TargetJSON:
		data, err := renderJSON(r)
		if err != nil {
			return err
		}
		return writeFile(t.File, data)
	case TargetYAML:
		data, err := renderYAML(r)
		if err != nil {
			return err
		}
		return writeFile(t.File, data)
	case TargetModule:
		return writeFile(t.File, renderModule(r))
	case TargetGo:
		return writeFile(t.File, renderGo(t.File, r))
	case TargetPackageManager:
		p := s.packages
		if p == nil {
			p = ManifestVersioner{Manifest: t.Manifest}
		}
		return p.SetPackageVersion(r.Major, r.Minor, r.Patch, t.packageDir())
	case TargetS3:
		return s.putStamp(ctx, t, r)
	default:
		return fmt.Errorf("unknown output type %q", t.Type)
	}
}

func writeFile(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("output file not set")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}
