package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mediaguard/internal/config"
	"mediaguard/internal/logging"
	"mediaguard/internal/store"
)

// Result counts what one scan saw.
type Result struct {
	Seen    int
	New     int
	Changed int
	Removed int
	Errors  int
}

// Scanner records library files in the store.
type Scanner struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// New constructs a Scanner.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Scanner {
	return &Scanner{cfg: cfg, store: st, logger: logging.NewComponentLogger(logger, "scanner")}
}

// Scan walks root, or every library directory when root is empty. Unreadable
// entries are logged and counted; only store and context errors abort.
func (s *Scanner) Scan(ctx context.Context, root string) (Result, error) {
	roots := s.cfg.Library.Directories
	if strings.TrimSpace(root) != "" {
		roots = []string{filepath.Clean(root)}
	}

	tracked, err := s.store.ListFiles(ctx, store.ListFilter{})
	if err != nil {
		return Result{}, err
	}
	known := make(map[string]struct{}, len(tracked))
	for _, file := range tracked {
		known[file.Path] = struct{}{}
	}

	var result Result
	seen := make(map[string]struct{})
	for _, dir := range roots {
		if err := s.walk(ctx, dir, known, seen, &result); err != nil {
			return result, err
		}
	}

	removed, err := s.prune(ctx, tracked, roots, seen)
	result.Removed = removed
	if err != nil {
		return result, err
	}

	s.logger.Info("library scan completed",
		logging.Int("seen", result.Seen),
		logging.Int("new", result.New),
		logging.Int("changed", result.Changed),
		logging.Int("removed", result.Removed),
		logging.Int("errors", result.Errors),
	)
	return result, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, known, seen map[string]struct{}, result *Result) error {
	if _, err := os.Stat(dir); err != nil {
		logging.WarnWithContext(s.logger, "library directory unavailable", "library_missing",
			logging.String("directory", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check library.directories in config.toml"),
			logging.String(logging.FieldImpact, "files in this directory are not scanned"),
		)
		result.Errors++
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Debug("skipping unreadable entry", logging.String("path", path), logging.Error(err))
			result.Errors++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !s.cfg.HasExtension(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			result.Errors++
			return nil
		}

		_, changed, err := s.store.UpsertFile(ctx, store.FileInfo{
			Path:       path,
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
		if err != nil {
			return fmt.Errorf("record %s: %w", path, err)
		}
		seen[path] = struct{}{}
		result.Seen++
		if _, ok := known[path]; !ok {
			result.New++
		} else if changed {
			result.Changed++
		}
		return nil
	})
}

// prune removes tracked files below roots that are gone from disk.
func (s *Scanner) prune(ctx context.Context, files []*store.MediaFile, roots []string, seen map[string]struct{}) (int, error) {
	removed := 0
	for _, file := range files {
		if _, ok := seen[file.Path]; ok || !under(file.Path, roots) {
			continue
		}
		if _, err := os.Stat(file.Path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := s.store.RemoveFile(ctx, file.ID); err != nil {
			return removed, err
		}
		s.logger.Info("pruned missing file",
			logging.Int64(logging.FieldFileID, file.ID),
			logging.String("path", file.Path),
		)
		removed++
	}
	return removed, nil
}

func under(path string, roots []string) bool {
	for _, root := range roots {
		root = filepath.Clean(root)
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
