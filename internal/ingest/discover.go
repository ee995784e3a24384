package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/consultation-extract/constants"
	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/entity"
)

// FSDiscoverer finds input documents on the local filesystem.
type FSDiscoverer struct {
	opts   Options
	exts   map[string]struct{}
	logger *slog.Logger
}

func NewFSDiscoverer(opts Options, logger *slog.Logger) *FSDiscoverer {
	if logger == nil {
		logger = slog.Default()
	}
	exts := constants.AllowedExtensions
	if len(opts.Extensions) > 0 {
		exts = make(map[string]struct{}, len(opts.Extensions))
		for _, e := range opts.Extensions {
			if e = constants.NormalizeExt(e); e != "" {
				exts[e] = struct{}{}
			}
		}
	}
	return &FSDiscoverer{opts: opts, exts: exts, logger: logger}
}

// Discover lists matching files under root in lexicographic path order, each with
// its SHA-256 content hash. Only a missing or unreadable root is an error; a file
// that cannot be hashed is still returned (with an empty hash) so it gets a record.
func (d *FSDiscoverer) Discover(ctx context.Context, root string) ([]entity.Document, DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, common.ConfigurationError("input directory is required", common.ErrInvalidInput)
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, stats, common.ConfigurationError(fmt.Sprintf("input directory %s", root), err)
	}
	if !st.IsDir() {
		return nil, stats, common.ConfigurationError(fmt.Sprintf("input path %s is not a directory", root), common.ErrInvalidInput)
	}

	var docs []entity.Document
	err = filepath.WalkDir(root, func(path string, de fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return walkErr
		}
		stats.Scanned++
		if walkErr != nil {
			d.logger.Warn("ingest.walk_error", "path", path, "error", walkErr)
			stats.Skipped++
			return nil
		}
		if de.IsDir() {
			if !d.opts.Recursive || (d.opts.SkipHidden && IsHidden(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		name := de.Name()
		if !d.allowed(name) {
			return nil
		}
		stats.Matched++
		if (d.opts.SkipHidden && IsHidden(path)) || constants.IsOfficeLockFile(name) {
			stats.Skipped++
			return nil
		}

		doc := entity.Document{
			Path: path,
			Name: name,
			Ext:  constants.NormalizeExt(filepath.Ext(name)),
		}
		if info, err := de.Info(); err == nil {
			doc.Size = info.Size()
			doc.ModifiedAt = info.ModTime().UTC()
		}
		if sum, err := HashFile(path); err != nil {
			d.logger.Warn("ingest.hash_error", "path", path, "error", err)
		} else {
			doc.ContentHash = sum
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, stats, err
		}
		return nil, stats, common.ConfigurationError(fmt.Sprintf("read input directory %s", root), err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	d.logger.Info("ingest.discovered",
		"root", root,
		"documents", len(docs),
		"scanned", stats.Scanned,
		"skipped", stats.Skipped,
	)
	return docs, stats, nil
}

func (d *FSDiscoverer) allowed(name string) bool {
	_, ok := d.exts[constants.NormalizeExt(filepath.Ext(name))]
	return ok
}

// HashFile returns the hex SHA-256 of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
