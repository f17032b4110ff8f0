package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"hovercar/core/internal/config"
)

// segmentStamp orders sealed segments lexically and chronologically.
const segmentStamp = "20060102T150405.000000000"

// segment is a sealed log file next to the live one.
type segment struct {
	path   string
	sealed time.Time
}

// retention decides which sealed segments to delete. Zero fields disable a limit.
type retention struct {
	keep   int
	maxAge time.Duration
}

// expired returns the segments to delete; segments must be sorted newest first.
func (r retention) expired(segments []segment, now time.Time) []segment {
	var out []segment
	for i, seg := range segments {
		tooMany := r.keep > 0 && i >= r.keep
		tooOld := r.maxAge > 0 && now.Sub(seg.sealed) > r.maxAge
		if tooMany || tooOld {
			out = append(out, seg)
		}
	}
	return out
}

// segmentedFile is the zap sink for the log file. Once the live file would exceed the size
// limit it is sealed as `<stem>-<stamp><ext>`, optionally gzipped, and a fresh file opened.
type segmentedFile struct {
	mu      sync.Mutex
	path    string
	stem    string
	ext     string
	limit   int64
	gzip    bool
	policy  retention
	now     func() time.Time
	live    *os.File
	written int64
}

func newSegmentedFile(cfg config.LoggingConfig) (*segmentedFile, error) {
	if cfg.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("log file %s: max size must be positive", cfg.Path)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	ext := filepath.Ext(cfg.Path)
	f := &segmentedFile{
		path:   cfg.Path,
		stem:   strings.TrimSuffix(cfg.Path, ext),
		ext:    ext,
		limit:  int64(cfg.MaxSizeMB) << 20,
		gzip:   cfg.Compress,
		policy: retention{keep: cfg.MaxBackups, maxAge: time.Duration(cfg.MaxAgeDays) * 24 * time.Hour},
		now:    time.Now,
	}
	if err := f.open(); err != nil {
		return nil, err
	}
	return f, nil
}

// open attaches the live file, appending to whatever a previous run left behind.
func (f *segmentedFile) open() error {
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	f.live, f.written = file, info.Size()
	return nil
}

// Write implements zapcore.WriteSyncer.
func (f *segmentedFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live == nil {
		return 0, os.ErrClosed
	}
	if f.written > 0 && f.written+int64(len(p)) > f.limit {
		if err := f.seal(); err != nil {
			return 0, fmt.Errorf("seal log segment: %w", err)
		}
	}
	n, err := f.live.Write(p)
	f.written += int64(n)
	return n, err
}

// Sync implements zapcore.WriteSyncer.
func (f *segmentedFile) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live == nil {
		return nil
	}
	return f.live.Sync()
}

// Close releases the live file.
func (f *segmentedFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live == nil {
		return nil
	}
	err := f.live.Close()
	f.live = nil
	return err
}

func (f *segmentedFile) seal() error {
	if err := f.live.Close(); err != nil {
		return err
	}
	f.live = nil
	//1.- Move the live file aside under its sealing time.
	sealed := f.stem + "-" + f.now().UTC().Format(segmentStamp) + f.ext
	if err := os.Rename(f.path, sealed); err != nil {
		return errors.Join(err, f.open())
	}
	if f.gzip {
		if err := gzipFile(sealed); err != nil {
			return err
		}
	}
	//2.- Apply retention, then start a fresh live file.
	for _, old := range f.policy.expired(f.segments(), f.now()) {
		_ = os.Remove(old.path)
	}
	return f.open()
}

// segments lists the sealed files of this log, newest first. Names that do not carry a
// stamp are left alone.
func (f *segmentedFile) segments() []segment {
	matches, err := filepath.Glob(f.stem + "-*")
	if err != nil {
		return nil
	}
	var out []segment
	for _, match := range matches {
		stamp := strings.TrimPrefix(match, f.stem+"-")
		stamp = strings.TrimSuffix(strings.TrimSuffix(stamp, ".gz"), f.ext)
		sealed, err := time.Parse(segmentStamp, stamp)
		if err != nil {
			continue
		}
		out = append(out, segment{path: match, sealed: sealed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sealed.After(out[j].sealed) })
	return out
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) (err error) {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(path+".gz", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(path + ".gz")
		}
	}()
	zw := gzip.NewWriter(out)
	if _, err = io.Copy(zw, in); err != nil {
		return errors.Join(err, zw.Close())
	}
	if err = zw.Close(); err != nil {
		return err
	}
	_ = in.Close()
	return os.Remove(path)
}
