package replay

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hovercar/core/internal/logging"
)

// RetentionPolicy defines how many session bundles are retained on disk.
type RetentionPolicy struct {
	MaxSessions int
	MaxAge      time.Duration
}

// StorageStats summarises the disk footprint of persisted sessions.
type StorageStats struct {
	Sessions  int       `json:"sessions"`
	Removed   int       `json:"removed"`
	Bytes     int64     `json:"bytes"`
	LastSweep time.Time `json:"last_sweep"`
}

// Cleaner prunes session bundles according to a retention policy.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a cleaner for the provided replay directory.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run sweeps eagerly and then on every interval until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) error {
	if c == nil {
		return nil
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.RunOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RunOnce()
		}
	}
}

// RunOnce performs a single retention sweep.
func (c *Cleaner) RunOnce() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("replay retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}
	//1.- Only session directories holding a manifest are managed; anything else is left alone.
	sessions := c.collect(entries)
	now := c.now()
	stats := StorageStats{LastSweep: now}
	kept := 0
	for _, session := range sessions {
		if remove, reason := c.shouldRemove(session, now, kept); remove {
			if err := os.RemoveAll(session.path); err == nil {
				c.log.Info("replay retention removed session", logging.String("session", session.name), logging.String("reason", reason))
				stats.Removed++
				continue
			} else {
				c.log.Warn("replay retention removal failed", logging.Error(err), logging.String("session", session.name))
			}
		}
		kept++
		stats.Sessions++
		stats.Bytes += session.size
	}
	c.mu.Lock()
	//2.- Publish the refreshed statistics so status endpoints can report storage usage.
	c.stats = stats
	c.mu.Unlock()
}

// Stats returns the last recorded storage statistics.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type session struct {
	name    string
	path    string
	size    int64
	modTime time.Time
}

func (c *Cleaner) collect(entries []os.DirEntry) []session {
	sessions := make([]session, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		if _, err := os.Stat(filepath.Join(path, ManifestFile)); err != nil {
			continue
		}
		size, modTime, err := directoryFootprint(path)
		if err != nil {
			c.log.Warn("replay retention size failed", logging.Error(err), logging.String("path", path))
			continue
		}
		sessions = append(sessions, session{name: entry.Name(), path: path, size: size, modTime: modTime})
	}
	//1.- Sort newest-first so retention limits favour recent sessions.
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].modTime.Equal(sessions[j].modTime) {
			return sessions[i].name > sessions[j].name
		}
		return sessions[i].modTime.After(sessions[j].modTime)
	})
	return sessions
}

func (c *Cleaner) shouldRemove(s session, now time.Time, kept int) (bool, string) {
	reasons := make([]string, 0, 2)
	if c.policy.MaxAge > 0 && now.Sub(s.modTime) > c.policy.MaxAge {
		reasons = append(reasons, fmt.Sprintf("age>%s", c.policy.MaxAge))
	}
	if c.policy.MaxSessions > 0 && kept >= c.policy.MaxSessions {
		reasons = append(reasons, fmt.Sprintf(">=%d sessions", c.policy.MaxSessions))
	}
	return len(reasons) > 0, strings.Join(reasons, ", ")
}

// directoryFootprint sums file sizes and reports the newest modification time below root.
func directoryFootprint(root string) (int64, time.Time, error) {
	var (
		total  int64
		newest time.Time
	)
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		if !d.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, newest, err
}
