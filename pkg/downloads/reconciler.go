// Package downloads reconciles files the browser driver writes to a fixed
// scratch location it does not let callers redirect. After a task run the
// reconciler moves everything found there into the task's declared download
// directory so the caller gets stable, servable paths.
package downloads

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/surf/pkg/logging"
)

// Reconciler scans a scratch root for driver download directories matching
// a fixed pattern and relocates their files.
type Reconciler struct {
	scratchRoot   string
	pattern       glob.Glob
	downloadsRoot string
	logger        *logging.Logger

	// timestamps are injectable for collision-suffix tests
	now func() time.Time
}

// NewReconciler creates a reconciler. scratchRoot is usually the system
// temp directory; pattern matches scratch directories relative to it, e.g.
// "browser_agent_*/agent_data". downloadsRoot anchors the relative paths
// returned to callers.
func NewReconciler(scratchRoot, pattern, downloadsRoot string, logger *logging.Logger) (*Reconciler, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid scratch pattern %q: %w", pattern, err)
	}
	return &Reconciler{
		scratchRoot:   scratchRoot,
		pattern:       g,
		downloadsRoot: downloadsRoot,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// Reconcile moves every regular file out of matching scratch directories
// into targetDir and returns their paths relative to the downloads root,
// in the order files were moved. Name collisions at the destination get a
// second-granularity timestamp suffix on the stem; moving is last-write-
// wins, never a merge. A failure moving one file is logged and does not
// abort the rest. Finding no scratch directories is the common case and
// returns an empty list.
func (r *Reconciler) Reconcile(targetDir string) []string {
	scratchDirs := r.findScratchDirs()
	if len(scratchDirs) == 0 {
		return nil
	}
	r.logger.Infof("found %d driver download directories under %s", len(scratchDirs), r.scratchRoot)

	var moved []string
	for _, dir := range scratchDirs {
		moved = append(moved, r.drainDir(dir, targetDir)...)

		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warnf("failed to remove scratch directory %s: %v", dir, err)
		}
	}
	return moved
}

// findScratchDirs walks the scratch root and collects directories whose
// path relative to the root matches the pattern.
func (r *Reconciler) findScratchDirs() []string {
	var dirs []string
	_ = filepath.WalkDir(r.scratchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !d.IsDir() || path == r.scratchRoot {
			return nil
		}
		rel, relErr := filepath.Rel(r.scratchRoot, path)
		if relErr != nil {
			return nil
		}
		if r.pattern.Match(filepath.ToSlash(rel)) {
			dirs = append(dirs, path)
			return filepath.SkipDir
		}
		return nil
	})
	return dirs
}

func (r *Reconciler) drainDir(scratchDir, targetDir string) []string {
	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		r.logger.Warnf("failed to read scratch directory %s: %v", scratchDir, err)
		return nil
	}

	var moved []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		src := filepath.Join(scratchDir, entry.Name())
		dest := filepath.Join(targetDir, entry.Name())

		if _, err := os.Stat(dest); err == nil {
			renamed := r.collisionName(entry.Name())
			r.logger.Warnf("download name collision, renaming %s -> %s", entry.Name(), renamed)
			dest = filepath.Join(targetDir, renamed)
		}

		if err := moveFile(src, dest); err != nil {
			r.logger.Errorf("failed to move downloaded file %s: %v", src, err)
			continue
		}
		r.logger.Infof("moved downloaded file %s -> %s", entry.Name(), dest)

		rel, err := filepath.Rel(r.downloadsRoot, dest)
		if err != nil {
			rel = dest
		}
		moved = append(moved, rel)
	}
	return moved
}

// collisionName appends a timestamp to the filename stem, keeping the
// extension: report.pdf -> report_20240131_154432.pdf.
func (r *Reconciler) collisionName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%s%s", stem, r.now().Format("20060102_150405"), ext)
}

// moveFile renames when possible and falls back to copy+remove for
// cross-device scratch locations.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return err
	}
	return os.Remove(src)
}
