package supervisor

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/rover-supervisor/internal/logger"
)

// logBanner prints the startup banner at SUCCESS level, including the
// current git branch and commit when a .git directory happens to be
// present. Grounded in the Python original's boot-time banner + git
// branch/commit log line; a missing .git directory is not an error, it
// just logs "-" for both fields.
func logBanner(log *slog.Logger) {
	branch, commit := gitHeadInfo(".")
	logger.Success(log, "rover-supervisor starting", slog.String("branch", branch), slog.String("commit", commit))
}

func gitHeadInfo(repoRoot string) (branch, commit string) {
	branch, commit = "-", "-"

	headPath := filepath.Join(repoRoot, ".git", "HEAD")
	headBytes, err := os.ReadFile(headPath) // #nosec G304 -- fixed relative path under the working directory
	if err != nil {
		return
	}
	head := strings.TrimSpace(string(headBytes))

	const refPrefix = "ref: "
	if !strings.HasPrefix(head, refPrefix) {
		// detached HEAD: the file itself holds the commit hash.
		commit = head
		return
	}

	ref := strings.TrimPrefix(head, refPrefix)
	branch = filepath.Base(ref)

	refPath := filepath.Join(repoRoot, ".git", filepath.FromSlash(ref))
	if commitBytes, err := os.ReadFile(refPath); err == nil { // #nosec G304 -- path derived from .git/HEAD, not user input
		commit = strings.TrimSpace(string(commitBytes))
		return
	}

	// Loose ref file absent: fall back to packed-refs.
	packed, err := os.ReadFile(filepath.Join(repoRoot, ".git", "packed-refs")) // #nosec G304
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(packed), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, " "+ref) {
			fields := strings.Fields(line)
			if len(fields) > 0 {
				commit = fields[0]
			}
			return
		}
	}
	return
}
