package worker

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// effectiveMtimeNs is the newer of the directory's own mtime and the mtime of
// the marker file inside it, in Unix nanoseconds. Touching the marker forces
// the next cycle to re-read a directory whose entries did not change.
func effectiveMtimeNs(dir, marker string) (int64, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	mtime := info.ModTime().UnixNano()

	if marker == "" {
		return mtime, nil
	}
	markerInfo, err := os.Stat(filepath.Join(dir, marker))
	if err != nil {
		if os.IsNotExist(err) {
			return mtime, nil
		}
		return 0, errors.WithStack(err)
	}
	return max(mtime, markerInfo.ModTime().UnixNano()), nil
}
