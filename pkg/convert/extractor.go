package convert

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nwaples/rardecode"
	"github.com/pkg/errors"
)

const (
	archivePlaceholder = "{archive}"
	destPlaceholder    = "{dest}"

	maxEntrySize = 512 * 1024 * 1024
)

// Extractor unpacks a legacy archive into an empty destination directory.
type Extractor interface {
	Extract(ctx context.Context, archive, dest string) error
}

// CommandExtractor runs an external tool such as unrar. Every occurrence of
// {archive} and {dest} in Args is replaced before the command runs.
type CommandExtractor struct {
	Command string
	Args    []string
}

func (e *CommandExtractor) Extract(ctx context.Context, archive, dest string) error {
	args := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		arg = strings.ReplaceAll(arg, archivePlaceholder, archive)
		arg = strings.ReplaceAll(arg, destPlaceholder, dest)
		args = append(args, arg)
	}

	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Dir = dest
	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return errors.Wrapf(ctx.Err(), "%s did not finish", e.Command)
	}
	if err != nil {
		output := strings.TrimSpace(string(out))
		if len(output) > 500 {
			output = output[len(output)-500:]
		}
		return errors.Wrapf(err, "%s failed: %s", e.Command, output)
	}
	return nil
}

// RarExtractor decodes RAR archives in-process.
type RarExtractor struct{}

func (RarExtractor) Extract(ctx context.Context, archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	rr, err := rardecode.NewReader(f, "")
	if err != nil {
		return errors.Wrap(err, "invalid or corrupt rar file")
	}

	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		header, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "error reading rar archive")
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		if header.IsDir {
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.WithStack(err)
			}
			continue
		}

		if err := writeEntry(target, rr); err != nil {
			return err
		}
	}
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.WithStack(err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	n, err := io.Copy(out, io.LimitReader(r, maxEntrySize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.WithStack(err)
	}
	if n > maxEntrySize {
		return errors.Errorf("entry %s exceeds %d bytes", filepath.Base(target), maxEntrySize)
	}
	return nil
}

// safeJoin joins an archive entry name onto dest and rejects names that
// would land outside it.
func safeJoin(dest, name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", errors.Errorf("unsafe archive path: %s", name)
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("unsafe archive path: %s", name)
	}
	return target, nil
}
