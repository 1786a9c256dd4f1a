// Package symlink creates the relative symbolic link that exposes the
// generated client file outside its package.
package symlink

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Options controls the messages printed by Create.
type Options struct {
	// SuccessMessage is printed when a link is newly created.
	SuccessMessage string

	// PermissionMessage is printed when the link is missing and cannot be
	// created for lack of permission.
	PermissionMessage string

	// Out receives the messages. Nil means os.Stdout.
	Out io.Writer
}

// Create makes linkPath a symbolic link to target. The link stores the
// path of target relative to the directory of linkPath. It does nothing
// when the link already points there, and replaces a link pointing
// elsewhere. Permission errors print PermissionMessage and are not
// returned.
func Create(linkPath, target string, opts Options) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	absLink, err := filepath.Abs(linkPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", linkPath, err)
	}
	absTarget := target
	if !filepath.IsAbs(absTarget) {
		absTarget, err = filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", target, err)
		}
	}
	rel, err := filepath.Rel(filepath.Dir(absLink), absTarget)
	if err != nil {
		return fmt.Errorf("relative path to %s: %w", target, err)
	}

	if current, err := os.Readlink(absLink); err == nil {
		if current == rel {
			return nil
		}
		if err := os.Remove(absLink); err != nil {
			return permissionOr(err, opts.PermissionMessage, out)
		}
	} else if info, statErr := os.Lstat(absLink); statErr == nil && info.Mode()&fs.ModeSymlink == 0 {
		return fmt.Errorf("create link %s: a file that is not a symbolic link exists", linkPath)
	}

	if err := os.MkdirAll(filepath.Dir(absLink), 0o755); err != nil {
		return permissionOr(err, opts.PermissionMessage, out)
	}
	if err := os.Symlink(rel, absLink); err != nil {
		return permissionOr(err, opts.PermissionMessage, out)
	}
	if opts.SuccessMessage != "" {
		fmt.Fprintln(out, opts.SuccessMessage)
	}
	return nil
}

func permissionOr(err error, message string, out io.Writer) error {
	if errors.Is(err, fs.ErrPermission) {
		if message != "" {
			fmt.Fprintln(out, message)
		}
		return nil
	}
	return fmt.Errorf("create link: %w", err)
}
