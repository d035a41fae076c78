package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir checks the migrations under dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS requires every .sql file to be named <version>_<slug>.sql with a
// unique version, and to declare its Up section before its Down section.
func ValidateFS(fsys fs.FS) error {
	_, err := scan(fsys, true)
	return err
}

func existingVersions(fsys fs.FS) (map[string]bool, error) {
	return scan(fsys, false)
}

func scan(fsys fs.FS, checkBody bool) (map[string]bool, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	seen := make(map[string]string, len(entries))
	versions := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := seen[m[1]]; dup {
			return nil, fmt.Errorf("version %s used by both %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name
		versions[m[1]] = true

		if !checkBody {
			continue
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		up := strings.Index(string(body), upMarker)
		down := strings.Index(string(body), downMarker)
		switch {
		case up < 0:
			return nil, fmt.Errorf("%q has no %q section", name, upMarker)
		case down < 0:
			return nil, fmt.Errorf("%q has no %q section", name, downMarker)
		case down < up:
			return nil, fmt.Errorf("%q declares Down before Up", name)
		}
	}
	return versions, nil
}
