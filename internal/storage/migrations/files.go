package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// migration is one embedded SQL file.
type migration struct {
	name string
	sql  string
}

// load returns the non-empty .sql files under dir in lexical order.
func load(fsys fs.FS, dir string) ([]migration, error) {
	names, err := fs.Glob(fsys, dir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list embedded %s migrations: %w", dir, err)
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, path := range names {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, migration{name: strings.TrimPrefix(path, dir+"/"), sql: string(data)})
	}
	return out, nil
}

// apply runs every migration under dir through exec. With split set, each
// file is executed one statement at a time.
func apply(ctx context.Context, fsys fs.FS, dir string, split bool, exec func(context.Context, string) error) error {
	files, err := load(fsys, dir)
	if err != nil {
		return err
	}
	for _, m := range files {
		stmts := []string{m.sql}
		if split {
			if stmts, err = splitStatements(m.sql); err != nil {
				return fmt.Errorf("parse migration %s: %w", m.name, err)
			}
		}
		for _, stmt := range stmts {
			if err := exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", m.name, err)
			}
		}
	}
	return nil
}
