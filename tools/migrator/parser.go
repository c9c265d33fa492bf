package migrator

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Migration represents a database migration.
type Migration struct {
	Version       int
	Name          string
	UpSQL         string
	NoTransaction bool
	Dependencies  []int
}

var (
	filenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_-]+)\.sql$`)
	upMarkerRegex = regexp.MustCompile(`^--\s*\+migrate\s+Up(\s+notransaction)?\s*$`)
	dependsRegex  = regexp.MustCompile(`^--\s*\+migrate\s+Depends:\s*(.+)$`)
)

// ParseMigrationFile reads and parses a single migration file from fsys.
func ParseMigrationFile(fsys fs.FS, name string) (*Migration, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration file: %w", err)
	}

	return ParseMigration(path.Base(name), string(content))
}

// ParseMigration parses the content of a migration whose file name is filename.
func ParseMigration(filename, content string) (*Migration, error) {
	matches := filenameRegex.FindStringSubmatch(filename)
	if matches == nil {
		return nil, fmt.Errorf("invalid migration filename format: %s (expected NNN_name.sql)", filename)
	}

	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid version number in filename: %s", matches[1])
	}

	name := matches[2]
	lines := strings.Split(content, "\n")

	// Find Up marker
	upMarkerLine := -1
	noTransaction := false

	for i, line := range lines {
		if m := upMarkerRegex.FindStringSubmatch(line); m != nil {
			upMarkerLine = i
			noTransaction = strings.TrimSpace(m[1]) == "notransaction"
			break
		}
	}

	if upMarkerLine < 0 {
		return nil, fmt.Errorf("missing '-- +migrate Up' marker in migration file: %s", filename)
	}

	// Dependency directives sit between the Up marker and the first statement
	var dependencies []int
	sqlStartLine := upMarkerLine + 1

	for i := upMarkerLine + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if m := dependsRegex.FindStringSubmatch(line); m != nil {
			depsStr := strings.TrimSpace(m[1])
			if depsStr == "" {
				return nil, fmt.Errorf("empty dependency list in migration file: %s", filename)
			}

			for _, depStr := range strings.Fields(depsStr) {
				dep, err := strconv.Atoi(depStr)
				if err != nil {
					return nil, fmt.Errorf("invalid dependency version '%s' in migration file: %s", depStr, filename)
				}
				dependencies = append(dependencies, dep)
			}
			sqlStartLine = i + 1
			continue
		}

		if line == "" || strings.HasPrefix(line, "--") {
			sqlStartLine = i + 1
			continue
		}

		sqlStartLine = i
		break
	}

	if sqlStartLine > len(lines) {
		sqlStartLine = len(lines)
	}
	sql := strings.TrimSpace(strings.Join(lines[sqlStartLine:], "\n"))

	if sql == "" {
		return nil, fmt.Errorf("migration file contains no SQL statements: %s", filename)
	}

	return &Migration{
		Version:       version,
		Name:          name,
		UpSQL:         sql,
		NoTransaction: noTransaction,
		Dependencies:  dependencies,
	}, nil
}

// LoadMigrations loads all migrations under dir in fsys, validates them, and
// returns them sorted by version.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// Only files matching the migration pattern are considered
		if !filenameRegex.MatchString(entry.Name()) {
			continue
		}

		migration, err := ParseMigrationFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	if err := detectCycle(migrations); err != nil {
		return nil, err
	}

	versionSet := make(map[int]bool)
	for _, m := range migrations {
		versionSet[m.Version] = true
	}

	for _, m := range migrations {
		for _, dep := range m.Dependencies {
			if !versionSet[dep] {
				return nil, fmt.Errorf("migration %d depends on non-existent version %d", m.Version, dep)
			}
		}
	}

	// Versions must run 1..N without gaps or duplicates
	expectedVersion := 1
	for i, m := range migrations {
		if i > 0 && migrations[i-1].Version == m.Version {
			return nil, fmt.Errorf("duplicate migration version: %d", m.Version)
		}
		if m.Version != expectedVersion {
			return nil, fmt.Errorf("gap in migration versions: expected %d, found %d", expectedVersion, m.Version)
		}
		expectedVersion++
	}

	return migrations, nil
}

// detectCycle uses a three-color DFS algorithm to detect circular dependencies.
// White (0) = unvisited, Gray (1) = visiting, Black (2) = completed
func detectCycle(migrations []Migration) error {
	graph := make(map[int][]int)
	color := make(map[int]int)
	for _, m := range migrations {
		graph[m.Version] = m.Dependencies
		color[m.Version] = 0
	}

	var dfs func(int, []int) error
	dfs = func(node int, path []int) error {
		color[node] = 1
		path = append(path, node)

		for _, dep := range graph[node] {
			if color[dep] == 1 {
				return fmt.Errorf("circular dependency detected: %v", append(path, dep))
			}
			if color[dep] == 0 {
				if err := dfs(dep, path); err != nil {
					return err
				}
			}
		}

		color[node] = 2
		return nil
	}

	for _, m := range migrations {
		if color[m.Version] == 0 {
			if err := dfs(m.Version, []int{}); err != nil {
				return err
			}
		}
	}

	return nil
}
