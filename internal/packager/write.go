package packager

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxOptions is the largest option count a multi-choice group may hold.
const MaxOptions = 32

// GeneratedTag marks the description of every group this package writes.
const GeneratedTag = "-generated"

var lower = cases.Lower(language.Und)

// Split tags group as generated once and breaks it into groups of at most limit
// options. Single-choice groups are never split. Split groups are named
// "Name (i)" counting from one.
func Split(group *Group, limit int) []*Group {
	if limit <= 0 {
		limit = MaxOptions
	}
	if !strings.HasSuffix(group.Description, GeneratedTag) {
		group.Description += " " + GeneratedTag
	}
	if group.Type == TypeSingle || len(group.Options) <= limit {
		return []*Group{group}
	}

	var parts []*Group
	for start, i := 0, 0; start < len(group.Options); start, i = start+limit, i+1 {
		end := min(start+limit, len(group.Options))
		parts = append(parts, &Group{
			Name:            fmt.Sprintf("%s (%d)", group.Name, i+1),
			Description:     group.Description,
			Priority:        group.Priority,
			Type:            group.Type,
			DefaultSettings: group.DefaultSettings,
			Options:         group.Options[start:end],
		})
	}
	return parts
}

// FileName returns the group file name for the index-th written group.
func FileName(index int, name string) string {
	return fmt.Sprintf("group_%03d_%s.json", index, strings.ReplaceAll(lower.String(name), " ", "_"))
}

// Write splits group and writes every part under dir. It returns the paths
// written. Groups without options are not written.
func Write(dir string, index int, group *Group) ([]string, error) {
	if len(group.Options) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create group dir: %w", err)
	}
	base := FileName(index, group.Name)
	parts := Split(group, MaxOptions)

	paths := make([]string, 0, len(parts))
	for i, part := range parts {
		name := base
		if len(parts) > 1 {
			name = strings.TrimSuffix(base, ".json") + fmt.Sprintf(" (%d).json", i)
		}
		path := filepath.Join(dir, name)
		data, err := json.MarshalIndent(part, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("encode group %q: %w", part.Name, err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return paths, fmt.Errorf("write group %q: %w", part.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadGroup decodes a group file.
func ReadGroup(path string) (*Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var group Group
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("decode group %s: %w", path, err)
	}
	return &group, nil
}

// Clean removes everything a previous export wrote under root: files whose
// name carries the generated suffix and group files tagged as generated.
// Unreadable JSON files are left alone.
func Clean(root string) ([]string, error) {
	var removed []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}
		name := entry.Name()
		generated := strings.Contains(name, "_generated")
		if !generated && strings.EqualFold(filepath.Ext(name), ".json") {
			if group, err := ReadGroup(path); err == nil && strings.Contains(group.Description, GeneratedTag) {
				generated = true
			}
		}
		if !generated {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, path)
		return nil
	})
	return removed, err
}
