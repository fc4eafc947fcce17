package repository

import (
	"sort"
	"strings"

	"github.com/ukaji3/exclone-go/pkg/exclone/models"
)

// Walk collects every group and block below root. Group paths are slash-joined
// from root (root itself has path ""). Groups are ordered by depth, then path.
func Walk(repo Repository, root models.Group) ([]models.GroupInfo, []models.BlockInfo, error) {
	var groups []models.GroupInfo
	var blocks []models.BlockInfo

	var visit func(g models.Group, path string, depth int) error
	visit = func(g models.Group, path string, depth int) error {
		bs, err := repo.Blocks(g)
		if err != nil {
			return err
		}
		for _, b := range bs {
			blocks = append(blocks, models.BlockInfo{Block: b, Owner: g, Path: path})
		}
		children, err := repo.Groups(g)
		if err != nil {
			return err
		}
		for _, child := range children {
			childPath := JoinPath(path, child.Name)
			groups = append(groups, models.GroupInfo{Group: child, Path: childPath, Depth: depth + 1})
			if err := visit(child, childPath, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(root, "", 0); err != nil {
		return nil, nil, err
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Depth != groups[j].Depth {
			return groups[i].Depth < groups[j].Depth
		}
		return groups[i].Path < groups[j].Path
	})
	return groups, blocks, nil
}

// FindBlock returns the first block named name (case-insensitive) below root.
func FindBlock(repo Repository, root models.Group, name string) (models.BlockInfo, bool, error) {
	_, blocks, err := Walk(repo, root)
	if err != nil {
		return models.BlockInfo{}, false, err
	}
	for _, b := range blocks {
		if strings.EqualFold(b.Block.Name, name) {
			return b, true, nil
		}
	}
	return models.BlockInfo{}, false, nil
}

// ResolveGroup walks a slash path below root without creating anything.
func ResolveGroup(repo Repository, root models.Group, path string) (models.Group, bool, error) {
	current := root
	for _, seg := range SplitPath(path) {
		next, ok, err := repo.FindGroup(current, seg)
		if err != nil || !ok {
			return models.Group{}, false, err
		}
		current = next
	}
	return current, true, nil
}

// EnsureGroup walks a slash path below root, creating missing segments.
// It returns the final group and the number of groups created.
func EnsureGroup(repo Repository, root models.Group, path string) (models.Group, int, error) {
	current := root
	created := 0
	for _, seg := range SplitPath(path) {
		next, ok, err := repo.FindGroup(current, seg)
		if err != nil {
			return models.Group{}, created, err
		}
		if !ok {
			next, err = repo.CreateGroup(current, seg)
			if err != nil {
				return models.Group{}, created, err
			}
			created++
		}
		current = next
	}
	return current, created, nil
}

// JoinPath joins group path segments with '/'.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// SplitPath splits a slash path, dropping empty segments.
func SplitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
