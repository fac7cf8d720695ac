package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeReposYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repos.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write repos.yaml: %v", err)
	}
	return path
}

func TestLoadRepoRegistryMissingFileIsEmpty(t *testing.T) {
	registry, err := loadRepoRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadRepoRegistry: %v", err)
	}
	if len(registry.repos) != 0 {
		t.Errorf("expected empty registry, got %d entries", len(registry.repos))
	}
}

func TestLoadRepoRegistryParsesEntries(t *testing.T) {
	path := writeReposYAML(t, `
- repo_addr: "30617:abcd:widgets"
  vendor: github
  owner_repo: acme/widgets
  branch: main
`)
	registry, err := loadRepoRegistry(path)
	if err != nil {
		t.Fatalf("loadRepoRegistry: %v", err)
	}
	if len(registry.repos) != 1 || registry.repos[0].RepoAddr != "30617:abcd:widgets" {
		t.Fatalf("unexpected repos: %+v", registry.repos)
	}
}

func TestRepoRegistryResolveMatchesCaseInsensitiveOwnerRepo(t *testing.T) {
	path := writeReposYAML(t, `
- repo_addr: "30617:abcd:widgets"
  vendor: github
  owner_repo: Acme/Widgets
`)
	registry, err := loadRepoRegistry(path)
	if err != nil {
		t.Fatalf("loadRepoRegistry: %v", err)
	}

	resolve := registry.resolve("/workspace")
	repoAddr, dir, ok := resolve(context.Background(), "github", "acme/widgets")
	if !ok {
		t.Fatal("expected a match")
	}
	if repoAddr != "30617:abcd:widgets" {
		t.Errorf("unexpected repo addr: %q", repoAddr)
	}
	if dir != filepath.Join("/workspace", "30617_abcd_widgets") {
		t.Errorf("unexpected dir: %q", dir)
	}
}

func TestRepoRegistryResolveNoMatch(t *testing.T) {
	registry := &repoRegistry{}
	resolve := registry.resolve("/workspace")
	if _, _, ok := resolve(context.Background(), "github", "acme/widgets"); ok {
		t.Fatal("expected no match against an empty registry")
	}
}

func TestSafeWorkspaceNameReplacesSeparators(t *testing.T) {
	got := safeWorkspaceName("30617:abcd:acme/widgets")
	want := "30617_abcd_acme_widgets"
	if got != want {
		t.Errorf("safeWorkspaceName = %q, want %q", got, want)
	}
}
