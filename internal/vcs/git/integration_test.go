package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not installed")
	}
}

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1", "HOME="+dir)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s", out)
	return string(out)
}

// initRepo creates a repository with one commit on main containing
// hello.txt and sub/nested.txt.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitCmd(t, dir, "init", "-b", "main")
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("v1\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("n\n"), 0644))
	gitCmd(t, dir, "add", ".")
	gitCmd(t, dir, "commit", "-m", "initial")
	return dir
}

func TestIntegration_ExportRefIsDestructiveIdempotent(t *testing.T) {
	requireGit(t)
	repo := initRepo(t)
	g := New(repo, nil)
	ctx := context.Background()

	location := filepath.Join(t.TempDir(), "staging")
	require.NoError(t, os.MkdirAll(location, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(location, "residue.txt"), []byte("x"), 0644))

	for i := 0; i < 2; i++ {
		require.NoError(t, g.ExportRef(ctx, "main", location))

		assert.NoFileExists(t, filepath.Join(location, "residue.txt"))
		assert.NoDirExists(t, filepath.Join(location, ".git"))
		got, err := os.ReadFile(filepath.Join(location, "hello.txt"))
		require.NoError(t, err)
		assert.Equal(t, "v1\n", string(got))
		assert.FileExists(t, filepath.Join(location, "sub", "nested.txt"))

		// leave something behind for the next round
		require.NoError(t, os.WriteFile(filepath.Join(location, "residue.txt"), []byte("x"), 0644))
	}
}

func TestIntegration_ExportRefUsesRefNotWorkingTree(t *testing.T) {
	requireGit(t)
	repo := initRepo(t)
	gitCmd(t, repo, "tag", "v1")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "hello.txt"), []byte("v2\n"), 0644))
	gitCmd(t, repo, "commit", "-am", "second")
	require.NoError(t, os.WriteFile(filepath.Join(repo, "hello.txt"), []byte("dirty\n"), 0644))

	g := New(repo, nil)
	location := filepath.Join(t.TempDir(), "out")
	require.NoError(t, g.ExportRef(context.Background(), "v1", location))

	got, err := os.ReadFile(filepath.Join(location, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1\n", string(got))
}

func TestIntegration_ExportRefInvalidRef(t *testing.T) {
	requireGit(t)
	g := New(initRepo(t), nil)

	err := g.ExportRef(context.Background(), "does-not-exist", filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
}

func TestIntegration_Refs(t *testing.T) {
	requireGit(t)
	repo := initRepo(t)
	gitCmd(t, repo, "branch", "feature")
	g := New(repo, nil)
	ctx := context.Background()

	assert.True(t, g.Exists())

	branch, err := g.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	branches, err := g.AvailableBranches(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"feature", "main"}, branches)

	assert.True(t, g.IsValidRef(ctx, "main"))
	assert.True(t, g.IsValidRef(ctx, "HEAD"))
	assert.False(t, g.IsValidRef(ctx, "nope"))

	full, err := g.ResolveReference(ctx, "main", false)
	require.NoError(t, err)
	assert.Len(t, full, 40)
	short, err := g.ResolveReference(ctx, "main", true)
	require.NoError(t, err)
	assert.True(t, len(short) >= 4 && len(short) < 40)
	assert.Equal(t, full[:len(short)], short)

	owner, err := g.BranchForReference(ctx, full)
	require.NoError(t, err)
	assert.Equal(t, "main", owner, "current branch wins when several contain the commit")

	assert.Equal(t, "Test <test@test.com>", g.UserIdentity(ctx))

	log, err := g.Log(ctx, "main")
	require.NoError(t, err)
	assert.Contains(t, log, "Deployer: Test <test@test.com>\nRef: main\ncommit "+full)
	assert.Contains(t, log, "initial")
}
