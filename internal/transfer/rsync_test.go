package transfer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/result"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/shell"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemized = `sending incremental file list
<f.st...... index.php
.d..t...... ./
cd+++++++++ assets/
<f+++++++++ assets/app.js
.f..t...... README.md
.f...p..... bin/run.sh
cL+++++++++ current -> releases/42
*deleting   old.php
*deleting   legacy/
>f.s....... pulled.txt
.f....og... owned
.f.......ax acl-and-xattr

sent 1,234 bytes  received 56 bytes  2,580.00 bytes/sec
total size is 9,876  speedup is 7.65
`

func TestParseItemized(t *testing.T) {
	r := ParseItemized(itemized)
	recs := slices.Collect(r.All())

	want := []result.ChangeRecord{
		{Filename: "index.php", FileType: result.File, Update: result.Sent, Reason: result.Reasons{result.ReasonSize, result.ReasonTime}},
		{Filename: "./", FileType: result.Directory, Update: result.Attributes, Reason: result.Reasons{result.ReasonTime}},
		{Filename: "assets/", FileType: result.Directory, Update: result.Created, Reason: result.Reasons{result.ReasonNew}},
		{Filename: "assets/app.js", FileType: result.File, Update: result.Sent, Reason: result.Reasons{result.ReasonNew}},
		{Filename: "README.md", FileType: result.File, Update: result.Attributes, Reason: result.Reasons{result.ReasonTime}},
		{Filename: "bin/run.sh", FileType: result.File, Update: result.Attributes, Reason: result.Reasons{result.ReasonPermissions}},
		{Filename: "current", FileType: result.Symlink, Update: result.Created, Reason: result.Reasons{result.ReasonNew}},
		{Filename: "old.php", FileType: result.File, Update: result.Deleted},
		{Filename: "legacy/", FileType: result.Directory, Update: result.Deleted},
		{Filename: "pulled.txt", FileType: result.File, Update: result.Received, Reason: result.Reasons{result.ReasonSize}},
		{Filename: "owned", FileType: result.File, Update: result.Attributes, Reason: result.Reasons{result.ReasonOwner, result.ReasonGroupOwner}},
		{Filename: "acl-and-xattr", FileType: result.File, Update: result.Attributes, Reason: result.Reasons{result.ReasonACL, result.ReasonXattr}},
	}
	assert.Equal(t, want, recs)

	totals := r.Summarize()
	assert.Equal(t, 2, totals[result.Sent])
	assert.Equal(t, 1, totals[result.Received])
	assert.Equal(t, 2, totals[result.Created])
	assert.Equal(t, 2, totals[result.Deleted])
	assert.Equal(t, 5, totals[result.Attributes])

	var shown []string
	for rec := range r.FilterForDisplay(result.AnyUpdate) {
		shown = append(shown, rec.Filename)
	}
	assert.NotContains(t, shown, "README.md")
	assert.NotContains(t, shown, "./")
	assert.Contains(t, shown, "index.php")
}

func TestParseLine_Rejects(t *testing.T) {
	for _, line := range []string{
		"",
		"sending incremental file list",
		"sent 1,234 bytes  received 56 bytes",
		"created directory /var/www",
		"*deleting",
		"<f.st......",
		"Zf......... weird",
	} {
		_, ok := ParseLine(line)
		assert.False(t, ok, "line %q should be skipped", line)
	}
}

func TestParseLine_LinkTargets(t *testing.T) {
	tests := []struct {
		line string
		want result.ChangeRecord
	}{
		{
			line: "cL+++++++++ current -> releases/42",
			want: result.ChangeRecord{Filename: "current", FileType: result.Symlink, Update: result.Created, Reason: result.Reasons{result.ReasonNew}},
		},
		{
			line: ".L..t...... shared/logs -> /var/log/site",
			want: result.ChangeRecord{Filename: "shared/logs", FileType: result.Symlink, Update: result.Attributes, Reason: result.Reasons{result.ReasonTime}},
		},
		{
			line: "hf+++++++++ copy.txt => original.txt",
			want: result.ChangeRecord{Filename: "copy.txt", FileType: result.File, Update: result.Created, Reason: result.Reasons{result.ReasonNew}},
		},
		{
			line: "<f+++++++++ a -> b.txt",
			want: result.ChangeRecord{Filename: "a -> b.txt", FileType: result.File, Update: result.Sent, Reason: result.Reasons{result.ReasonNew}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rec, ok := ParseLine(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.want, rec)
		})
	}
}

func TestCommand(t *testing.T) {
	r := NewRsync(shell.NewFake())
	cmd := r.Command(Request{
		Source:      "/tmp/beam/site/",
		Destination: "deploy@example.com:/var/www/",
		Excludes:    []string{".git", "it's/"},
		DryRun:      true,
		Delete:      true,
	})
	assert.Equal(t,
		`'rsync' '-rlptDz' '--checksum' --itemize-changes --delete --dry-run --exclude='.git' --exclude='it'\''s/' '/tmp/beam/site/' 'deploy@example.com:/var/www/'`,
		cmd)
}

func TestCommand_CustomFlags(t *testing.T) {
	r := NewRsync(shell.NewFake())
	r.Binary = "/usr/local/bin/rsync"
	r.Flags = []string{"-a"}
	assert.Equal(t, `'/usr/local/bin/rsync' '-a' --itemize-changes '/src/' '/dst/'`, r.Command(Request{Source: "/src", Destination: "/dst/"}))
}

func TestSync_UsesRunner(t *testing.T) {
	fake := shell.NewFake().OnPrefix("'rsync'", shell.Response{Stdout: "<f+++++++++ new.txt\n"})
	r := NewRsync(fake)

	res, err := r.Sync(context.Background(), Request{Source: "/snap", Destination: "/dst/"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())
	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, "/snap", fake.Calls()[0].Dir)
}

func TestSync_Failure(t *testing.T) {
	fake := shell.NewFake().OnPrefix("'rsync'", shell.Response{Stderr: "rsync: connection unexpectedly closed\n", ExitCode: 12})
	r := NewRsync(fake)

	_, err := r.Sync(context.Background(), Request{Source: "/snap", Destination: "h:/dst/"})
	require.ErrorIs(t, err, errclass.ErrTransfer)
	assert.Contains(t, err.Error(), "exit code 12")
	assert.Contains(t, err.Error(), "connection unexpectedly closed")
}

func TestSync_RequiresPaths(t *testing.T) {
	_, err := NewRsync(shell.NewFake()).Sync(context.Background(), Request{Source: "/snap"})
	require.ErrorIs(t, err, errclass.ErrTransfer)
}

func TestSync_Integration(t *testing.T) {
	if _, err := exec.LookPath("rsync"); err != nil {
		t.Skip("rsync not installed")
	}
	src := t.TempDir()
	dst := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "gone.txt"), []byte("bye"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "skip.log"), []byte("x"), 0644))

	r := NewRsync(nil)
	res, err := r.Sync(context.Background(), Request{Source: src, Destination: dst, Delete: true, Excludes: []string{"*.log"}})
	require.NoError(t, err)

	totals := res.Summarize()
	assert.Equal(t, 1, totals[result.Sent])
	assert.Equal(t, 1, totals[result.Deleted])
	assert.FileExists(t, filepath.Join(dst, "a.txt"))
	assert.NoFileExists(t, filepath.Join(dst, "gone.txt"))
	assert.NoFileExists(t, filepath.Join(dst, "skip.log"))
}
