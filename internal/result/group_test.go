package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroups(t *testing.T) {
	r := New(
		ChangeRecord{Filename: "index.php", FileType: File, Update: Sent, Reason: Reasons{ReasonChecksum, ReasonSize}},
		ChangeRecord{Filename: "assets/", FileType: Directory, Update: Created, Reason: Reasons{ReasonNew}},
		ChangeRecord{Filename: "README", FileType: File, Update: Sent, Reason: Reasons{ReasonTime}},
		ChangeRecord{Filename: "app.js", FileType: File, Update: Sent, Reason: Reasons{ReasonSize, ReasonChecksum}},
		ChangeRecord{Filename: "run.sh", FileType: File, Update: Sent, Reason: Reasons{ReasonPermissions}},
		ChangeRecord{Filename: "old.php", FileType: File, Update: Deleted},
	)

	groups := r.Groups(AnyUpdate)
	require.Len(t, groups, 3)

	assert.Equal(t, "sent:file", groups[0].Key())
	assert.Equal(t, 3, groups[0].Count())
	require.Len(t, groups[0].Reasons, 2)
	assert.Equal(t, ReasonGroup{Reason: "checksum,size", Filenames: []string{"index.php", "app.js"}}, groups[0].Reasons[0])
	assert.Equal(t, ReasonGroup{Reason: "permissions", Filenames: []string{"run.sh"}}, groups[0].Reasons[1])

	assert.Equal(t, "created:directory", groups[1].Key())
	assert.Equal(t, []string{"assets/"}, groups[1].Reasons[0].Filenames)

	assert.Equal(t, "deleted:file", groups[2].Key())
	assert.Equal(t, "", groups[2].Reasons[0].Reason)
}

func TestGroups_Filtered(t *testing.T) {
	r := New(
		ChangeRecord{Filename: "a", FileType: File, Update: Sent, Reason: Reasons{ReasonChecksum}},
		ChangeRecord{Filename: "b", FileType: File, Update: Deleted},
	)
	groups := r.Groups(Deleted)
	require.Len(t, groups, 1)
	assert.Equal(t, "deleted:file", groups[0].Key())
}

func TestGroups_Empty(t *testing.T) {
	assert.Empty(t, New().Groups(AnyUpdate))
}
