// Package result models what a transfer did to each file and aggregates
// those outcomes for reporting.
package result

import (
	"fmt"
	"slices"
	"strings"
)

// UpdateKind is what happened to a file.
type UpdateKind string

const (
	Sent       UpdateKind = "sent"
	Received   UpdateKind = "received"
	Created    UpdateKind = "created"
	Deleted    UpdateKind = "deleted"
	Attributes UpdateKind = "attributes"

	// AnyUpdate disables update-kind filtering.
	AnyUpdate UpdateKind = ""
)

// UpdateKinds lists every update kind in reporting order.
var UpdateKinds = []UpdateKind{Sent, Received, Created, Deleted, Attributes}

// ParseUpdateKind validates s as an update kind. The empty string parses
// as AnyUpdate.
func ParseUpdateKind(s string) (UpdateKind, error) {
	k := UpdateKind(strings.ToLower(strings.TrimSpace(s)))
	if k == AnyUpdate || slices.Contains(UpdateKinds, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown update kind %q", s)
}

// FileType is a coarse classification of the synced item.
type FileType string

const (
	File      FileType = "file"
	Directory FileType = "directory"
	Symlink   FileType = "symlink"
	Device    FileType = "device"
	Special   FileType = "special"
)

// Reason tags why the transfer engine flagged a file.
type Reason string

const (
	ReasonChecksum    Reason = "checksum"
	ReasonSize        Reason = "size"
	ReasonTime        Reason = "time"
	ReasonPermissions Reason = "permissions"
	ReasonOwner       Reason = "owner"
	ReasonGroupOwner  Reason = "group"
	ReasonACL         Reason = "acl"
	ReasonXattr       Reason = "xattr"
	ReasonNew         Reason = "new"
)

// Reasons is a set of cause tags. Order is not significant.
type Reasons []Reason

// Has reports whether r contains reason.
func (r Reasons) Has(reason Reason) bool {
	return slices.Contains(r, reason)
}

// TimeOnly reports whether the set is exactly {time}: the file was touched
// without any content or attribute difference.
func (r Reasons) TimeOnly() bool {
	if len(r) == 0 {
		return false
	}
	for _, reason := range r {
		if reason != ReasonTime {
			return false
		}
	}
	return true
}

// Key returns a canonical, order-independent label for the set, e.g.
// "checksum,size". An empty set yields "".
func (r Reasons) Key() string {
	uniq := make([]string, 0, len(r))
	for _, reason := range r {
		if !slices.Contains(uniq, string(reason)) {
			uniq = append(uniq, string(reason))
		}
	}
	slices.Sort(uniq)
	return strings.Join(uniq, ",")
}

// ChangeRecord is one file-level outcome reported by the transfer engine.
type ChangeRecord struct {
	Filename string     `json:"filename"`
	FileType FileType   `json:"filetype"`
	Update   UpdateKind `json:"update"`
	Reason   Reasons    `json:"reason"`
}

// Substantive reports whether the record is more than a timestamp touch.
func (c ChangeRecord) Substantive() bool {
	return !c.Reason.TimeOnly()
}

func (c ChangeRecord) String() string {
	return fmt.Sprintf("%s:%s %s [%s]", c.Update, c.FileType, c.Filename, c.Reason.Key())
}
