package result

// ReasonGroup lists the files flagged for the same set of reasons.
type ReasonGroup struct {
	Reason    string   `json:"reason"`
	Filenames []string `json:"filenames"`
}

// Group collects displayable records sharing an update kind and file type.
type Group struct {
	Update   UpdateKind    `json:"update"`
	FileType FileType      `json:"filetype"`
	Reasons  []ReasonGroup `json:"reasons"`
}

// Key returns the "update:filetype" label of the group.
func (g Group) Key() string {
	return string(g.Update) + ":" + string(g.FileType)
}

// Count returns the number of files in the group.
func (g Group) Count() int {
	n := 0
	for _, rg := range g.Reasons {
		n += len(rg.Filenames)
	}
	return n
}

// Groups arranges the records FilterForDisplay(kind) yields by
// update:filetype, then by reason set. Groups, reason groups and filenames
// keep the order in which they first appear.
func (r *Result) Groups(kind UpdateKind) []Group {
	var groups []Group
	groupIdx := map[string]int{}
	reasonIdx := map[string]map[string]int{}

	for rec := range r.FilterForDisplay(kind) {
		key := string(rec.Update) + ":" + string(rec.FileType)
		gi, ok := groupIdx[key]
		if !ok {
			gi = len(groups)
			groupIdx[key] = gi
			reasonIdx[key] = map[string]int{}
			groups = append(groups, Group{Update: rec.Update, FileType: rec.FileType})
		}

		reason := rec.Reason.Key()
		ri, ok := reasonIdx[key][reason]
		if !ok {
			ri = len(groups[gi].Reasons)
			reasonIdx[key][reason] = ri
			groups[gi].Reasons = append(groups[gi].Reasons, ReasonGroup{Reason: reason})
		}
		groups[gi].Reasons[ri].Filenames = append(groups[gi].Reasons[ri].Filenames, rec.Filename)
	}
	return groups
}
