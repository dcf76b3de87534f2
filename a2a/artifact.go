package a2a

// Artifact is a typed output accumulated by a task, possibly delivered
// across multiple TaskArtifactUpdateEvents.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ApplyArtifactUpdate mutates artifacts in place per the §3 append/lastChunk
// rules and returns the resulting slice:
//   - no existing artifact with a.ArtifactID: the artifact is appended
//     as a new entry (append is meaningless without a base to extend).
//   - append=true and a match exists: the last TextPart's text is
//     concatenated with the first text part of the update; if the
//     existing artifact has no trailing TextPart, the update's parts
//     are appended instead.
//   - append=false and a match exists: the update's parts replace the
//     matched artifact's parts wholesale (a fresh artifact under the
//     same id).
//
// lastChunk only marks completion bookkeeping at the call site; it does
// not change how parts are merged.
func ApplyArtifactUpdate(artifacts []Artifact, update Artifact, appendFlag bool) []Artifact {
	idx := -1
	for i := range artifacts {
		if artifacts[i].ArtifactID == update.ArtifactID {
			idx = i
			break
		}
	}

	if idx == -1 {
		return append(artifacts, update)
	}

	if !appendFlag {
		artifacts[idx].Parts = update.Parts
		if update.Name != "" {
			artifacts[idx].Name = update.Name
		}
		if update.Description != "" {
			artifacts[idx].Description = update.Description
		}
		return artifacts
	}

	existing := artifacts[idx].Parts
	if len(existing) > 0 && existing[len(existing)-1].Kind == KindText && len(update.Parts) > 0 && update.Parts[0].Kind == KindText {
		existing[len(existing)-1].Text += update.Parts[0].Text
		artifacts[idx].Parts = append(existing, update.Parts[1:]...)
	} else {
		artifacts[idx].Parts = append(existing, update.Parts...)
	}
	return artifacts
}
