package extract

import (
	"sort"

	"github.com/use-agent/rednote/models"
	"github.com/ysmood/gson"
)

// noteDetail locates the note-detail substructure inside a parsed payload:
// note.noteDetailMap[<noteID>].note. The URL's note id is preferred. When it
// is absent the payload's own note.firstNoteId pointer is tried next, and
// only then the map's first entry (by sorted key), since share links
// sometimes redirect to a differently-keyed canonical id. All knowledge of
// this third-party structure lives here — when the site reshapes its
// payload, this is the one function to touch.
func noteDetail(data gson.JSON, noteID string) (gson.JSON, bool) {
	if !data.Has("note") {
		return gson.JSON{}, false
	}
	note := data.Get("note")
	entries := note.Get("noteDetailMap").Map()
	if len(entries) == 0 {
		return gson.JSON{}, false
	}

	entry, ok := entries[noteID]
	if !ok {
		if fid := jstr(note.Get("firstNoteId")); fid != "" {
			entry, ok = entries[fid]
		}
	}
	if !ok {
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entry = entries[keys[0]]
	}

	if !entry.Has("note") {
		return gson.JSON{}, false
	}
	detail := entry.Get("note")
	if len(detail.Map()) == 0 {
		return gson.JSON{}, false
	}
	return detail, true
}

// jstr reads a string field that may be absent or explicitly null. gson's
// Str() renders nil values as "<nil>" via fmt.Sprintf, so nil must be
// checked before converting.
func jstr(v gson.JSON) string {
	if v.Nil() {
		return ""
	}
	return v.Str()
}

// normalize builds the immutable Note record from a note-detail structure.
func normalize(detail gson.JSON, rawURL string) *models.Note {
	noteType := jstr(detail.Get("type"))
	if noteType == "" {
		noteType = "normal"
	}

	images := make([]string, 0)
	for _, img := range detail.Get("imageList").Arr() {
		// urlDefault is a ready-to-fetch URL; url can be a template that
		// still needs parameter substitution.
		u := jstr(img.Get("urlDefault"))
		if u == "" {
			u = jstr(img.Get("url"))
		}
		if u != "" {
			images = append(images, u)
		}
	}

	return &models.Note{
		Title:     jstr(detail.Get("title")),
		Desc:      jstr(detail.Get("desc")),
		Type:      noteType,
		ImageList: images,
		User:      jstr(detail.Get("user").Get("nickname")),
		RawURL:    rawURL,
	}
}
