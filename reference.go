package softwareindex

import (
	"encoding/json"
	"strings"
)

// ReferenceItem is one segment of a provenance chain.
//
// The URL is empty unless a source knows how to produce a download location
// for the segment.
type ReferenceItem struct {
	Name string
	URL  string
}

type referenceItemJSON struct {
	Name string  `json:"name"`
	URL  *string `json:"url"`
}

// MarshalJSON implements [json.Marshaler].
//
// An absent URL is written as null.
func (i ReferenceItem) MarshalJSON() ([]byte, error) {
	v := referenceItemJSON{Name: i.Name}
	if i.URL != "" {
		v.URL = &i.URL
	}
	return json.Marshal(&v)
}

// UnmarshalJSON implements [json.Unmarshaler].
func (i *ReferenceItem) UnmarshalJSON(b []byte) error {
	var v referenceItemJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	i.Name = v.Name
	i.URL = ""
	if v.URL != nil {
		i.URL = *v.URL
	}
	return nil
}

// Reference describes how to reach an artifact from its source root,
// potentially through several nested containers.
//
// A valid Reference is non-empty and its last item names the artifact itself.
type Reference []ReferenceItem

// Append returns a new Reference with the items added at the end.
//
// The receiver is never modified, so References handed out during traversal
// can be retained safely.
func (r Reference) Append(items ...ReferenceItem) Reference {
	out := make(Reference, 0, len(r)+len(items))
	out = append(out, r...)
	return append(out, items...)
}

// Leaf reports the last item of the Reference.
func (r Reference) Leaf() ReferenceItem {
	if len(r) == 0 {
		return ReferenceItem{}
	}
	return r[len(r)-1]
}

// String implements [fmt.Stringer].
func (r Reference) String() string {
	names := make([]string, len(r))
	for i, item := range r {
		names[i] = item.Name
	}
	return strings.Join(names, "/")
}
