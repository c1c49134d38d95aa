package domain

import (
	"encoding/json"
	"strings"
)

// postRecord is the parsed content of an app.bsky.feed.post record. Only the
// fields that feed the search text or the reply chain are decoded.
type postRecord struct {
	Type      string    `json:"$type"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Langs     []string  `json:"langs"`
	Reply     *replyRef `json:"reply,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Facets    []facet   `json:"facets,omitempty"`
	Labels    *labels   `json:"labels,omitempty"`
	Embed     *embed    `json:"embed,omitempty"`
}

// replyRef contains references to the parent and root of a reply chain.
type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

// strongRef is a reference to a specific version of a record.
type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type facet struct {
	Features []struct {
		Type string `json:"$type"`
		URI  string `json:"uri,omitempty"`
		Tag  string `json:"tag,omitempty"`
	} `json:"features"`
}

type labels struct {
	Values []struct {
		Val string `json:"val"`
	} `json:"values"`
}

type external struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// embed covers app.bsky.embed.external, app.bsky.embed.record and
// app.bsky.embed.recordWithMedia. For recordWithMedia the quoted record is
// nested one level deeper and the media may itself be an external link.
type embed struct {
	Type     string          `json:"$type"`
	External *external       `json:"external,omitempty"`
	Record   json.RawMessage `json:"record,omitempty"`
	Media    *embed          `json:"media,omitempty"`
}

func (e *embed) quotedURI() string {
	if e == nil || len(e.Record) == 0 {
		return ""
	}
	var ref struct {
		URI    string     `json:"uri"`
		Record *strongRef `json:"record,omitempty"`
	}
	if err := json.Unmarshal(e.Record, &ref); err != nil {
		return ""
	}
	if ref.Record != nil {
		return ref.Record.URI
	}
	return ref.URI
}

// ParsedRecord is the subset of a post record the pipeline persists.
type ParsedRecord struct {
	SearchText  string
	ReplyRoot   string
	ReplyParent string
}

// ParseRecord decodes a raw post record and builds its search text: the
// case-folded concatenation of text, link URLs, tags, label values and
// embedded link/quote fields. ok is false when the record cannot be decoded.
func ParseRecord(raw json.RawMessage) (parsed ParsedRecord, ok bool) {
	if len(raw) == 0 {
		return ParsedRecord{}, false
	}

	var rec postRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ParsedRecord{}, false
	}

	parts := []string{rec.Text}

	for _, f := range rec.Facets {
		for _, feat := range f.Features {
			if feat.URI != "" {
				parts = append(parts, feat.URI)
			}
			if feat.Tag != "" {
				parts = append(parts, feat.Tag)
			}
		}
	}

	parts = append(parts, rec.Tags...)

	if rec.Labels != nil {
		for _, v := range rec.Labels.Values {
			parts = append(parts, v.Val)
		}
	}

	for e := rec.Embed; e != nil; e = e.Media {
		if e.External != nil {
			parts = append(parts, e.External.URI, e.External.Title, e.External.Description)
		}
		if uri := e.quotedURI(); uri != "" {
			parts = append(parts, uri)
		}
	}

	parsed.SearchText = strings.ToLower(strings.Join(nonEmpty(parts), " "))
	if rec.Reply != nil {
		parsed.ReplyRoot = rec.Reply.Root.URI
		parsed.ReplyParent = rec.Reply.Parent.URI
	}
	return parsed, true
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
