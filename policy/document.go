package policy

import (
	"net/url"
	"strings"

	"github.com/deemkeen/smilodon/domain"
)

// PublicAddress is the canonical public-address recipient token.
const PublicAddress = "https://www.w3.org/ns/activitystreams#Public"

// Document is a decoded activity or object. Remote input is untrusted, so
// every accessor tolerates missing or oddly typed fields and returns a zero
// value instead of failing.
type Document map[string]interface{}

// Type returns the document's type tag, or "" when absent.
func (d Document) Type() string {
	return d.stringValue("type")
}

// Id returns the document's identifier, or "" when absent.
func (d Document) Id() string {
	return d.stringValue("id")
}

// Actor returns the sending actor's URI. Handles both the plain string form
// and an embedded actor document.
func (d Document) Actor() string {
	switch actor := d["actor"].(type) {
	case string:
		return actor
	case map[string]interface{}:
		if id, ok := actor["id"].(string); ok {
			return id
		}
	}
	return ""
}

// Object returns the embedded object document, or nil when the object is
// absent or only referenced by URI.
func (d Document) Object() Document {
	if obj, ok := d["object"].(map[string]interface{}); ok {
		return Document(obj)
	}
	return nil
}

// ObjectURI returns the object's identifier, whether the object is embedded
// or referenced by URI.
func (d Document) ObjectURI() string {
	switch obj := d["object"].(type) {
	case string:
		return obj
	case map[string]interface{}:
		if id, ok := obj["id"].(string); ok {
			return id
		}
	}
	return ""
}

// Recipients returns the list under the given addressing key ("to" or "cc").
// A single string value is treated as a one-element list.
func (d Document) Recipients(key string) []string {
	switch value := d[key].(type) {
	case string:
		return []string{value}
	case []interface{}:
		var out []string
		for _, entry := range value {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IsPublic reports whether the document is addressed to the public token in
// either its to or cc list.
func (d Document) IsPublic() bool {
	for _, key := range []string{"to", "cc"} {
		for _, uri := range d.Recipients(key) {
			if IsPublicAddress(uri) {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy. Policies transform copies so the caller's
// document stays untouched.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]interface{}(d)).(map[string]interface{}))
}

func cloneValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = cloneValue(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, v := range typed {
			out[i] = cloneValue(v)
		}
		return out
	default:
		return value
	}
}

func (d Document) stringValue(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// IsPublicAddress reports whether a recipient URI is one of the accepted
// spellings of the public-address token.
func IsPublicAddress(uri string) bool {
	switch uri {
	case PublicAddress, "as:Public", "Public":
		return true
	}
	return false
}

// HostOf resolves the source host of a document: the actor's host when an
// actor is present, otherwise the host of the document's own identifier
// (bare actor/profile objects carry no actor field). Returns "" when neither
// yields a usable host.
func HostOf(d Document) string {
	uri := d.Actor()
	if uri == "" {
		uri = d.Id()
	}
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	return domain.NormalizeHost(parsed.Hostname())
}

// delistDocument demotes a document from the public timeline by moving the
// public token from to into cc. Other recipients are left untouched. Returns
// true when the document was changed.
func delistDocument(d Document) bool {
	to := d.Recipients("to")
	var kept []interface{}
	moved := false
	for _, uri := range to {
		if IsPublicAddress(uri) {
			moved = true
			continue
		}
		kept = append(kept, uri)
	}
	if !moved {
		return false
	}
	d["to"] = kept

	cc := d.Recipients("cc")
	for _, uri := range cc {
		if IsPublicAddress(uri) {
			return true
		}
	}
	out := make([]interface{}, 0, len(cc)+1)
	for _, uri := range cc {
		out = append(out, uri)
	}
	d["cc"] = append(out, PublicAddress)
	return true
}

// removePublicAddress strips the public token from both addressing lists.
func removePublicAddress(d Document) bool {
	changed := false
	for _, key := range []string{"to", "cc"} {
		current := d.Recipients(key)
		var kept []interface{}
		removed := false
		for _, uri := range current {
			if IsPublicAddress(uri) {
				removed = true
				continue
			}
			kept = append(kept, uri)
		}
		if removed {
			d[key] = kept
			changed = true
		}
	}
	return changed
}

// hasFollowersCollectionSuffix reports whether a recipient URI points at a
// followers collection rather than an individual actor.
func hasFollowersCollectionSuffix(uri string) bool {
	return strings.HasSuffix(uri, "/followers")
}
