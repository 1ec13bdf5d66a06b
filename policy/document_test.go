package policy

import (
	"testing"
)

// docWithAddressing builds a Create activity with an embedded Note object,
// shaped the way a decoded JSON body arrives.
func docWithAddressing(actor string, to []string, cc []string) Document {
	doc := Document{
		"id":    "https://remote.example/activities/1",
		"type":  "Create",
		"actor": actor,
		"object": map[string]interface{}{
			"id":      "https://remote.example/notes/1",
			"type":    "Note",
			"content": "hello",
		},
	}
	doc["to"] = toList(to)
	doc["cc"] = toList(cc)
	return doc
}

func toList(uris []string) []interface{} {
	out := make([]interface{}, 0, len(uris))
	for _, uri := range uris {
		out = append(out, uri)
	}
	return out
}

func TestDocumentAccessors(t *testing.T) {
	doc := Document{
		"id":    "https://remote.example/activities/1",
		"type":  "Create",
		"actor": "https://remote.example/users/bob",
		"object": map[string]interface{}{
			"id":   "https://remote.example/notes/1",
			"type": "Note",
		},
	}

	if doc.Type() != "Create" {
		t.Errorf("Expected type Create, got %s", doc.Type())
	}
	if doc.Id() != "https://remote.example/activities/1" {
		t.Errorf("Unexpected id: %s", doc.Id())
	}
	if doc.Actor() != "https://remote.example/users/bob" {
		t.Errorf("Unexpected actor: %s", doc.Actor())
	}
	if doc.Object() == nil {
		t.Fatal("Expected embedded object")
	}
	if doc.ObjectURI() != "https://remote.example/notes/1" {
		t.Errorf("Unexpected object URI: %s", doc.ObjectURI())
	}
}

func TestDocumentEmbeddedActor(t *testing.T) {
	doc := Document{
		"actor": map[string]interface{}{
			"id":   "https://remote.example/users/bob",
			"type": "Person",
		},
	}
	if doc.Actor() != "https://remote.example/users/bob" {
		t.Errorf("Expected actor id from embedded document, got %s", doc.Actor())
	}
}

func TestDocumentObjectByURI(t *testing.T) {
	doc := Document{"object": "https://remote.example/notes/1"}

	if doc.Object() != nil {
		t.Error("Expected nil object for URI-only reference")
	}
	if doc.ObjectURI() != "https://remote.example/notes/1" {
		t.Errorf("Unexpected object URI: %s", doc.ObjectURI())
	}
}

func TestDocumentMissingFields(t *testing.T) {
	doc := Document{}

	if doc.Type() != "" {
		t.Errorf("Expected empty type, got %s", doc.Type())
	}
	if doc.Actor() != "" {
		t.Errorf("Expected empty actor, got %s", doc.Actor())
	}
	if doc.Object() != nil {
		t.Error("Expected nil object")
	}
	if doc.Recipients("to") != nil {
		t.Error("Expected nil recipients")
	}
	if doc.IsPublic() {
		t.Error("Expected not public")
	}
}

func TestDocumentRecipients(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want []string
	}{
		{
			name: "list form",
			doc:  Document{"to": []interface{}{"https://a.example/u/1", "https://a.example/u/2"}},
			want: []string{"https://a.example/u/1", "https://a.example/u/2"},
		},
		{
			name: "single string form",
			doc:  Document{"to": "https://a.example/u/1"},
			want: []string{"https://a.example/u/1"},
		},
		{
			name: "non-string entries skipped",
			doc:  Document{"to": []interface{}{"https://a.example/u/1", 42, nil}},
			want: []string{"https://a.example/u/1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.doc.Recipients("to")
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d recipients, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Recipient %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestIsPublicAddress(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"https://www.w3.org/ns/activitystreams#Public", true},
		{"as:Public", true},
		{"Public", true},
		{"https://remote.example/users/bob", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsPublicAddress(tt.uri); got != tt.want {
			t.Errorf("IsPublicAddress(%q) = %v, expected %v", tt.uri, got, tt.want)
		}
	}
}

func TestDocumentIsPublic(t *testing.T) {
	public := docWithAddressing("https://a.example/u/1", []string{PublicAddress}, nil)
	if !public.IsPublic() {
		t.Error("Expected public document")
	}

	ccPublic := docWithAddressing("https://a.example/u/1", []string{"https://a.example/u/2"}, []string{"as:Public"})
	if !ccPublic.IsPublic() {
		t.Error("Expected cc-public document")
	}

	private := docWithAddressing("https://a.example/u/1", []string{"https://a.example/u/2"}, nil)
	if private.IsPublic() {
		t.Error("Expected private document")
	}
}

func TestDocumentClone(t *testing.T) {
	doc := docWithAddressing("https://a.example/u/1", []string{PublicAddress}, nil)

	clone := doc.Clone()
	clone["type"] = "Update"
	clone.Object()["content"] = "changed"
	clone["to"] = []interface{}{}

	if doc.Type() != "Create" {
		t.Error("Clone mutation leaked into original type")
	}
	if doc.Object()["content"] != "hello" {
		t.Error("Clone mutation leaked into original object")
	}
	if len(doc.Recipients("to")) != 1 {
		t.Error("Clone mutation leaked into original addressing")
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{
			name: "from actor",
			doc:  Document{"actor": "https://Remote.Example/users/bob"},
			want: "remote.example",
		},
		{
			name: "bare profile falls back to own id",
			doc:  Document{"id": "https://profile.example/users/alice", "type": "Person"},
			want: "profile.example",
		},
		{
			name: "actor wins over id",
			doc:  Document{"actor": "https://a.example/u/1", "id": "https://b.example/act/1"},
			want: "a.example",
		},
		{
			name: "no usable uri",
			doc:  Document{"type": "Create"},
			want: "",
		},
		{
			name: "garbage actor",
			doc:  Document{"actor": "::not a uri::"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HostOf(tt.doc); got != tt.want {
				t.Errorf("HostOf() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestDelistDocument(t *testing.T) {
	doc := docWithAddressing("https://a.example/u/1",
		[]string{PublicAddress, "https://a.example/u/2"},
		[]string{"https://a.example/u/1/followers"})

	if !delistDocument(doc) {
		t.Fatal("Expected delist to report a change")
	}

	to := doc.Recipients("to")
	if len(to) != 1 || to[0] != "https://a.example/u/2" {
		t.Errorf("Expected only the direct recipient in to, got %v", to)
	}

	cc := doc.Recipients("cc")
	foundPublic := false
	for _, uri := range cc {
		if IsPublicAddress(uri) {
			foundPublic = true
		}
	}
	if !foundPublic {
		t.Error("Expected public token moved into cc")
	}
	if len(cc) != 2 {
		t.Errorf("Expected followers collection kept in cc, got %v", cc)
	}
}

func TestDelistDocumentNoPublicToken(t *testing.T) {
	doc := docWithAddressing("https://a.example/u/1", []string{"https://a.example/u/2"}, nil)

	if delistDocument(doc) {
		t.Error("Expected no change for non-public document")
	}
}

func TestDelistDocumentPublicAlreadyInCc(t *testing.T) {
	doc := docWithAddressing("https://a.example/u/1", []string{PublicAddress}, []string{PublicAddress})

	delistDocument(doc)

	count := 0
	for _, uri := range doc.Recipients("cc") {
		if IsPublicAddress(uri) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly one public token in cc, got %d", count)
	}
}

func TestRemovePublicAddress(t *testing.T) {
	doc := docWithAddressing("https://a.example/u/1",
		[]string{PublicAddress, "https://a.example/u/2"},
		[]string{"as:Public", "https://a.example/u/1/followers"})

	if !removePublicAddress(doc) {
		t.Fatal("Expected removal to report a change")
	}

	for _, key := range []string{"to", "cc"} {
		for _, uri := range doc.Recipients(key) {
			if IsPublicAddress(uri) {
				t.Errorf("Public token still present in %s", key)
			}
		}
	}
	if len(doc.Recipients("to")) != 1 {
		t.Errorf("Expected direct recipient kept, got %v", doc.Recipients("to"))
	}
	if len(doc.Recipients("cc")) != 1 {
		t.Errorf("Expected followers collection kept, got %v", doc.Recipients("cc"))
	}
}
