package policy

import "github.com/deemkeen/smilodon/util"

// HellthreadFilter limits recipient fan-out on Create activities. Above the
// delist threshold the note is demoted from the public timeline; above the
// reject threshold it is dropped outright.
type HellthreadFilter struct {
	conf *util.ConfigHolder
}

func NewHellthreadFilter(conf *util.ConfigHolder) *HellthreadFilter {
	return &HellthreadFilter{conf: conf}
}

func (f *HellthreadFilter) Name() string {
	return "hellthread"
}

func (f *HellthreadFilter) Apply(doc Document) (Document, *Rejection) {
	if doc.Type() != "Create" {
		return doc, nil
	}

	conf := f.conf.Conf()
	delistThreshold := conf.Moderation.DelistThreshold
	rejectThreshold := conf.Moderation.RejectThreshold
	if delistThreshold <= 0 {
		delistThreshold = util.DefaultDelistThreshold
	}
	if rejectThreshold <= 0 {
		rejectThreshold = util.DefaultRejectThreshold
	}

	count := recipientCount(doc)

	// Reject is checked first, so a delist threshold misconfigured above the
	// reject threshold degrades to a no-op delist rather than surprising
	// behavior.
	if count > rejectThreshold {
		return nil, &Rejection{Filter: f.Name(), Reason: ReasonTooManyMentions}
	}
	if count > delistThreshold {
		out := doc.Clone()
		delistDocument(out)
		return out, nil
	}
	return doc, nil
}

// recipientCount counts distinct mentioned or addressed actors: the union of
// Mention tags on the object and the to/cc lists, excluding the public token
// and followers collections, which address audiences rather than actors.
func recipientCount(doc Document) int {
	seen := make(map[string]struct{})

	add := func(uri string) {
		if uri == "" || IsPublicAddress(uri) || hasFollowersCollectionSuffix(uri) {
			return
		}
		seen[uri] = struct{}{}
	}

	if obj := doc.Object(); obj != nil {
		if tags, ok := obj["tag"].([]interface{}); ok {
			for _, raw := range tags {
				tag, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				if tagType, _ := tag["type"].(string); tagType != "Mention" {
					continue
				}
				if href, ok := tag["href"].(string); ok {
					add(href)
				}
			}
		}
	}

	for _, key := range []string{"to", "cc"} {
		for _, uri := range doc.Recipients(key) {
			add(uri)
		}
	}

	return len(seen)
}
