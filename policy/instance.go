package policy

import "github.com/deemkeen/smilodon/domain"

// PolicySource yields the moderation flags on file for a host. A nil result
// means no policy applies. The host reputation cache implements this.
type PolicySource interface {
	Lookup(host string) *domain.InstancePolicy
}

// InstanceFilter applies host-level moderation flags. It runs first in the
// pipeline so a blocked host short-circuits before any content inspection.
type InstanceFilter struct {
	policies PolicySource
}

func NewInstanceFilter(policies PolicySource) *InstanceFilter {
	return &InstanceFilter{policies: policies}
}

func (f *InstanceFilter) Name() string {
	return "instance"
}

// Apply resolves the document's source host and applies that host's flags in
// a fixed order. Reject flags are checked before any transform so a blocked
// host never pays for content rewriting.
func (f *InstanceFilter) Apply(doc Document) (Document, *Rejection) {
	host := HostOf(doc)
	if host == "" {
		return doc, nil
	}

	policy := f.policies.Lookup(host)
	if policy == nil {
		return doc, nil
	}

	if policy.Blocked {
		return nil, &Rejection{Filter: f.Name(), Reason: ReasonHostBlocked}
	}
	if policy.RejectDeletes && doc.Type() == "Delete" {
		return nil, &Rejection{Filter: f.Name(), Reason: ReasonDeletesRejected}
	}
	if policy.ReportRemoval && doc.Type() == "Flag" {
		return nil, &Rejection{Filter: f.Name(), Reason: ReasonReportsRejected}
	}

	if !hasTransformFlags(policy) {
		return doc, nil
	}

	out := doc.Clone()
	if policy.MediaRemoval {
		if obj := out.Object(); obj != nil {
			delete(obj, "attachment")
		}
	}
	if policy.MediaNsfw {
		if obj := out.Object(); obj != nil {
			obj["sensitive"] = true
		}
	}
	if policy.FederatedTimelineRemoval {
		delistDocument(out)
	}
	if policy.FollowersOnly {
		removePublicAddress(out)
	}
	if policy.AvatarRemoval {
		dropPersonField(out, "icon")
	}
	if policy.BannerRemoval {
		dropPersonField(out, "image")
	}
	return out, nil
}

func hasTransformFlags(policy *domain.InstancePolicy) bool {
	return policy.MediaRemoval ||
		policy.MediaNsfw ||
		policy.FederatedTimelineRemoval ||
		policy.FollowersOnly ||
		policy.AvatarRemoval ||
		policy.BannerRemoval
}

// dropPersonField removes a profile field (icon or image) when the document
// itself or its embedded object is Person-typed.
func dropPersonField(doc Document, field string) {
	if doc.Type() == "Person" {
		delete(doc, field)
	}
	if obj := doc.Object(); obj != nil && obj.Type() == "Person" {
		delete(obj, field)
	}
}
