package policy

import (
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/deemkeen/smilodon/util"
)

// KeywordFilter rejects, delists, rewrites or marks sensitive based on
// pattern lists from the config. Patterns are compiled as regular
// expressions; a pattern that fails to compile degrades to a literal
// substring match instead of disabling the rule.
type KeywordFilter struct {
	conf *util.ConfigHolder

	mu       sync.Mutex
	cacheFor *util.AppConfig
	cache    *keywordPatterns
}

func NewKeywordFilter(conf *util.ConfigHolder) *KeywordFilter {
	return &KeywordFilter{conf: conf}
}

func (f *KeywordFilter) Name() string {
	return "keyword"
}

// Apply checks Create and Update activities against the configured lists.
// All match checks run against the original field values; transforms are
// applied afterwards on a copy.
func (f *KeywordFilter) Apply(doc Document) (Document, *Rejection) {
	docType := doc.Type()
	if docType != "Create" && docType != "Update" {
		return doc, nil
	}

	obj := doc.Object()
	if obj == nil {
		return doc, nil
	}

	content := obj.stringValue("content")
	summary := obj.stringValue("summary")
	name := obj.stringValue("name")

	patterns := f.patterns()

	// The generic reason deliberately hides which pattern matched.
	if matchesAny(patterns.reject, content, summary, name) {
		return nil, &Rejection{Filter: f.Name(), Reason: ReasonKeywordBlocked}
	}

	delist := matchesAny(patterns.delist, content, summary, name)
	sensitive := matchesAny(patterns.sensitive, content, summary, name)
	replaced, didReplace := applyReplacements(patterns.replace, content)

	if !delist && !sensitive && !didReplace {
		return doc, nil
	}

	out := doc.Clone()
	outObj := out.Object()
	if didReplace && outObj != nil {
		outObj["content"] = replaced
	}
	if sensitive && outObj != nil {
		outObj["sensitive"] = true
	}
	if delist {
		delistDocument(out)
	}
	return out, nil
}

// keywordPatterns is the compiled form of the config lists. Compilation is
// cached per config snapshot so a hot reload picks up new patterns without
// recompiling on every activity.
type keywordPatterns struct {
	reject    []matcher
	delist    []matcher
	sensitive []matcher
	replace   []replacement
}

type matcher struct {
	re      *regexp.Regexp
	literal string
}

func (m matcher) matches(s string) bool {
	if s == "" {
		return false
	}
	if m.re != nil {
		return m.re.MatchString(s)
	}
	return strings.Contains(s, m.literal)
}

type replacement struct {
	matcher
	with string
}

func (f *KeywordFilter) patterns() *keywordPatterns {
	conf := f.conf.Conf()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cacheFor != conf || f.cache == nil {
		f.cache = compilePatterns(&conf.Moderation.Keyword)
		f.cacheFor = conf
	}
	return f.cache
}

func compilePatterns(conf *util.KeywordConf) *keywordPatterns {
	patterns := &keywordPatterns{
		reject:    compileMatchers(conf.Reject),
		delist:    compileMatchers(conf.FederatedTimelineRemoval),
		sensitive: compileMatchers(conf.MarkSensitive),
	}
	for _, rule := range conf.Replace {
		if rule.Pattern == "" {
			continue
		}
		patterns.replace = append(patterns.replace, replacement{
			matcher: compileMatcher(rule.Pattern),
			with:    rule.Replacement,
		})
	}
	return patterns
}

func compileMatchers(raw []string) []matcher {
	var out []matcher
	for _, pattern := range raw {
		if pattern == "" {
			continue
		}
		out = append(out, compileMatcher(pattern))
	}
	return out
}

func compileMatcher(pattern string) matcher {
	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Printf("Keyword pattern %q is not a valid regexp, matching as substring", pattern)
		return matcher{literal: pattern}
	}
	return matcher{re: re}
}

func matchesAny(matchers []matcher, fields ...string) bool {
	for _, m := range matchers {
		for _, field := range fields {
			if m.matches(field) {
				return true
			}
		}
	}
	return false
}

// applyReplacements rewrites content with each rule once, in list order.
func applyReplacements(rules []replacement, content string) (string, bool) {
	if content == "" || len(rules) == 0 {
		return content, false
	}
	out := content
	for _, rule := range rules {
		if rule.re != nil {
			out = rule.re.ReplaceAllString(out, rule.with)
		} else {
			out = strings.ReplaceAll(out, rule.literal, rule.with)
		}
	}
	return out, out != content
}
