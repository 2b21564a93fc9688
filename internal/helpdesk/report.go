package helpdesk

import (
	"regexp"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/tidwall/gjson"
)

// Report categories, most severe first.
const (
	CategoryCSAM          = "csam"
	CategoryViolence      = "violence"
	CategoryHarassment    = "harassment"
	CategoryNudity        = "nudity"
	CategoryImpersonation = "impersonation"
	CategoryCopyright     = "copyright"
	CategoryAIGenerated   = "ai_generated"
	CategorySpam          = "spam"
	CategoryOther         = "other"
)

// Keywords match at the start of a word, so "harass" covers "harassment".
var categoryPatterns = []struct {
	category string
	pattern  *regexp.Regexp
}{
	{CategoryCSAM, regexp.MustCompile(`(?i)\b(?:csam|child sexual|minors\b|underage|child abuse)`)},
	{CategoryViolence, regexp.MustCompile(`(?i)\b(?:violen|gore\b|threat|terroris|self-harm|suicid)`)},
	{CategoryHarassment, regexp.MustCompile(`(?i)\b(?:harass|bully|hate\b|hateful|abus|dox)`)},
	{CategoryNudity, regexp.MustCompile(`(?i)\b(?:nud|sexual|porn|nsfw)`)},
	{CategoryImpersonation, regexp.MustCompile(`(?i)\b(?:impersonat|pretending to be|fake account)`)},
	{CategoryCopyright, regexp.MustCompile(`(?i)\b(?:copyright|dmca|stolen content|infring)`)},
	{CategoryAIGenerated, regexp.MustCompile(`(?i)\b(?:ai generated|ai-generated|deepfake|synthetic)`)},
	{CategorySpam, regexp.MustCompile(`(?i)\b(?:spam|scam|phishing|bots?\b)`)},
}

var (
	bech32Pattern = regexp.MustCompile(`(?i)\b(?:nostr:)?((?:npub|note|nevent|nprofile)1[02-9ac-hj-np-z]+)\b`)
	hexPattern    = regexp.MustCompile(`(?i)\b[0-9a-f]{64}\b`)
	mediaSuffix   = regexp.MustCompile(`(?i)^\.(?:mp4|mov|webm|m3u8|jpg|jpeg|png|gif|webp)\b`)
)

// Words that, shortly before a bare hex id, say what kind of id it is.
var (
	idHints = []struct {
		kind  string
		words []string
	}{
		{"pubkey", []string{"pubkey", "npub", "user", "author", "profile", "account"}},
		{"hash", []string{"sha256", "hash", "media", "blob", "file"}},
		{"event", []string{"event", "note", "post", "/video/"}},
	}
)

const hintWindow = 32

// Report holds the moderation targets found in free text.
type Report struct {
	EventIDs []string `json:"eventIds"`
	Pubkeys  []string `json:"pubkeys"`
	Hashes   []string `json:"hashes"`
	Category string   `json:"category"`
}

// Empty reports whether no identifiers were found.
func (r Report) Empty() bool {
	return len(r.EventIDs) == 0 && len(r.Pubkeys) == 0 && len(r.Hashes) == 0
}

// ParseReport extracts event ids, pubkeys, media hashes and a category from
// report text. Bech32 entities are decoded; bare 64-char hex is classified by
// the words just before it, falling back to an event id.
func ParseReport(text string) Report {
	r := Report{
		EventIDs: []string{},
		Pubkeys:  []string{},
		Hashes:   []string{},
		Category: Categorize(text),
	}
	seen := make(map[string]bool)
	add := func(list *[]string, v string) {
		v = strings.ToLower(v)
		if !seen[v] {
			seen[v] = true
			*list = append(*list, v)
		}
	}

	for _, m := range bech32Pattern.FindAllStringSubmatch(text, -1) {
		prefix, value, err := nip19.Decode(strings.ToLower(m[1]))
		if err != nil {
			continue
		}
		switch prefix {
		case "npub", "note":
			if s, ok := value.(string); ok {
				if prefix == "npub" {
					add(&r.Pubkeys, s)
				} else {
					add(&r.EventIDs, s)
				}
			}
		case "nevent":
			if ptr, ok := eventPointer(value); ok {
				add(&r.EventIDs, ptr.ID)
				if ptr.Author != "" {
					add(&r.Pubkeys, ptr.Author)
				}
			}
		case "nprofile":
			if ptr, ok := profilePointer(value); ok {
				add(&r.Pubkeys, ptr.PublicKey)
			}
		}
	}

	for _, loc := range hexPattern.FindAllStringIndex(text, -1) {
		id := text[loc[0]:loc[1]]
		switch classifyHex(text, loc[0], loc[1]) {
		case "pubkey":
			add(&r.Pubkeys, id)
		case "hash":
			add(&r.Hashes, id)
		default:
			add(&r.EventIDs, id)
		}
	}
	return r
}

func classifyHex(text string, start, end int) string {
	if mediaSuffix.MatchString(text[end:]) {
		return "hash"
	}
	before := strings.ToLower(text[max(0, start-hintWindow):start])
	// the nearest hint wins
	best, bestPos := "", -1
	for _, hint := range idHints {
		for _, w := range hint.words {
			if i := strings.LastIndex(before, w); i > bestPos {
				best, bestPos = hint.kind, i
			}
		}
	}
	return best
}

func eventPointer(v any) (nostr.EventPointer, bool) {
	switch p := v.(type) {
	case nostr.EventPointer:
		return p, true
	case *nostr.EventPointer:
		return *p, p != nil
	}
	return nostr.EventPointer{}, false
}

func profilePointer(v any) (nostr.ProfilePointer, bool) {
	switch p := v.(type) {
	case nostr.ProfilePointer:
		return p, true
	case *nostr.ProfilePointer:
		return *p, p != nil
	}
	return nostr.ProfilePointer{}, false
}

// Categorize returns the most severe category whose keywords occur in text.
func Categorize(text string) string {
	for _, c := range categoryPatterns {
		if c.pattern.MatchString(text) {
			return c.category
		}
	}
	return CategoryOther
}

// Ticket is the part of a ticket webhook payload the control plane uses.
type Ticket struct {
	ID          string
	Subject     string
	Description string
	Requester   string
}

// ParseTicket reads a ticket webhook body. Both the trigger payload
// ({"ticket": {...}}) and the event payload ({"detail": {...}}) are accepted.
func ParseTicket(body []byte) (Ticket, bool) {
	doc := gjson.ParseBytes(body)
	var t Ticket
	for _, root := range []string{"ticket", "detail", ""} {
		node := doc
		if root != "" {
			node = doc.Get(root)
			if !node.Exists() {
				continue
			}
		}
		t.ID = node.Get("id").String()
		t.Subject = node.Get("subject").String()
		t.Description = node.Get("description").String()
		if t.Description == "" {
			t.Description = node.Get("latest_comment").String()
		}
		t.Requester = node.Get("requester.email").String()
		if t.Requester == "" {
			t.Requester = node.Get("requester_email").String()
		}
		if t.ID != "" {
			return t, true
		}
	}
	return Ticket{}, false
}

// Text is the subject and description joined for parsing.
func (t Ticket) Text() string {
	return strings.TrimSpace(t.Subject + "\n" + t.Description)
}
