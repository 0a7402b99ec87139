// Package twine provides the shared `<tw-storydata>`/`<tw-passagedata>`
// scaffolding that every Twine-family dialect adapter (harlowe, sugarcube,
// chapbook, snowman) builds on (spec §4.6). It owns only the HTML
// envelope; macro-level parsing is each dialect's own concern.
package twine

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// PassageData is one raw `<tw-passagedata>` element.
type PassageData struct {
	PID      string
	Name     string
	Tags     []string
	Position string // "x,y" as stored by Twine, kept opaque here
	Text     string
}

// Doc is a parsed `<tw-storydata>` document, dialect-agnostic.
type Doc struct {
	Name           string
	IFID           string
	Format         string
	FormatVersion  string
	StartNode      string // PID of the start passage
	CreatorVersion string
	Passages       []PassageData
}

var (
	storyDataOpenRe = regexp.MustCompile(`(?is)<tw-storydata\b([^>]*)>`)
	passageDataRe   = regexp.MustCompile(`(?is)<tw-passagedata\b([^>]*)>(.*?)</tw-passagedata>`)
	attrRe          = regexp.MustCompile(`([a-zA-Z0-9_-]+)\s*=\s*"([^"]*)"`)
)

func attrs(tag string) map[string]string {
	out := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(tag, -1) {
		out[strings.ToLower(m[1])] = html.UnescapeString(m[2])
	}
	return out
}

// Parse extracts a Doc from raw Twine HTML. It is deliberately tolerant:
// missing attributes fall back to zero values rather than failing, since
// callers (dialect adapters) are responsible for diagnosing anything that
// makes the result unusable.
func Parse(source string) (*Doc, error) {
	storyMatch := storyDataOpenRe.FindStringSubmatch(source)
	if storyMatch == nil {
		return nil, fmt.Errorf("twine: no <tw-storydata> element found")
	}
	a := attrs(storyMatch[1])
	doc := &Doc{
		Name:           a["name"],
		IFID:           a["ifid"],
		Format:         a["format"],
		FormatVersion:  a["format-version"],
		StartNode:      a["startnode"],
		CreatorVersion: a["creator-version"],
	}
	for _, m := range passageDataRe.FindAllStringSubmatch(source, -1) {
		pa := attrs(m[1])
		var tags []string
		if raw := strings.TrimSpace(pa["tags"]); raw != "" {
			tags = strings.Fields(raw)
		}
		doc.Passages = append(doc.Passages, PassageData{
			PID:      pa["pid"],
			Name:     pa["name"],
			Tags:     tags,
			Position: pa["position"],
			Text:     html.UnescapeString(strings.TrimSpace(m[2])),
		})
	}
	return doc, nil
}

// CanImport reports whether source looks like a Twine HTML export.
func CanImport(source string) bool {
	return storyDataOpenRe.MatchString(source)
}

// Render serializes doc back to `<tw-storydata>` HTML.
func Render(doc *Doc) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<tw-storydata name=%q startnode=%q creator="whisker" creator-version="1.0" ifid=%q format=%q format-version=%q options="">`+"\n",
		doc.Name, doc.StartNode, doc.IFID, doc.Format, doc.FormatVersion)
	for _, p := range doc.Passages {
		tags := strings.Join(p.Tags, " ")
		fmt.Fprintf(&b, `<tw-passagedata pid=%q name=%q tags=%q position=%q>%s</tw-passagedata>`+"\n",
			p.PID, p.Name, tags, p.Position, html.EscapeString(p.Text))
	}
	b.WriteString("</tw-storydata>")
	return b.String()
}

// NextPID returns a stable, 1-based PID for the index-th passage, matching
// Twine's own convention of dense sequential passage ids.
func NextPID(index int) string {
	return strconv.Itoa(index + 1)
}
