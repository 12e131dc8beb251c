// Package markdown extracts vault metadata from markdown documents: YAML
// frontmatter, tags, headings, wiki links and embeds.
package markdown

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	headingPattern  = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	wikiLinkPattern = regexp.MustCompile(`(!?)\[\[([^\[\]\n]+?)\]\]`)
	mdLinkPattern   = regexp.MustCompile(`(!?)\[([^\[\]\n]*)\]\(([^()\s]+)\)`)
	tagPattern      = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_/-]*[\p{L}_/-][\p{L}\p{N}_/-]*)`)
)

// Heading is a parsed ATX heading. Line is 0-based.
type Heading struct {
	Text  string
	Level int
	Line  int
}

// Link is a parsed link or embed. Target excludes any #heading or |alias part.
type Link struct {
	Original    string
	Target      string
	Subpath     string
	DisplayText string
	Line        int
	Wiki        bool
}

// Document is the structural metadata of one markdown file.
type Document struct {
	Frontmatter map[string]any
	Tags        []string
	Headings    []Heading
	Links       []Link
	Embeds      []Link
}

// SplitFrontmatter separates a leading "---" YAML block from the body. The
// returned offset is the number of lines the block occupies.
func SplitFrontmatter(content string) (front string, body string, offset int) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return "", normalized, 0
	}
	lines := strings.Split(normalized, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t") == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), i + 1
		}
	}
	return "", normalized, 0
}

// Parse extracts metadata from content. Malformed frontmatter is reported as
// an error alongside whatever body metadata could be parsed.
func Parse(content string) (Document, error) {
	doc := Document{
		Tags:     []string{},
		Headings: []Heading{},
		Links:    []Link{},
		Embeds:   []Link{},
	}
	front, body, offset := SplitFrontmatter(content)

	var frontErr error
	if strings.TrimSpace(front) != "" {
		var fm map[string]any
		if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
			frontErr = fmt.Errorf("parse frontmatter: %w", err)
		} else {
			doc.Frontmatter = fm
			doc.Tags = append(doc.Tags, frontmatterTags(fm)...)
		}
	}

	inFence := false
	for i, line := range strings.Split(body, "\n") {
		lineNo := i + offset
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			doc.Headings = append(doc.Headings, Heading{Text: m[2], Level: len(m[1]), Line: lineNo})
		} else {
			for _, m := range tagPattern.FindAllStringSubmatch(stripInlineCode(line), -1) {
				doc.Tags = append(doc.Tags, "#"+m[1])
			}
		}
		for _, link := range lineLinks(line, lineNo) {
			if link.embed {
				doc.Embeds = append(doc.Embeds, link.Link)
			} else {
				doc.Links = append(doc.Links, link.Link)
			}
		}
	}
	doc.Tags = dedupe(doc.Tags)
	return doc, frontErr
}

type parsedLink struct {
	Link
	embed bool
}

func lineLinks(line string, lineNo int) []parsedLink {
	var out []parsedLink
	clean := stripInlineCode(line)
	for _, m := range wikiLinkPattern.FindAllStringSubmatch(clean, -1) {
		link := parseWikiTarget(m[2])
		link.Original = m[0]
		link.Line = lineNo
		link.Wiki = true
		out = append(out, parsedLink{Link: link, embed: m[1] == "!"})
	}
	for _, m := range mdLinkPattern.FindAllStringSubmatch(clean, -1) {
		target := m[3]
		if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") {
			continue
		}
		target, subpath, _ := strings.Cut(target, "#")
		out = append(out, parsedLink{
			Link: Link{
				Original:    m[0],
				Target:      unescapeSpaces(target),
				Subpath:     subpath,
				DisplayText: m[2],
				Line:        lineNo,
			},
			embed: m[1] == "!",
		})
	}
	return out
}

func parseWikiTarget(inner string) Link {
	target, display, _ := strings.Cut(inner, "|")
	target, subpath, _ := strings.Cut(target, "#")
	return Link{
		Target:      strings.TrimSpace(target),
		Subpath:     strings.TrimSpace(subpath),
		DisplayText: strings.TrimSpace(display),
	}
}

func frontmatterTags(fm map[string]any) []string {
	var raw []string
	for _, key := range []string{"tags", "tag"} {
		switch v := fm[key].(type) {
		case string:
			raw = append(raw, strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })...)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					raw = append(raw, s)
				}
			}
		}
	}
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		out = append(out, tag)
	}
	return out
}

func stripInlineCode(line string) string {
	if !strings.Contains(line, "`") {
		return line
	}
	var b strings.Builder
	inCode := false
	for _, r := range line {
		if r == '`' {
			inCode = !inCode
			b.WriteRune(' ')
			continue
		}
		if inCode {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unescapeSpaces(target string) string {
	return strings.ReplaceAll(target, "%20", " ")
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, tag := range tags {
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ResolveLink resolves a link target written in the document at from against
// the known vault paths. Targets without an extension are tried as ".md".
// Bare names match by basename, preferring the linking document's folder.
func ResolveLink(target, from string, paths []string) (string, bool) {
	target = strings.TrimPrefix(strings.TrimSpace(target), "/")
	if target == "" {
		return "", false
	}
	candidates := []string{target}
	if path.Ext(target) == "" {
		candidates = append([]string{target + ".md"}, candidates...)
	}

	dir := path.Dir(from)
	for _, cand := range candidates {
		if strings.Contains(cand, "/") {
			if strings.HasPrefix(cand, ".") {
				if rel := path.Join(dir, cand); slices.Contains(paths, rel) {
					return rel, true
				}
			}
			if slices.Contains(paths, cand) {
				return cand, true
			}
			continue
		}
		if dir != "." {
			if rel := path.Join(dir, cand); slices.Contains(paths, rel) {
				return rel, true
			}
		}
		var best string
		for _, p := range paths {
			if !strings.EqualFold(path.Base(p), cand) {
				continue
			}
			if best == "" || len(p) < len(best) || (len(p) == len(best) && p < best) {
				best = p
			}
		}
		if best != "" {
			return best, true
		}
	}
	return "", false
}

// LinkText returns the shortest wiki link text that resolves to p: the bare
// name when its basename is unique among paths, the full path otherwise.
func LinkText(p string, paths []string) string {
	trimmed := strings.TrimSuffix(p, ".md")
	base := path.Base(p)
	count := 0
	for _, other := range paths {
		if strings.EqualFold(path.Base(other), base) {
			count++
		}
	}
	if count <= 1 {
		return strings.TrimSuffix(base, ".md")
	}
	return trimmed
}

// RewriteFunc maps a raw link target to its replacement. wiki is false for
// standard markdown links.
type RewriteFunc func(target string, wiki bool) (string, bool)

// RewriteLinks rewrites every link and embed in content for which rewrite
// returns true, keeping subpaths and display text. The number of rewritten
// links is returned.
func RewriteLinks(content string, rewrite RewriteFunc) (string, int) {
	count := 0
	out := wikiLinkPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := wikiLinkPattern.FindStringSubmatch(match)
		link := parseWikiTarget(m[2])
		replacement, ok := rewrite(link.Target, true)
		if !ok {
			return match
		}
		count++
		var b strings.Builder
		b.WriteString(m[1])
		b.WriteString("[[")
		b.WriteString(replacement)
		if link.Subpath != "" {
			b.WriteString("#" + link.Subpath)
		}
		if link.DisplayText != "" {
			b.WriteString("|" + link.DisplayText)
		}
		b.WriteString("]]")
		return b.String()
	})
	out = mdLinkPattern.ReplaceAllStringFunc(out, func(match string) string {
		m := mdLinkPattern.FindStringSubmatch(match)
		target, subpath, hasSub := strings.Cut(m[3], "#")
		if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") {
			return match
		}
		replacement, ok := rewrite(unescapeSpaces(target), false)
		if !ok {
			return match
		}
		count++
		replacement = strings.ReplaceAll(replacement, " ", "%20")
		if hasSub {
			replacement += "#" + subpath
		}
		return m[1] + "[" + m[2] + "](" + replacement + ")"
	})
	return out, count
}
