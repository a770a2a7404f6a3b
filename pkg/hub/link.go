package hub

import (
	"strings"

	"github.com/fivetwenty-io/hubwire/internal/constants"
)

// Link is one entry of an RFC 8288 Link header.
type Link struct {
	URL    string
	Rel    string
	Params map[string]string
}

// ParseLinkHeader parses every Link header value. Malformed entries are skipped.
func ParseLinkHeader(values []string) []Link {
	var links []Link

	for _, value := range values {
		for _, entry := range splitLinkEntries(value) {
			link, ok := parseLinkEntry(entry)
			if ok {
				links = append(links, link)
			}
		}
	}

	return links
}

// NextLink returns the URL with rel="next" in resp's Link header.
func NextLink(resp *Response) (string, bool) {
	for _, link := range ParseLinkHeader(resp.HeaderValues(constants.HeaderLink)) {
		for _, rel := range strings.Fields(link.Rel) {
			if strings.EqualFold(rel, "next") {
				return link.URL, true
			}
		}
	}

	return "", false
}

// splitLinkEntries splits on commas outside of <...> and quoted strings.
func splitLinkEntries(value string) []string {
	var (
		entries []string
		start   int
		inURL   bool
		inQuote bool
	)

	for i := 0; i < len(value); i++ {
		switch c := value[i]; {
		case c == '<' && !inQuote:
			inURL = true
		case c == '>' && !inQuote:
			inURL = false
		case c == '"' && !inURL:
			inQuote = !inQuote
		case c == ',' && !inURL && !inQuote:
			entries = append(entries, value[start:i])
			start = i + 1
		}
	}

	return append(entries, value[start:])
}

func parseLinkEntry(entry string) (Link, bool) {
	entry = strings.TrimSpace(entry)
	if !strings.HasPrefix(entry, "<") {
		return Link{}, false
	}

	end := strings.IndexByte(entry, '>')
	if end < 0 {
		return Link{}, false
	}

	link := Link{
		URL:    strings.TrimSpace(entry[1:end]),
		Params: make(map[string]string),
	}

	for _, param := range strings.Split(entry[end+1:], ";") {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		link.Params[key] = value
	}

	link.Rel = link.Params["rel"]

	return link, link.URL != ""
}
