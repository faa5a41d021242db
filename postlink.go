package discured

import (
	"fmt"
	"strings"
)

// ParsePostLink extracts the (author, permlink) pair from a submitted
// frontend URL. Only the first whitespace-separated token is
// considered. Links to a re-share carry a second "#@author/permlink"
// segment pointing at the original content; that segment wins. Any
// trailing query string is stripped from the permlink.
func ParsePostLink(raw string) (string, string, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", "", fmt.Errorf("empty submission")
	}
	link := fields[0]

	_, ref, found := strings.Cut(link, "@")
	if !found {
		return "", "", fmt.Errorf("no author reference in %q", link)
	}
	author, permlink, found := strings.Cut(ref, "/")
	if !found {
		return "", "", fmt.Errorf("no permlink in %q", link)
	}

	if _, reshared, found := strings.Cut(permlink, "#@"); found {
		author, permlink, found = strings.Cut(reshared, "/")
		if !found {
			return "", "", fmt.Errorf("no permlink in re-share segment of %q", link)
		}
	}

	permlink, _, _ = strings.Cut(permlink, "?")
	if author == "" || permlink == "" {
		return "", "", fmt.Errorf("incomplete author/permlink pair in %q", link)
	}
	return author, permlink, nil
}
