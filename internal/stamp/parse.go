package stamp

import (
	"strconv"
	"strings"

	"github.com/muddle-build/muddle/internal/merrors"
)

// Parse reverses Render: it reconstructs a Stamp from a stamp file's
// canonical text. Unknown trailing sections (e.g. a ".partial" file's
// [PROBLEMS]) are ignored - Save's problem listing is a save-time diagnostic,
// not part of the restorable document.
func Parse(text string) (*Stamp, error) {
	s := &Stamp{}
	var section string
	var sectionName string
	var cur map[string]string
	var curOptions map[string]interface{}

	flushCheckout := func() {
		if section != "CHECKOUT" || cur == nil {
			return
		}
		s.Checkouts = append(s.Checkouts, CheckoutEntry{
			Domain: cur["domain"], Name: cur["name"], RepoURL: cur["repo"], VCS: cur["vcs"],
			Revision: cur["revision"], RelativePath: cur["relative_path"], Directory: cur["directory"],
			Leaf: cur["leaf"], Branch: cur["branch"], Options: curOptions,
		})
	}
	flushDomain := func() {
		if section != "DOMAIN" || cur == nil {
			return
		}
		s.Domains = append(s.Domains, DomainEntry{
			Name: sectionName, RepoURL: cur["repository"], DescriptionPath: cur["description"], Branch: cur["branch"],
		})
	}

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			flushCheckout()
			flushDomain()
			header := trimmed[1 : len(trimmed)-1]
			parts := strings.SplitN(header, " ", 2)
			section = parts[0]
			sectionName = ""
			if len(parts) == 2 {
				sectionName = parts[1]
			}
			cur = map[string]string{}
			curOptions = map[string]interface{}{}
			continue
		}
		if section == "" {
			continue
		}
		if section == "PROBLEMS" {
			continue
		}
		key, value, ok := splitKV(trimmed)
		if !ok {
			return nil, merrors.NewGiveUp("malformed stamp line: %q", line)
		}
		switch section {
		case "ROOT":
			switch key {
			case "repository":
				s.RootRepoURL = value
			case "description":
				s.RootDescriptionPath = value
			case "branch":
				s.RootBranch = value
			}
		case "DOMAIN", "CHECKOUT":
			if strings.HasPrefix(key, "option.") {
				curOptions[strings.TrimPrefix(key, "option.")] = coerceOptionValue(value)
			} else {
				cur[key] = value
			}
		}
	}
	flushCheckout()
	flushDomain()

	return s, nil
}

func splitKV(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

// coerceOptionValue mirrors repo.CheckoutData.SetOption's bool/int/string
// restriction when reading an option back out of stamp text.
func coerceOptionValue(raw string) interface{} {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}
