package classifier

import "strings"

type Category string

const (
	People   Category = "PEOPLE"
	Projects Category = "PROJECTS"
	Ideas    Category = "IDEAS"
	Admin    Category = "ADMIN"
)

var Categories = []Category{People, Projects, Ideas, Admin}

// ParseCategory matches case-insensitively against the closed set.
func ParseCategory(s string) (Category, bool) {
	candidate := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range Categories {
		if c == candidate {
			return c, true
		}
	}
	return "", false
}

// Label is the human form used in prompts and replies, e.g. "Projects".
func (c Category) Label() string {
	if len(c) == 0 {
		return ""
	}
	lower := strings.ToLower(string(c))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func (c Category) String() string {
	return string(c)
}
