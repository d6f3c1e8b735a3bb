package ir

import "strconv"

// Namer generates temporary names for one translation context.
// The '#' can't appear in source identifiers, so temporaries never collide with user names.
type Namer struct {
	Prefix string

	next int
}

func (n *Namer) Next() string {
	p := n.Prefix
	if p == "" {
		p = "t"
	}

	name := p + "#" + strconv.Itoa(n.next)
	n.next++

	return name
}

func IsTemp(name string) bool {
	for i := 0; i < len(name); i++ {
		if name[i] == '#' {
			return true
		}
	}

	return false
}
