package model

type Guidelines struct {
	Categories map[string][]string `json:"categories"`
	Common     []string            `json:"common"`
}

func (g *Guidelines) Count() int {
	if g == nil {
		return 0
	}
	n := len(g.Common)
	for _, items := range g.Categories {
		n += len(items)
	}
	return n
}
