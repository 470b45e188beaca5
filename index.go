package soundbank

import "sort"

// index holds the live assets by name and by content hash. Several names may
// share one hash. Every asset is in both maps or in neither.
type index struct {
	byName map[string]*Asset
	byHash map[string]map[string]*Asset
}

func newIndex() *index {
	return &index{
		byName: make(map[string]*Asset),
		byHash: make(map[string]map[string]*Asset),
	}
}

// add installs a. Any asset already indexed under a.Name must be removed first.
func (x *index) add(a *Asset) {
	x.byName[a.Name] = a
	names := x.byHash[a.Hash]
	if names == nil {
		names = make(map[string]*Asset)
		x.byHash[a.Hash] = names
	}
	names[a.Name] = a
}

// remove drops a from both maps if it is the asset indexed under its name.
func (x *index) remove(a *Asset) bool {
	if x.byName[a.Name] != a {
		return false
	}
	delete(x.byName, a.Name)
	if names := x.byHash[a.Hash]; names != nil {
		delete(names, a.Name)
		if len(names) == 0 {
			delete(x.byHash, a.Hash)
		}
	}
	return true
}

func (x *index) get(name string) *Asset { return x.byName[name] }

func (x *index) withHash(hash string) []*Asset {
	names := x.byHash[hash]
	assets := make([]*Asset, 0, len(names))
	for _, a := range names {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets
}

func (x *index) names() []string {
	names := make([]string, 0, len(x.byName))
	for name := range x.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (x *index) assets() []*Asset {
	assets := make([]*Asset, 0, len(x.byName))
	for _, a := range x.byName {
		assets = append(assets, a)
	}
	return assets
}

func (x *index) len() int { return len(x.byName) }
