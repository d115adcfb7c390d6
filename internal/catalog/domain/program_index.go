package catalog

// ProgramIndex resolves program ids against a catalog loaded for one run.
// It is read-only after construction and safe for concurrent use.
type ProgramIndex struct {
	byID       map[ProgramID]Program
	duplicates int
}

// NewProgramIndex indexes programs by id. When ids repeat, the first row wins.
// Rows without an id are ignored.
func NewProgramIndex(programs []Program) *ProgramIndex {
	idx := &ProgramIndex{byID: make(map[ProgramID]Program, len(programs))}
	for _, p := range programs {
		key := canonicalID(string(p.ID))
		if key.IsZero() {
			continue
		}
		if _, ok := idx.byID[key]; ok {
			idx.duplicates++
			continue
		}
		p.ID = key
		idx.byID[key] = p
	}
	return idx
}

// Len returns the number of indexed programs.
func (idx *ProgramIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byID)
}

// Duplicates returns how many rows were dropped because their id was already indexed.
func (idx *ProgramIndex) Duplicates() int {
	if idx == nil {
		return 0
	}
	return idx.duplicates
}

// Lookup returns the program with the given id, without following parents.
func (idx *ProgramIndex) Lookup(id ProgramID) (Program, bool) {
	if idx == nil || id.IsZero() {
		return Program{}, false
	}
	p, ok := idx.byID[canonicalID(string(id))]
	return p, ok
}

// Resolve returns the effective program for id: the root of its parent chain.
// If a parent along the chain is missing, or the chain loops back on itself, the
// walk stops at the last program it found. An unknown id is absent.
func (idx *ProgramIndex) Resolve(id ProgramID) (Program, bool) {
	current, ok := idx.Lookup(id)
	if !ok {
		return Program{}, false
	}
	visited := map[ProgramID]struct{}{current.ID: {}}
	for current.HasParent() {
		parentID := canonicalID(string(current.ParentID))
		if _, seen := visited[parentID]; seen {
			break
		}
		parent, found := idx.Lookup(parentID)
		if !found {
			break
		}
		visited[parent.ID] = struct{}{}
		current = parent
	}
	return current, true
}
