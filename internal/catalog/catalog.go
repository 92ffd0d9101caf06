package catalog

// Stage is one step of the selection pipeline together with the rounds
// conducted while an applicant resides in it.
type Stage struct {
	Name   string   `json:"name"`
	Rounds []string `json:"rounds"`
}

// Catalog is the immutable ordered list of selection stages. Ordering defines
// the only legal promotion direction. Built once at startup and injected into
// the services that need it.
type Catalog struct {
	stages []Stage
	index  map[string]int
}

// New builds a catalog from the given ordered stages.
func New(stages []Stage) *Catalog {
	index := make(map[string]int, len(stages))
	copied := make([]Stage, len(stages))
	for i, s := range stages {
		rounds := make([]string, len(s.Rounds))
		copy(rounds, s.Rounds)
		copied[i] = Stage{Name: s.Name, Rounds: rounds}
		index[s.Name] = i
	}
	return &Catalog{stages: copied, index: index}
}

// Default returns the selection drive pipeline.
func Default() *Catalog {
	return New([]Stage{
		{Name: "Physical", Rounds: []string{"Running", "Pushups", "Situps"}},
		{Name: "GD", Rounds: []string{"Group Discussion"}},
		{Name: "Interview", Rounds: []string{"Interview"}},
		{Name: "Final Merit", Rounds: []string{"Final"}},
	})
}

// First returns the name of the initial stage.
func (c *Catalog) First() string {
	if len(c.stages) == 0 {
		return ""
	}
	return c.stages[0].Name
}

// Contains reports whether name is a member of the catalog.
func (c *Catalog) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// IndexOf returns the position of a stage, or -1 when unknown.
func (c *Catalog) IndexOf(name string) int {
	i, ok := c.index[name]
	if !ok {
		return -1
	}
	return i
}

// Next returns the stage following name. The second return is false when
// name is unknown or already terminal.
func (c *Catalog) Next(name string) (string, bool) {
	i, ok := c.index[name]
	if !ok || i == len(c.stages)-1 {
		return "", false
	}
	return c.stages[i+1].Name, true
}

// Stages returns a copy of the ordered stage list.
func (c *Catalog) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	for i, s := range c.stages {
		rounds := make([]string, len(s.Rounds))
		copy(rounds, s.Rounds)
		out[i] = Stage{Name: s.Name, Rounds: rounds}
	}
	return out
}

// Len returns the number of stages.
func (c *Catalog) Len() int {
	return len(c.stages)
}
