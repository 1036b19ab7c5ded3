package models

// Triple is one emitted observation. Every observation is emitted once
// unlabeled at arrival (Label nil) and at most once more with the ground
// truth once it has been retrieved.
type Triple struct {
	Index    int         `json:"index"`
	Features Features    `json:"features"`
	Label    interface{} `json:"label,omitempty"`
}

// Labeled reports whether the triple carries a retrieved label.
func (t Triple) Labeled() bool {
	return t.Label != nil
}
