package models

// FilterSpec is the set of constraints applied to a page tree. Empty fields
// impose no restriction.
type FilterSpec struct {
	Owners    []string `json:"owners"`
	Reviewers []string `json:"reviewers"`
	Products  []string `json:"products"`
	Query     *string  `json:"query"`
}
