package handlers

import (
	"net/http"
	"strings"

	"websites-content-system/pkg/models"
	"websites-content-system/pkg/tree"
	"websites-content-system/pkg/utils"
)

// listParam collects a query parameter given as repeated keys, comma separated
// values or both.
func listParam(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// parseFilter reads owners, reviewers, products, query and policy from the URL.
func parseFilter(r *http.Request) (models.FilterSpec, tree.Policy, error) {
	filter := models.FilterSpec{
		Owners:    listParam(r, "owners"),
		Reviewers: listParam(r, "reviewers"),
		Products:  listParam(r, "products"),
	}
	if q := r.URL.Query(); q.Has("query") {
		query := q.Get("query")
		filter.Query = &query
	}
	policy, err := tree.ParsePolicy(utils.GetQueryParam(r, "policy", tree.KeepAncestors.String()))
	return filter, policy, err
}
