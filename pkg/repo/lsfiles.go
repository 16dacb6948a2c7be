package repo

import "sort"

// ListFiles returns the sorted set of paths currently in the index.
func (r *Repo) ListFiles() ([]string, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(stg.Entries))
	for p := range stg.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}
