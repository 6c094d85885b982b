package experiments

import "hash/fnv"

// Bucket deterministically picks a variant for one participant. The choice
// depends only on the experiment name, the identity, and the variant list, so
// any two instances given the same inputs agree. An empty variant list
// returns the empty string.
func Bucket(experiment, identity string, variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	h := fnv.New64a()
	h.Write([]byte(experiment))
	h.Write([]byte{':'})
	h.Write([]byte(identity))
	return variants[h.Sum64()%uint64(len(variants))]
}
