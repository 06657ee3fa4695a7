package query

import (
	"sort"
	"strings"

	"github.com/openrecon/scanview/pkg/models"
)

// SortKey is one (field, direction) pair of a multi-key sort.
type SortKey struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// ApplySort returns a sorted copy of hosts. The comparator tries, per key:
// numeric comparison when both values coerce to numbers, dotted-quad
// comparison for IP fields, case-insensitive string comparison otherwise.
// The first non-zero key decides; ties fall through to the next key. The
// input slice is never reordered.
func ApplySort(hosts []*models.Host, keys []SortKey) []*models.Host {
	out := append([]*models.Host(nil), hosts...)
	if len(keys) == 0 {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, key := range keys {
			c := compareField(out[i], out[j], key.Field)
			if c == 0 {
				continue
			}
			if key.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

func compareField(a, b *models.Host, field string) int {
	av := resolveField(a, field)
	bv := resolveField(b, field)

	if an, aok := toNumber(av); aok {
		if bn, bok := toNumber(bv); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
			return 0
		}
	}

	if fieldKind(field) == KindIP {
		return compareDottedQuad(av, bv)
	}

	return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
}

// compareDottedQuad compares up to four numeric octets left to right; a
// missing octet counts as 0.
func compareDottedQuad(a, b string) int {
	ao := strings.Split(a, ".")
	bo := strings.Split(b, ".")
	for i := 0; i < 4; i++ {
		an, bn := 0, 0
		if i < len(ao) {
			an, _ = atoiSafe(ao[i])
		}
		if i < len(bo) {
			bn, _ = atoiSafe(bo[i])
		}
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
	}
	return 0
}

func atoiSafe(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
