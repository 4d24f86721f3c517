// Package pattern locates a logical pulse sequence (in clock multiples) in
// the pulse-id data of a raw frame.
package pattern

import (
	"math"
	"sort"
	"strings"

	"github.com/dbehnke/signalduino/internal/protocol"
)

// MaxCombinations bounds the candidate assignments tried for one search
const MaxCombinations = 10000

// Pulse is one entry of a frame's pulse table: the id used in the data
// string and its duration, usually normalised to the clock
type Pulse struct {
	ID    string
	Value float64
}

// Tolerance returns the allowed deviation when matching v
func Tolerance(v float64) float64 {
	a := math.Abs(v)
	switch {
	case a > 16:
		return a * 0.18
	case a > 3:
		return a * 0.3
	}
	return 1
}

// InTolerance reports whether a and b differ by at most tol
func InTolerance(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

type candidate struct {
	id  string
	gap float64
}

// Exists maps every distinct value of search to a distinct pulse id within
// tolerance and returns the first resulting id sequence found in data.
// Candidates are tried closest first.
func Exists(search []float64, pulses []Pulse, data string) (string, bool) {
	if len(search) == 0 {
		return "", false
	}

	var values []float64
	index := make(map[float64]int)
	for _, v := range search {
		if _, ok := index[v]; !ok {
			index[v] = len(values)
			values = append(values, v)
		}
	}

	lists := make([][]string, len(values))
	total := 1
	for i, v := range values {
		tol := Tolerance(v)
		var cands []candidate
		for _, p := range pulses {
			gap := math.Abs(p.Value - v)
			if gap <= 0.001 || InTolerance(p.Value, v, tol) {
				cands = append(cands, candidate{p.ID, gap})
			}
		}
		if len(cands) == 0 {
			return "", false
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].gap < cands[b].gap })

		ids := make([]string, len(cands))
		for j, c := range cands {
			ids[j] = c.id
		}
		lists[i] = ids
		total *= len(ids)
		if total > MaxCombinations {
			return "", false
		}
	}

	// odometer over the candidate lists, last list turning fastest
	pos := make([]int, len(lists))
	combo := make([]string, len(lists))
	for {
		for i, p := range pos {
			combo[i] = lists[i][p]
		}
		if distinct(combo) {
			var sb strings.Builder
			for _, v := range search {
				sb.WriteString(combo[index[v]])
			}
			if target := sb.String(); strings.Contains(data, target) {
				return target, true
			}
		}

		i := len(pos) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(lists[i]) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return "", false
		}
	}
}

// MatchAll returns, in the given order, every definition whose sync, one
// and zero patterns all occur in data. Absent patterns are not required.
func MatchAll(defs []*protocol.Definition, pulses []Pulse, data string) []*protocol.Definition {
	var out []*protocol.Definition
	for _, d := range defs {
		ok := true
		for _, p := range [][]float64{d.Sync, d.One, d.Zero} {
			if len(p) == 0 {
				continue
			}
			if _, found := Exists(p, pulses, data); !found {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, d)
		}
	}
	return out
}

func distinct(ids []string) bool {
	for i := 1; i < len(ids); i++ {
		for j := 0; j < i; j++ {
			if ids[i] == ids[j] {
				return false
			}
		}
	}
	return true
}
