package collection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// refSlice is a direct transcription of extended slice semantics, used
// as the reference the fetch planner must agree with.
func refSlice(items []string, r Range) []string {
	step := r.Step
	if step == 0 {
		step = 1
	}
	n := len(items)
	resolve := func(b *int, fallback int) int {
		if b == nil {
			return fallback
		}
		i := *b
		if i < 0 {
			i += n
		}
		return i
	}
	var start, stop int
	if step > 0 {
		start, stop = resolve(r.Start, 0), resolve(r.Stop, n)
		if start < 0 {
			start = 0
		}
		if stop > n {
			stop = n
		}
	} else {
		start, stop = resolve(r.Start, n-1), resolve(r.Stop, -n-1)
		if start > n-1 {
			start = n - 1
		}
		if stop < -1 {
			stop = -1
		}
	}
	var out []string
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if i >= 0 && i < n {
			out = append(out, items[i])
		}
	}
	return out
}

// emulateFetch plays the store side of a plan: the ordered result,
// possibly reversed, windowed by offset and count.
func emulateFetch(items []string, p fetchPlan) []string {
	ordered := append([]string(nil), items...)
	if p.reversed {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	if p.offset >= len(ordered) {
		return nil
	}
	ordered = ordered[p.offset:]
	if p.count != -1 && p.count < len(ordered) {
		ordered = ordered[:p.count]
	}
	return ordered
}

func TestPlanRangeMatchesSliceSemantics(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f"}

	bounds := []*int{nil}
	for i := -8; i <= 8; i++ {
		bounds = append(bounds, Bound(i))
	}
	steps := []int{0, 1, 2, 3, 5, -1, -2, -3}

	for _, start := range bounds {
		for _, stop := range bounds {
			for _, step := range steps {
				r := Range{Start: start, Stop: stop, Step: step}
				plan, err := planRange(r)
				require.NoError(t, err, r.String())

				var got []string
				if !plan.empty {
					got = plan.apply(emulateFetch(items, plan))
				}
				want := refSlice(items, r)
				require.Equal(t, want, got, "range %s", r.String())
			}
		}
	}
}

func TestPlanRangeStoreSideWindows(t *testing.T) {
	// same-side bounds must not trigger a full fetch
	cases := []struct {
		r      Range
		offset int
		count  int
	}{
		{Range{Start: Bound(2)}, 2, -1},
		{Range{Stop: Bound(3)}, 0, 3},
		{Range{Start: Bound(1), Stop: Bound(4)}, 1, 3},
		{Range{Start: Bound(-3), Stop: Bound(-1)}, 1, 2},
		{Range{Start: Bound(-2)}, 0, 2},
	}
	for _, tc := range cases {
		t.Run(tc.r.String(), func(t *testing.T) {
			plan, err := planRange(tc.r)
			require.NoError(t, err)
			require.False(t, plan.empty)
			require.Nil(t, plan.postTrim)
			require.Equal(t, tc.offset, plan.offset)
			require.Equal(t, tc.count, plan.count)
		})
	}
}

func TestPlanRangeProvablyEmpty(t *testing.T) {
	for _, r := range []Range{
		{Stop: Bound(0)},
		{Start: Bound(3), Stop: Bound(1)},
		{Start: Bound(-1), Stop: Bound(-3)},
		{Stop: Bound(-1), Step: -1},
		{Start: Bound(1), Stop: Bound(3), Step: -1},
	} {
		plan, err := planRange(r)
		require.NoError(t, err, r.String())
		require.True(t, plan.empty, r.String())
	}
}

func TestCut(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	for _, start := range []*int{nil, Bound(-5), Bound(-2), Bound(0), Bound(2), Bound(5)} {
		for _, stop := range []*int{nil, Bound(-5), Bound(-1), Bound(1), Bound(3), Bound(5)} {
			for _, step := range []int{0, 1, 2, -1, -2} {
				r := Range{Start: start, Stop: stop, Step: step}
				require.Equal(t, refSlice(items, r), cut(items, r), r.String())
			}
		}
	}
}

func TestRangeString(t *testing.T) {
	require.Equal(t, "[:]", Range{}.String())
	require.Equal(t, "[1:3]", Range{Start: Bound(1), Stop: Bound(3)}.String())
	require.Equal(t, "[-2:]", Range{Start: Bound(-2)}.String())
	require.Equal(t, "[::-1]", Range{Step: -1}.String())
	require.Equal(t, fmt.Sprintf("[%d:%d:%d]", 5, 1, -2),
		Range{Start: Bound(5), Stop: Bound(1), Step: -2}.String())
}
