package collection

import "fmt"

// Range selects a sub-sequence of an ordered result. Semantics follow the
// usual slice conventions of dynamic languages: Stop is exclusive, negative
// bounds count from the end, a negative Step walks backwards. Nil bounds
// mean "from the beginning" and "to the end" respectively.
type Range struct {
	Start *int
	Stop  *int
	Step  int // 0 means 1
}

// Bound is a convenience for filling Range fields.
func Bound(i int) *int {
	return &i
}

// fetchPlan is a Range rewritten in store terms: an offset+count window,
// possibly on the reversed ordering, plus in-process fixups for what the
// store cannot express.
type fetchPlan struct {
	empty bool // provably empty, skip the store entirely

	offset int // store-side offset into the (possibly reversed) ordering
	count  int // store-side element count, -1 means to the end

	reversed  bool   // fetch on the reversed ordering
	postTrim  *Range // apply in-process when bounds straddle
	postFlip  bool   // reverse the fetched window in-process
	postEvery int    // keep every n-th element of the result, 1 keeps all
}

func fullFetch() fetchPlan {
	return fetchPlan{count: -1, postEvery: 1}
}

// planRange rewrites a Range into a fetchPlan, transferring as little as
// possible: same-side bounds become a store-side window, negative bounds
// go through the reversed ordering, straddling bounds fall back to a full
// fetch trimmed in-process.
func planRange(r Range) (fetchPlan, error) {
	step := r.Step
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return planBackward(r, step)
	}

	p := fetchPlan{postEvery: step, count: -1}
	switch {
	case r.Start == nil && r.Stop == nil:
		// whole result

	case r.Stop == nil:
		if *r.Start >= 0 {
			p.offset = *r.Start
		} else {
			// last -Start elements: a window at the head of the
			// reversed ordering, flipped back
			p.reversed = true
			p.count = -*r.Start
			p.postFlip = true
		}

	case r.Start == nil:
		if *r.Stop >= 0 {
			if *r.Stop == 0 {
				return fetchPlan{empty: true}, nil
			}
			p.count = *r.Stop
		} else {
			// everything but the last -Stop elements: bounds straddle,
			// length unknown, fetch everything
			p.postTrim = &Range{Stop: r.Stop}
		}

	case *r.Start >= 0 && *r.Stop >= 0:
		if *r.Stop <= *r.Start {
			return fetchPlan{empty: true}, nil
		}
		p.offset = *r.Start
		p.count = *r.Stop - *r.Start

	case *r.Start < 0 && *r.Stop < 0:
		if *r.Stop <= *r.Start {
			return fetchPlan{empty: true}, nil
		}
		p.reversed = true
		p.offset = -*r.Stop
		p.count = *r.Stop - *r.Start
		p.postFlip = true

	default: // straddling bounds
		p.postTrim = &Range{Start: r.Start, Stop: r.Stop}
	}
	return p, nil
}

// planBackward maps a negative-step Range onto the equivalent forward
// window, fetched ascending and flipped in-process.
func planBackward(r Range, step int) (fetchPlan, error) {
	var lo, hi *int
	if r.Stop != nil {
		if *r.Stop == -1 {
			// stops just before the last element walking backwards:
			// nothing qualifies
			return fetchPlan{empty: true}, nil
		}
		lo = Bound(*r.Stop + 1)
	}
	if r.Start != nil && *r.Start != -1 {
		hi = Bound(*r.Start + 1)
	}
	p, err := planRange(Range{Start: lo, Stop: hi, Step: 1})
	if err != nil || p.empty {
		return p, err
	}
	p.postFlip = !p.postFlip
	p.postEvery = -step
	return p, nil
}

// apply performs the in-process part of the plan on a fetched window.
func (p fetchPlan) apply(window []string) []string {
	out := window
	if p.postTrim != nil {
		out = trim(out, *p.postTrim)
	}
	if p.postFlip {
		flipped := make([]string, len(out))
		for i, s := range out {
			flipped[len(out)-1-i] = s
		}
		out = flipped
	}
	if p.postEvery > 1 {
		strided := make([]string, 0, (len(out)+p.postEvery-1)/p.postEvery)
		for i := 0; i < len(out); i += p.postEvery {
			strided = append(strided, out[i])
		}
		out = strided
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// trim applies forward slice semantics in-process.
func trim(items []string, r Range) []string {
	n := len(items)
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		if i < 0 {
			i = 0
		}
		if i > n {
			i = n
		}
		return i
	}
	start, stop := 0, n
	if r.Start != nil {
		start = clamp(*r.Start)
	}
	if r.Stop != nil {
		stop = clamp(*r.Stop)
	}
	if stop <= start {
		return nil
	}
	return items[start:stop]
}

// cut applies full slice semantics, negative step included, to an
// in-memory result.
func cut(items []string, r Range) []string {
	step := r.Step
	if step == 0 {
		step = 1
	}
	n := len(items)
	clamp := func(b *int, fallback int) int {
		if b == nil {
			return fallback
		}
		i := *b
		if i < 0 {
			i += n
		}
		low, high := 0, n
		if step < 0 {
			low, high = -1, n-1
		}
		if i < low {
			i = low
		}
		if i > high {
			i = high
		}
		return i
	}
	var start, stop int
	if step > 0 {
		start, stop = clamp(r.Start, 0), clamp(r.Stop, n)
	} else {
		start, stop = clamp(r.Start, n-1), clamp(r.Stop, -1)
	}
	var out []string
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, items[i])
	}
	return out
}

func (r Range) String() string {
	format := func(b *int) string {
		if b == nil {
			return ""
		}
		return fmt.Sprintf("%d", *b)
	}
	s := format(r.Start) + ":" + format(r.Stop)
	if r.Step != 0 && r.Step != 1 {
		s += fmt.Sprintf(":%d", r.Step)
	}
	return "[" + s + "]"
}
