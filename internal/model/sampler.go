package model

import (
	"math"
	"math/rand/v2"
	"sort"
)

// RepeatLastN is the size of the window the repeat penalty looks back over.
const RepeatLastN = 64

// Sampler selects a token id from a logits vector.
type Sampler struct {
	rng     *rand.Rand
	temp    float64 // 0 when greedy
	topP    float64 // 0 when disabled
	penalty float64
	idx     []int
	prob    []float64
}

// NewSampler normalizes p: Temperature <= 0 means argmax, TopP outside (0,1)
// means no nucleus truncation.
func NewSampler(p SamplingParams) *Sampler {
	s := &Sampler{
		rng:     rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15)),
		penalty: p.RepeatPenalty,
	}
	if p.Temperature > 0 {
		s.temp = p.Temperature
	}
	if p.TopP > 0 && p.TopP < 1 {
		s.topP = p.TopP
	}
	return s
}

// Sample picks the next id. logits is modified in place. history holds the
// ids generated so far; only the last RepeatLastN are penalized.
func (s *Sampler) Sample(logits []float32, history []int) int {
	if s.penalty != 1 && s.penalty > 0 && len(history) > 0 {
		applyRepeatPenalty(logits, float32(s.penalty), history[max(len(history)-RepeatLastN, 0):])
	}
	if s.temp == 0 {
		return argmax(logits)
	}

	n := len(logits)
	if cap(s.prob) < n {
		s.prob = make([]float64, n)
		s.idx = make([]int, n)
	}
	prob := s.prob[:n]
	maxv := float64(logits[argmax(logits)])
	var sum float64
	for i, l := range logits {
		e := math.Exp((float64(l) - maxv) / s.temp)
		prob[i] = e
		sum += e
	}
	for i := range prob {
		prob[i] /= sum
	}

	if s.topP > 0 {
		idx := s.idx[:n]
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return prob[idx[a]] > prob[idx[b]] })
		var cum float64
		for _, i := range idx {
			if cum >= s.topP {
				prob[i] = 0
			} else {
				cum += prob[i]
			}
		}
		sum = cum
	}

	r := s.rng.Float64() * sum
	var c float64
	last := 0
	for i, pr := range prob {
		if pr == 0 {
			continue
		}
		last = i
		c += pr
		if r < c {
			return i
		}
	}
	return last
}

func applyRepeatPenalty(logits []float32, penalty float32, window []int) {
	seen := make(map[int]struct{}, len(window))
	for _, id := range window {
		if id < 0 || id >= len(logits) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if logits[id] >= 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
}

func argmax(x []float32) int {
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
