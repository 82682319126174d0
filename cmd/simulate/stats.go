package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// GameResult is the outcome of one simulated game
type GameResult struct {
	Score       int
	HighestTile int
	Moves       int
	Detonations int
	GameOver    bool
}

// Stats summarizes integer samples
type Stats struct {
	Mean   float64
	StdDev float64
	P50    float64
	P90    float64
	P99    float64
}

// calcStats computes mean, standard deviation and interpolated percentiles
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}

	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}

	sorted := append([]int(nil), xs...)
	sort.Ints(sorted)
	percentile := func(p float64) float64 {
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		if i+1 >= n {
			return float64(sorted[n-1])
		}
		f := pos - float64(i)
		return float64(sorted[i])*(1-f) + float64(sorted[i+1])*f
	}

	return Stats{
		Mean:   mean,
		StdDev: math.Sqrt(acc / float64(n)),
		P50:    percentile(0.50),
		P90:    percentile(0.90),
		P99:    percentile(0.99),
	}
}

// Report aggregates the games played on one configuration
type Report struct {
	Config    string
	Policy    string
	Games     int
	Finished  int
	Score     Stats
	Moves     Stats
	Highest   map[int]int
	BestScore int
}

func newReport(config, policy string, games []GameResult) *Report {
	r := &Report{
		Config:  config,
		Policy:  policy,
		Games:   len(games),
		Highest: make(map[int]int),
	}
	scores := make([]int, 0, len(games))
	moves := make([]int, 0, len(games))
	for _, g := range games {
		scores = append(scores, g.Score)
		moves = append(moves, g.Moves)
		r.Highest[g.HighestTile]++
		r.BestScore = max(r.BestScore, g.Score)
		if g.GameOver {
			r.Finished++
		}
	}
	r.Score = calcStats(scores)
	r.Moves = calcStats(moves)
	return r
}

// Write prints the report as plain text
func (r *Report) Write(w io.Writer) {
	fmt.Fprintf(w, "\n%s %s (%s policy)\n", strings.Repeat("=", 20), r.Config, r.Policy)
	fmt.Fprintf(w, "Games: %d (%d finished, %d hit the move limit)\n", r.Games, r.Finished, r.Games-r.Finished)
	fmt.Fprintf(w, "Score: mean %.1f  sd %.1f  p50 %.0f  p90 %.0f  p99 %.0f  best %d\n",
		r.Score.Mean, r.Score.StdDev, r.Score.P50, r.Score.P90, r.Score.P99, r.BestScore)
	fmt.Fprintf(w, "Moves: mean %.1f  p50 %.0f  p90 %.0f\n", r.Moves.Mean, r.Moves.P50, r.Moves.P90)

	tiles := make([]int, 0, len(r.Highest))
	for tile := range r.Highest {
		tiles = append(tiles, tile)
	}
	sort.Ints(tiles)

	fmt.Fprintln(w, "Highest tile:")
	for _, tile := range tiles {
		count := r.Highest[tile]
		pct := 100 * float64(count) / float64(r.Games)
		fmt.Fprintf(w, "  %6d  %5d  %5.1f%%  %s\n", tile, count, pct, strings.Repeat("#", int(math.Round(pct/2))))
	}
}
