// Gen-lossrun writes a synthetic family of loss-run extracts so lossdev can
// be tried without real data.
//
// Each origin year gets a fixed set of claims with fixed ultimates; every
// evaluation year then reports those claims at the paid and incurred
// development expected for their age. The same seed yields byte-identical
// files.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	paidPattern     = []float64{0.55, 0.80, 0.93, 0.98, 1.0}
	incurredPattern = []float64{0.85, 0.95, 0.99, 1.0, 1.0}
)

type claim struct {
	lossDate string
	ultimate float64
}

func main() {
	outDir := flag.String("out", "data", "output directory")
	dataset := flag.String("dataset", "wc", "dataset name prefix")
	firstYear := flag.Int("first-year", 2019, "first origin year")
	years := flag.Int("years", 5, "number of origin years")
	claims := flag.Int("claims", 8, "claims per origin year")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	// The claim table comes first so every evaluation file agrees on the
	// underlying claims.
	table := make(map[int][]claim)
	for y := *firstYear; y < *firstYear+*years; y++ {
		cs := make([]claim, *claims)
		for i := range cs {
			month := 1 + rng.Intn(12)
			day := 1 + rng.Intn(28)
			cs[i] = claim{
				lossDate: fmt.Sprintf("%d-%02d-%02d", y, month, day),
				ultimate: 1000 + rng.Float64()*49000,
			}
		}
		table[y] = cs
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	lastYear := *firstYear + *years - 1
	for eval := *firstYear; eval <= lastYear; eval++ {
		var b strings.Builder
		b.WriteString("loss_date,paid,incurred\n")

		for y := *firstYear; y <= eval; y++ {
			age := eval - y
			for _, c := range table[y] {
				paid := develop(c.ultimate, age, paidPattern)
				incurred := develop(c.ultimate, age, incurredPattern)
				fmt.Fprintf(&b, "%s,%s,%s\n", c.lossDate, paid, incurred)
			}
		}

		name := fmt.Sprintf("%s_%d.csv", *dataset, eval)
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ %s\n", path)
	}

	fmt.Printf("\nTry:\n  lossdev build %s --factors --verbose\n", *outDir)
}

// develop reports a claim's cumulative amount at the given age in years.
func develop(ultimate float64, age int, pattern []float64) decimal.Decimal {
	if age >= len(pattern) {
		age = len(pattern) - 1
	}
	return decimal.NewFromFloat(ultimate * pattern[age]).Round(2)
}
