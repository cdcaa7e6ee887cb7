//go:build ignore

// Package main generates a synthetic markdown corpus for ingest
// benchmarking.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"authentication", "caching", "deployment", "indexing", "migration",
	"monitoring", "networking", "replication", "scheduling", "storage",
}

var sentences = []string{
	"The %s subsystem accepts requests over the internal bus and applies them in arrival order.",
	"Configuration for %s lives in the service manifest and is reloaded on SIGHUP.",
	"When %s falls behind, back-pressure propagates to the producers until the queue drains.",
	"Operators should monitor the %s latency histogram and alert on the p99.",
	"The %s component persists its state to disk between restarts.",
	"Failures in %s are retried with exponential backoff up to five attempts.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		topic := topics[rng.Intn(len(topics))]
		path := filepath.Join(*outputDir, fmt.Sprintf("%s-%04d.md", topic, i))
		if err := os.WriteFile(path, []byte(document(rng, topic)), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("generated %d markdown files in %s\n", *numFiles, *outputDir)
}

// document builds one markdown file with a few sections, a code fence,
// and a table, so the structure-aware chunker has work to do.
func document(rng *rand.Rand, topic string) string {
	out := fmt.Sprintf("# %s guide\n\n", topic)
	nSections := 3 + rng.Intn(5)
	for s := 0; s < nSections; s++ {
		out += fmt.Sprintf("## Section %d\n\n", s+1)
		nPara := 2 + rng.Intn(3)
		for p := 0; p < nPara; p++ {
			nSent := 3 + rng.Intn(4)
			for k := 0; k < nSent; k++ {
				out += fmt.Sprintf(sentences[rng.Intn(len(sentences))], topic) + " "
			}
			out += "\n\n"
		}
	}
	out += "```yaml\n" + topic + ":\n  enabled: true\n  workers: " +
		fmt.Sprintf("%d", 1+rng.Intn(16)) + "\n```\n\n"
	out += "| setting | default |\n|---------|--------|\n"
	for r := 0; r < 2+rng.Intn(4); r++ {
		out += fmt.Sprintf("| %s_%d | %d |\n", topic, r, rng.Intn(100))
	}
	out += "\n"
	return out
}
