package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/muesli/termenv"

	"sigil/pkg/driver"
	"sigil/pkg/harness"
)

func main() {
	var (
		testPath = flag.String("path", "", "Directory of mjsunit-style scripts")
		pattern  = flag.String("pattern", "*.js", "File pattern for test files")
		config   = flag.String("config", "", "YAML configuration file")
		verbose  = flag.Bool("verbose", false, "Verbose output")
		limit    = flag.Int("limit", 0, "Limit number of tests to run (0 = no limit)")
		timeout  = flag.Duration("timeout", 5*time.Second, "Timeout per test (e.g., 5s, 1m)")
	)
	flag.Parse()

	if *testPath == "" {
		fmt.Fprintf(os.Stderr, "Error: test path not specified\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -path /path/to/scripts\n", os.Args[0])
		os.Exit(1)
	}

	cfg := driver.DefaultConfig()
	if *config != "" {
		var err error
		if cfg, err = driver.LoadConfig(*config); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	driver.ConfigureLogging(cfg.Log)

	testFiles, err := findTestFiles(*testPath, *pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding test files: %v\n", err)
		os.Exit(1)
	}
	if *limit > 0 && len(testFiles) > *limit {
		testFiles = testFiles[:*limit]
	}
	fmt.Printf("Found %d test files\n", len(testFiles))

	stats := runTests(cfg, testFiles, *verbose, *timeout)
	printSummary(&stats)
	if stats.Failed+stats.Timeouts > 0 {
		os.Exit(1)
	}
}

type TestStats struct {
	Total    int
	Passed   int
	Failed   int
	Timeouts int
	Duration time.Duration
}

func findTestFiles(dir, pattern string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// Status words are coloured when stdout is a terminal.
var term = termenv.NewOutput(os.Stdout)

func status(word string, c termenv.Color) string {
	return term.String(word).Foreground(c).Bold().String()
}

func runTests(cfg driver.Config, testFiles []string, verbose bool, timeout time.Duration) TestStats {
	stats := TestStats{Total: len(testFiles)}
	start := time.Now()

	for i, testFile := range testFiles {
		err := runSingleTest(cfg, testFile, verbose, timeout)
		switch {
		case err == nil:
			stats.Passed++
			if verbose {
				fmt.Printf("%s %d/%d %s\n", status("PASS", termenv.ANSIGreen), i+1, stats.Total, testFile)
			}
		case strings.Contains(err.Error(), "timed out"):
			stats.Timeouts++
			fmt.Printf("%s %d/%d %s - %v\n", status("TIMEOUT", termenv.ANSIYellow), i+1, stats.Total, testFile, err)
		default:
			stats.Failed++
			fmt.Printf("%s %d/%d %s - %v\n", status("FAIL", termenv.ANSIRed), i+1, stats.Total, testFile, err)
		}
	}

	stats.Duration = time.Since(start)
	return stats
}

// runSingleTest runs one script in its own session. A script that does
// not finish in time is abandoned; its goroutine is left to run out.
func runSingleTest(cfg driver.Config, testFile string, verbose bool, timeout time.Duration) error {
	content, err := os.ReadFile(testFile)
	if err != nil {
		return err
	}
	if verbose {
		if flags := extractFlags(string(content)); len(flags) > 0 {
			fmt.Printf("     %s flags: %s\n", testFile, strings.Join(flags, " "))
		}
	}
	exp, err := harness.ParseExpectation(string(content))
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		res, err := harness.RunScript(cfg, testFile)
		if err != nil {
			done <- err
			return
		}
		done <- harness.Check(exp, res)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %v", timeout)
	}
}

// extractFlags reads the "// Flags:" header of an mjsunit script.
func extractFlags(content string) []string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "// Flags:"); ok {
			return strings.Fields(rest)
		}
	}
	return nil
}

func printSummary(stats *TestStats) {
	pct := func(n int) float64 {
		if stats.Total == 0 {
			return 0
		}
		return float64(n) / float64(stats.Total) * 100
	}
	fmt.Printf("\n=== mjsunit Summary ===\n")
	fmt.Printf("Total:    %d\n", stats.Total)
	fmt.Printf("Passed:   %d (%.1f%%)\n", stats.Passed, pct(stats.Passed))
	fmt.Printf("Failed:   %d (%.1f%%)\n", stats.Failed, pct(stats.Failed))
	fmt.Printf("Timeouts: %d (%.1f%%)\n", stats.Timeouts, pct(stats.Timeouts))
	fmt.Printf("Duration: %v\n", stats.Duration)
	fmt.Printf("======================\n")
}
