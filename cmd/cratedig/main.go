package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cratedig/cratedig/analysis"
	"github.com/cratedig/cratedig/batch"
	"github.com/cratedig/cratedig/logging"
	"github.com/cratedig/cratedig/similar"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
	".aiff": true,
	".aif":  true,
}

func main() {
	var (
		cacheDir string
		workers  int
		topN     int
		verbose  bool
	)

	rootCmd := &cobra.Command{
		Use:           "cratedig",
		Short:         "DJ track analyzer: BPM, key, energy and similarity for your library",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logging.SetLevel(logging.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", defaultCacheDir(),
		"Directory for cached analysis results")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show verbose output")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a single track and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer := analysis.NewAnalyzer()
			result, err := analyzer.Analyze(args[0])
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	rootCmd.AddCommand(analyzeCmd)

	batchCmd := &cobra.Command{
		Use:   "batch <paths...>",
		Short: "Analyze many tracks in parallel, serving cached results instantly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := collectAudioFiles(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no audio files found")
			}

			cache, err := batch.NewCache(cacheDir)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			analyzer := analysis.NewAnalyzer()
			runner := batch.NewRunner(cache, analyzer.Analyze, workers)

			var results []*analysis.Result
			runner.Run(ctx, paths, batch.Callbacks{
				OnTrack: func(path string, result *analysis.Result, completed, total int) {
					results = append(results, result)
					fmt.Printf("[%d/%d] %s  %s  %s  energy %d\n",
						completed, total, result.Filename,
						formatBPM(result.BPM), result.Key.Camelot, result.Energy.Level)
				},
				OnError: func(path string, err error) {
					fmt.Fprintf(os.Stderr, "failed: %s: %v\n", path, err)
				},
				OnDone: func(analyzed, cached int) {
					fmt.Printf("done: %d analyzed, %d from cache\n", analyzed, cached)
				},
			})

			printCamelotSummary(results)
			return nil
		},
	}
	batchCmd.Flags().IntVarP(&workers, "workers", "w", batch.DefaultWorkers,
		"Number of concurrent analysis workers")
	rootCmd.AddCommand(batchCmd)

	similarCmd := &cobra.Command{
		Use:   "similar <file> <candidates...>",
		Short: "Rank candidate tracks by feature similarity to a query track",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := collectAudioFiles(args[1:])
			if err != nil {
				return err
			}

			cache, err := batch.NewCache(cacheDir)
			if err != nil {
				return err
			}

			index := similar.NewIndex(cache)
			matches := index.FindSimilar(mustAbs(args[0]), candidates, topN)
			if len(matches) == 0 {
				return fmt.Errorf("no similar tracks found; run 'cratedig batch' first to build the cache")
			}

			for i, m := range matches {
				fmt.Printf("%2d. %.4f  %s  %s  %s\n", i+1, m.Similarity, m.Key, formatBPM(m.BPM), m.Name)
			}
			return nil
		},
	}
	similarCmd.Flags().IntVarP(&topN, "top", "n", similar.DefaultTopN,
		"Maximum number of results")
	rootCmd.AddCommand(similarCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// collectAudioFiles expands files and directories into audio file paths
func collectAudioFiles(args []string) ([]string, error) {
	var paths []string

	for _, arg := range args {
		stat, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}

		if !stat.IsDir() {
			paths = append(paths, mustAbs(arg))
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && audioExtensions[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, mustAbs(path))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}

	return paths, nil
}

// printCamelotSummary lists analyzed tracks in harmonic-mixing order
func printCamelotSummary(results []*analysis.Result) {
	if len(results) < 2 {
		return
	}

	sorted := make([]*analysis.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return analysis.CamelotLess(sorted[i].Key.Camelot, sorted[j].Key.Camelot)
	})

	fmt.Println("\nlibrary by key:")
	for _, r := range sorted {
		fmt.Printf("  %-4s %s %s\n", r.Key.Camelot, formatBPM(r.BPM), r.Filename)
	}
}

func formatBPM(bpm *float64) string {
	if bpm == nil {
		return "--.- BPM"
	}
	return fmt.Sprintf("%5.1f BPM", *bpm)
}

func mustAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".cratedig-cache"
	}
	return filepath.Join(base, "cratedig")
}
