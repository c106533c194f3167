// Command kprofile merges one or more gzip'd pprof profiles captured from
// a kernel test run (e.g. repeated banker-arbiter safety checks or page-
// fault handling under a CPU profiler) and prints the hottest functions,
// ranked by the sum of each sample's first value over every sample whose
// call stack names the function, so a regression in the allocator or scheduler's hot
// path shows up as a diff in this output across builds.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/google/pprof/profile"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[kprofile] error: %s\n", err.Error())
	os.Exit(1)
}

func loadProfiles(paths []string) (*profile.Profile, error) {
	var profs []*profile.Profile
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		prof, err := profile.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
		profs = append(profs, prof)
	}
	return profile.Merge(profs)
}

// frameTotal is one function's aggregated sample value across every
// sample that names it anywhere in its call stack.
type frameTotal struct {
	name  string
	value int64
}

func topFrames(p *profile.Profile, n int) []frameTotal {
	totals := make(map[string]int64)
	for _, s := range p.Sample {
		if len(s.Value) == 0 {
			continue
		}
		seen := make(map[string]bool)
		for _, loc := range s.Location {
			for _, line := range loc.Line {
				if line.Function == nil {
					continue
				}
				name := line.Function.Name
				if seen[name] {
					continue
				}
				seen[name] = true
				totals[name] += s.Value[0]
			}
		}
	}

	frames := make([]frameTotal, 0, len(totals))
	for name, v := range totals {
		frames = append(frames, frameTotal{name: name, value: v})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].value > frames[j].value })
	if len(frames) > n {
		frames = frames[:n]
	}
	return frames
}

func runTool() error {
	top := flag.Int("top", 20, "number of hottest functions to print")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "kprofile: merge pprof profiles and list the hottest functions\n\n")
		fmt.Fprint(os.Stderr, "Usage: kprofile [-top N] profile.pb.gz [profile2.pb.gz ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		return fmt.Errorf("kprofile: at least one profile path is required")
	}

	merged, err := loadProfiles(flag.Args())
	if err != nil {
		return err
	}

	for i, frame := range topFrames(merged, *top) {
		fmt.Printf("%3d. %10d  %s\n", i+1, frame.value, frame.name)
	}
	return nil
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
