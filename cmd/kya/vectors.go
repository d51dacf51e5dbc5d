package main

import (
	"fmt"

	"kya.dev/kya/kya"
)

func cmdVectors(e *env, args []string) int {
	if len(args) == 0 || args[0] != "check" {
		fmt.Fprintln(e.errOut, "usage: kya vectors check [--dir <dir>]")
		return 2
	}
	fs := newFlagSet(e, "vectors check")
	dir := fs.String("dir", "testdata/vectors/verify", "Directory of shared vector fixtures")
	if code := parseFlags(fs, args[1:]); code >= 0 {
		return code
	}
	vectors, err := kya.LoadVectors(*dir)
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		return 1
	}
	failed := 0
	for _, v := range vectors {
		if err := v.Check(); err != nil {
			failed++
			fmt.Fprintf(e.out, "FAIL %s: %v\n", v.Name, err)
			continue
		}
		fmt.Fprintf(e.out, "ok   %s\n", v.Name)
	}
	e.logger.Debug("vectors checked", "dir", *dir, "total", len(vectors), "failed", failed)
	if failed > 0 {
		return 1
	}
	return 0
}
