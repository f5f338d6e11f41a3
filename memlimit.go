package main

import (
	"math"
	"os"
	"strconv"
)

var memLimit int = calcMemLimit()

// calcMemLimit is the byte budget for decoded entries kept in memory
func calcMemLimit() int {
	if e := os.Getenv("MEMZIPMB"); e != "" {
		f, err := strconv.ParseFloat(e, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			panic("malformed MEMZIPMB environment variable, should be a number of megabytes: " + e)
		}
		return int(f * 1024 * 1024)
	}
	return 256 * 1024 * 1024 // fall back on 256MiB
}
