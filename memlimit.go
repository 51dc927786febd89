package main

import (
	"math"
	"os"
	"strconv"
)

var memLimit int = calcMemLimit()

func calcMemLimit() int {
	if e := os.Getenv("ROMTEXT_CACHE_GB"); e != "" {
		f, err := strconv.ParseFloat(e, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			panic("malformed ROMTEXT_CACHE_GB environment variable, should be a number of gigabytes: " + e)
		}
		return int(f * 1024 * 1024 * 1024)
	}
	return 256 * 1024 * 1024 // plenty for decompressed message archives
}
