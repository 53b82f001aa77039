// Package main implements the carbonstats server, which accepts GeoJSON
// feature collections and computes zonal statistics over the predicted
// carbon sequestration rate raster asynchronously.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
