// Command docmanagement runs the document pipeline: HTTP API, extraction worker and index synchronizer.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
