// Command cratesmirror builds a curated mirror of the crates.io
// registry: it selects top and curated crates, transitively resolves
// every version their dependency trees require, and materializes a
// pruned index tree plus a flat archive directory.
package main

import (
	"github.com/0xa1bed0/cratesmirror/internal/cli"
)

func main() {
	cli.Execute()
}
