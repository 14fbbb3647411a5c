// Command gqlwatch runs GraphQL queries through the reactive query pipeline
// and prints every result snapshot.
package main

import (
	"fmt"
	"os"

	"github.com/pumped-fn/pumped-gql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
