/*
Package main is the entry point for satyamctl.

satyamctl runs the legal question-answering pipeline from the command line,
against the same configuration as the server.

Usage:
  satyamctl [command]

Available Commands:
  retrieve    Show the chunks retrieved for a query
  ask         Answer a single question
  cache       Inspect the response cache
  seed        Index pre-chunked statute text from a JSON Lines file
*/
package main

import (
	"fmt"
	"os"

	"satyam-ai-go/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
