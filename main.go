// Package main provides the statusaudit CLI entrypoint.
//
// statusaudit checks a list of URLs at a bounded start rate and reports the
// HTTP status, redirect and transport error of each one.
//
// Usage:
//
//	statusaudit [flags] <url>...
//	statusaudit [flags] --input urls.txt
//	cat urls.txt | statusaudit --input -
//
// See --help for all available options.
package main

func main() {
	Execute()
}
