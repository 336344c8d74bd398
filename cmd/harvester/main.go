// Command harvester collects Reddit posts and comments matching keyword groups
// into per-group spreadsheet artifacts.
//
// Usage:
//
//	harvester run --job job.yaml
//	harvester serve
//	harvester reconcile --dir ./out
package main

func main() {
	Execute()
}
