// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("🚀 go-trackersync - Versioned Journal Synchronization Library")
	fmt.Println("=============================================================")
	fmt.Println()
	fmt.Println("go-trackersync keeps multiple clients converged on one authoritative journal")
	fmt.Println("of trackers and dated entries, with per-record optimistic concurrency and an")
	fmt.Println("auditable conflict ledger.")
	fmt.Println()

	fmt.Println("📚 Available Examples:")
	fmt.Println()
	fmt.Println("1. 🌐 Journal Server Example (examples/journal_server/)")
	fmt.Println("   A complete sync server using Go's net/http package")
	fmt.Println("   Features: JWT auth, push with per-record gating, full/delta snapshots,")
	fmt.Println("   conflict listing and resolution")
	fmt.Println("   Run: cd examples/journal_server && go run .")
	fmt.Println()
}
