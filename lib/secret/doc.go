// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the mesh shared key outside the Go heap.
//
// Buffer allocates with mmap(MAP_ANONYMOUS), locks the pages with
// mlock so they are never swapped, and marks them MADV_DONTDUMP so
// they are left out of core dumps. Close zeroes and unmaps the pages.
// The garbage collector never sees the memory, so no stray copies of
// the key are left behind by heap compaction.
package secret
