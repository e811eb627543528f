package main

import (
	"os"
	"testing"
)

// testChdir changes the working directory to dir and restores it when the
// test finishes, matching testing.T.Chdir (Go 1.24+) on older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("testChdir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("testChdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("testChdir: restoring %s: %v", prev, err)
		}
	})
}
