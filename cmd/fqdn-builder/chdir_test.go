package main

import (
	"os"
	"testing"
)

// testChdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
