package util

import "testing"

func TestSanitizeFileNameReplacesSeparators(t *testing.T) {
	got, err := SanitizeFileName(" dir/cv\\final.pdf ")
	if err != nil {
		t.Fatalf("SanitizeFileName: %v", err)
	}
	if got != "dir_cv_final.pdf" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestSanitizeFileNameRejectsTraversal(t *testing.T) {
	if _, err := SanitizeFileName("../etc/passwd"); err == nil {
		t.Fatal("expected error for traversal")
	}
}

func TestSanitizeFileNameRejectsEmpty(t *testing.T) {
	if _, err := SanitizeFileName("   "); err == nil {
		t.Fatal("expected error for empty name")
	}
}
