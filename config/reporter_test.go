package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func readArchive(t *testing.T, name string) map[string]string {
	t.Helper()

	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer zr.Close()

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("unable to open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("unable to read %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}

	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	stored := filepath.Join(dir, "stored.txt")
	if err := os.WriteFile(stored, []byte("stored"), 0644); err != nil {
		t.Fatal(err)
	}
	copied := filepath.Join(dir, "copied.txt")
	if err := os.WriteFile(copied, []byte("before"), 0644); err != nil {
		t.Fatal(err)
	}

	r.Store("stored.txt", stored)
	r.StoreData("pages.txt", []byte("first"))
	r.StoreData("pages.txt", []byte("second"))
	if err := r.StoreCopy("copied.txt", copied); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	// copy must be taken at the time of the call
	if err := os.WriteFile(copied, []byte("after"), 0644); err != nil {
		t.Fatal(err)
	}
	r.Store("absent.txt", filepath.Join(dir, "absent.txt"))

	copies := slices.Clone(r.copies)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if r.Name() != conf.Destination {
		t.Errorf("Name() = %q, want %q", r.Name(), conf.Destination)
	}

	files := readArchive(t, conf.Destination)
	if files["stored.txt"] != "stored" {
		t.Errorf("stored.txt = %q", files["stored.txt"])
	}
	if files["copied.txt"] != "before" {
		t.Errorf("copied.txt = %q", files["copied.txt"])
	}
	if files["pages.txt"] != "first" {
		t.Errorf("pages.txt = %q", files["pages.txt"])
	}
	var versioned bool
	for name, data := range files {
		if strings.HasPrefix(name, "pages.txt-") && data == "second" {
			versioned = true
		}
	}
	if !versioned {
		t.Error("second pages.txt must be stored under versioned name")
	}
	if _, ok := files["absent.txt"]; ok {
		t.Error("absent files must be ignored")
	}
	if !strings.Contains(files["MANIFEST"], "stored.txt") {
		t.Errorf("MANIFEST does not list entries:\n%s", files["MANIFEST"])
	}

	for _, d := range copies {
		if _, err := os.Stat(d); !os.IsNotExist(err) {
			os.RemoveAll(d)
			t.Errorf("temporary copy %s must be removed", d)
		}
	}
}

func TestReport_StoreDir(t *testing.T) {
	dir := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}

	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	work := filepath.Join(dir, "work")
	if err := os.MkdirAll(filepath.Join(work, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(work, "sub", "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	r.Store("work", work)

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	files := readArchive(t, conf.Destination)
	if files["work/sub/a.txt"] != "a" {
		t.Errorf("directory content not archived: %v", files)
	}
	// stored, not copied, directories are left alone
	if _, err := os.Stat(work); err != nil {
		t.Errorf("stored directory must survive Close(): %v", err)
	}
}

func TestReport_Nil(t *testing.T) {
	var r *Report
	r.Store("a", "b")
	r.StoreData("a", nil)
	if err := r.StoreCopy("a", "b"); err != nil {
		t.Errorf("StoreCopy() on nil report error = %v", err)
	}
	if r.Name() != "" {
		t.Errorf("Name() on nil report = %q", r.Name())
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() on nil report error = %v", err)
	}
}
