package schoolapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestListModels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "files": [{"name": "gallery.json", "size": 12, "download_url": "http://x/gallery.json"}]}`))
	})
	_, client := setupMockServer(t, mux)

	files, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || files[0].Name != "gallery.json" || files[0].Size != 12 {
		t.Errorf("unexpected files %+v", files)
	}
}

func TestListModels_Unsuccessful(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "storage offline"}`))
	})
	_, client := setupMockServer(t, mux)

	if _, err := client.ListModels(context.Background()); err == nil {
		t.Error("expected error for unsuccessful listing")
	}
}

func TestDownloadModel_FallsBack(t *testing.T) {
	var tried []string
	mux := http.NewServeMux()
	mux.HandleFunc("/broken/gallery.json", func(w http.ResponseWriter, r *http.Request) {
		tried = append(tried, r.URL.Path)
		http.Error(w, `{"error":"File type not allowed"}`, http.StatusForbidden)
	})
	mux.HandleFunc("/api/models/download/gallery.json", func(w http.ResponseWriter, r *http.Request) {
		tried = append(tried, r.URL.Path)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/models/download/gallery.json", func(w http.ResponseWriter, r *http.Request) {
		tried = append(tried, r.URL.Path)
		w.Write([]byte(`{"samples":[]}`))
	})
	server, client := setupMockServer(t, mux)

	dir := t.TempDir()
	path, err := client.DownloadModel(context.Background(), ModelFile{
		Name:        "gallery.json",
		DownloadURL: server.URL + "/broken/gallery.json",
	}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tried) != 3 {
		t.Errorf("expected three attempts, got %v", tried)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"samples":[]}` {
		t.Errorf("unexpected file content %q", data)
	}

	// no temporary files are left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the model file in %s, got %d entries", dir, len(entries))
	}
}

func TestDownloadModel_AllFail(t *testing.T) {
	_, client := setupMockServer(t, http.NewServeMux())

	dir := t.TempDir()
	if _, err := client.DownloadModel(context.Background(), ModelFile{Name: "model.bin"}, dir); err == nil {
		t.Fatal("expected error when every location fails")
	}
	if _, err := os.Stat(filepath.Join(dir, "model.bin")); !os.IsNotExist(err) {
		t.Error("failed download must not leave a file behind")
	}
}

func TestDownloadModel_RejectsPathTraversal(t *testing.T) {
	_, client := setupMockServer(t, http.NewServeMux())
	for _, name := range []string{"../evil", "a/b", "", ".."} {
		if _, err := client.DownloadModel(context.Background(), ModelFile{Name: name}, t.TempDir()); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestNeedsUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gallery.json")
	if err := os.WriteFile(path, []byte("12345"), 0o600); err != nil {
		t.Fatal(err)
	}
	local := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, local, local); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		file ModelFile
		want bool
	}{
		{"missing locally", ModelFile{Name: "other.bin"}, true},
		{"newer remote", ModelFile{Name: "gallery.json", Modified: "2026-01-11T00:00:00Z"}, true},
		{"older remote", ModelFile{Name: "gallery.json", Modified: "2026-01-09 08:00:00"}, false},
		{"size differs", ModelFile{Name: "gallery.json", Size: 99}, true},
		{"same size no timestamp", ModelFile{Name: "gallery.json", Size: 5}, false},
		{"unparseable timestamp", ModelFile{Name: "gallery.json", Modified: "yesterday"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsUpdate(tt.file, dir); got != tt.want {
				t.Errorf("NeedsUpdate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSyncModels(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "current.bin"), []byte("abc"), 0o600); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "files": [
			{"name": "current.bin", "size": 3},
			{"name": "new.bin", "size": 4},
			{"name": "missing.bin"}
		]}`)
	})
	mux.HandleFunc("/api/models/download/new.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	})
	_, client := setupMockServer(t, mux)

	var progressed []string
	result, err := client.SyncModels(context.Background(), dir, func(f ModelFile) {
		progressed = append(progressed, f.Name)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Total != 3 {
		t.Errorf("expected 3 files, got %d", result.Total)
	}
	if len(result.Downloaded) != 1 || result.Downloaded[0] != "new.bin" {
		t.Errorf("unexpected downloads %v", result.Downloaded)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "current.bin" {
		t.Errorf("unexpected skips %v", result.Skipped)
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected one failed file, got %v", result.Errors)
	}
	if len(progressed) != 3 {
		t.Errorf("expected progress for every file, got %v", progressed)
	}
}

func TestSyncFiles_UsesGivenListing(t *testing.T) {
	dir := t.TempDir()
	listings := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/list", func(w http.ResponseWriter, r *http.Request) {
		listings++
		fmt.Fprint(w, `{"success": true, "files": []}`)
	})
	mux.HandleFunc("/api/models/download/facenet.onnx", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("weights"))
	})
	_, client := setupMockServer(t, mux)

	files := []ModelFile{{Name: "facenet.onnx", Size: 7}}
	result, err := client.SyncFiles(context.Background(), files, dir, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listings != 0 {
		t.Errorf("listing must not be fetched again, got %d requests", listings)
	}
	if result.Total != 1 || len(result.Downloaded) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "facenet.onnx")); err != nil || string(data) != "weights" {
		t.Errorf("model not written: %q, %v", data, err)
	}
}
