package magstand

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCleanHTML(t *testing.T) {
	in := `<p>About us.\r\n\r\nSince \"1998\".</p>`
	want := `<p>About us.Since "1998".</p>`
	if got := cleanHTML(in); got != want {
		t.Errorf("cleanHTML = %q, want %q", got, want)
	}
}

func TestSaveSettingsAdmission(t *testing.T) {
	s := setupTestStore(t)

	first := SettingsDoc{
		Data:        map[string]string{"about": "<p>v1</p>", "support": "help@mag"},
		LastUpdated: "2024-01-01 10:00:00",
	}
	written, err := s.SaveSettings(first)
	if err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	if !written {
		t.Fatal("first document should be written")
	}

	stale := SettingsDoc{
		Data:        map[string]string{"about": "<p>old</p>"},
		LastUpdated: "2023-12-01 10:00:00",
	}
	written, err = s.SaveSettings(stale)
	if err != nil {
		t.Fatalf("SaveSettings failed: %v", err)
	}
	if written {
		t.Error("stale document must not overwrite a newer one")
	}

	newer := SettingsDoc{
		Data:        map[string]string{"about": "<p>v2</p>"},
		LastUpdated: "2024-02-01 10:00:00",
	}
	if written, err = s.SaveSettings(newer); err != nil || !written {
		t.Fatalf("newer document not written: written=%v err=%v", written, err)
	}

	doc, err := s.Settings()
	if err != nil {
		t.Fatalf("Settings failed: %v", err)
	}
	if doc.Data["about"] != "<p>v2</p>" {
		t.Errorf("about = %q, want v2", doc.Data["about"])
	}
	if _, ok := doc.Data["support"]; ok {
		t.Error("replaced document should not retain old keys")
	}
	if doc.LastUpdated != "2024-02-01 10:00:00" {
		t.Errorf("LastUpdated = %q", doc.LastUpdated)
	}
}

func TestSaveSettingsIgnoresEmptyDoc(t *testing.T) {
	s := setupTestStore(t)
	if written, err := s.SaveSettings(SettingsDoc{}); err != nil || written {
		t.Errorf("empty doc: written=%v err=%v, want false nil", written, err)
	}
}

func TestSyncSettingsStoresCleanedRemote(t *testing.T) {
	s := setupTestStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settings" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data": {"about": "<p>Hello.\\r\\nWorld</p>"}, "last_updated": "2024-03-01 08:00:00"}`))
	}))
	defer srv.Close()

	doc, err := SyncSettings(context.Background(), s, NewSettingsClient(srv.URL))
	if err != nil {
		t.Fatalf("SyncSettings failed: %v", err)
	}
	if doc.Data["about"] != "<p>Hello.World</p>" {
		t.Errorf("about = %q, want cleaned HTML", doc.Data["about"])
	}

	stored, _ := s.Settings()
	if stored.LastUpdated != "2024-03-01 08:00:00" {
		t.Errorf("stored LastUpdated = %q", stored.LastUpdated)
	}
}

func TestSyncSettingsPrefersStaleLocalOnRemoteFailure(t *testing.T) {
	s := setupTestStore(t)
	seed := SettingsDoc{Data: map[string]string{"about": "<p>cached</p>"}, LastUpdated: "2024-01-01 10:00:00"}
	if _, err := s.SaveSettings(seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	doc, err := SyncSettings(context.Background(), s, NewSettingsClient(srv.URL))
	if err != nil {
		t.Fatalf("SyncSettings failed: %v", err)
	}
	if doc.Data["about"] != "<p>cached</p>" {
		t.Errorf("about = %q, want the cached copy", doc.Data["about"])
	}
}
