package magstand

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SettingsDoc is the remote settings/CMS-content document: a flat map of
// HTML snippets (about page, support text, privacy policy and the like)
// stamped with a last_updated marker that drives write admission.
type SettingsDoc struct {
	Data        map[string]string `json:"data"`
	LastUpdated string            `json:"last_updated"`
}

// cleanHTML removes the literal escape noise the CMS leaves in its HTML
// values: embedded `\r\n` sequences and escaped quotes.
func cleanHTML(raw string) string {
	raw = strings.ReplaceAll(raw, `\r\n`, "")
	return strings.ReplaceAll(raw, `\"`, `"`)
}

// SettingsClient fetches the settings document from the content API.
type SettingsClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSettingsClient creates a client for the given API base URL.
func NewSettingsClient(baseURL string) *SettingsClient {
	return &SettingsClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch returns the cleaned remote settings document.
func (c *SettingsClient) Fetch(ctx context.Context) (SettingsDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/settings", nil)
	if err != nil {
		return SettingsDoc{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return SettingsDoc{}, fmt.Errorf("fetch settings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SettingsDoc{}, fmt.Errorf("fetch settings: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SettingsDoc{}, fmt.Errorf("read settings: %w", err)
	}
	var doc SettingsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return SettingsDoc{}, fmt.Errorf("decode settings: %w", err)
	}
	for k, v := range doc.Data {
		doc.Data[k] = cleanHTML(v)
	}
	return doc, nil
}

// SaveSettings replaces the stored settings document when doc carries a newer
// last_updated marker than what is already stored. Returns true when the
// document was written.
func (s *Store) SaveSettings(doc SettingsDoc) (bool, error) {
	if len(doc.Data) == 0 || doc.LastUpdated == "" {
		return false, nil
	}
	current, err := s.Settings()
	if err != nil {
		return false, err
	}
	if current.LastUpdated != "" && doc.LastUpdated <= current.LastUpdated {
		return false, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM settings`); err != nil {
		return false, err
	}
	for k, v := range doc.Data {
		if _, err := tx.Exec(`INSERT INTO settings (key, value, last_updated) VALUES (?, ?, ?)`,
			k, v, doc.LastUpdated); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Settings returns the stored settings document. An empty doc (no rows) is
// not an error.
func (s *Store) Settings() (SettingsDoc, error) {
	rows, err := s.db.Query(`SELECT key, value, last_updated FROM settings`)
	if err != nil {
		return SettingsDoc{}, err
	}
	defer rows.Close()
	doc := SettingsDoc{Data: map[string]string{}}
	for rows.Next() {
		var k, v, lu string
		if err := rows.Scan(&k, &v, &lu); err != nil {
			return SettingsDoc{}, err
		}
		doc.Data[k] = v
		if lu > doc.LastUpdated {
			doc.LastUpdated = lu
		}
	}
	if err := rows.Err(); err != nil {
		return SettingsDoc{}, err
	}
	return doc, nil
}

// SyncSettings fetches the remote settings document and stores it when newer.
// On any remote failure the stored document is returned instead: settings
// reads prefer stale local data over surfacing sync errors.
func SyncSettings(ctx context.Context, store *Store, client *SettingsClient) (SettingsDoc, error) {
	doc, err := client.Fetch(ctx)
	if err != nil {
		return store.Settings()
	}
	if _, err := store.SaveSettings(doc); err != nil {
		return store.Settings()
	}
	// The stored copy wins ties: a remote doc that is not newer must not
	// shadow what the user already has.
	return store.Settings()
}
