package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/fieldops_backend/models"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
)

// SaveGuard serializes saves per report key inside one process. A manual save
// that arrives while another is in flight is rejected with a user-visible
// message; an autosave in the same situation is skipped without a sound.
//
// The guard also carries the suppression flags and the last-persisted content
// hash per key, so the whole admit/skip decision lives in one place and can be
// tested without a store.
type SaveGuard struct {
	mu        sync.Mutex
	inFlight  map[string]bool
	suppress  map[string]int
	lastSaved map[string]string
}

func NewSaveGuard() *SaveGuard {
	return &SaveGuard{
		inFlight:  map[string]bool{},
		suppress:  map[string]int{},
		lastSaved: map[string]string{},
	}
}

// SaveKey identifies a report slot: one mutex per (date, creator, module).
func SaveKey(dateKey string, creatorId int, moduleId int) string {
	return fmt.Sprintf("%s:%d:%d", dateKey, creatorId, moduleId)
}

// TryBegin admits at most one save per key. admitted=false with a nil error
// means the caller should drop the save silently (autosave overlap or a
// suppression window); a non-nil error is the manual-save rejection.
func (g *SaveGuard) TryBegin(key string, manual bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.suppress[key] > 0 && !manual {
		return false, nil
	}
	if g.inFlight[key] {
		if manual {
			return false, utils.ErrorSaveInFlight
		}
		return false, nil
	}
	g.inFlight[key] = true
	return true, nil
}

// End releases the key. Must be called exactly once per successful TryBegin.
func (g *SaveGuard) End(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, key)
}

// Suppress opens an autosave suppression window for the key (initial load in
// flight, read-only aggregate open, row deletion finalizing). Windows nest;
// the returned func closes this one.
func (g *SaveGuard) Suppress(key string) func() {
	g.mu.Lock()
	g.suppress[key]++
	g.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			if g.suppress[key] > 0 {
				g.suppress[key]--
			}
			g.mu.Unlock()
		})
	}
}

// ShouldSkip reports whether the normalized content hash matches the last
// save for the key, meaning the store already holds exactly this content.
func (g *SaveGuard) ShouldSkip(key string, hash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSaved[key] != "" && g.lastSaved[key] == hash
}

// RecordSaved remembers the hash of the content that reached the store.
// Called only after a confirmed write; a rejected or failed save never
// disturbs it.
func (g *SaveGuard) RecordSaved(key string, hash string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSaved[key] = hash
}

// NormalizedRowHash digests the report content a save would persist: the
// date/module key plus every filled row, trimmed and in canonical order.
// Placeholder rows and display-only fields do not contribute, so cosmetic
// churn does not defeat deduplication.
func NormalizedRowHash(dateKey string, moduleId int, notes string, orderRows []models.OrderActivityRow, staffRows []models.StaffActivityRow) string {
	var lines []string
	for _, r := range orderRows {
		if r.IsEmpty() {
			continue
		}
		lines = append(lines, fmt.Sprintf("o|%d|%s|%s|%s|%s",
			r.OrderRefId,
			strings.TrimSpace(r.Activity),
			strings.TrimSpace(r.Team),
			strings.TrimSpace(r.Notes),
			strings.TrimSpace(r.Color)))
	}
	for _, r := range staffRows {
		if r.IsEmpty() {
			continue
		}
		lines = append(lines, fmt.Sprintf("s|%t|%t|%d|%d|%s|%s|%s|%s|%s|%s",
			r.IsCompanyExpense, r.IsCashBox, r.CardId, r.WorkerId,
			strings.TrimSpace(r.WorkerName),
			r.Hours.String(), r.Received.String(), r.Spent.String(),
			strings.TrimSpace(r.Notes), r.WorkStatus))
	}
	sort.Strings(lines)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s\n", dateKey, moduleId, strings.TrimSpace(notes))
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
