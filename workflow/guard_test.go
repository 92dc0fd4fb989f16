package workflow

import (
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/fieldops_backend/models"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
)

func TestSaveGuardManualOverlapRejected(t *testing.T) {
	g := NewSaveGuard()
	key := SaveKey("2026-03-14", 1, 2)

	admitted, err := g.TryBegin(key, true)
	if err != nil || !admitted {
		t.Fatalf("first manual save must be admitted: admitted=%v err=%v", admitted, err)
	}

	if _, err := g.TryBegin(key, true); err != utils.ErrorSaveInFlight {
		t.Fatalf("second manual save: want ErrorSaveInFlight, got %v", err)
	}
	if admitted, err := g.TryBegin(key, false); err != nil || admitted {
		t.Fatalf("overlapping autosave must be skipped silently: admitted=%v err=%v", admitted, err)
	}

	g.End(key)
	if admitted, err := g.TryBegin(key, true); err != nil || !admitted {
		t.Fatalf("after End the key must be free again: admitted=%v err=%v", admitted, err)
	}
	g.End(key)
}

func TestSaveGuardKeysAreIndependent(t *testing.T) {
	g := NewSaveGuard()
	a := SaveKey("2026-03-14", 1, 2)
	b := SaveKey("2026-03-14", 1, 3)

	if admitted, _ := g.TryBegin(a, true); !admitted {
		t.Fatal("key a not admitted")
	}
	if admitted, err := g.TryBegin(b, true); err != nil || !admitted {
		t.Fatalf("a save on a different module must not be blocked: admitted=%v err=%v", admitted, err)
	}
	g.End(a)
	g.End(b)
}

func TestSaveGuardConcurrentAdmitsOne(t *testing.T) {
	g := NewSaveGuard()
	key := SaveKey("2026-03-14", 7, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admittedCount, rejectedCount := 0, 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted, err := g.TryBegin(key, true)
			mu.Lock()
			defer mu.Unlock()
			if admitted {
				admittedCount++
			}
			if err == utils.ErrorSaveInFlight {
				rejectedCount++
			}
		}()
	}
	wg.Wait()

	if admittedCount != 1 {
		t.Fatalf("exactly one concurrent manual save may win, got %d", admittedCount)
	}
	if rejectedCount != 24 {
		t.Fatalf("the rest must get the please-wait rejection, got %d", rejectedCount)
	}
}

func TestSaveGuardSuppressionWindow(t *testing.T) {
	g := NewSaveGuard()
	key := SaveKey("2026-03-14", 1, 1)

	release := g.Suppress(key)
	if admitted, err := g.TryBegin(key, false); err != nil || admitted {
		t.Fatalf("autosave during a suppression window must be dropped: admitted=%v err=%v", admitted, err)
	}
	// A deliberate manual save still goes through.
	if admitted, err := g.TryBegin(key, true); err != nil || !admitted {
		t.Fatalf("manual save must pass the suppression window: admitted=%v err=%v", admitted, err)
	}
	g.End(key)

	release()
	release() // closing twice is harmless
	if admitted, err := g.TryBegin(key, false); err != nil || !admitted {
		t.Fatalf("after the window closes autosaves resume: admitted=%v err=%v", admitted, err)
	}
	g.End(key)
}

func TestSaveGuardDedupSurvivesRejection(t *testing.T) {
	g := NewSaveGuard()
	key := SaveKey("2026-03-14", 1, 1)
	hash := NormalizedRowHash("2026-03-14", 1, "", nil, []models.StaffActivityRow{
		{WorkerName: "Su", Hours: d(8), WorkStatus: models.WorkStatusWorked},
	})

	g.RecordSaved(key, hash)
	if !g.ShouldSkip(key, hash) {
		t.Fatal("identical content must be skippable after a confirmed save")
	}

	// A rejected overlapping save must not disturb the recorded hash.
	if admitted, _ := g.TryBegin(key, true); !admitted {
		t.Fatal("setup: first save not admitted")
	}
	if _, err := g.TryBegin(key, true); err != utils.ErrorSaveInFlight {
		t.Fatalf("want rejection, got %v", err)
	}
	g.End(key)

	if !g.ShouldSkip(key, hash) {
		t.Fatal("rejection corrupted the dedup state")
	}
	if g.ShouldSkip(key, "different") {
		t.Fatal("a different hash must not be skipped")
	}
}

func TestNormalizedRowHashIgnoresPlaceholdersAndOrder(t *testing.T) {
	filled := models.StaffActivityRow{WorkerName: "Su", Hours: d(8), WorkStatus: models.WorkStatusWorked}
	other := models.StaffActivityRow{WorkerName: "Aye", Hours: d(4), WorkStatus: models.WorkStatusWorked}

	base := NormalizedRowHash("2026-03-14", 1, "n", nil, []models.StaffActivityRow{filled, other})
	withPlaceholder := NormalizedRowHash("2026-03-14", 1, "n", nil, []models.StaffActivityRow{filled, other, {WorkStatus: models.WorkStatusAbsent}})
	reordered := NormalizedRowHash("2026-03-14", 1, "n", nil, []models.StaffActivityRow{other, filled})

	if base != withPlaceholder {
		t.Fatal("trailing placeholder must not change the content hash")
	}
	if base != reordered {
		t.Fatal("row order must not change the content hash")
	}

	changed := NormalizedRowHash("2026-03-14", 1, "n", nil, []models.StaffActivityRow{filled, {WorkerName: "Aye", Hours: d(5), WorkStatus: models.WorkStatusWorked}})
	if base == changed {
		t.Fatal("a real content change must change the hash")
	}
	otherDay := NormalizedRowHash("2026-03-15", 1, "n", nil, []models.StaffActivityRow{filled, other})
	if base == otherDay {
		t.Fatal("the date key must contribute to the hash")
	}
}
