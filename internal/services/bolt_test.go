package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/MegaGrindStone/sakhi/internal/services"
)

func newTestBolt(t *testing.T) services.BoltDB {
	t.Helper()
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "sakhi.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltDBReminders(t *testing.T) {
	db := newTestBolt(t)
	ctx := context.Background()
	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 12 {
		id, err := db.AddReminder(ctx, "p1", models.Reminder{
			Title: "Iron tablet",
			Kind:  models.ReminderMedication,
			Due:   due.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("AddReminder() error = %v", err)
		}
		ids = append(ids, id)
	}

	got, err := db.Reminders(ctx, "p1")
	if err != nil {
		t.Fatalf("Reminders() error = %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("len(Reminders()) = %d, want %d", len(got), len(ids))
	}
	for i, r := range got {
		if r.ID != ids[i] {
			t.Errorf("Reminders()[%d].ID = %q, want %q", i, r.ID, ids[i])
		}
	}

	done := got[3]
	done.Completed = true
	if err := db.UpdateReminder(ctx, "p1", done); err != nil {
		t.Fatalf("UpdateReminder() error = %v", err)
	}
	if err := db.UpdateReminder(ctx, "p1", models.Reminder{ID: "missing"}); err != nil {
		t.Fatalf("UpdateReminder(missing) error = %v", err)
	}

	got, _ = db.Reminders(ctx, "p1")
	if !got[3].Completed {
		t.Error("reminder not marked completed")
	}
	if len(got) != len(ids) {
		t.Errorf("update of unknown reminder added a record")
	}

	other, err := db.Reminders(ctx, "p2")
	if err != nil || len(other) != 0 {
		t.Errorf("Reminders(p2) = %v, %v; want empty", other, err)
	}
}

func TestBoltDBMoodsAndCycle(t *testing.T) {
	db := newTestBolt(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, found, err := db.Cycle(ctx, "p1"); err != nil || found {
		t.Fatalf("Cycle() = found %v, err %v; want not found", found, err)
	}

	for _, mood := range []string{"calm", "anxious"} {
		if err := db.AddMood(ctx, "p1", models.MoodEntry{Mood: mood, At: now}); err != nil {
			t.Fatalf("AddMood() error = %v", err)
		}
	}
	moods, err := db.Moods(ctx, "p1")
	if err != nil {
		t.Fatalf("Moods() error = %v", err)
	}
	if len(moods) != 2 || moods[0].Mood != "calm" || moods[1].Mood != "anxious" {
		t.Errorf("Moods() = %v", moods)
	}

	cycle := models.Cycle{LastPeriod: now, CycleLength: 28, PeriodLength: 5, Symptoms: []string{"cramps"}}
	if err := db.SaveCycle(ctx, "p1", cycle); err != nil {
		t.Fatalf("SaveCycle() error = %v", err)
	}
	got, found, err := db.Cycle(ctx, "p1")
	if err != nil || !found {
		t.Fatalf("Cycle() = found %v, err %v", found, err)
	}
	if got.CycleLength != 28 || !got.LastPeriod.Equal(now) || len(got.Symptoms) != 1 {
		t.Errorf("Cycle() = %+v", got)
	}

	profiles, err := db.Profiles(ctx)
	if err != nil {
		t.Fatalf("Profiles() error = %v", err)
	}
	if len(profiles) != 1 || profiles[0] != "p1" {
		t.Errorf("Profiles() = %v, want [p1]", profiles)
	}
}
