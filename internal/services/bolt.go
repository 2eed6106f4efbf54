package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MegaGrindStone/sakhi/internal/models"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements wellness.Store using a BoltDB file. Each profile owns a reminder bucket and a
// mood bucket; cycles are kept in a shared bucket keyed by profile ID.
type BoltDB struct {
	db *bolt.DB
}

var (
	profilesBucket = []byte("profiles")
	cyclesBucket   = []byte("cycles")
)

// NewBoltDB opens (creating if needed) the database at path with 0600 permissions and initializes the
// shared buckets.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{profilesBucket, cyclesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return BoltDB{}, fmt.Errorf("failed to initialize bolt db: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func reminderBucketName(profileID string) []byte {
	return []byte(fmt.Sprintf("reminders-%s", profileID))
}

func moodBucketName(profileID string) []byte {
	return []byte(fmt.Sprintf("moods-%s", profileID))
}

// registerProfile makes sure the profile is listed and its buckets exist.
func registerProfile(tx *bolt.Tx, profileID string) error {
	if err := tx.Bucket(profilesBucket).Put([]byte(profileID), []byte{}); err != nil {
		return fmt.Errorf("failed to register profile: %w", err)
	}
	for _, name := range [][]byte{reminderBucketName(profileID), moodBucketName(profileID)} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
	}
	return nil
}

// Profiles lists every profile that stored something.
func (b BoltDB) Profiles(context.Context) ([]string, error) {
	var ids []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(profilesBucket).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Reminders returns the reminders of a profile in insertion order.
func (b BoltDB) Reminders(_ context.Context, profileID string) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(reminderBucketName(profileID))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			var reminder models.Reminder
			if err := json.Unmarshal(v, &reminder); err != nil {
				return fmt.Errorf("failed to unmarshal reminder: %w", err)
			}
			reminders = append(reminders, reminder)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

// AddReminder stores a new reminder. The ID is a zero-padded sequence number joined with a random
// suffix, so keys sort in insertion order.
func (b BoltDB) AddReminder(_ context.Context, profileID string, reminder models.Reminder) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := registerProfile(tx, profileID); err != nil {
			return err
		}
		bucket := tx.Bucket(reminderBucketName(profileID))

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%08d-%s", seq, uuid.NewString()[:8])
		reminder.ID = newID

		v, err := json.Marshal(reminder)
		if err != nil {
			return fmt.Errorf("failed to marshal reminder: %w", err)
		}

		return bucket.Put([]byte(newID), v)
	})

	return newID, err
}

// UpdateReminder replaces a stored reminder. Unknown reminders are silently ignored.
func (b BoltDB) UpdateReminder(_ context.Context, profileID string, reminder models.Reminder) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(reminderBucketName(profileID))
		if bucket == nil {
			return nil
		}
		if bucket.Get([]byte(reminder.ID)) == nil {
			return nil
		}

		v, err := json.Marshal(reminder)
		if err != nil {
			return fmt.Errorf("failed to marshal reminder: %w", err)
		}

		return bucket.Put([]byte(reminder.ID), v)
	})
}

// Moods returns the mood check-ins of a profile, oldest first.
func (b BoltDB) Moods(_ context.Context, profileID string) ([]models.MoodEntry, error) {
	var moods []models.MoodEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(moodBucketName(profileID))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			var mood models.MoodEntry
			if err := json.Unmarshal(v, &mood); err != nil {
				return fmt.Errorf("failed to unmarshal mood: %w", err)
			}
			moods = append(moods, mood)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return moods, nil
}

// AddMood records a mood check-in.
func (b BoltDB) AddMood(_ context.Context, profileID string, mood models.MoodEntry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := registerProfile(tx, profileID); err != nil {
			return err
		}
		bucket := tx.Bucket(moodBucketName(profileID))

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}

		v, err := json.Marshal(mood)
		if err != nil {
			return fmt.Errorf("failed to marshal mood: %w", err)
		}

		return bucket.Put([]byte(fmt.Sprintf("%08d", seq)), v)
	})
}

// Cycle returns the period tracker state of a profile. The boolean reports whether one was saved.
func (b BoltDB) Cycle(_ context.Context, profileID string) (models.Cycle, bool, error) {
	var (
		cycle models.Cycle
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cyclesBucket).Get([]byte(profileID))
		if v == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(v, &cycle); err != nil {
			return fmt.Errorf("failed to unmarshal cycle: %w", err)
		}
		return nil
	})
	return cycle, found, err
}

// SaveCycle replaces the period tracker state of a profile.
func (b BoltDB) SaveCycle(_ context.Context, profileID string, cycle models.Cycle) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := registerProfile(tx, profileID); err != nil {
			return err
		}

		v, err := json.Marshal(cycle)
		if err != nil {
			return fmt.Errorf("failed to marshal cycle: %w", err)
		}

		return tx.Bucket(cyclesBucket).Put([]byte(profileID), v)
	})
}
