// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	mrand "math/rand"
	"time"

	"coffer/internal/models"
	"coffer/internal/stoken"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers           int
	NumCollections     int
	ItemsPerCollection int
	ShouldClean        bool
}

// collection types clients would register; stored as opaque bytes
var collectionTypes = []string{
	"coffer.contacts", "coffer.calendar", "coffer.tasks", "coffer.notes",
}

// Seed populates the database with fake users, collections, memberships,
// and encrypted-looking items. Item content is random bytes: the server
// only ever sees ciphertext, so the seed data matches production shape.
func Seed(db *gorm.DB, opts Options) error {
	gofakeit.Seed(time.Now().UnixNano())
	ledger := stoken.NewLedger()

	if opts.ShouldClean {
		if err := clean(db); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
	}

	users, err := seedUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	log.Printf("seeded %d users", len(users))

	collections, err := seedCollections(db, ledger, users, opts.NumCollections)
	if err != nil {
		return fmt.Errorf("seed collections: %w", err)
	}
	log.Printf("seeded %d collections", len(collections))

	if err := seedMemberships(db, ledger, users, collections); err != nil {
		return fmt.Errorf("seed memberships: %w", err)
	}

	if err := seedItems(db, ledger, collections, opts.ItemsPerCollection); err != nil {
		return fmt.Errorf("seed items: %w", err)
	}
	return nil
}

func clean(db *gorm.DB) error {
	for _, model := range []any{
		&models.CollectionInvitation{},
		&models.CollectionItem{},
		&models.CollectionMember{},
		&models.Collection{},
		&models.User{},
		&stoken.Stoken{},
	} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedUsers(db *gorm.DB, n int) ([]models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, n)
	seen := make(map[string]struct{}, n)
	for len(users) < n {
		username := models.NormalizeUsername(gofakeit.Username())
		if _, dup := seen[username]; dup || username == "" {
			continue
		}
		seen[username] = struct{}{}
		users = append(users, models.User{
			Username: username,
			Email:    gofakeit.Email(),
			Password: string(hashed),
		})
	}
	if err := db.CreateInBatches(&users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func seedCollections(db *gorm.DB, ledger *stoken.Ledger, users []models.User, n int) ([]models.Collection, error) {
	collections := make([]models.Collection, 0, n)
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < n; i++ {
			owner := users[mrand.Intn(len(users))]
			tok, err := ledger.Issue(tx)
			if err != nil {
				return err
			}
			col := models.Collection{
				UID:      stoken.NewUID(),
				OwnerID:  owner.ID,
				TypeHint: []byte(collectionTypes[mrand.Intn(len(collectionTypes))]),
				StokenID: &tok.ID,
			}
			if err := tx.Create(&col).Error; err != nil {
				return err
			}

			memberTok, err := ledger.Issue(tx)
			if err != nil {
				return err
			}
			member := models.CollectionMember{
				CollectionID: col.ID,
				UserID:       owner.ID,
				AccessLevel:  models.AccessLevelAdmin,
				StokenID:     &memberTok.ID,
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
			collections = append(collections, col)
		}
		return nil
	})
	return collections, err
}

// seedMemberships shares roughly a third of the collections with extra
// members at mixed access levels.
func seedMemberships(db *gorm.DB, ledger *stoken.Ledger, users []models.User, collections []models.Collection) error {
	levels := []models.AccessLevel{
		models.AccessLevelReadOnly, models.AccessLevelReadWrite, models.AccessLevelAdmin,
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, col := range collections {
			if mrand.Intn(3) != 0 {
				continue
			}
			extra := 1 + mrand.Intn(3)
			for i := 0; i < extra; i++ {
				user := users[mrand.Intn(len(users))]
				if user.ID == col.OwnerID {
					continue
				}
				tok, err := ledger.Issue(tx)
				if err != nil {
					return err
				}
				member := models.CollectionMember{
					CollectionID: col.ID,
					UserID:       user.ID,
					AccessLevel:  levels[mrand.Intn(len(levels))],
					StokenID:     &tok.ID,
				}
				// Ignore duplicate (collection, user) picks
				if err := tx.Create(&member).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						continue
					}
					return err
				}
			}
		}
		return nil
	})
}

func seedItems(db *gorm.DB, ledger *stoken.Ledger, collections []models.Collection, perCollection int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, col := range collections {
			n := 1 + mrand.Intn(perCollection)
			for i := 0; i < n; i++ {
				tok, err := ledger.Issue(tx)
				if err != nil {
					return err
				}
				content := make([]byte, 64+mrand.Intn(512))
				if _, err := rand.Read(content); err != nil {
					return err
				}
				item := models.CollectionItem{
					CollectionID: col.ID,
					UID:          stoken.NewUID(),
					Content:      content,
					StokenID:     &tok.ID,
				}
				if err := tx.Create(&item).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
