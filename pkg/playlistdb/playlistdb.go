package playlistdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("Playlist item not found")

// PlaylistDB stores the saved settings documents of playlist items.
// A playlist item is usually a video file, and its document holds, among
// other things, the render settings of its statistics.
type PlaylistDB struct {
	Log logs.Log
	db  *gorm.DB
}

type playlistItem struct {
	Name     string `gorm:"primaryKey"`
	Document string
	SavedAt  int64 `gorm:"column:updated_at"` // Unix milliseconds
}

func (playlistItem) TableName() string {
	return "playlist_item"
}

// Open or create a playlist DB
func Open(logger logs.Log, dbFilename string) (*PlaylistDB, error) {
	logger = logs.NewPrefixLogger(logger, "PlaylistDB:")
	if err := os.MkdirAll(filepath.Dir(dbFilename), 0770); err != nil {
		return nil, fmt.Errorf("Failed to create playlist DB directory: %w", err)
	}
	logger.Infof("Opening playlist DB at '%v'", dbFilename)
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open playlist database %v: %w", dbFilename, err)
	}
	return &PlaylistDB{
		Log: logger,
		db:  db,
	}, nil
}

func (p *PlaylistDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save stores the document of a playlist item, replacing any previous version
func (p *PlaylistDB) Save(name string, doc *yaml.Node) error {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("Failed to encode playlist item '%v': %w", name, err)
	}
	item := playlistItem{
		Name:     name,
		Document: string(raw),
		SavedAt:  time.Now().UnixMilli(),
	}
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&item).Error
}

// Load returns the document of a playlist item, or ErrNotFound
func (p *PlaylistDB) Load(name string) (*yaml.Node, error) {
	item := playlistItem{}
	if err := p.db.Where("name = ?", name).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	doc := &yaml.Node{}
	if err := yaml.Unmarshal([]byte(item.Document), doc); err != nil {
		return nil, fmt.Errorf("Playlist item '%v' is corrupt: %w", name, err)
	}
	return doc, nil
}

// Delete removes a playlist item. Deleting an item that doesn't exist is not an error.
func (p *PlaylistDB) Delete(name string) error {
	return p.db.Where("name = ?", name).Delete(&playlistItem{}).Error
}

// Names returns the names of all stored playlist items, in alphabetical order
func (p *PlaylistDB) Names() ([]string, error) {
	names := []string{}
	err := p.db.Model(&playlistItem{}).Order("name").Pluck("name", &names).Error
	return names, err
}
