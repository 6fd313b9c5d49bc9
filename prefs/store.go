// Package prefs persists the per-viewer UI preferences: page size, the
// last search query and the colour theme.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"disaster-posts-viewer/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KeyPerPage = "perPage"
	KeyQuery   = "query"
	KeyTheme   = "theme"
)

type Theme string

const (
	ThemeNature     Theme = "nature"
	ThemeNatureDark Theme = "nature-dark"
	ThemeSystem     Theme = "system"
)

var Themes = []Theme{ThemeNature, ThemeNatureDark, ThemeSystem}

// ParseTheme returns the theme named s, or false if there is none
func ParseTheme(s string) (Theme, bool) {
	for _, t := range Themes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

var ErrInvalidValue = errors.New("prefs: invalid value")

type Preferences struct {
	PerPage int
	Query   string
	Theme   Theme
}

// Store reads and writes preferences keyed by client id. Every Set is a
// synchronous upsert; concurrent writers to one key resolve last write wins.
type Store struct {
	db             *gorm.DB
	defaultPerPage int
	perPageOptions []int
}

func NewStore(db *gorm.DB, defaultPerPage int, perPageOptions []int) *Store {
	return &Store{
		db:             db,
		defaultPerPage: defaultPerPage,
		perPageOptions: perPageOptions,
	}
}

func (s *Store) Defaults() Preferences {
	return Preferences{PerPage: s.defaultPerPage, Theme: ThemeNature}
}

// Load returns the stored preferences of clientID. Missing or unusable
// values come back as defaults.
func (s *Store) Load(ctx context.Context, clientID string) (Preferences, error) {
	p := s.Defaults()

	var rows []models.Preference
	if err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Find(&rows).Error; err != nil {
		return p, fmt.Errorf("load preferences: %w", err)
	}

	for _, row := range rows {
		switch row.Key {
		case KeyPerPage:
			if n, err := strconv.Atoi(row.Value); err == nil && s.allowsPerPage(n) {
				p.PerPage = n
			}
		case KeyQuery:
			p.Query = row.Value
		case KeyTheme:
			if t, ok := ParseTheme(row.Value); ok {
				p.Theme = t
			}
		}
	}
	return p, nil
}

func (s *Store) Set(ctx context.Context, clientID, key, value string) error {
	row := models.Preference{ClientID: clientID, Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) SetPerPage(ctx context.Context, clientID string, n int) error {
	if !s.allowsPerPage(n) {
		return fmt.Errorf("%w: per page %d", ErrInvalidValue, n)
	}
	return s.Set(ctx, clientID, KeyPerPage, strconv.Itoa(n))
}

func (s *Store) SetQuery(ctx context.Context, clientID, query string) error {
	return s.Set(ctx, clientID, KeyQuery, query)
}

func (s *Store) SetTheme(ctx context.Context, clientID string, theme Theme) error {
	if _, ok := ParseTheme(string(theme)); !ok {
		return fmt.Errorf("%w: theme %q", ErrInvalidValue, theme)
	}
	return s.Set(ctx, clientID, KeyTheme, string(theme))
}

func (s *Store) allowsPerPage(n int) bool {
	for _, opt := range s.perPageOptions {
		if opt == n {
			return true
		}
	}
	return false
}
