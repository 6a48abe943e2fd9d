// Package keywords enforces the registration rules for subscriber keywords.
package keywords

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ToffenYT/varsly/pkg/models"
)

var (
	ErrEmptyKeyword     = errors.New("keyword is empty")
	ErrDuplicateKeyword = errors.New("keyword already registered")
)

// Store keyword persistence
type Store interface {
	ListKeywords(ctx context.Context, ownerID string) ([]models.Keyword, error)
	InsertKeyword(ctx context.Context, k *models.Keyword) error
	DeleteKeyword(ctx context.Context, ownerID, id string) error
}

// Service keyword registration
type Service struct {
	store Store
}

// NewService creates a Service
func NewService(st Store) *Service {
	return &Service{store: st}
}

// Add registers a keyword. Text is trimmed; a case-insensitive duplicate of an
// existing keyword of the same owner is rejected before reaching storage.
func (s *Service) Add(ctx context.Context, ownerID, text string) (*models.Keyword, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyKeyword
	}

	existing, err := s.store.ListKeywords(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	for _, k := range existing {
		if strings.EqualFold(k.Text, text) {
			return nil, ErrDuplicateKeyword
		}
	}

	k := &models.Keyword{OwnerID: ownerID, Text: text}
	if err := s.store.InsertKeyword(ctx, k); err != nil {
		return nil, fmt.Errorf("insert keyword: %w", err)
	}
	return k, nil
}

// List keywords of one owner
func (s *Service) List(ctx context.Context, ownerID string) ([]models.Keyword, error) {
	return s.store.ListKeywords(ctx, ownerID)
}

// Remove deletes one keyword; store.ErrNotFound when it is not the owner's
func (s *Service) Remove(ctx context.Context, ownerID, id string) error {
	return s.store.DeleteKeyword(ctx, ownerID, id)
}
