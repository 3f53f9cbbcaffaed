package folderservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/folderdb"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/tree"
)

// MaxNameLength bounds folder names accepted by Create.
const MaxNameLength = 255

// Event kinds passed to an EventCallback.
const (
	EventCreated = "created"
	EventDeleted = "deleted"
)

// EventCallback is called after a committed mutation with the ids it touched.
// For deletions ids holds the target followed by its removed descendants.
type EventCallback func(kind string, ids []string)

// CreateInput is the payload for creating a folder.
type CreateInput struct {
	Name     string
	ParentID *string
}

// Validate validates the create input.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, MaxNameLength)),
		validation.Field(&in.ParentID, validation.NilOrNotEmpty),
	)
}

// Service coordinates folder persistence and change notification.
type Service struct {
	db folderdb.Repository
	cb EventCallback
}

// NewService creates a new folder service. cb may be nil.
func NewService(db folderdb.Repository, cb EventCallback) *Service {
	return &Service{db: db, cb: cb}
}

// List returns every folder as a flat record list in insertion order.
func (s *Service) List(ctx context.Context) ([]models.Record, error) {
	return s.db.List(ctx)
}

// Get returns a single folder.
func (s *Service) Get(ctx context.Context, id string) (models.Record, error) {
	if id == "" {
		return models.Record{}, fmt.Errorf("%w: folder id is required", apperr.ErrInvalid)
	}
	return s.db.Get(ctx, id)
}

// Tree returns the folders assembled into a forest.
func (s *Service) Tree(ctx context.Context) ([]models.Node, error) {
	records, err := s.db.List(ctx)
	if err != nil {
		return nil, err
	}
	return tree.Build(records), nil
}

// Create validates and stores a new folder.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Record, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return models.Record{}, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	rec, err := s.db.Insert(ctx, in.Name, in.ParentID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Record{}, fmt.Errorf("%w: parent folder does not exist", apperr.ErrInvalid)
		}
		return models.Record{}, err
	}
	s.notify(EventCreated, []string{rec.ID})
	return rec, nil
}

// Delete removes a folder and its whole subtree. The root sentinel is protected.
func (s *Service) Delete(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: folder id is required", apperr.ErrInvalid)
	}
	if tree.IsRoot(id) {
		return nil, apperr.ErrProtected
	}
	removed, err := s.db.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(EventDeleted, removed)
	return removed, nil
}

func (s *Service) notify(kind string, ids []string) {
	if s.cb != nil {
		s.cb(kind, ids)
	}
}
