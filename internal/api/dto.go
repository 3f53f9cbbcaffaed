package api

import "github.com/starford/arbor/internal/models"

// CreateFolderRequest is the request body for creating a folder.
// A null or absent parentId creates a root-level folder.
type CreateFolderRequest struct {
	Name     string  `json:"name" example:"Docs" validate:"required"`
	ParentID *string `json:"parentId" example:"root"`
}

// FolderRecord is the flat folder representation (aliased from the domain layer).
type FolderRecord = models.Record

// FolderNode is one node of the nested tree response (aliased from the domain layer).
type FolderNode = models.Node
