package dto

import (
	"stockpile/internal/core/entity"
	"stockpile/internal/domain/catalogs/location"
)

// --- Request DTOs ---

// CreateLocationRequest is the request body for creating a location.
type CreateLocationRequest struct {
	Code        string                `json:"code"`
	Name        string                `json:"name" binding:"required"`
	Type        location.LocationType `json:"type" binding:"required"`
	Address     *string               `json:"address"`
	IsActive    bool                  `json:"isActive"`
	IsDefault   bool                  `json:"isDefault"`
	Description *string               `json:"description"`
	ParentID    *string               `json:"parentId"`
	IsFolder    bool                  `json:"isFolder"`
	Attributes  entity.Attributes     `json:"attributes"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateLocationRequest) ToEntity() *location.Location {
	l := location.NewLocation(r.Code, r.Name, r.Type)
	l.Address = r.Address
	l.IsActive = r.IsActive
	l.IsDefault = r.IsDefault
	l.Description = r.Description
	l.ParentID = r.ParentID
	l.IsFolder = r.IsFolder
	l.Attributes = r.Attributes
	return l
}

// UpdateLocationRequest is the request body for updating a location.
type UpdateLocationRequest struct {
	Code        string                `json:"code"`
	Name        string                `json:"name" binding:"required"`
	Type        location.LocationType `json:"type" binding:"required"`
	Address     *string               `json:"address,omitempty"`
	IsActive    bool                  `json:"isActive"`
	IsDefault   bool                  `json:"isDefault"`
	Description *string               `json:"description,omitempty"`
	ParentID    *string               `json:"parentId,omitempty"`
	IsFolder    bool                  `json:"isFolder"`
	Attributes  entity.Attributes     `json:"attributes"`
	Version     int                   `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateLocationRequest) ApplyTo(l *location.Location) {
	l.Code = r.Code
	l.Name = r.Name
	l.Type = r.Type
	l.Address = r.Address
	l.IsActive = r.IsActive
	l.IsDefault = r.IsDefault
	l.Description = r.Description
	l.ParentID = r.ParentID
	l.IsFolder = r.IsFolder
	l.Attributes = r.Attributes
	l.Version = r.Version
}

// --- Response DTOs ---

// LocationResponse is the response body for a location.
type LocationResponse struct {
	ID           string                `json:"id"`
	Code         string                `json:"code"`
	Name         string                `json:"name"`
	Type         location.LocationType `json:"type"`
	Address      *string               `json:"address,omitempty"`
	IsActive     bool                  `json:"isActive"`
	IsDefault    bool                  `json:"isDefault"`
	Description  *string               `json:"description,omitempty"`
	ParentID     *string               `json:"parentId,omitempty"`
	IsFolder     bool                  `json:"isFolder"`
	DeletionMark bool                  `json:"deletionMark"`
	Version      int                   `json:"version"`
	Attributes   entity.Attributes     `json:"attributes,omitempty"`
}

// FromLocation creates response DTO from domain entity.
func FromLocation(l *location.Location) *LocationResponse {
	return &LocationResponse{
		ID:           l.ID.String(),
		Code:         l.Code,
		Name:         l.Name,
		Type:         l.Type,
		Address:      l.Address,
		IsActive:     l.IsActive,
		IsDefault:    l.IsDefault,
		Description:  l.Description,
		ParentID:     l.ParentID,
		IsFolder:     l.IsFolder,
		DeletionMark: l.DeletionMark,
		Version:      l.Version,
		Attributes:   l.Attributes,
	}
}
