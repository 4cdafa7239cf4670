package handlers

import (
	"stockpile/internal/domain/catalogs/location"
	"stockpile/internal/infrastructure/http/v1/dto"
)

// LocationHTTPHandler - псевдоним
type LocationHTTPHandler = CatalogHandler[
	*location.Location,
	dto.CreateLocationRequest,
	dto.UpdateLocationRequest,
]

// NewLocationHandler - фабрика конфигурации
func NewLocationHandler(
	base *BaseHandler,
	service *location.Service,
) *LocationHTTPHandler {

	config := CatalogHandlerConfig[
		*location.Location,
		dto.CreateLocationRequest,
		dto.UpdateLocationRequest,
	]{
		Service:    service.CatalogService,
		EntityName: "location",

		// Map Create Request
		MapCreateDTO: func(req dto.CreateLocationRequest) *location.Location {
			return req.ToEntity()
		},

		// Map Update Request
		MapUpdateDTO: func(req dto.UpdateLocationRequest, existing *location.Location) *location.Location {
			req.ApplyTo(existing)
			return existing
		},

		// Map Response
		MapToDTO: func(entity *location.Location) any {
			return dto.FromLocation(entity)
		},
	}

	return NewCatalogHandler(base, config)
}
