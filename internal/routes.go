package internal

import (
	"net/http"

	"mqd/internal/controllers"
	"mqd/internal/providers"
	"mqd/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/observe", http.HandlerFunc(apiController.ReceiveObservation))
	routers.Get("/assessment", http.HandlerFunc(apiController.GetAssessment))
	routers.Get("/author", http.HandlerFunc(apiController.GetAuthor))
	routers.Get("/authors", http.HandlerFunc(apiController.GetAuthors))
	routers.Get("/communities", http.HandlerFunc(apiController.GetCommunities))
	return routers
}
