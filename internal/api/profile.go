package api

import (
	"fmt"
	"net/http"
)

// EndpointMe handles the 'GET /me' endpoint
func (service *Service) EndpointMe(writer http.ResponseWriter, request *http.Request) {
	service.writer.WriteJSON(writer, sessionFrom(request).Identity.Claims)
}

// EndpointHello handles the 'GET /hello' endpoint
func (service *Service) EndpointHello(writer http.ResponseWriter, request *http.Request) {
	service.writer.WriteText(writer, fmt.Sprintf("Hello %s", sessionFrom(request).Identity.Name()))
}
