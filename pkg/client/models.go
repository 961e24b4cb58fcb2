package client

import (
	"context"
	"net/http"

	"github.com/rhuss/llmclient/pkg/api"
	"github.com/rhuss/llmclient/pkg/transport"
)

// ModelsService lists the models a server offers.
type ModelsService struct {
	session *transport.Session
	header  http.Header
}

// List returns the server's model catalog.
func (s *ModelsService) List(ctx context.Context) (*api.ModelList, error) {
	resp, err := s.session.Request(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/models",
		Header: s.header,
	})
	if err != nil {
		return nil, err
	}
	return api.DecodeModelList(resp.Body)
}
