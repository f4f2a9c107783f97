// Package noop is the search engine used when no search cluster is configured.
package noop

import (
	"context"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search"
)

type Engine struct{}

func New() *Engine { return &Engine{} }

func (*Engine) Index(context.Context, *search.Document) error { return nil }

func (*Engine) Delete(context.Context, string) error { return nil }

func (*Engine) Search(context.Context, *search.Query) (*search.Result, error) {
	return nil, search.ErrDisabled
}
