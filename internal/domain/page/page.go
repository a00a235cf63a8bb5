// Package page models offset pagination for list queries.
package page

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kailas-cloud/scopedex/internal/domain"
)

// Pagination defaults.
const (
	DefaultPerPage = 50
	MaxPerPage     = 100
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			if tag == "" || tag == "-" {
				return fld.Name
			}
			return tag
		})
	})
	return validate
}

// Request is a 1-based page request.
type Request struct {
	Page    int `json:"page" validate:"min=1"`
	PerPage int `json:"per_page" validate:"min=1,max=100"`
}

// NewRequest validates page and perPage. Zero values select page 1 and DefaultPerPage.
func NewRequest(pageNum, perPage int) (Request, error) {
	if pageNum == 0 {
		pageNum = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	r := Request{Page: pageNum, PerPage: perPage}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Validate checks bounds.
func (r Request) Validate() error {
	err := getValidator().Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s must satisfy %s=%s", domain.ErrInvalidPayload, fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
}

// Offset is the number of items skipped before this page.
func (r Request) Offset() int {
	return (r.Page - 1) * r.PerPage
}

// Response is one page of items.
// Next is inferred from page fullness: a full last page still advertises a next page.
type Response[T any] struct {
	Items    []T
	Count    int
	PerPage  int
	Previous *int
	Next     *int
}

// NewResponse builds a page response from the items returned for req.
func NewResponse[T any](items []T, req Request) Response[T] {
	if items == nil {
		items = []T{}
	}
	resp := Response[T]{Items: items, Count: len(items), PerPage: req.PerPage}
	if req.Page > 1 {
		prev := req.Page - 1
		resp.Previous = &prev
	}
	if len(items) >= req.PerPage {
		next := req.Page + 1
		resp.Next = &next
	}
	return resp
}
