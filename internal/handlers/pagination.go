package handlers

import (
	"strconv"

	"github.com/go-faster/errors"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

var errInvalidPagination = errors.New("invalid pagination params")

type pagination struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
}

func (p pagination) skip() int64 {
	return (p.Page - 1) * p.Limit
}

func parsePaginationParams(pageStr, limitStr string) (pagination, error) {
	p := pagination{Page: 1, Limit: defaultPageLimit}

	if pageStr != "" {
		page, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || page < 1 {
			return pagination{}, errInvalidPagination
		}
		p.Page = page
	}

	if limitStr != "" {
		limit, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || limit < 1 {
			return pagination{}, errInvalidPagination
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
		p.Limit = limit
	}

	return p, nil
}
