package controller

import (
	"net/http"
	"sort"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type pageSpec struct {
	Limit int
	// Cursor is the key of the last row of the previous page.
	Cursor string
}

type pagedResponse[T any] struct {
	Data       []T     `json:"data"`
	Limit      int     `json:"limit"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

func parsePageSpec(r *http.Request) (pageSpec, error) {
	qs := r.URL.Query()
	limit := defaultLimit
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return pageSpec{}, errInvalidLimit
		}
		limit = min(n, maxLimit)
	}
	return pageSpec{Limit: limit, Cursor: qs.Get("cursor")}, nil
}

// paginate slices rows, which must be sorted by key, to the page after page.Cursor.
func paginate[T any](rows []T, key func(T) string, page pageSpec) pagedResponse[T] {
	start := 0
	if page.Cursor != "" {
		start = sort.Search(len(rows), func(i int) bool { return key(rows[i]) > page.Cursor })
	}
	rows = rows[start:]

	resp := pagedResponse[T]{Data: rows, Limit: page.Limit}
	if len(rows) > page.Limit {
		resp.Data = rows[:page.Limit]
		next := key(resp.Data[page.Limit-1])
		resp.NextCursor = &next
	}
	if resp.Data == nil {
		resp.Data = []T{}
	}
	return resp
}

var (
	errInvalidLimit = &parseError{msg: "invalid limit"}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }
