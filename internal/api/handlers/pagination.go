package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/bigkaa/dataviz/internal/domain/model"
)

// pageResponse - страница списка: count, ссылки next/previous, results.
type pageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// pageNumber возвращает номер страницы из query, по умолчанию 1.
func pageNumber(page *int) int {
	if page == nil {
		return 1
	}
	return *page
}

// newPageResponse строит ответ и ссылки на соседние страницы.
func newPageResponse[M, T any](r *http.Request, p model.Page[M], mapFn func(M) T) pageResponse[T] {
	resp := pageResponse[T]{
		Count:   p.Total,
		Results: make([]T, 0, len(p.Items)),
	}
	for _, item := range p.Items {
		resp.Results = append(resp.Results, mapFn(item))
	}
	if p.HasNext() {
		next := pageURL(r, p.Number+1)
		resp.Next = &next
	}
	if p.HasPrevious() {
		prev := pageURL(r, p.Number-1)
		resp.Previous = &prev
	}
	return resp
}

// pageURL - абсолютный URL текущего запроса с другим номером страницы.
// Для первой страницы параметр page убирается.
func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}

	q := r.URL.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}

	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: q.Encode()}
	return u.String()
}
