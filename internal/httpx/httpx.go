package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

func DecodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Field()] = err.Tag()
	}
	return details
}

type Page struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

func (p Page) Skip() int64 {
	return (p.Page - 1) * p.Limit
}

// WithTotal fills the total and derived page count.
func (p Page) WithTotal(total int64) Page {
	p.Total = total
	if p.Limit > 0 {
		p.Pages = (total + p.Limit - 1) / p.Limit
	}
	return p
}

// ParsePage reads 1-based ?page= and ?limit= values.
func ParsePage(values url.Values, defaultLimit, maxLimit int64) (Page, error) {
	page := Page{Page: 1, Limit: defaultLimit}

	rawPage := strings.TrimSpace(values.Get("page"))
	if rawPage != "" {
		parsed, err := strconv.ParseInt(rawPage, 10, 64)
		if err != nil || parsed <= 0 {
			return Page{}, errors.New("invalid page")
		}
		page.Page = parsed
	}

	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit != "" {
		parsed, err := strconv.ParseInt(rawLimit, 10, 64)
		if err != nil || parsed <= 0 {
			return Page{}, errors.New("invalid limit")
		}
		page.Limit = parsed
	}

	if page.Limit > maxLimit {
		page.Limit = maxLimit
	}

	return page, nil
}

func ClientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
