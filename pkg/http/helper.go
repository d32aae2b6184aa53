package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"confdesk/pkg/config"
	apperrors "confdesk/pkg/errors"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = int64(v)
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// DecodeStrict decodes a JSON request body into dst, rejecting unknown
// fields and trailing content. Every decode failure produces a typed error,
// never a silent default.
func DecodeStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidInput("Invalid request body: " + err.Error())
	}
	if dec.More() {
		return apperrors.InvalidInput("Invalid request body: unexpected trailing content")
	}
	return nil
}
