package service

import (
	"errors"

	"catalog-service/internal/catalogerr"
)

func asCatalogError(err error) (*catalogerr.Error, bool) {
	var ce *catalogerr.Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// withData returns a copy of err with extra context merged into its data.
// Keys already present on err win.
func withData(err *catalogerr.Error, extra map[string]any) *catalogerr.Error {
	data := make(map[string]any, len(err.Data)+len(extra))
	for k, v := range extra {
		data[k] = v
	}
	for k, v := range err.Data {
		data[k] = v
	}
	return &catalogerr.Error{Code: err.Code, Message: err.Message, Data: data}
}
