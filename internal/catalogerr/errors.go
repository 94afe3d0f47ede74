package catalogerr

import (
	"errors"
	"fmt"
)

// Code is the machine-readable identifier carried by every catalog error.
type Code string

// Error codes
const (
	CodeSkuNotFound        Code = "SKU_NOT_FOUND"
	CodeSkuInactive        Code = "SKU_INACTIVE"
	CodeNotABundle         Code = "NOT_A_BUNDLE"
	CodeInvalidQuantity    Code = "INVALID_QUANTITY"
	CodeInvalidPrice       Code = "INVALID_PRICE"
	CodeSelfReference      Code = "SELF_REFERENCE"
	CodeCircularReference  Code = "CIRCULAR_REFERENCE"
	CodeMaxDepthExceeded   Code = "MAX_DEPTH_EXCEEDED"
	CodeInvalidPriceList   Code = "INVALID_PRICE_LIST"
	CodePriceListExpired   Code = "PRICE_LIST_EXPIRED"
	CodeCollectionNotFound Code = "COLLECTION_NOT_FOUND"
	CodeListingNotFound    Code = "LISTING_NOT_FOUND"
	CodeProductInUse       Code = "PRODUCT_IN_USE"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeInvalidInput       Code = "INVALID_INPUT"
)

var defaultMessages = map[Code]string{
	CodeSkuNotFound:        "SKU not found",
	CodeSkuInactive:        "SKU is inactive",
	CodeNotABundle:         "SKU is not a bundle",
	CodeInvalidQuantity:    "Invalid quantity",
	CodeInvalidPrice:       "Price must not be negative",
	CodeSelfReference:      "Product cannot be component of itself",
	CodeCircularReference:  "Circular reference detected",
	CodeMaxDepthExceeded:   "Max depth exceeded",
	CodeInvalidPriceList:   "Invalid price list",
	CodePriceListExpired:   "Price list expired",
	CodeCollectionNotFound: "Collection not found",
	CodeListingNotFound:    "Listing not found",
	CodeProductInUse:       "Product is used as a bundle component",
	CodeAlreadyExists:      "Already exists",
	CodeInvalidInput:       "Invalid input",
}

// Sentinels for errors.Is. Matching is by code, so an error built with New
// carrying extra data still matches its sentinel.
var (
	ErrSkuNotFound        = &Error{Code: CodeSkuNotFound}
	ErrSkuInactive        = &Error{Code: CodeSkuInactive}
	ErrNotABundle         = &Error{Code: CodeNotABundle}
	ErrInvalidQuantity    = &Error{Code: CodeInvalidQuantity}
	ErrInvalidPrice       = &Error{Code: CodeInvalidPrice}
	ErrSelfReference      = &Error{Code: CodeSelfReference}
	ErrCircularReference  = &Error{Code: CodeCircularReference}
	ErrMaxDepthExceeded   = &Error{Code: CodeMaxDepthExceeded}
	ErrInvalidPriceList   = &Error{Code: CodeInvalidPriceList}
	ErrPriceListExpired   = &Error{Code: CodePriceListExpired}
	ErrCollectionNotFound = &Error{Code: CodeCollectionNotFound}
	ErrListingNotFound    = &Error{Code: CodeListingNotFound}
	ErrProductInUse       = &Error{Code: CodeProductInUse}
	ErrAlreadyExists      = &Error{Code: CodeAlreadyExists}
	ErrInvalidInput       = &Error{Code: CodeInvalidInput}
)

// Error is a structured catalog error: a code, a human message and
// contextual data (at least the SKU involved, when there is one).
type Error struct {
	Code    Code
	Message string
	Data    map[string]any
}

// New builds an error with the default message for code.
func New(code Code, data map[string]any) *Error {
	return &Error{Code: code, Message: defaultMessages[code], Data: data}
}

// Newf builds an error with a custom message.
func Newf(code Code, data map[string]any, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Data: data}
}

// SkuNotFound is the most common error; it gets its own constructor.
func SkuNotFound(sku string) *Error {
	return New(CodeSkuNotFound, map[string]any{"sku": sku})
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Code]
	}
	if sku := e.SKU(); sku != "" {
		return fmt.Sprintf("%s: %s (sku=%s)", e.Code, msg, sku)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Is reports whether target is a catalog error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// SKU returns the sku stored in Data, or "".
func (e *Error) SKU() string {
	if e.Data == nil {
		return ""
	}
	sku, _ := e.Data["sku"].(string)
	return sku
}

// AsMap renders the error for transport layers.
func (e *Error) AsMap() map[string]any {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Code]
	}
	out := map[string]any{
		"code":    string(e.Code),
		"message": msg,
	}
	if len(e.Data) > 0 {
		out["data"] = e.Data
	}
	return out
}

// CodeOf extracts the code of a catalog error anywhere in err's chain.
func CodeOf(err error) (Code, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}
