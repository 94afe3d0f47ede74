package catalogerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMessage(t *testing.T) {
	err := New(CodeSkuNotFound, map[string]any{"sku": "XYZ"})

	assert.Equal(t, "SKU not found", err.Message)
	assert.Equal(t, "XYZ", err.SKU())
	assert.Equal(t, "SKU_NOT_FOUND: SKU not found (sku=XYZ)", err.Error())
}

func TestCustomMessage(t *testing.T) {
	err := Newf(CodeMaxDepthExceeded, nil, "Max bundle depth (%d) exceeded.", 5)

	assert.Equal(t, "MAX_DEPTH_EXCEEDED: Max bundle depth (5) exceeded.", err.Error())
	assert.Equal(t, "", err.SKU())
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("pricing: %w", SkuNotFound("A"))

	assert.True(t, errors.Is(err, ErrSkuNotFound))
	assert.False(t, errors.Is(err, ErrNotABundle))

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, CodeSkuNotFound, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestAsMap(t *testing.T) {
	m := New(CodeNotABundle, map[string]any{"sku": "CROISSANT"}).AsMap()

	assert.Equal(t, "NOT_A_BUNDLE", m["code"])
	assert.Equal(t, "SKU is not a bundle", m["message"])
	assert.Equal(t, map[string]any{"sku": "CROISSANT"}, m["data"])

	bare := ErrInvalidQuantity.AsMap()
	_, hasData := bare["data"]
	assert.False(t, hasData)
	assert.Equal(t, "Invalid quantity", bare["message"])
}
